package twentyfour

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/biso/functions/internal/soap"
)

// Company types.
const (
	CompanyConsumer = "Consumer"
	CompanyBusiness = "Business"
)

// Company is a customer record. Id is the customer number.
type Company struct {
	ID         int    `xml:"Id,omitempty"`
	ExternalID string `xml:"ExternalId,omitempty"`
	Name       string `xml:"Name,omitempty"`
	FirstName  string `xml:"FirstName,omitempty"`
	Type       string `xml:"Type,omitempty"`
	Email      string `xml:"EmailAddresses>Invoice>Value,omitempty"`
}

type companyEmails struct {
	Invoice struct {
		Value string `xml:"Value"`
	} `xml:"Invoice"`
}

// MarshalXML leaves EmailAddresses out when there is no email.
func (c Company) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	v := struct {
		ID             int            `xml:"Id,omitempty"`
		ExternalID     string         `xml:"ExternalId,omitempty"`
		Name           string         `xml:"Name,omitempty"`
		FirstName      string         `xml:"FirstName,omitempty"`
		Type           string         `xml:"Type,omitempty"`
		EmailAddresses *companyEmails `xml:"EmailAddresses,omitempty"`
	}{ID: c.ID, ExternalID: c.ExternalID, Name: c.Name, FirstName: c.FirstName, Type: c.Type}
	if c.Email != "" {
		v.EmailAddresses = &companyEmails{}
		v.EmailAddresses.Invoice.Value = c.Email
	}
	return e.EncodeElement(v, start)
}

// Category is a customer category.
type Category struct {
	ID   int
	Name string
}

func categoriesOf(pairs []KeyValuePair) ([]Category, error) {
	out := make([]Category, 0, len(pairs))
	for _, kv := range pairs {
		id, err := strconv.Atoi(strings.TrimSpace(kv.Key))
		if err != nil {
			return nil, fmt.Errorf("category key %q: %w", kv.Key, err)
		}
		out = append(out, Category{ID: id, Name: kv.Value})
	}
	return out, nil
}

type getCategoryTreeRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices GetCustomerCategoryTree"`
}

type getCategoryTreeResponse struct {
	Pairs []KeyValuePair `xml:"GetCustomerCategoryTreeResult>KeyValuePair"`
}

// CustomerCategoryTree lists every customer category.
func (s *Session) CustomerCategoryTree(ctx context.Context) ([]Category, error) {
	var resp getCategoryTreeResponse
	if err := s.Call(ctx, ServiceCompany, &getCategoryTreeRequest{}, &resp); err != nil {
		return nil, fmt.Errorf("get customer category tree: %w", err)
	}
	return categoriesOf(soap.Seq(resp.Pairs))
}

type getCustomerCategoriesRequest struct {
	XMLName    struct{} `xml:"http://24sevenOffice.com/webservices GetCustomerCategories"`
	CustomerID int      `xml:"customerId"`
}

func (r *getCustomerCategoriesRequest) Validate() error {
	if r.CustomerID <= 0 {
		return errors.New("customer categories: customer id is required")
	}
	return nil
}

type getCustomerCategoriesResponse struct {
	Pairs []KeyValuePair `xml:"GetCustomerCategoriesResult>KeyValuePair"`
}

// CustomerCategories lists the categories a customer belongs to.
func (s *Session) CustomerCategories(ctx context.Context, customerID int) ([]Category, error) {
	var resp getCustomerCategoriesResponse
	if err := s.Call(ctx, ServiceCompany, &getCustomerCategoriesRequest{CustomerID: customerID}, &resp); err != nil {
		return nil, fmt.Errorf("get customer categories: %w", err)
	}
	return categoriesOf(soap.Seq(resp.Pairs))
}

type saveCustomerCategoriesRequest struct {
	XMLName    struct{}       `xml:"http://24sevenOffice.com/webservices SaveCustomerCategories"`
	Categories []KeyValuePair `xml:"customerCategories>KeyValuePair"`
}

func (r *saveCustomerCategoriesRequest) Validate() error {
	if len(r.Categories) == 0 {
		return errors.New("customer categories: nothing to save")
	}
	for _, kv := range r.Categories {
		if kv.Key == "" || kv.Value == "" {
			return errors.New("customer categories: category id and customer id are required")
		}
	}
	return nil
}

type saveCustomerCategoriesResponse struct {
	Result exceptions `xml:"SaveCustomerCategoriesResult"`
}

// AssignCategory puts a customer in a category.
func (s *Session) AssignCategory(ctx context.Context, categoryID, customerID int) error {
	var pair KeyValuePair
	if categoryID > 0 {
		pair.Key = strconv.Itoa(categoryID)
	}
	if customerID > 0 {
		pair.Value = strconv.Itoa(customerID)
	}
	req := &saveCustomerCategoriesRequest{Categories: []KeyValuePair{pair}}

	var resp saveCustomerCategoriesResponse
	if err := s.Call(ctx, ServiceCompany, req, &resp); err != nil {
		return fmt.Errorf("save customer categories: %w", err)
	}
	if err := resp.Result.err(); err != nil {
		return fmt.Errorf("save customer categories: %w", err)
	}
	return nil
}

// CompanySearch selects companies. Zero fields are not sent.
type CompanySearch struct {
	CompanyID    int    `xml:"CompanyId,omitempty"`
	ExternalID   string `xml:"ExternalId,omitempty"`
	CompanyName  string `xml:"CompanyName,omitempty"`
	CompanyEmail string `xml:"CompanyEmail,omitempty"`
}

type getCompaniesRequest struct {
	XMLName          struct{}      `xml:"http://24sevenOffice.com/webservices GetCompanies"`
	SearchParams     CompanySearch `xml:"searchParams"`
	ReturnProperties []string      `xml:"returnProperties>string"`
}

func (r *getCompaniesRequest) Validate() error {
	if r.SearchParams == (CompanySearch{}) {
		return errors.New("get companies: at least one search parameter is required")
	}
	return nil
}

type getCompaniesResponse struct {
	Companies []Company `xml:"GetCompaniesResult>Company"`
}

var companyProperties = []string{"Id", "ExternalId", "Name", "FirstName", "Type", "EmailAddresses"}

// Companies returns the companies matching q.
func (s *Session) Companies(ctx context.Context, q CompanySearch) ([]Company, error) {
	var resp getCompaniesResponse
	req := &getCompaniesRequest{SearchParams: q, ReturnProperties: companyProperties}
	if err := s.Call(ctx, ServiceCompany, req, &resp); err != nil {
		return nil, fmt.Errorf("get companies: %w", err)
	}
	return soap.Seq(resp.Companies), nil
}

// FindCustomer looks a customer up by customer number. ok is false when no
// such customer exists.
func (s *Session) FindCustomer(ctx context.Context, id int) (c Company, ok bool, err error) {
	companies, err := s.Companies(ctx, CompanySearch{CompanyID: id})
	if err != nil {
		return Company{}, false, err
	}
	for _, c := range companies {
		if c.ID == id {
			return c, true, nil
		}
	}
	return Company{}, false, nil
}

// SearchCustomer finds a customer by name and email. A case-insensitive
// email match is preferred over a name-only match.
func (s *Session) SearchCustomer(ctx context.Context, name, email string) (c Company, ok bool, err error) {
	companies, err := s.Companies(ctx, CompanySearch{CompanyName: name})
	if err != nil {
		return Company{}, false, err
	}
	for _, c := range companies {
		if email != "" && strings.EqualFold(c.Email, email) {
			return c, true, nil
		}
	}
	for _, c := range companies {
		if strings.EqualFold(c.Name, name) {
			return c, true, nil
		}
	}
	return Company{}, false, nil
}

type saveCompaniesRequest struct {
	XMLName   struct{}  `xml:"http://24sevenOffice.com/webservices SaveCompanies"`
	Companies []Company `xml:"companies>Company"`
}

func (r *saveCompaniesRequest) Validate() error {
	if len(r.Companies) == 0 {
		return errors.New("save companies: nothing to save")
	}
	for _, c := range r.Companies {
		if strings.TrimSpace(c.Name) == "" {
			return errors.New("save companies: name is required")
		}
	}
	return nil
}

type saveCompaniesResponse struct {
	Companies []savedCompany `xml:"SaveCompaniesResult>Company"`
}

type savedCompany struct {
	ID int `xml:"Id"`
	exceptions
}

// CreateCustomer saves a new customer and returns its customer number.
func (s *Session) CreateCustomer(ctx context.Context, c Company) (int, error) {
	if c.Type == "" {
		c.Type = CompanyConsumer
	}

	var resp saveCompaniesResponse
	if err := s.Call(ctx, ServiceCompany, &saveCompaniesRequest{Companies: []Company{c}}, &resp); err != nil {
		return 0, fmt.Errorf("save companies: %w", err)
	}
	if len(resp.Companies) == 0 {
		return 0, errors.New("save companies: no company returned")
	}
	saved := resp.Companies[0]
	if err := saved.err(); err != nil {
		return 0, fmt.Errorf("save companies: %w", err)
	}
	if saved.ID == 0 {
		return 0, errors.New("save companies: no customer number returned")
	}
	return saved.ID, nil
}

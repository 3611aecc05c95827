package twentyfour

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biso/functions/internal/soap"
)

// Account is a ledger account.
type Account struct {
	AccountID   int    `xml:"AccountId"`
	AccountNo   int    `xml:"AccountNo"`
	AccountName string `xml:"AccountName"`
	AccountTax  int    `xml:"AccountTax"`
	TaxNo       int    `xml:"TaxNo"`
}

// TaxCode is a VAT code.
type TaxCode struct {
	TaxID     int     `xml:"TaxId"`
	TaxNo     int     `xml:"TaxNo"`
	TaxName   string  `xml:"TaxName"`
	TaxRate   float64 `xml:"TaxRate"`
	AccountNo int     `xml:"AccountNo"`
}

// EntryType is a voucher type.
type EntryType struct {
	TypeID        int    `xml:"TypeId"`
	Title         string `xml:"Title"`
	EntrySeriesID int    `xml:"EntrySeriesId"`
}

type getAccountListRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices GetAccountList"`
}

type getAccountListResponse struct {
	Accounts []Account `xml:"GetAccountListResult>AccountData"`
}

// Accounts lists the chart of accounts.
func (s *Session) Accounts(ctx context.Context) ([]Account, error) {
	var resp getAccountListResponse
	if err := s.Call(ctx, ServiceAccount, &getAccountListRequest{}, &resp); err != nil {
		return nil, fmt.Errorf("get account list: %w", err)
	}
	return soap.Seq(resp.Accounts), nil
}

type getTaxCodeListRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices GetTaxCodeList"`
}

type getTaxCodeListResponse struct {
	Codes []TaxCode `xml:"GetTaxCodeListResult>TaxCodeElement"`
}

// TaxCodes lists the VAT codes.
func (s *Session) TaxCodes(ctx context.Context) ([]TaxCode, error) {
	var resp getTaxCodeListResponse
	if err := s.Call(ctx, ServiceAccount, &getTaxCodeListRequest{}, &resp); err != nil {
		return nil, fmt.Errorf("get tax code list: %w", err)
	}
	return soap.Seq(resp.Codes), nil
}

type getTypeListRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices GetTypeList"`
}

type getTypeListResponse struct {
	Types []EntryType `xml:"GetTypeListResult>TypeData"`
}

// EntryTypes lists the voucher types.
func (s *Session) EntryTypes(ctx context.Context) ([]EntryType, error) {
	var resp getTypeListResponse
	if err := s.Call(ctx, ServiceAccount, &getTypeListRequest{}, &resp); err != nil {
		return nil, fmt.Errorf("get type list: %w", err)
	}
	return soap.Seq(resp.Types), nil
}

type createLinkRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices CreateLink"`
}

type createLinkResponse struct {
	LinkID int `xml:"CreateLinkResult"`
}

// CreateLink allocates a link id for grouping ledger lines.
func (s *Session) CreateLink(ctx context.Context) (int, error) {
	var resp createLinkResponse
	if err := s.Call(ctx, ServiceAccount, &createLinkRequest{}, &resp); err != nil {
		return 0, fmt.Errorf("create link: %w", err)
	}
	return resp.LinkID, nil
}

type addLinkEntriesRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices AddLinkEntries"`
	Item    struct {
		LineIDs []string `xml:"LineIds>guid"`
		LinkID  int      `xml:"LinkId"`
	} `xml:"linkEntryItem"`
}

func (r *addLinkEntriesRequest) Validate() error {
	if r.Item.LinkID <= 0 {
		return errors.New("add link entries: link id is required")
	}
	if len(r.Item.LineIDs) == 0 {
		return errors.New("add link entries: at least one line id is required")
	}
	return nil
}

type addLinkEntriesResponse struct {
	OK bool `xml:"AddLinkEntriesResult"`
}

// AddLinkEntries adds ledger lines to a link. It reports whether the service
// accepted them.
func (s *Session) AddLinkEntries(ctx context.Context, linkID int, lineIDs ...string) (bool, error) {
	req := &addLinkEntriesRequest{}
	req.Item.LinkID = linkID
	req.Item.LineIDs = lineIDs

	var resp addLinkEntriesResponse
	if err := s.Call(ctx, ServiceAccount, req, &resp); err != nil {
		return false, fmt.Errorf("add link entries: %w", err)
	}
	return resp.OK, nil
}

type replaceLinkEntriesRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices ReplaceLinkEntries"`
	Item    struct {
		LineIDs []string `xml:"LineIds>guid"`
		LinkID  int      `xml:"LinkId"`
	} `xml:"linkEntryItem"`
}

func (r *replaceLinkEntriesRequest) Validate() error {
	if r.Item.LinkID <= 0 {
		return errors.New("replace link entries: link id is required")
	}
	return nil
}

type replaceLinkEntriesResponse struct {
	OK bool `xml:"ReplaceLinkEntriesResult"`
}

// ReplaceLinkEntries sets the ledger lines of a link. No line ids empties it.
func (s *Session) ReplaceLinkEntries(ctx context.Context, linkID int, lineIDs ...string) (bool, error) {
	req := &replaceLinkEntriesRequest{}
	req.Item.LinkID = linkID
	req.Item.LineIDs = lineIDs

	var resp replaceLinkEntriesResponse
	if err := s.Call(ctx, ServiceAccount, req, &resp); err != nil {
		return false, fmt.Errorf("replace link entries: %w", err)
	}
	return resp.OK, nil
}

// Entry is one ledger line of a voucher. Zero optional fields are not sent.
type Entry struct {
	SequenceID         int     `xml:"SequenceId,omitempty"`
	CustomerID         int     `xml:"CustomerId,omitempty"`
	AccountNo          int     `xml:"AccountNo"`
	Date               string  `xml:"Date"`
	DueDate            string  `xml:"DueDate,omitempty"`
	Amount             float64 `xml:"Amount"`
	CurrencyID         string  `xml:"CurrencyId,omitempty"`
	CurrencyRate       float64 `xml:"CurrencyRate,omitempty"`
	CurrencyUnit       int     `xml:"CurrencyUnit,omitempty"`
	DepartmentID       int     `xml:"DepartmentId,omitempty"`
	ProjectID          int     `xml:"ProjectId,omitempty"`
	InvoiceReferenceNo string  `xml:"InvoiceReferenceNo,omitempty"`
	InvoiceOCR         string  `xml:"InvoiceOcr,omitempty"`
	TaxNo              int     `xml:"TaxNo,omitempty"`
	PeriodDate         string  `xml:"PeriodDate,omitempty"`
	Comment            string  `xml:"Comment,omitempty"`
	StampNo            int     `xml:"StampNo,omitempty"`
	BankAccountNo      string  `xml:"BankAccountNo,omitempty"`
	LinkID             int     `xml:"LinkId,omitempty"`
	Links              Strings `xml:"Links,omitempty"`
	LineID             string  `xml:"LineId,omitempty"`
}

// Voucher groups entries that must balance.
type Voucher struct {
	TransactionNo     int     `xml:"TransactionNo"`
	Entries           []Entry `xml:"Entries>Entry"`
	Sort              int     `xml:"Sort"`
	DifferenceOptions string  `xml:"DifferenceOptions,omitempty"`
}

// Bundle is a batch of vouchers in one accounting year.
type Bundle struct {
	YearID                 int       `xml:"YearId"`
	Vouchers               []Voucher `xml:"Vouchers>Voucher"`
	Sort                   int       `xml:"Sort"`
	Name                   string    `xml:"Name"`
	BundleDirectAccounting bool      `xml:"BundleDirectAccounting"`
}

// BundleList is the payload of SaveBundleList.
type BundleList struct {
	Bundles           []Bundle `xml:"Bundles>Bundle"`
	SaveOption        int      `xml:"SaveOption"`
	DirectLedger      bool     `xml:"DirectLedger"`
	DefaultCustomerID int      `xml:"DefaultCustomerId"`
	AllowDifference   bool     `xml:"AllowDifference"`
	IgnoreWarnings    Strings  `xml:"IgnoreWarnings,omitempty"`
}

// Validate checks every voucher has entries with an account and a date.
func (l *BundleList) Validate() error {
	if len(l.Bundles) == 0 {
		return errors.New("bundle list: at least one bundle is required")
	}
	for i, b := range l.Bundles {
		if len(b.Vouchers) == 0 {
			return fmt.Errorf("bundle list: bundle %d has no vouchers", i+1)
		}
		for j, v := range b.Vouchers {
			if len(v.Entries) == 0 {
				return fmt.Errorf("bundle list: bundle %d voucher %d has no entries", i+1, j+1)
			}
			for k, e := range v.Entries {
				if e.AccountNo <= 0 {
					return fmt.Errorf("bundle list: bundle %d voucher %d entry %d: account number is required", i+1, j+1, k+1)
				}
				if _, err := time.Parse(DateLayout, e.Date); err != nil {
					return fmt.Errorf("bundle list: bundle %d voucher %d entry %d: date %q is not YYYY-MM-DD", i+1, j+1, k+1, e.Date)
				}
			}
		}
	}
	return nil
}

// BundleResult is the outcome of SaveBundleList.
type BundleResult struct {
	Type        string `xml:"Type"`
	Description string `xml:"Description"`
}

// OK reports whether the service accepted the bundles.
func (r BundleResult) OK() bool {
	return r.Type == "Ok"
}

type saveBundleListRequest struct {
	XMLName struct{}   `xml:"http://24sevenOffice.com/webservices SaveBundleList"`
	List    BundleList `xml:"BundleList"`
}

func (r *saveBundleListRequest) Validate() error {
	return r.List.Validate()
}

type saveBundleListResponse struct {
	Result BundleResult `xml:"SaveBundleListResult"`
}

// SaveBundleList posts vouchers to the ledger. A result other than Ok is
// returned as an error carrying the service's description.
func (s *Session) SaveBundleList(ctx context.Context, l BundleList) (BundleResult, error) {
	var resp saveBundleListResponse
	if err := s.Call(ctx, ServiceAccount, &saveBundleListRequest{List: l}, &resp); err != nil {
		return BundleResult{}, fmt.Errorf("save bundle list: %w", err)
	}
	if !resp.Result.OK() {
		return resp.Result, fmt.Errorf("save bundle list: %w", &RemoteError{Type: resp.Result.Type, Message: resp.Result.Description})
	}
	return resp.Result, nil
}

type checkAccountNoRequest struct {
	XMLName  struct{}  `xml:"http://24sevenOffice.com/webservices CheckAccountNo"`
	Accounts []Account `xml:"accountList>AccountData"`
}

func (r *checkAccountNoRequest) Validate() error {
	if len(r.Accounts) == 0 {
		return errors.New("check account numbers: at least one account is required")
	}
	return nil
}

type checkAccountNoResponse struct {
	Errors []struct {
		Error string `xml:"Error"`
	} `xml:"CheckAccountNoResult>AccountDataErrors"`
}

// CheckAccountNo validates accounts before they are saved and returns the
// problems the service found. An empty result means all are valid.
func (s *Session) CheckAccountNo(ctx context.Context, accounts ...Account) ([]string, error) {
	var resp checkAccountNoResponse
	if err := s.Call(ctx, ServiceAccount, &checkAccountNoRequest{Accounts: accounts}, &resp); err != nil {
		return nil, fmt.Errorf("check account numbers: %w", err)
	}
	problems := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		if e.Error != "" {
			problems = append(problems, e.Error)
		}
	}
	return problems, nil
}

// EntryRef identifies a posted voucher by date, series sort and number.
type EntryRef struct {
	Date    string `xml:"Date"`
	SortNo  int    `xml:"SortNo"`
	EntryNo int    `xml:"EntryNo"`
}

type getEntryIDRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices GetEntryId"`
	Ref     EntryRef `xml:"argEntryId"`
}

func (r *getEntryIDRequest) Validate() error {
	if _, err := time.Parse(DateLayout, r.Ref.Date); err != nil {
		return fmt.Errorf("get entry id: date %q is not YYYY-MM-DD", r.Ref.Date)
	}
	if r.Ref.EntryNo <= 0 {
		return errors.New("get entry id: entry number is required")
	}
	return nil
}

type getEntryIDResponse struct {
	Result struct {
		EntryRef
		EntryID string `xml:"EntryId"`
	} `xml:"GetEntryIdResult"`
}

// EntryID looks up the id of a posted voucher.
func (s *Session) EntryID(ctx context.Context, ref EntryRef) (string, error) {
	var resp getEntryIDResponse
	if err := s.Call(ctx, ServiceAccount, &getEntryIDRequest{Ref: ref}, &resp); err != nil {
		return "", fmt.Errorf("get entry id: %w", err)
	}
	if resp.Result.EntryID == "" {
		return "", fmt.Errorf("get entry id: no entry %d on %s", ref.EntryNo, ref.Date)
	}
	return resp.Result.EntryID, nil
}

// DueDateChange moves the due date of one ledger line.
type DueDateChange struct {
	LineID  string `xml:"LineId"`
	DueDate string `xml:"DueDate"`
}

type updateEntryDueDateRequest struct {
	XMLName struct{}        `xml:"http://24sevenOffice.com/webservices UpdateEntryDueDate"`
	Items   []DueDateChange `xml:"entryItems>EntryItem"`
}

func (r *updateEntryDueDateRequest) Validate() error {
	if len(r.Items) == 0 {
		return errors.New("update due dates: nothing to update")
	}
	for i, it := range r.Items {
		if it.LineID == "" {
			return fmt.Errorf("update due dates: item %d: line id is required", i+1)
		}
		if _, err := time.Parse(DateLayout, it.DueDate); err != nil {
			return fmt.Errorf("update due dates: item %d: due date %q is not YYYY-MM-DD", i+1, it.DueDate)
		}
	}
	return nil
}

type updateEntryDueDateResponse struct {
	Items []DueDateChange `xml:"UpdateEntryDueDateResult>EntryItem"`
}

// UpdateEntryDueDate changes due dates and returns the lines the service
// updated.
func (s *Session) UpdateEntryDueDate(ctx context.Context, items ...DueDateChange) ([]DueDateChange, error) {
	var resp updateEntryDueDateResponse
	if err := s.Call(ctx, ServiceAccount, &updateEntryDueDateRequest{Items: items}, &resp); err != nil {
		return nil, fmt.Errorf("update due dates: %w", err)
	}
	return soap.Seq(resp.Items), nil
}

// Package twentyfour is the 24SevenOffice SOAP client: login, invoices,
// customers and categories, departments, accounts and chunked attachments.
package twentyfour

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/soap"
)

const (
	// NamespaceWebservices is the namespace of the authenticate, invoice,
	// company, client and account services.
	NamespaceWebservices = "http://24sevenOffice.com/webservices"

	// NamespaceAccounting is the namespace of the attachment service.
	NamespaceAccounting = "http://24sevenoffice.com/webservices/economy/accounting/"

	sessionCookie = "ASP.NET_SessionId"
)

// ErrAuthFailed is returned (wrapped) when the remote system rejects the
// configured credentials.
var ErrAuthFailed = &apperr.Error{Kind: apperr.KindAuth, Message: "24SevenOffice authentication failed"}

// Service identifies one of the remote services.
type Service string

// Services.
const (
	ServiceAuth       Service = "authenticate"
	ServiceInvoice    Service = "invoice"
	ServiceCompany    Service = "company"
	ServiceClient     Service = "client"
	ServiceAttachment Service = "attachment"
	ServiceAccount    Service = "account"
)

// version is the envelope flavour each service is called with.
func (s Service) version() soap.Version {
	if s == ServiceInvoice {
		return soap.V11
	}
	return soap.V12
}

// Endpoints holds the service URLs.
type Endpoints map[Service]string

// DefaultEndpoints returns the production URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ServiceAuth:       "https://api.24sevenoffice.com/authenticate/v001/authenticate.asmx",
		ServiceInvoice:    "https://api.24sevenoffice.com/Economy/InvoiceOrder/V001/InvoiceService.asmx",
		ServiceCompany:    "https://api.24sevenoffice.com/CRM/Company/V001/CompanyService.asmx",
		ServiceClient:     "https://api.24sevenoffice.com/Client/V001/ClientService.asmx",
		ServiceAttachment: "https://webservices.24sevenoffice.com/Economy/Accounting/Accounting_V001/AttachmentService.asmx",
		ServiceAccount:    "https://api.24sevenoffice.com/Economy/Account/V004/Accountservice.asmx",
	}
}

// EndpointsAt returns the production paths rooted at base, for sandboxes and
// local fakes.
func EndpointsAt(base string) Endpoints {
	return Endpoints{
		ServiceAuth:       base + "/authenticate/v001/authenticate.asmx",
		ServiceInvoice:    base + "/Economy/InvoiceOrder/V001/InvoiceService.asmx",
		ServiceCompany:    base + "/CRM/Company/V001/CompanyService.asmx",
		ServiceClient:     base + "/Client/V001/ClientService.asmx",
		ServiceAttachment: base + "/Economy/Accounting/Accounting_V001/AttachmentService.asmx",
		ServiceAccount:    base + "/Economy/Account/V004/Accountservice.asmx",
	}
}

// Credentials are the application id and user the client logs in with.
type Credentials struct {
	ApplicationID string
	Username      string
	Password      string
}

// Client talks to 24SevenOffice. It holds no session; see Login.
type Client struct {
	soap      *soap.Client
	creds     Credentials
	endpoints Endpoints
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	doer      soap.Doer
	timeout   time.Duration
	endpoints Endpoints
}

// WithHTTPClient sets the HTTP transport.
func WithHTTPClient(doer soap.Doer) Option {
	return func(o *clientOptions) { o.doer = doer }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithEndpoints overrides the service URLs.
func WithEndpoints(e Endpoints) Option {
	return func(o *clientOptions) { o.endpoints = e }
}

// New creates a Client.
func New(creds Credentials, opts ...Option) *Client {
	o := clientOptions{endpoints: DefaultEndpoints()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		soap:      soap.NewClient(o.doer, o.timeout),
		creds:     creds,
		endpoints: o.endpoints,
	}
}

// Session is an authenticated session. It lives for one invocation and is
// passed explicitly to every call that needs it.
type Session struct {
	client *Client
	token  string
}

// Token returns the session id.
func (s *Session) Token() string {
	return s.token
}

type loginRequest struct {
	XMLName    struct{} `xml:"http://24sevenOffice.com/webservices Login"`
	Credential struct {
		ApplicationID string `xml:"ApplicationId"`
		Password      string `xml:"Password"`
		Username      string `xml:"Username"`
	} `xml:"credential"`
}

func (r *loginRequest) Validate() error {
	c := r.Credential
	if c.ApplicationID == "" || c.Username == "" || c.Password == "" {
		return errors.New("twentyfour: credentials are not configured")
	}
	return nil
}

type loginResponse struct {
	Result string `xml:"LoginResult"`
}

// Login authenticates once and returns a Session. Rejected credentials are
// reported as ErrAuthFailed.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	req := &loginRequest{}
	req.Credential.ApplicationID = c.creds.ApplicationID
	req.Credential.Username = c.creds.Username
	req.Credential.Password = c.creds.Password

	var resp loginResponse
	err := c.soap.Call(ctx, soap.Request{
		Endpoint:  c.endpoints[ServiceAuth],
		Version:   ServiceAuth.version(),
		Operation: req,
	}, &resp)
	if err != nil {
		if rejected(err) {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Result == "" {
		return nil, fmt.Errorf("%w: empty LoginResult", ErrAuthFailed)
	}
	return &Session{client: c, token: resp.Result}, nil
}

// rejected reports whether a login error means the credentials were refused
// rather than the service being unreachable.
func rejected(err error) bool {
	var fault *soap.Fault
	if errors.As(err, &fault) {
		return fault.Sender()
	}
	var httpErr *soap.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
	}
	return errors.Is(err, soap.ErrEmptyBody)
}

// Invoke logs in and performs exactly one operation.
func (c *Client) Invoke(ctx context.Context, svc Service, op, out any) error {
	s, err := c.Login(ctx)
	if err != nil {
		return err
	}
	return s.Call(ctx, svc, op, out)
}

// actioner is implemented by SOAP 1.1 operations that need a SOAPAction.
type actioner interface {
	soapAction() string
}

// Call performs one operation with the session cookie attached.
func (s *Session) Call(ctx context.Context, svc Service, op, out any) error {
	endpoint, ok := s.client.endpoints[svc]
	if !ok {
		return fmt.Errorf("twentyfour: no endpoint for service %q", svc)
	}

	req := soap.Request{
		Endpoint:  endpoint,
		Version:   svc.version(),
		Header:    http.Header{"Cookie": []string{sessionCookie + "=" + s.token}},
		Operation: op,
	}
	if a, ok := op.(actioner); ok {
		req.Action = a.soapAction()
	}
	return s.client.soap.Call(ctx, req, out)
}

// RemoteError is a business exception returned inside a successful response.
type RemoteError struct {
	Type    string
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Type == "" {
		return "24SevenOffice: " + e.Message
	}
	return fmt.Sprintf("24SevenOffice %s: %s", e.Type, e.Message)
}

// ErrorKind classifies the error as a remote rejection.
func (e *RemoteError) ErrorKind() apperr.Kind {
	return apperr.KindRemote
}

// apiException is the exception element embedded in results. The services
// spell it both APIException and ApiException.
type apiException struct {
	Type       string `xml:"Type"`
	Message    string `xml:"Message"`
	StackTrace string `xml:"StackTrace"`
}

type exceptions struct {
	Upper *apiException `xml:"APIException"`
	Lower *apiException `xml:"ApiException"`
}

func (x exceptions) err() error {
	for _, e := range []*apiException{x.Upper, x.Lower} {
		if e != nil && (e.Message != "" || e.Type != "") {
			return &RemoteError{Type: e.Type, Message: e.Message}
		}
	}
	return nil
}

// KeyValuePair is the generic pair type used across the services.
type KeyValuePair struct {
	Key   string `xml:"Key"`
	Value string `xml:"Value"`
}

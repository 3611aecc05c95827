// Package vipps creates and reads payment checkout sessions.
package vipps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/biso/functions/internal/apperr"
)

// Credentials identify the merchant.
type Credentials struct {
	MerchantSerialNumber string
	SubscriptionKey      string
	ClientID             string
	ClientSecret         string
}

// Client is a checkout API client.
type Client struct {
	baseURL     string
	creds       Credentials
	callbackURL string
	http        *http.Client
	timeout     time.Duration
	newToken    func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client. Payment results are posted to callbackURL.
func New(baseURL string, creds Credentials, callbackURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		creds:       creds,
		callbackURL: callbackURL,
		http:        http.DefaultClient,
		timeout:     20 * time.Second,
		newToken:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Amount is a sum in minor units.
type Amount struct {
	Currency string `json:"currency"`
	Value    int    `json:"value"`
}

// CheckoutRequest describes a new checkout.
type CheckoutRequest struct {
	Reference   string
	Amount      int
	Description string
	ReturnURL   string
}

// Validate checks the required fields.
func (r CheckoutRequest) Validate() error {
	switch {
	case r.Reference == "":
		return apperr.Validation("reference is required")
	case r.Amount <= 0:
		return apperr.Validation("amount must be positive")
	case r.Description == "":
		return apperr.Validation("description is required")
	case r.ReturnURL == "":
		return apperr.Validation("returnUrl is required")
	}
	return nil
}

type merchantInfo struct {
	CallbackURL                string `json:"callbackUrl"`
	ReturnURL                  string `json:"returnUrl"`
	CallbackAuthorizationToken string `json:"callbackAuthorizationToken"`
}

type transaction struct {
	Reference          string `json:"reference"`
	Amount             Amount `json:"amount"`
	PaymentDescription string `json:"paymentDescription"`
}

type sessionRequest struct {
	MerchantInfo merchantInfo `json:"merchantInfo"`
	Transaction  transaction  `json:"transaction"`
}

// Session is a created checkout.
type Session struct {
	Token               string `json:"token"`
	CheckoutFrontendURL string `json:"checkoutFrontendUrl"`
	PollingURL          string `json:"pollingUrl"`
	// CallbackToken is the authorization token the callback will carry.
	CallbackToken string `json:"-"`
}

// CreateCheckout starts a checkout session in NOK.
func (c *Client) CreateCheckout(ctx context.Context, r CheckoutRequest) (Session, error) {
	if err := r.Validate(); err != nil {
		return Session{}, err
	}
	token := c.newToken()
	body := sessionRequest{
		MerchantInfo: merchantInfo{
			CallbackURL:                c.callbackURL,
			ReturnURL:                  r.ReturnURL,
			CallbackAuthorizationToken: token,
		},
		Transaction: transaction{
			Reference:          r.Reference,
			Amount:             Amount{Currency: "NOK", Value: r.Amount},
			PaymentDescription: r.Description,
		},
	}

	var s Session
	if err := c.do(ctx, http.MethodPost, "/checkout/v3/session", body, &s); err != nil {
		return Session{}, fmt.Errorf("create checkout %s: %w", r.Reference, err)
	}
	s.CallbackToken = token
	return s, nil
}

// PaymentDetails is the payment part of a checkout.
type PaymentDetails struct {
	Amount Amount `json:"amount"`
	State  string `json:"state"`
}

// CheckoutInfo is the state of a checkout session.
type CheckoutInfo struct {
	SessionID      string          `json:"sessionId"`
	Reference      string          `json:"reference"`
	SessionState   string          `json:"sessionState"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`
}

// Checkout session states.
const (
	StatePaymentSuccessful = "PaymentSuccessful"
	StateSessionCreated    = "SessionCreated"
	StateSessionExpired    = "SessionExpired"
	StatePaymentTerminated = "PaymentTerminated"
)

// Paid reports whether the session completed with a payment.
func (i CheckoutInfo) Paid() bool {
	return i.SessionState == StatePaymentSuccessful
}

// PaidAmount is the captured or authorised amount, or zero.
func (i CheckoutInfo) PaidAmount() int {
	if i.PaymentDetails == nil {
		return 0
	}
	return i.PaymentDetails.Amount.Value
}

// GetCheckout fetches the session for reference.
func (c *Client) GetCheckout(ctx context.Context, reference string) (CheckoutInfo, error) {
	if reference == "" {
		return CheckoutInfo{}, apperr.Validation("reference is required")
	}
	var info CheckoutInfo
	if err := c.do(ctx, http.MethodGet, "/checkout/v3/session/"+url.PathEscape(reference), nil, &info); err != nil {
		return CheckoutInfo{}, fmt.Errorf("get checkout %s: %w", reference, err)
	}
	return info, nil
}

// Problem is an error response from the checkout API.
type Problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("vipps: %s: %s", p.Title, p.Detail)
	}
	return "vipps: " + p.Title
}

// ErrorKind classifies the problem.
func (p *Problem) ErrorKind() apperr.Kind {
	switch p.Status {
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.KindAuth
	}
	return apperr.KindRemote
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("client_id", c.creds.ClientID)
	req.Header.Set("client_secret", c.creds.ClientSecret)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.creds.SubscriptionKey)
	req.Header.Set("Merchant-Serial-Number", c.creds.MerchantSerialNumber)
	req.Header.Set("Vipps-System-Name", "biso-functions")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p := &Problem{}
		if err := json.Unmarshal(raw, p); err != nil || p.Title == "" {
			p.Title = http.StatusText(resp.StatusCode)
			p.Detail = strings.TrimSpace(string(raw))
		}
		p.Status = resp.StatusCode
		return p
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("vipps: decode response: %w", err)
	}
	return nil
}

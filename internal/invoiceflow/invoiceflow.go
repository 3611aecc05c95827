// Package invoiceflow submits expenses to the workflow that renders the
// reimbursement invoice document.
package invoiceflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/domain"
)

// Org is the organisation name printed on every invoice.
const Org = "biso"

// Attachment is one receipt line of the invoice.
type Attachment struct {
	Description string `json:"attachmentDescription"`
	Date        string `json:"dateOfAttachment"`
	Amount      string `json:"amount"`
	Image       string `json:"image"`
	Type        string `json:"type"`
}

// Request is the workflow payload. Amounts and flags are sent as strings.
type Request struct {
	FirstName        string       `json:"firstname"`
	LastName         string       `json:"lastname"`
	Address          string       `json:"address"`
	Phone            string       `json:"phone"`
	City             string       `json:"city"`
	Zip              string       `json:"zip"`
	Email            string       `json:"email"`
	Bank             string       `json:"bank"`
	Org              string       `json:"org"`
	Campus           string       `json:"campus"`
	Purpose          string       `json:"purpose"`
	Unit             string       `json:"unit"`
	Date             string       `json:"date"`
	Prepayment       string       `json:"prepayment"`
	PrepaymentAmount string       `json:"prepaymentAmount"`
	Attachments      []Attachment `json:"attachments"`
	Total            string       `json:"total"`
	Outstanding      string       `json:"outstanding"`
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FromExpense builds the payload for exp and its user. The outstanding
// amount is the total less any prepayment.
func FromExpense(exp domain.Expense, u domain.User) Request {
	first, last, _ := strings.Cut(strings.TrimSpace(u.Name), " ")

	outstanding := exp.Total
	if exp.PrepaymentAmount > 0 {
		outstanding -= exp.PrepaymentAmount
	}

	attachments := make([]Attachment, 0, len(exp.Attachments))
	for _, a := range exp.Attachments {
		attachments = append(attachments, Attachment{
			Description: a.Description,
			Date:        a.Date,
			Amount:      amount(a.Amount),
			Image:       a.URL,
			Type:        a.Type,
		})
	}

	return Request{
		FirstName:        first,
		LastName:         strings.TrimSpace(last),
		Address:          u.Address,
		Phone:            u.Phone,
		City:             u.City,
		Zip:              u.Zip,
		Email:            u.Email,
		Bank:             exp.BankAccount,
		Org:              Org,
		Campus:           exp.Campus,
		Purpose:          exp.Description,
		Unit:             exp.Department,
		Date:             exp.CreatedAt,
		Prepayment:       strconv.FormatBool(exp.PrepaymentAmount > 0),
		PrepaymentAmount: amount(exp.PrepaymentAmount),
		Attachments:      attachments,
		Total:            amount(exp.Total),
		Outstanding:      amount(outstanding),
	}
}

// Client posts to the workflow trigger URL.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
}

// New creates a Client. A nil h uses http.DefaultClient.
func New(url string, h *http.Client, timeout time.Duration) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{url: url, http: h, timeout: timeout}
}

type submitResponse struct {
	InvoiceID json.Number `json:"invoiceId"`
}

// Submit sends r and returns the invoice number the workflow assigned.
func (c *Client) Submit(ctx context.Context, r Request) (int64, error) {
	if c.url == "" {
		return 0, errors.New("invoiceflow: no workflow URL configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("invoiceflow: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("invoiceflow: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("invoiceflow: submit: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("invoiceflow: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, apperr.Remote(fmt.Sprintf("invoiceflow: HTTP %d", resp.StatusCode), errors.New(strings.TrimSpace(string(raw))))
	}

	var sr submitResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return 0, apperr.Remote("invoiceflow: decode response", err)
	}
	id, err := sr.InvoiceID.Int64()
	if err != nil || id <= 0 {
		return 0, apperr.Remote(fmt.Sprintf("invoiceflow: invalid invoice id %q", sr.InvoiceID), err)
	}
	return id, nil
}

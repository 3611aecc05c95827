// Package fx looks up historical exchange rates to NOK.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/biso/functions/internal/apperr"
)

// Base is the currency every rate converts to.
const Base = "NOK"

// Client queries the exchange rate API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New creates a Client. A nil h uses http.DefaultClient.
func New(baseURL string, h *http.Client, timeout time.Duration) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: h, timeout: timeout}
}

type ratesResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// Rate returns how many NOK one unit of currency was worth on date
// (YYYY-MM-DD). NOK itself is always 1.
func (c *Client) Rate(ctx context.Context, date, currency string) (float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == Base {
		return 1, nil
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return 0, apperr.Validation("date %q is not YYYY-MM-DD", date)
	}
	if len(currency) != 3 {
		return 0, apperr.Validation("currency %q is not a 3-letter code", currency)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{"from": {currency}, "to": {Base}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+date+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("fx: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fx: get rate: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("fx: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, apperr.Remote(fmt.Sprintf("fx: HTTP %d", resp.StatusCode), errors.New(strings.TrimSpace(string(raw))))
	}

	var rr ratesResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return 0, fmt.Errorf("fx: decode response: %w", err)
	}
	rate, ok := rr.Rates[Base]
	if !ok || rate <= 0 {
		return 0, apperr.Remote(fmt.Sprintf("fx: no %s rate for %s on %s", Base, currency, date), nil)
	}
	return rate, nil
}

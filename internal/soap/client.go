package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

// DefaultTimeout bounds a single call when the client has none configured.
const DefaultTimeout = 20 * time.Second

// maxResponseSize caps how much of a response body is read (DownloadChunk
// results are base64 and can be large).
const maxResponseSize = 32 << 20

// Doer is the part of *http.Client the SOAP client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one remote operation call.
type Request struct {
	Endpoint  string
	Version   Version
	Action    string // SOAPAction, sent for SOAP 1.1 only
	Header    http.Header
	Operation any
}

// HTTPError is a non-2xx response that did not carry a SOAP fault.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("soap: unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// Client posts envelopes over HTTP.
type Client struct {
	http    Doer
	timeout time.Duration
}

// NewClient creates a Client. A nil doer uses http.DefaultClient; a zero
// timeout uses DefaultTimeout.
func NewClient(doer Doer, timeout time.Duration) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: doer, timeout: timeout}
}

// Call builds the envelope for req, posts it and decodes the response into out.
// Validation failures are returned before any network I/O.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	payload, err := Build(req.Version, req.Operation)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("soap: create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", req.Version.ContentType())
	if req.Version == V11 && req.Action != "" {
		httpReq.Header.Set("SOAPAction", `"`+req.Action+`"`)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("soap: post %s: %w", req.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("soap: read response: %w", err)
	}

	err = Decode(body, out)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return err
	}
	// Servers report faults with 500; prefer the fault over the status.
	if _, isFault := err.(*Fault); isFault {
		return err
	}
	return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

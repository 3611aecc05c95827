package docstore

import (
	"bytes"
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

const maxFileSize = 32 << 20

// Client talks to the document API over REST. It authenticates either with
// a server API key or with the JWT of the calling user.
type Client struct {
	endpoint string
	project  string
	apiKey   string
	jwt      string
	http     *http.Client
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates as the server.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client for the project at endpoint, e.g.
// "https://appwrite.example.com/v1".
func New(endpoint, project string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		project:  project,
		http:     http.DefaultClient,
		timeout:  20 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForUser returns a copy of c acting as the user the JWT was issued to. The
// API key is dropped so the user's permissions apply.
func (c *Client) ForUser(jwt string) *Client {
	cp := *c
	cp.apiKey = ""
	cp.jwt = jwt
	return &cp
}

// APIError is an error response from the document API.
type APIError struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("docstore: %s (%d %s)", e.Message, e.StatusCode, e.Type)
}

// ErrorKind maps 404 to not found and everything else to a remote failure.
func (e *APIError) ErrorKind() apperr.Kind {
	switch e.StatusCode {
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.KindAuth
	}
	return apperr.KindRemote
}

func documentsPath(db, collection string) string {
	return "/databases/" + url.PathEscape(db) + "/collections/" + url.PathEscape(collection) + "/documents"
}

// GetDocument implements Store.
func (c *Client) GetDocument(ctx context.Context, db, collection, id string, out any) error {
	if id == "" {
		return apperr.Validation("document id is required")
	}
	return c.do(ctx, http.MethodGet, documentsPath(db, collection)+"/"+url.PathEscape(id), nil, nil, out)
}

type documentList struct {
	Total     int             `json:"total"`
	Documents json.RawMessage `json:"documents"`
}

// ListDocuments implements Store.
func (c *Client) ListDocuments(ctx context.Context, db, collection string, queries []Query, out any) error {
	q := url.Values{}
	for _, query := range queries {
		q.Add("queries[]", query.String())
	}
	var list documentList
	if err := c.do(ctx, http.MethodGet, documentsPath(db, collection), q, nil, &list); err != nil {
		return err
	}
	if len(list.Documents) == 0 {
		list.Documents = json.RawMessage("[]")
	}
	if err := json.Unmarshal(list.Documents, out); err != nil {
		return fmt.Errorf("docstore: decode documents: %w", err)
	}
	return nil
}

// CreateDocument implements Store.
func (c *Client) CreateDocument(ctx context.Context, db, collection, id string, data any, permissions ...string) error {
	if id == "" {
		return apperr.Validation("document id is required")
	}
	body := map[string]any{"documentId": id, "data": data}
	if len(permissions) > 0 {
		body["permissions"] = permissions
	}
	return c.do(ctx, http.MethodPost, documentsPath(db, collection), nil, body, nil)
}

// UpdateDocument implements Store.
func (c *Client) UpdateDocument(ctx context.Context, db, collection, id string, data any) error {
	if id == "" {
		return apperr.Validation("document id is required")
	}
	body := map[string]any{"data": data}
	return c.do(ctx, http.MethodPatch, documentsPath(db, collection)+"/"+url.PathEscape(id), nil, body, nil)
}

func filePath(bucket, id string) string {
	return "/storage/buckets/" + url.PathEscape(bucket) + "/files/" + url.PathEscape(id)
}

// GetFile implements Store.
func (c *Client) GetFile(ctx context.Context, bucket, id string) (File, error) {
	if id == "" {
		return File{}, apperr.Validation("file id is required")
	}
	var f File
	if err := c.do(ctx, http.MethodGet, filePath(bucket, id), nil, nil, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// DownloadFile implements Store.
func (c *Client) DownloadFile(ctx context.Context, bucket, id string) ([]byte, error) {
	if id == "" {
		return nil, apperr.Validation("file id is required")
	}
	var data []byte
	if err := c.do(ctx, http.MethodGet, filePath(bucket, id)+"/download", nil, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// do sends one request. A *[]byte out receives the raw body; any other
// non-nil out is decoded from JSON.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("docstore: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("docstore: create request: %w", err)
	}
	req.Header.Set("X-Appwrite-Project", c.project)
	if c.apiKey != "" {
		req.Header.Set("X-Appwrite-Key", c.apiKey)
	}
	if c.jwt != "" {
		req.Header.Set("X-Appwrite-JWT", c.jwt)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("docstore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return fmt.Errorf("docstore: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = raw
		return nil
	default:
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("docstore: decode response: %w", err)
		}
		return nil
	}
}

// IsNotFound reports whether err is a missing document or file.
func IsNotFound(err error) bool {
	return apperr.KindOf(err) == apperr.KindNotFound
}

// IsConflict reports whether err is a create for an id that already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Package webshop reads products from the storefront REST API.
package webshop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biso/functions/internal/apperr"
)

// Option is an ACF select value attached to a product.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var unset = Option{Value: "", Label: "N/A"}

// Product is the storefront product in the shape returned to callers.
type Product struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Campus      Option   `json:"campus"`
	Department  Option   `json:"department"`
	Images      []string `json:"images"`
	Price       string   `json:"price"`
	SalePrice   string   `json:"sale_price"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
}

type rawProduct struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	SalePrice   string `json:"sale_price"`
	Description string `json:"description"`
	Permalink   string `json:"permalink"`
	Images      []struct {
		Src string `json:"src"`
	} `json:"images"`
	ACF json.RawMessage `json:"acf"`
}

type acfFields struct {
	Campus     *Option `json:"campus"`
	Department *Option `json:"department"`
}

func (p rawProduct) product() Product {
	out := Product{
		ID:          p.ID,
		Name:        p.Name,
		Campus:      unset,
		Department:  unset,
		Images:      make([]string, 0, len(p.Images)),
		Price:       p.Price,
		SalePrice:   p.SalePrice,
		Description: p.Description,
		URL:         p.Permalink,
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, img.Src)
	}

	// acf is an object when fields are set and an empty array otherwise.
	var acf acfFields
	if json.Unmarshal(p.ACF, &acf) == nil {
		if acf.Campus != nil {
			out.Campus = *acf.Campus
		}
		if acf.Department != nil {
			out.Department = *acf.Department
		}
	}
	return out
}

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Campus     string `json:"campus"`
	Department string `json:"department"`
}

// Match reports whether p passes f.
func (f Filter) Match(p Product) bool {
	if f.Campus != "" && p.Campus.Value != f.Campus {
		return false
	}
	if f.Department != "" && p.Department.Value != f.Department {
		return false
	}
	return true
}

// Client is a storefront API client.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	http           *http.Client
	timeout        time.Duration
}

// New creates a Client for the shop at baseURL. A nil h uses
// http.DefaultClient.
func New(baseURL, consumerKey, consumerSecret string, h *http.Client, timeout time.Duration) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		http:           h,
		timeout:        timeout,
	}
}

// Products lists the products matching f.
func (c *Client) Products(ctx context.Context, f Filter) ([]Product, error) {
	var raw []rawProduct
	if err := c.get(ctx, "/wp-json/wc/v3/products", url.Values{"per_page": {"100"}}, &raw); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]Product, 0, len(raw))
	for _, rp := range raw {
		if p := rp.product(); f.Match(p) {
			products = append(products, p)
		}
	}
	return products, nil
}

// Product fetches one product. A missing product is a not found error.
func (c *Client) Product(ctx context.Context, id int) (Product, error) {
	if id <= 0 {
		return Product{}, apperr.Validation("product id is required")
	}
	var raw rawProduct
	if err := c.get(ctx, "/wp-json/wc/v3/products/"+strconv.Itoa(id), nil, &raw); err != nil {
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return raw.product(), nil
}

// APIError is an error response from the storefront.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("webshop: %s (%d %s)", e.Message, e.StatusCode, e.Code)
}

// ErrorKind classifies the error.
func (e *APIError) ErrorKind() apperr.Kind {
	switch e.StatusCode {
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.KindAuth
	}
	return apperr.KindRemote
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if q == nil {
		q = url.Values{}
	}
	q.Set("consumer_key", c.consumerKey)
	q.Set("consumer_secret", c.consumerSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("webshop: decode response: %w", err)
	}
	return nil
}

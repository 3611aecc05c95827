// Package llm wraps the chat completion API used for translation and receipt
// extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/biso/functions/internal/apperr"
)

// Client is a chat completion client.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds each completion.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client for model.
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    http.DefaultClient,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ErrEmptyCompletion is returned when the model produced no content.
var ErrEmptyCompletion = &apperr.Error{Kind: apperr.KindRemote, Message: "llm: no text in completion"}

// CompleteJSON asks the model for a JSON object and decodes it into out.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: post completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("llm: read response: %w", err)
	}

	var cr completionResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return apperr.Remote(fmt.Sprintf("llm: unexpected response (HTTP %d)", resp.StatusCode), err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if cr.Error != nil && cr.Error.Message != "" {
			msg = cr.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return apperr.Auth("llm: "+msg, nil)
		}
		return apperr.Remote("llm: "+msg, nil)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return ErrEmptyCompletion
	}
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), out); err != nil {
		return apperr.Remote("llm: completion is not valid JSON", err)
	}
	return nil
}

const translatePrompt = "You are a helpful assistant that translates text. You are provided an object " +
	"containing three properties: source_lang, target_lang and text. Translate the text and return a JSON " +
	"object with exactly the same structure. Never describe the result; return only the object."

// Translation is the request and response object of Translate.
type Translation struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Text       string `json:"text"`
}

// Translate translates text from source to target language.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	prompt, err := json.Marshal(Translation{SourceLang: source, TargetLang: target, Text: text})
	if err != nil {
		return "", err
	}
	var out Translation
	if err := c.CompleteJSON(ctx, translatePrompt, string(prompt), &out); err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if out.Text == "" {
		return "", fmt.Errorf("translate: %w", ErrEmptyCompletion)
	}
	return out.Text, nil
}

const receiptPrompt = `You are a helpful assistant designed to output JSON. You will analyze receipt text and output a JSON object with:
- date in YYYY-MM-DD format
- amount as a number
- description (max 10 words)
- currency (3-letter code, e.g., NOK, USD, EUR)
- confidence (0-1 indicating how confident you are in the extraction)

Pay special attention to currency symbols (€, $, £, kr) and currency codes to determine the correct currency.
Default to NOK if no currency is clearly indicated and the text appears to be Norwegian.`

// Receipt is the data extracted from receipt text.
type Receipt struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Currency    string  `json:"currency"`
	Confidence  float64 `json:"confidence"`
}

// ExtractReceipt reads date, amount, description and currency from text.
// A missing currency is reported as NOK.
func (c *Client) ExtractReceipt(ctx context.Context, text string) (Receipt, error) {
	var r Receipt
	if err := c.CompleteJSON(ctx, receiptPrompt, text, &r); err != nil {
		return Receipt{}, fmt.Errorf("extract receipt: %w", err)
	}
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = "NOK"
	}
	return r, nil
}

const expensePrompt = "You are a helpful assistant designed to output JSON. The next message is an object " +
	"with the fields descriptions and eventName. Write a suitable description for the entire expense based " +
	"on all attachment descriptions, and on eventName when present. Output a JSON object with the field description."

// ExpenseSummary is the generated expense description.
type ExpenseSummary struct {
	Description string `json:"description"`
}

// ExpenseInput is what DescribeExpense summarises.
type ExpenseInput struct {
	Descriptions []string `json:"descriptions"`
	EventName    string   `json:"eventName,omitempty"`
}

// DescribeExpense writes one description for an expense from its receipts.
func (c *Client) DescribeExpense(ctx context.Context, in ExpenseInput) (ExpenseSummary, error) {
	prompt, err := json.Marshal(in)
	if err != nil {
		return ExpenseSummary{}, err
	}
	var s ExpenseSummary
	if err := c.CompleteJSON(ctx, expensePrompt, string(prompt), &s); err != nil {
		return ExpenseSummary{}, fmt.Errorf("describe expense: %w", err)
	}
	return s, nil
}

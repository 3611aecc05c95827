// Package statushook reports membership pipeline progress to an external
// workflow webhook.
package statushook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Pipeline statuses.
const (
	StatusReceived      = "Mottatt"
	StatusInvoiced      = "Faktura opprettet"
	StatusInvoiceFailed = "Faktura feilet"
)

// Update is one progress report.
type Update struct {
	StudentID      int    `json:"studentId"`
	Name           string `json:"name"`
	MembershipType string `json:"membershipType"`
	Status         string `json:"status"`
	CampusName     string `json:"campusName"`
}

// Notifier posts updates to a webhook. Delivery is best effort: failures
// are logged and never returned to the caller.
type Notifier struct {
	url     string
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Notifier. An empty url makes Send a no-op.
func New(url string, h *http.Client, timeout time.Duration, log *slog.Logger) *Notifier {
	if h == nil {
		h = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{url: url, http: h, timeout: timeout, log: log}
}

// Send delivers u and reports whether the webhook accepted it.
func (n *Notifier) Send(ctx context.Context, u Update) bool {
	if n == nil || n.url == "" {
		return false
	}
	log := n.log.With("status", u.Status, "student_id", u.StudentID)
	if err := n.post(ctx, u); err != nil {
		log.Error("status update failed", "error", err)
		return false
	}
	log.Info("status update sent")
	return true
}

func (n *Notifier) post(ctx context.Context, u Update) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := json.Marshal(u)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

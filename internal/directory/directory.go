// Package directory looks up organisation members in Microsoft Graph.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/biso/functions/internal/apperr"
)

// Scope requests the application permissions granted to the client.
const Scope = "https://graph.microsoft.com/.default"

const userFields = "id,displayName,userPrincipalName,mail,department,jobTitle,businessPhones,mobilePhone"

// User is a directory user.
type User struct {
	ID                string   `json:"id"`
	DisplayName       string   `json:"displayName"`
	UserPrincipalName string   `json:"userPrincipalName"`
	Mail              string   `json:"mail"`
	Department        string   `json:"department"`
	JobTitle          string   `json:"jobTitle"`
	BusinessPhones    []string `json:"businessPhones"`
	MobilePhone       string   `json:"mobilePhone"`
}

// Credentials identify the application registration.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// TokenURL overrides the tenant token endpoint.
	TokenURL string
}

func (c Credentials) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return "https://login.microsoftonline.com/" + url.PathEscape(c.TenantID) + "/oauth2/v2.0/token"
}

// Client queries Graph with an app-only token.
type Client struct {
	graphURL string
	http     *http.Client
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a Client. base carries both token and Graph requests; nil
// uses http.DefaultClient.
func New(graphURL string, creds Credentials, base *http.Client, timeout time.Duration, log *slog.Logger) *Client {
	if base == nil {
		base = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.tokenURL(),
		Scopes:       []string{Scope},
	}
	// The token source outlives any one request, so it is bound to a
	// background context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return &Client{
		graphURL: strings.TrimRight(graphURL, "/"),
		http:     cc.Client(tokenCtx),
		timeout:  timeout,
		log:      log,
	}
}

// strategy is one department filter attempt.
type strategy struct {
	name     string
	filter   string
	advanced bool
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// strategies lists the filters tried for department, in order: the exact
// name, its last word, then a substring match on its last long word.
func strategies(department string) []strategy {
	out := []strategy{{name: "exact", filter: "department eq " + quote(department)}}

	words := strings.Fields(department)
	if len(words) > 1 {
		out = append(out, strategy{name: "last word", filter: "department eq " + quote(words[len(words)-1])})
	}

	term := department
	for i := len(words) - 1; i >= 0; i-- {
		if len([]rune(words[i])) > 3 {
			term = words[i]
			break
		}
	}
	out = append(out, strategy{name: "contains", filter: "contains(department, " + quote(term) + ")", advanced: true})
	return out
}

// DepartmentMembers returns the users whose department matches department.
// Strategies run in order until one finds users. A failing strategy is
// logged and the next one tried; the error is returned only when every
// strategy failed.
func (c *Client) DepartmentMembers(ctx context.Context, department string) ([]User, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, apperr.Validation("department name is required")
	}

	var lastErr error
	failed := 0
	all := strategies(department)
	for _, s := range all {
		users, err := c.users(ctx, s)
		if err != nil {
			c.log.Warn("directory lookup failed", "strategy", s.name, "department", department, "error", err)
			lastErr = err
			failed++
			continue
		}
		c.log.Info("directory lookup", "strategy", s.name, "department", department, "count", len(users))
		if len(users) > 0 {
			return users, nil
		}
	}
	if failed == len(all) {
		return nil, fmt.Errorf("department members for %q: %w", department, lastErr)
	}
	return []User{}, nil
}

type usersPage struct {
	Value []User `json:"value"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) users(ctx context.Context, s strategy) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{"$filter": {s.filter}, "$select": {userFields}}
	if s.advanced {
		q.Set("$count", "true")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/users?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.advanced {
		req.Header.Set("ConsistencyLevel", "eventual")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Token endpoint failures surface here as *oauth2.RetrieveError.
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, apperr.Auth("graph token", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var ge graphError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			msg = ge.Error.Code + ": " + ge.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, apperr.Auth("graph users", fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg))
		}
		return nil, apperr.Remote(fmt.Sprintf("graph users: HTTP %d", resp.StatusCode), errors.New(msg))
	}

	var page usersPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("graph users: decode: %w", err)
	}
	if page.Value == nil {
		page.Value = []User{}
	}
	return page.Value, nil
}

package docstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/apperr"
)

type membership struct {
	ID         string `json:"$id"`
	Name       string `json:"name"`
	Status     bool   `json:"status"`
	ExpiryDate string `json:"expiryDate"`
}

func TestClient_GetDocument(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = io.WriteString(w, `{"$id":"m1","name":"Semester","status":true,"expiryDate":"2026-12-31"}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/", "biso", WithAPIKey("secret-key"), WithHTTPClient(srv.Client()))
	var m membership
	require.NoError(t, c.GetDocument(context.Background(), "app", "memberships", "m1", &m))

	assert.Equal(t, membership{ID: "m1", Name: "Semester", Status: true, ExpiryDate: "2026-12-31"}, m)
	assert.Equal(t, "/v1/databases/app/collections/memberships/documents/m1", got.URL.Path)
	assert.Equal(t, "biso", got.Header.Get("X-Appwrite-Project"))
	assert.Equal(t, "secret-key", got.Header.Get("X-Appwrite-Key"))
	assert.Empty(t, got.Header.Get("X-Appwrite-JWT"))
}

func TestClient_ListDocuments(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = r.URL.Query()["queries[]"]
		_, _ = io.WriteString(w, `{"total":1,"documents":[{"$id":"m1","name":"Year","status":true}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "biso", WithHTTPClient(srv.Client()))
	var ms []membership
	err := c.ListDocuments(context.Background(), "app", "memberships", []Query{
		Equal("status", true),
		Select("$id", "name"),
	}, &ms)
	require.NoError(t, err)

	assert.Equal(t, []membership{{ID: "m1", Name: "Year", Status: true}}, ms)
	assert.Equal(t, []string{
		`{"method":"equal","attribute":"status","values":[true]}`,
		`{"method":"select","values":["$id","name"]}`,
	}, queries)
}

func TestClient_CreateAndUpdateAsUser(t *testing.T) {
	type call struct {
		method string
		path   string
		jwt    string
		key    string
		body   map[string]any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path, jwt: r.Header.Get("X-Appwrite-JWT"), key: r.Header.Get("X-Appwrite-Key")}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))
		calls = append(calls, c)
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	admin := New(srv.URL, "biso", WithAPIKey("secret-key"), WithHTTPClient(srv.Client()))
	user := admin.ForUser("user-jwt")

	require.NoError(t, user.CreateDocument(context.Background(), "app", "checkout", "ref-1", map[string]any{"status": "pending"}))
	require.NoError(t, admin.UpdateDocument(context.Background(), "app", "checkout", "ref-1", map[string]any{"status": "AuthorizedPayment"}))

	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "/databases/app/collections/checkout/documents", calls[0].path)
	assert.Equal(t, "user-jwt", calls[0].jwt)
	assert.Empty(t, calls[0].key)
	assert.Equal(t, map[string]any{"documentId": "ref-1", "data": map[string]any{"status": "pending"}}, calls[0].body)

	assert.Equal(t, http.MethodPatch, calls[1].method)
	assert.Equal(t, "/databases/app/collections/checkout/documents/ref-1", calls[1].path)
	assert.Equal(t, "secret-key", calls[1].key)
	assert.Equal(t, map[string]any{"data": map[string]any{"status": "AuthorizedPayment"}}, calls[1].body)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     apperr.Kind
		errorMsg string
	}{
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"message":"Document with the requested ID could not be found.","code":404,"type":"document_not_found"}`,
			kind:     apperr.KindNotFound,
			errorMsg: "docstore: Document with the requested ID could not be found. (404 document_not_found)",
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"message":"Invalid JWT","code":401,"type":"user_jwt_invalid"}`,
			kind:     apperr.KindAuth,
			errorMsg: "docstore: Invalid JWT (401 user_jwt_invalid)",
		},
		{
			name:     "plain text",
			status:   http.StatusBadGateway,
			body:     "upstream down\n",
			kind:     apperr.KindRemote,
			errorMsg: "docstore: upstream down (502 )",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(srv.URL, "biso", WithHTTPClient(srv.Client()))
			err := c.GetDocument(context.Background(), "main", "expenses", "e1", &map[string]any{})
			require.EqualError(t, err, tt.errorMsg)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.kind == apperr.KindNotFound, IsNotFound(err))
		})
	}
}

func TestClient_Files(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/storage/buckets/expense_invoices/files/invoice_1001":
			_, _ = io.WriteString(w, `{"$id":"invoice_1001","bucketId":"expense_invoices","name":"invoice.png","mimeType":"image/png","sizeOriginal":4}`)
		case "/storage/buckets/expense_invoices/files/invoice_1001/download":
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "biso", WithHTTPClient(srv.Client()))
	f, err := c.GetFile(context.Background(), "expense_invoices", "invoice_1001")
	require.NoError(t, err)
	assert.Equal(t, File{ID: "invoice_1001", Bucket: "expense_invoices", Name: "invoice.png", MimeType: "image/png", Size: 4}, f)

	data, err := c.DownloadFile(context.Background(), "expense_invoices", "invoice_1001")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestClient_MissingIDMakesNoRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	c := New(srv.URL, "biso", WithHTTPClient(srv.Client()))
	err := c.UpdateDocument(context.Background(), "main", "expenses", "", map[string]any{"status": "approved"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, calls)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put("app", "memberships", "old", membership{Name: "Semester", Status: true, ExpiryDate: "2025-12-31"}))
	require.NoError(t, m.Put("app", "memberships", "new", membership{Name: "Year", Status: true, ExpiryDate: "2026-12-31"}))
	require.NoError(t, m.Put("app", "memberships", "off", membership{Name: "Year", Status: false, ExpiryDate: "2027-12-31"}))

	var active []membership
	require.NoError(t, m.ListDocuments(ctx, "app", "memberships", []Query{Equal("status", true), OrderDesc("expiryDate")}, &active))
	require.Len(t, active, 2)
	assert.Equal(t, "new", active[0].ID)
	assert.Equal(t, "old", active[1].ID)

	var none []membership
	require.NoError(t, m.ListDocuments(ctx, "app", "unknown", nil, &none))
	assert.NotNil(t, none)
	assert.Empty(t, none)

	require.NoError(t, m.UpdateDocument(ctx, "app", "memberships", "old", map[string]any{"status": false}))
	var updated membership
	require.NoError(t, m.GetDocument(ctx, "app", "memberships", "old", &updated))
	assert.False(t, updated.Status)
	assert.Equal(t, "Semester", updated.Name)

	err := m.CreateDocument(ctx, "app", "memberships", "new", map[string]any{})
	assert.True(t, IsConflict(err))

	err = m.UpdateDocument(ctx, "app", "memberships", "missing", map[string]any{})
	assert.True(t, IsNotFound(err))

	_, err = m.GetFile(ctx, "expense_attachments", "nope")
	assert.True(t, IsNotFound(err))
}

func TestClient_CreateWithPermissions(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "biso", WithAPIKey("secret-key"), WithHTTPClient(srv.Client()))
	err := c.CreateDocument(context.Background(), "app", "election_vote", "vote-1", map[string]any{"weight": 1},
		Read(User("voter-1")), Read(Team("election-1", "owner")), Delete(Team("election-1", "owner")))
	require.NoError(t, err)

	assert.Equal(t, []any{`read("user:voter-1")`, `read("team:election-1/owner")`, `delete("team:election-1/owner")`}, body["permissions"])
}

func TestClient_HonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, "biso", WithHTTPClient(srv.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.GetDocument(ctx, "app", "user", "user-1", &map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMemory_Permissions(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CreateDocument(context.Background(), "app", "election_vote", "vote-1", map[string]any{}, Read(User("voter-1"))))
	require.NoError(t, m.CreateDocument(context.Background(), "app", "election_vote", "vote-2", map[string]any{}))

	assert.Equal(t, []string{`read("user:voter-1")`}, m.Permissions("app", "election_vote", "vote-1"))
	assert.Empty(t, m.Permissions("app", "election_vote", "vote-2"))
}

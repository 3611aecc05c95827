package statushook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/logging"
)

func TestSend(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := New(srv.URL, srv.Client(), 0, logging.Discard())
	ok := n.Send(context.Background(), Update{
		StudentID:      1234567,
		Name:           "Kari Nordmann",
		MembershipType: "Semester",
		Status:         StatusInvoiced,
		CampusName:     "Oslo",
	})
	assert.True(t, ok)
	assert.JSONEq(t, `{"studentId":1234567,"name":"Kari Nordmann","membershipType":"Semester","status":"Faktura opprettet","campusName":"Oslo"}`, string(got))
}

func TestSend_FailureIsLoggedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	n := New(srv.URL, srv.Client(), 0, logging.NewWithWriter(&logs, "test", "info"))
	assert.False(t, n.Send(context.Background(), Update{StudentID: 1, Status: StatusInvoiceFailed}))
	assert.Contains(t, logs.String(), "webhook returned HTTP 500")
	assert.Contains(t, logs.String(), `"status":"Faktura feilet"`)
}

func TestSend_Disabled(t *testing.T) {
	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Send(context.Background(), Update{}))

	n := New("", nil, 0, nil)
	require.NotNil(t, n)
	assert.False(t, n.Send(context.Background(), Update{Status: StatusReceived}))
}

// Package handler implements the serverless functions. Every function takes
// a transport-neutral Request and returns a JSON-serialisable body or an
// error; Run turns the result into a Response.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/logging"
)

// Func is one function.
type Func func(ctx context.Context, d *Deps, req Request) (any, error)

// Request is the input to a function.
type Request struct {
	Method  string            `json:"method,omitempty"`
	Path    string            `json:"path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// Header returns the value of the named header, ignoring case.
func (r Request) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Response is the output of a function.
type Response struct {
	Status int
	Body   any
}

// ErrorBody is the body of every failed call.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Run calls fn with a request-scoped logger and maps its error, if any, to
// a status code and an ErrorBody.
func Run(ctx context.Context, d *Deps, name string, fn Func, req Request) Response {
	log := logging.ForRequest(ctx, d.Log)
	start := time.Now()

	out, err := fn(ctx, d.withLog(log), req)
	if err != nil {
		kind := apperr.KindOf(err)
		log.ErrorContext(ctx, "function failed",
			"name", name,
			"kind", kind,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return ErrorResponse(err)
	}

	log.InfoContext(ctx, "function completed", "name", name, "duration_ms", time.Since(start).Milliseconds())
	return Response{Status: http.StatusOK, Body: out}
}

// ErrorResponse maps err to the response returned to the caller. Internal
// details are not exposed for authentication and internal failures.
func ErrorResponse(err error) Response {
	kind := apperr.KindOf(err)
	msg := err.Error()
	switch kind {
	case apperr.KindAuth:
		msg = "authentication failed"
	case apperr.KindInternal:
		msg = "an unexpected error occurred"
	case apperr.KindValidation, apperr.KindNotFound:
		var e *apperr.Error
		if errors.As(err, &e) && e.Message != "" {
			msg = e.Message
		}
	}
	return Response{Status: apperr.Status(kind), Body: ErrorBody{Success: false, Error: msg}}
}

// methodPost rejects anything but POST. Direct invocations carry no method
// and are accepted.
func methodPost(req Request) error {
	if req.Method == "" || strings.EqualFold(req.Method, http.MethodPost) {
		return nil
	}
	return apperr.Validation("method not allowed")
}

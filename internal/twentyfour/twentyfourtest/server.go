// Package twentyfourtest provides a fake 24SevenOffice server for tests.
package twentyfourtest

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Token is the session id the fake Login hands out.
const Token = "fake-session"

// Call is one request received by the fake.
type Call struct {
	Path       string
	Op         string
	Cookie     string
	SOAPAction string
	Body       []byte
}

// HandlerFunc produces the status code and the body content for a call. The
// content is wrapped in an envelope unless it already is one.
type HandlerFunc func(c Call) (status int, content string)

// Server is a fake that dispatches on the operation element name.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []Call
	handlers map[string]HandlerFunc
}

// NewServer starts a fake whose Login succeeds. It is closed with the test.
func NewServer(t testing.TB) *Server {
	s := &Server{handlers: map[string]HandlerFunc{}}
	s.Respond("Login", `<LoginResponse xmlns="http://24sevenOffice.com/webservices"><LoginResult>`+Token+`</LoginResult></LoginResponse>`)
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers fn for op.
func (s *Server) Handle(op string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[op] = fn
}

// Respond makes op return content with status 200.
func (s *Server) Respond(op, content string) {
	s.Handle(op, func(Call) (int, string) { return http.StatusOK, content })
}

// Fault makes op return a SOAP 1.2 fault with status 500.
func (s *Server) Fault(op, code, message string) {
	s.Handle(op, func(Call) (int, string) {
		return http.StatusInternalServerError, FaultEnvelope(code, message)
	})
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Ops returns the operation names received so far, in order.
func (s *Server) Ops() []string {
	var ops []string
	for _, c := range s.Calls() {
		ops = append(ops, c.Op)
	}
	return ops
}

// Count returns how many times op was called.
func (s *Server) Count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var env struct {
		Body struct {
			Op struct {
				XMLName xml.Name
			} `xml:",any"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &env); err != nil {
		http.Error(w, "malformed envelope: "+err.Error(), http.StatusBadRequest)
		return
	}

	c := Call{
		Path:       r.URL.Path,
		Op:         env.Body.Op.XMLName.Local,
		Cookie:     r.Header.Get("Cookie"),
		SOAPAction: r.Header.Get("SOAPAction"),
		Body:       body,
	}

	s.mu.Lock()
	s.calls = append(s.calls, c)
	fn, ok := s.handlers[c.Op]
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, http.StatusInternalServerError, FaultEnvelope("soap:Receiver", "no handler for "+c.Op))
		return
	}
	status, content := fn(c)
	writeEnvelope(w, status, content)
}

func writeEnvelope(w http.ResponseWriter, status int, content string) {
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, Envelope(content))
}

// Envelope wraps content in a SOAP 1.2 envelope. Content that already starts
// with an envelope or declaration is returned as is.
func Envelope(content string) string {
	if strings.HasPrefix(content, "<?xml") || strings.HasPrefix(content, "<soap") {
		return content
	}
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<soap:Body>` + content + `</soap:Body></soap:Envelope>`
}

// FaultEnvelope returns a SOAP 1.2 fault envelope.
func FaultEnvelope(code, message string) string {
	return fmt.Sprintf(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>`+
		`<soap:Fault><soap:Code><soap:Value>%s</soap:Value></soap:Code>`+
		`<soap:Reason><soap:Text xml:lang="en">%s</soap:Text></soap:Reason></soap:Fault>`+
		`</soap:Body></soap:Envelope>`, code, message)
}

package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/biso/functions/internal/apperr"
)

// ErrEmptyBody is returned when an envelope carries neither a fault nor content.
var ErrEmptyBody = errors.New("soap: empty body")

// Fault is a SOAP fault normalised across 1.1 and 1.2.
type Fault struct {
	Code    string
	Message string
	Detail  string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Code == "" {
		return "soap fault: " + f.Message
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Message)
}

// ErrorKind classifies faults as remote rejections.
func (f *Fault) ErrorKind() apperr.Kind {
	return apperr.KindRemote
}

// Sender reports whether the fault blames the request rather than the server.
func (f *Fault) Sender() bool {
	return strings.Contains(f.Code, "Client") || strings.Contains(f.Code, "Sender")
}

type rawFault struct {
	// SOAP 1.1
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
	// SOAP 1.2
	Code struct {
		Value string `xml:"Value"`
	} `xml:"Code"`
	Reason struct {
		Text []string `xml:"Text"`
	} `xml:"Reason"`
	// Both
	Detail11 innerXML `xml:"detail"`
	Detail12 innerXML `xml:"Detail"`
}

type innerXML struct {
	Content string `xml:",innerxml"`
}

func (r *rawFault) fault() *Fault {
	f := &Fault{Code: r.FaultCode, Message: r.FaultString}
	if f.Code == "" {
		f.Code = r.Code.Value
	}
	if f.Message == "" {
		f.Message = strings.Join(r.Reason.Text, " ")
	}
	f.Detail = strings.TrimSpace(r.Detail11.Content + r.Detail12.Content)
	f.Code = strings.TrimSpace(f.Code)
	f.Message = strings.TrimSpace(f.Message)
	return f
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault   *rawFault `xml:"Fault"`
		Content []byte    `xml:",innerxml"`
	} `xml:"Body"`
}

// Decode unwraps an envelope. A fault is returned as *Fault; otherwise the
// first element of the body is decoded into out. out may be nil when the
// caller only needs to know the call succeeded.
func Decode(raw []byte, out any) error {
	var env responseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("soap: malformed envelope: %w", err)
	}

	if env.Body.Fault != nil {
		return env.Body.Fault.fault()
	}

	if len(bytes.TrimSpace(env.Body.Content)) == 0 {
		if out == nil {
			return nil
		}
		return ErrEmptyBody
	}
	if out == nil {
		return nil
	}

	if err := xml.Unmarshal(env.Body.Content, out); err != nil {
		return fmt.Errorf("soap: decode body: %w", err)
	}
	return nil
}

// Seq returns s, or an empty non-nil slice when the remote list was absent,
// nil-marked or empty. Repeated elements already decode into s whether the
// remote sent one or many of them.
func Seq[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

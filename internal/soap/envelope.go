// Package soap builds and parses SOAP 1.1 and 1.2 envelopes bound to Go structs.
//
// Operations are plain structs whose XMLName tag carries the operation
// namespace and element name, in the same way the request payloads of other
// XML-over-HTTP ERP clients are modelled. The encoder handles escaping and
// element order, so no payload is ever assembled from strings.
package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/biso/functions/internal/apperr"
)

// Version selects the envelope flavour.
type Version int

const (
	// V11 is SOAP 1.1 (soap prefix, text/xml, SOAPAction header).
	V11 Version = iota + 1

	// V12 is SOAP 1.2 (soap12 prefix, application/soap+xml).
	V12
)

const (
	// Declaration is written before every envelope.
	Declaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

	xsiNamespace    = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace    = "http://www.w3.org/2001/XMLSchema"
	soap11Namespace = "http://schemas.xmlsoap.org/soap/envelope/"
	soap12Namespace = "http://www.w3.org/2003/05/soap-envelope"
)

func (v Version) prefix() string {
	if v == V11 {
		return "soap"
	}
	return "soap12"
}

func (v Version) namespace() string {
	if v == V11 {
		return soap11Namespace
	}
	return soap12Namespace
}

// ContentType returns the request content type for the version.
func (v Version) ContentType() string {
	if v == V11 {
		return "text/xml; charset=utf-8"
	}
	return "application/soap+xml; charset=utf-8"
}

// Validator is implemented by operations that check their required fields
// before they are encoded.
type Validator interface {
	Validate() error
}

// Build validates op and marshals it into a complete envelope.
func Build(v Version, op any) ([]byte, error) {
	if op == nil {
		return nil, errors.New("soap: nil operation")
	}
	if val, ok := op.(Validator); ok {
		if err := val.Validate(); err != nil {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Err: err}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(Declaration)

	enc := xml.NewEncoder(&buf)
	envelope := xml.StartElement{
		Name: xml.Name{Local: v.prefix() + ":Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: xsiNamespace},
			{Name: xml.Name{Local: "xmlns:xsd"}, Value: xsdNamespace},
			{Name: xml.Name{Local: "xmlns:" + v.prefix()}, Value: v.namespace()},
		},
	}
	body := xml.StartElement{Name: xml.Name{Local: v.prefix() + ":Body"}}

	if err := enc.EncodeToken(envelope); err != nil {
		return nil, fmt.Errorf("soap: encode envelope: %w", err)
	}
	if err := enc.EncodeToken(body); err != nil {
		return nil, fmt.Errorf("soap: encode body: %w", err)
	}
	if err := enc.Encode(op); err != nil {
		return nil, fmt.Errorf("soap: encode operation: %w", err)
	}
	if err := enc.EncodeToken(body.End()); err != nil {
		return nil, fmt.Errorf("soap: encode body: %w", err)
	}
	if err := enc.EncodeToken(envelope.End()); err != nil {
		return nil, fmt.Errorf("soap: encode envelope: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("soap: flush: %w", err)
	}

	return buf.Bytes(), nil
}

// NilAttr is the xsi:nil marker for elements the remote schema requires to be
// present but empty.
func NilAttr() xml.Attr {
	return xml.Attr{Name: xml.Name{Local: "xsi:nil"}, Value: "true"}
}

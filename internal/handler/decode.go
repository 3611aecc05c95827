package handler

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/biso/functions/internal/apperr"
)

// Decode reads the body into out. The body may be a JSON object, a JSON
// string holding a JSON object, or a form-urlencoded string.
func (r Request) Decode(out any) error {
	body, err := unquote(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return apperr.Validation("request body is required")
	}

	if body[0] == '{' || body[0] == '[' {
		if err := json.Unmarshal(body, out); err != nil {
			return apperr.Validation("request body is not valid JSON: %v", err)
		}
		return nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return apperr.Validation("request body is neither JSON nor a form: %v", err)
	}
	flat := make(map[string]any, len(values))
	for k := range values {
		flat[k] = values.Get(k)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(flat); err != nil {
		return apperr.Validation("request form: %v", err)
	}
	return nil
}

// Text returns the body as a plain value: a JSON string is unquoted, a JSON
// number is returned as written and anything else is trimmed.
func (r Request) Text() (string, error) {
	body, err := unquote(r.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func unquote(raw []byte) ([]byte, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || body[0] != '"' {
		return body, nil
	}
	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, apperr.Validation("request body is not a valid JSON string: %v", err)
	}
	return []byte(strings.TrimSpace(s)), nil
}

// missing returns a validation error naming the empty fields, or nil.
func missing(fields ...field) error {
	var names []string
	for _, f := range fields {
		if !f.set {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return apperr.Validation("missing required parameters: %s", strings.Join(names, ", "))
}

type field struct {
	name string
	set  bool
}

func required(name string, set bool) field {
	return field{name: name, set: set}
}

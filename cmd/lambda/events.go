package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/handler"
)

// eventKind is the shape of an incoming Lambda payload.
type eventKind int

const (
	// kindDirect is a direct invocation; the payload is the request body.
	kindDirect eventKind = iota
	// kindGatewayV1 is an API Gateway REST proxy event.
	kindGatewayV1
	// kindFunctionURL is a function URL or HTTP API (payload 2.0) event.
	kindFunctionURL
)

type eventShape struct {
	Version        string `json:"version"`
	HTTPMethod     string `json:"httpMethod"`
	RequestContext *struct {
		HTTP *struct {
			Method string `json:"method"`
		} `json:"http"`
	} `json:"requestContext"`
}

func kindOf(event json.RawMessage) eventKind {
	var p eventShape
	if json.Unmarshal(event, &p) != nil {
		return kindDirect
	}
	if p.RequestContext != nil && p.RequestContext.HTTP != nil && p.RequestContext.HTTP.Method != "" {
		return kindFunctionURL
	}
	if p.HTTPMethod != "" {
		return kindGatewayV1
	}
	return kindDirect
}

func body(raw string, encoded bool) ([]byte, error) {
	if !encoded {
		return []byte(raw), nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, apperr.Validation("request body is not valid base64")
	}
	return b, nil
}

// decodeEvent turns a Lambda payload into a function request.
func decodeEvent(event json.RawMessage) (handler.Request, eventKind, error) {
	kind := kindOf(event)
	switch kind {
	case kindGatewayV1:
		var e events.APIGatewayProxyRequest
		if err := json.Unmarshal(event, &e); err != nil {
			return handler.Request{}, kind, fmt.Errorf("decode gateway event: %w", err)
		}
		b, err := body(e.Body, e.IsBase64Encoded)
		if err != nil {
			return handler.Request{}, kind, err
		}
		return handler.Request{
			Method:  e.HTTPMethod,
			Path:    e.Path,
			Headers: e.Headers,
			Query:   e.QueryStringParameters,
			Body:    b,
		}, kind, nil

	case kindFunctionURL:
		var e events.LambdaFunctionURLRequest
		if err := json.Unmarshal(event, &e); err != nil {
			return handler.Request{}, kind, fmt.Errorf("decode function url event: %w", err)
		}
		b, err := body(e.Body, e.IsBase64Encoded)
		if err != nil {
			return handler.Request{}, kind, err
		}
		return handler.Request{
			Method:  e.RequestContext.HTTP.Method,
			Path:    e.RawPath,
			Headers: e.Headers,
			Query:   e.QueryStringParameters,
			Body:    b,
		}, kind, nil
	}

	// A direct invocation carries the body itself. Empty payloads arrive
	// as null.
	if string(event) == "null" {
		event = nil
	}
	return handler.Request{Body: event}, kind, nil
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

// encodeResponse shapes resp for the event kind it answers. Direct
// invocations get the body alone.
func encodeResponse(kind eventKind, resp handler.Response) (any, error) {
	if kind == kindDirect {
		return resp.Body, nil
	}

	payload, err := json.Marshal(resp.Body)
	if err != nil {
		payload, _ = json.Marshal(handler.ErrorBody{Error: "an unexpected error occurred"})
		resp.Status = http.StatusInternalServerError
	}
	if kind == kindFunctionURL {
		return events.LambdaFunctionURLResponse{
			StatusCode: resp.Status,
			Headers:    jsonHeaders,
			Body:       string(payload),
		}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: resp.Status,
		Headers:    jsonHeaders,
		Body:       string(payload),
	}, nil
}

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/config"
	"github.com/biso/functions/internal/handler"
	"github.com/biso/functions/internal/logging"
	"github.com/biso/functions/internal/router"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		kind     eventKind
		expected handler.Request
	}{
		{
			name:     "direct object",
			event:    `{"$id":"exp-1"}`,
			kind:     kindDirect,
			expected: handler.Request{Body: []byte(`{"$id":"exp-1"}`)},
		},
		{
			name:     "direct string",
			event:    `"s1234567"`,
			kind:     kindDirect,
			expected: handler.Request{Body: []byte(`"s1234567"`)},
		},
		{
			name:     "direct null",
			event:    `null`,
			kind:     kindDirect,
			expected: handler.Request{},
		},
		{
			name: "gateway v1",
			event: `{"httpMethod":"POST","path":"/verify-membership","headers":{"Content-Type":"text/plain"},` +
				`"queryStringParameters":{"debug":"1"},"body":"s1234567","isBase64Encoded":false}`,
			kind: kindGatewayV1,
			expected: handler.Request{
				Method:  "POST",
				Path:    "/verify-membership",
				Headers: map[string]string{"Content-Type": "text/plain"},
				Query:   map[string]string{"debug": "1"},
				Body:    []byte("s1234567"),
			},
		},
		{
			name: "function url with base64 body",
			event: `{"version":"2.0","rawPath":"/","headers":{"x-appwrite-user-jwt":"jwt-1"},` +
				`"requestContext":{"http":{"method":"POST","path":"/"}},"body":"` +
				base64.StdEncoding.EncodeToString([]byte(`{"reference":"ref-1"}`)) + `","isBase64Encoded":true}`,
			kind: kindFunctionURL,
			expected: handler.Request{
				Method:  "POST",
				Path:    "/",
				Headers: map[string]string{"x-appwrite-user-jwt": "jwt-1"},
				Body:    []byte(`{"reference":"ref-1"}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, kind, err := decodeEvent(json.RawMessage(tt.event))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.expected.Method, req.Method)
			assert.Equal(t, tt.expected.Path, req.Path)
			assert.Equal(t, string(tt.expected.Body), string(req.Body))
			if tt.expected.Headers != nil {
				assert.Equal(t, tt.expected.Headers, req.Headers)
			}
			if tt.expected.Query != nil {
				assert.Equal(t, tt.expected.Query, req.Query)
			}
		})
	}
}

func TestDecodeEvent_BadBase64(t *testing.T) {
	_, kind, err := decodeEvent(json.RawMessage(`{"httpMethod":"POST","body":"%%%","isBase64Encoded":true}`))
	require.Error(t, err)
	assert.Equal(t, kindGatewayV1, kind)
	assert.Equal(t, http.StatusBadRequest, handler.ErrorResponse(err).Status)
}

func TestEncodeResponse(t *testing.T) {
	resp := handler.Response{Status: http.StatusNotFound, Body: handler.ErrorBody{Error: "no active memberships found"}}
	const body = `{"success":false,"error":"no active memberships found"}`

	direct, err := encodeResponse(kindDirect, resp)
	require.NoError(t, err)
	assert.Equal(t, resp.Body, direct)

	v1, err := encodeResponse(kindGatewayV1, resp)
	require.NoError(t, err)
	gw, ok := v1.(events.APIGatewayProxyResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, gw.StatusCode)
	assert.JSONEq(t, body, gw.Body)
	assert.Equal(t, "application/json", gw.Headers["Content-Type"])

	v2, err := encodeResponse(kindFunctionURL, resp)
	require.NoError(t, err)
	fu, ok := v2.(events.LambdaFunctionURLResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, fu.StatusCode)
	assert.JSONEq(t, body, fu.Body)
}

func TestHandleRequest(t *testing.T) {
	route, ok := router.Lookup("verify-membership")
	require.True(t, ok)
	a := &app{route: route, deps: &handler.Deps{Config: config.Default(), Log: logging.Discard()}, log: logging.Discard()}

	out, err := a.handleRequest(context.Background(), json.RawMessage(`{"httpMethod":"POST","body":""}`))
	require.NoError(t, err)
	gw, ok := out.(events.APIGatewayProxyResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, gw.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"missing required parameters: snumber"}`, gw.Body)
}

func TestIsWarmupEvent(t *testing.T) {
	tests := []struct {
		event       string
		isWarmup    bool
		concurrency int
	}{
		{`{"source":"warmup"}`, true, 0},
		{`{"source":"warmup","concurrency":3}`, true, 3},
		{`{"source":"warmup","concurrency":-2}`, true, 0},
		{`{"source":"warmup","concurrency":500}`, true, MaxWarmupConcurrency},
		{`{"source":"aws.events"}`, false, 0},
		{`{"$id":"exp-1"}`, false, 0},
		{`"s1234567"`, false, 0},
		{`not json`, false, 0},
	}
	for _, tt := range tests {
		w, ok := IsWarmupEvent(json.RawMessage(tt.event))
		if ok != tt.isWarmup {
			t.Errorf("IsWarmupEvent(%s) = %v, want %v", tt.event, ok, tt.isWarmup)
			continue
		}
		if ok && w.Concurrency != tt.concurrency {
			t.Errorf("IsWarmupEvent(%s) concurrency = %d, want %d", tt.event, w.Concurrency, tt.concurrency)
		}
	}
}

type countingLambda struct {
	mu    sync.Mutex
	calls []*lambdasdk.InvokeInput
	fail  bool
}

func (c *countingLambda) Invoke(_ context.Context, in *lambdasdk.InvokeInput, _ ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, in)
	if c.fail {
		return nil, errors.New("throttled")
	}
	return &lambdasdk.InvokeOutput{StatusCode: 202}, nil
}

func TestHandleWarmup(t *testing.T) {
	fake := &countingLambda{}
	orig := newLambdaClient
	newLambdaClient = func(context.Context) (router.LambdaAPI, error) { return fake, nil }
	t.Cleanup(func() { newLambdaClient = orig })
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "biso-prod-create-order")

	out, err := HandleWarmup(context.Background(), &WarmupEvent{Source: WarmupSource, Concurrency: 3})
	require.NoError(t, err)

	res := out.(map[string]any)
	assert.Equal(t, WarmupResponse{Status: "warm", InstancesWarmed: 4}, res["body"])
	require.Len(t, fake.calls, 3)
	for _, in := range fake.calls {
		assert.Equal(t, "biso-prod-create-order", aws.ToString(in.FunctionName))
		assert.Equal(t, types.InvocationTypeEvent, in.InvocationType)
		assert.JSONEq(t, `{"source":"warmup","concurrency":0}`, string(in.Payload))
	}
}

func TestSelfInvoke_CountsAccepted(t *testing.T) {
	assert.Equal(t, 0, selfInvoke(context.Background(), &countingLambda{fail: true}, "fn", 2))
	assert.Equal(t, 0, selfInvoke(context.Background(), &countingLambda{}, "", 2))
	assert.Equal(t, 2, selfInvoke(context.Background(), &countingLambda{}, "fn", 2))
}

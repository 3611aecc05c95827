package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestForRequest(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "create-order", "info")

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-123"})
	ForRequest(ctx, log).Info("invoice saved", "invoice_id", 10042)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "create-order", entry["function"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "invoice saved", entry["msg"])
	assert.EqualValues(t, 10042, entry["invoice_id"])
}

func TestForRequest_WithoutLambdaContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "get-departments", "debug")

	ForRequest(context.Background(), log).Debug("listing departments")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "request_id")
	assert.Equal(t, "DEBUG", entry["level"])
}

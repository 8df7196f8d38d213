package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOTLPEndpoint(t *testing.T) {
	tests := map[string]string{
		"collector:4318":            "collector:4318",
		"http://collector:4318":     "collector:4318",
		"https://otel.example.com":  "otel.example.com:4318",
		" http://localhost:55681/ ": "localhost:55681",
	}
	for in, want := range tests {
		got, err := parseOTLPEndpoint(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init("inventory-hold", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}

package observability

import (
	"context"
	"testing"

	"github.com/BaSui01/genaiscope/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiagnostics_ServerFields(t *testing.T) {
	tests := []struct {
		endpoint    string
		wantAddress string
		wantPort    int
	}{
		{"https://api.openai.com/v1", "api.openai.com", 443},
		{"http://localhost/v1", "localhost", 80},
		{"http://127.0.0.1:8080", "127.0.0.1", 8080},
		{"https://llm.internal.example:8443/openai", "llm.internal.example", 8443},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			d, err := NewDiagnostics(tt.endpoint, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddress, d.ServerAddress())
			assert.Equal(t, tt.wantPort, d.ServerPort())
		})
	}
}

func TestNewDiagnostics_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "not a url", "http://host:notaport"} {
		t.Run(endpoint, func(t *testing.T) {
			_, err := NewDiagnostics(endpoint, Options{})
			assert.Error(t, err)
		})
	}
}

func TestDiagnostics_StreamingChoiceCounts(t *testing.T) {
	h := newHarness(t)
	d := h.diagnostics(t, false, false)
	ctx := context.Background()

	_, chat, err := d.StartChatCompletionsStreamingScope(ctx, &llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, 1, chat.NumChoices())
	chat.Dispose()

	_, chatN, err := d.StartChatCompletionsStreamingScope(ctx, &llm.ChatRequest{Model: "m", N: llm.Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, chatN.NumChoices())
	chatN.Dispose()

	_, comp, err := d.StartCompletionsStreamingScope(ctx, &llm.CompletionsRequest{
		Model:   "m",
		Prompts: []string{"a", "b"},
		N:       llm.Ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, comp.NumChoices())
	comp.Dispose()

	assert.Equal(t, int64(3), h.counterValue(t, MetricStreamStart))
	assert.Equal(t, int64(3), h.counterValue(t, MetricStreamEnd))
}

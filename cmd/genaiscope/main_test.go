package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/BaSui01/genaiscope/config"
	"github.com/BaSui01/genaiscope/internal/telemetry"
)

// upstream 模拟 OpenAI 接口，并记录收到的请求体。
type upstream struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []map[string]any
}

func (u *upstream) received() []map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]map[string]any(nil), u.requests...)
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		u.mu.Lock()
		u.requests = append(u.requests, body)
		u.mu.Unlock()

		stream, _ := body["stream"].(bool)
		switch {
		case r.URL.Path == "/v1/chat/completions" && stream:
			w.Header().Set("Content-Type", "text/event-stream")
			for _, data := range []string{
				`{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Hi"},"finish_reason":null}]}`,
				`{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":" there"},"finish_reason":"stop"}]}`,
				`[DONE]`,
			} {
				fmt.Fprintf(w, "data: %s\n\n", data)
			}
		case r.URL.Path == "/v1/chat/completions":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"chatcmpl-2","model":"gpt-4o-mini","choices":[
				{"index":0,"message":{"role":"assistant","content":"first"},"finish_reason":"stop"},
				{"index":1,"message":{"role":"assistant","content":"second"},"finish_reason":"stop"}],
				"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
		case r.URL.Path == "/v1/completions":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"cmpl-1","model":"gpt-3.5-turbo-instruct","choices":[
				{"index":0,"text":" 4","finish_reason":"stop"}],
				"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"message":"no route","type":"invalid_request_error","code":"not_found"}}`)
		}
	}))
	t.Cleanup(u.server.Close)
	return u
}

// setupEnv 指向模拟上游，并把 stdout 导出器重定向到返回的缓冲区。
func setupEnv(t *testing.T, u *upstream) *bytes.Buffer {
	t.Helper()
	t.Setenv("GENAISCOPE_CLIENT_BASE_URL", u.server.URL+"/v1")
	t.Setenv("GENAISCOPE_CLIENT_API_KEY", "sk-test")
	t.Setenv("GENAISCOPE_LOG_LEVEL", "error")
	t.Setenv("GENAISCOPE_TELEMETRY_ENABLED", "true")
	t.Setenv("GENAISCOPE_TELEMETRY_EXPORTER", config.ExporterStdout)

	var exported bytes.Buffer
	prev := telemetryOptions
	telemetryOptions = []telemetry.Option{telemetry.WithStdoutWriter(&exported), telemetry.WithoutGlobal()}
	t.Cleanup(func() { telemetryOptions = prev })

	origTP := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
	return &exported
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"version"}, nil, &out, &out)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "GenAIScope dev")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no command", args: nil, want: "Usage:"},
		{name: "unknown command", args: []string{"serve"}, want: "Unknown command: serve"},
		{name: "unknown flag", args: []string{"chat", "--temperature", "1"}, want: "Invalid arguments"},
		{name: "negative n", args: []string{"complete", "--prompt", "x", "--n", "-1"}, want: "--n must not be negative"},
		{name: "system is chat only", args: []string{"complete", "--system", "x"}, want: "Invalid arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, strings.NewReader(""), &stdout, &stderr)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestRun_EmptyPrompt(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"chat"}, strings.NewReader("  \n"), &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "A prompt is required")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GENAISCOPE_LOG_FORMAT", "xml")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"chat", "--prompt", "hi"}, nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "log.format")
}

func TestRun_ChatStream(t *testing.T) {
	u := newUpstream(t)
	exported := setupEnv(t, u)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"chat", "--prompt", "hello", "--system", "be brief", "--stream"},
		nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Equal(t, "Hi there\n", stdout.String())
	reqs := u.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, true, reqs[0]["stream"])
	assert.Len(t, reqs[0]["messages"], 2)

	// 关闭时 providers 被刷新，span 与 gen_ai.* 指标写入导出器
	assert.Contains(t, exported.String(), "chat.completions gpt-4o-mini")
	assert.Contains(t, exported.String(), "gen_ai.stream.end")
}

func TestRun_ChatMultipleChoices(t *testing.T) {
	u := newUpstream(t)
	setupEnv(t, u)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"chat", "--prompt", "hello", "--n", "2", "--max-tokens", "16"}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Equal(t, "[0] first\n[1] second\n", stdout.String())
	reqs := u.received()
	require.Len(t, reqs, 1)
	assert.EqualValues(t, 2, reqs[0]["n"])
	assert.EqualValues(t, 16, reqs[0]["max_tokens"])
}

func TestRun_CompletePromptFromStdin(t *testing.T) {
	u := newUpstream(t)
	setupEnv(t, u)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"complete", "--model", "gpt-3.5-turbo-instruct"},
		strings.NewReader("2+2=\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Equal(t, " 4\n", stdout.String())
	reqs := u.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, []any{"2+2="}, reqs[0]["prompt"])
	assert.Equal(t, "gpt-3.5-turbo-instruct", reqs[0]["model"])
}

func TestRun_UpstreamError(t *testing.T) {
	u := newUpstream(t)
	setupEnv(t, u)
	t.Setenv("GENAISCOPE_CLIENT_BASE_URL", u.server.URL+"/v2")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"chat", "--prompt", "hello"}, nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "no route")
	assert.Empty(t, stdout.String())
}

func TestApp_MetricsServer(t *testing.T) {
	u := newUpstream(t)
	setupEnv(t, u)
	t.Setenv("GENAISCOPE_METRICS_ENABLED", "true")
	t.Setenv("GENAISCOPE_METRICS_LISTEN_ADDR", "127.0.0.1:0")

	ctx := context.Background()
	a, err := newApp(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(ctx) })
	require.NotNil(t, a.metrics)

	var out bytes.Buffer
	var scraped string
	err = a.execute(ctx, func(ctx context.Context) error {
		if err := a.chat(ctx, &commandOptions{prompt: "hello", stream: true}, &out); err != nil {
			return err
		}
		resp, err := http.Get("http://" + a.metrics.Addr() + "/metrics")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		scraped = string(body)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there\n", out.String())
	assert.Contains(t, scraped, "genaiscope_stream_chunks_total")
	assert.Contains(t, scraped, "go_goroutines")

	n, err := testutil.GatherAndCount(a.registry,
		"genaiscope_http_requests_total", "genaiscope_stream_chunks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// execute 返回后 /metrics 服务已关闭
	assert.False(t, a.metrics.IsRunning())
}

func TestInitLogger(t *testing.T) {
	for _, cfg := range []config.LogConfig{
		{Level: "debug", Format: "json", OutputPaths: []string{"stderr"}},
		{Level: "warn", Format: "console"},
		{Level: "bogus", Format: "json", OutputPaths: []string{"stdout"}},
	} {
		logger := initLogger(cfg)
		require.NotNil(t, logger)
		assert.Equal(t, cfg.Level == "debug", logger.Core().Enabled(-1))
	}
}

// =============================================================================
// GenAIScope OpenAI Client
// =============================================================================
// Instrumented HTTP client for the OpenAI chat.completions and completions
// APIs. Every call runs inside an observability.OperationScope; streaming calls
// feed each SSE chunk through an observability.StreamAggregator.
// =============================================================================

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/genaiscope/internal/metrics"
	"github.com/BaSui01/genaiscope/internal/tlsutil"
	"github.com/BaSui01/genaiscope/llm"
	"github.com/BaSui01/genaiscope/llm/observability"
	"github.com/BaSui01/genaiscope/llm/retry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultChatPath        = "/chat/completions"
	defaultCompletionsPath = "/completions"
	defaultTimeout         = 60 * time.Second
)

// Config holds the configuration for the OpenAI client.
type Config struct {
	// BaseURL is the API root including the version prefix. Defaults to "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token. A key set with llm.WithAPIKey on the
	// request context takes precedence.
	APIKey string

	// Organization is sent as the OpenAI-Organization header when non-empty.
	Organization string

	// Timeout bounds non-streaming requests. For streaming requests it only
	// bounds the wait for response headers; the body is bounded by the
	// caller's context. Defaults to 60s if zero.
	Timeout time.Duration

	// RateLimit is the client-side request rate in requests per second. Zero disables limiting.
	RateLimit float64

	// Burst is the limiter burst size. Defaults to 1 when RateLimit is set.
	Burst int

	// MaxRetries is the number of retries for retryable failures (429, 5xx,
	// network errors) before any response body is consumed. Zero disables retries.
	MaxRetries int

	// RetryDelay is the initial backoff delay. Defaults to 500ms.
	RetryDelay time.Duration

	// ChatPath and CompletionsPath override the endpoint paths.
	ChatPath        string
	CompletionsPath string
}

// Client is an instrumented OpenAI API client. Safe for concurrent use.
type Client struct {
	cfg        Config
	http       *http.Client
	streamHTTP *http.Client
	diag       *observability.Diagnostics
	limiter    *rate.Limiter
	retry      retry.Policy
	collector  *metrics.Collector
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	obs        observability.Options
	collector  *metrics.Collector
}

// WithHTTPClient replaces the TLS-hardened default HTTP client, for both
// streaming and non-streaming requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithObservability sets the tracer, metric recorder and event recording flags.
func WithObservability(obs observability.Options) Option {
	return func(o *clientOptions) { o.obs = obs }
}

// WithCollector enables Prometheus transport metrics.
func WithCollector(c *metrics.Collector) Option {
	return func(o *clientOptions) { o.collector = c }
}

// New creates a new OpenAI client.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = defaultChatPath
	}
	if cfg.CompletionsPath == "" {
		cfg.CompletionsPath = defaultCompletionsPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.obs.Logger == nil {
		o.obs.Logger = logger
	}

	diag, err := observability.NewDiagnostics(cfg.BaseURL, o.obs)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	c := &Client{
		cfg:        cfg,
		http:       tlsutil.SecureHTTPClient(cfg.Timeout),
		streamHTTP: tlsutil.SecureStreamingClient(cfg.Timeout),
		diag:       diag,
		collector:  o.collector,
		logger:     logger.With(zap.String("component", "openai_client")),
	}
	if o.httpClient != nil {
		c.http = o.httpClient
		c.streamHTTP = o.httpClient
	}
	c.retry = retry.DefaultPolicy()
	c.retry.MaxRetries = cfg.MaxRetries
	if cfg.RetryDelay > 0 {
		c.retry.InitialDelay = cfg.RetryDelay
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// ChatCompletion performs a non-streaming chat completion.
func (c *Client) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := validateChat(req); err != nil {
		return nil, err
	}
	ctx, scope := c.diag.StartChatCompletionsScope(ctx, req)
	defer scope.Dispose()

	var w wireChatResponse
	if err := c.doJSON(ctx, observability.OperationChatCompletions, c.cfg.ChatPath, toWireChatRequest(req, false), &w); err != nil {
		scope.Fail(ctx, err, canceled(ctx, err))
		return nil, err
	}

	resp := fromWireChatResponse(w)
	scope.RecordChatCompletions(ctx, resp)
	return resp, nil
}

// Completion performs a non-streaming legacy completion.
func (c *Client) Completion(ctx context.Context, req *llm.CompletionsRequest) (*llm.CompletionsResponse, error) {
	if err := validateCompletions(req); err != nil {
		return nil, err
	}
	ctx, scope := c.diag.StartCompletionsScope(ctx, req)
	defer scope.Dispose()

	var w wireCompletionsResponse
	if err := c.doJSON(ctx, observability.OperationCompletions, c.cfg.CompletionsPath, toWireCompletionsRequest(req, false), &w); err != nil {
		scope.Fail(ctx, err, canceled(ctx, err))
		return nil, err
	}

	resp := fromWireCompletionsResponse(w)
	scope.RecordCompletions(ctx, resp)
	return resp, nil
}

// StreamChatCompletion performs a streaming chat completion via SSE.
// The returned channel is closed when the stream ends; a terminal transport
// or decode failure is delivered as a chunk with Err set.
func (c *Client) StreamChatCompletion(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if err := validateChat(req); err != nil {
		return nil, err
	}
	ctx, agg, err := c.diag.StartChatCompletionsStreamingScope(ctx, req)
	if err != nil {
		return nil, err
	}

	op := observability.OperationChatCompletions
	resp, err := c.send(ctx, c.streamHTTP, op, c.cfg.ChatPath, toWireChatRequest(req, true), true)
	if err != nil {
		endWithError(ctx, agg, err)
		return nil, err
	}
	return c.streamSSE(ctx, op, resp.Body, agg, decodeChatEvent), nil
}

// StreamCompletion performs a streaming legacy completion via SSE.
func (c *Client) StreamCompletion(ctx context.Context, req *llm.CompletionsRequest) (<-chan llm.StreamChunk, error) {
	if err := validateCompletions(req); err != nil {
		return nil, err
	}
	ctx, agg, err := c.diag.StartCompletionsStreamingScope(ctx, req)
	if err != nil {
		return nil, err
	}

	op := observability.OperationCompletions
	resp, err := c.send(ctx, c.streamHTTP, op, c.cfg.CompletionsPath, toWireCompletionsRequest(req, true), true)
	if err != nil {
		endWithError(ctx, agg, err)
		return nil, err
	}
	return c.streamSSE(ctx, op, resp.Body, agg, decodeCompletionsEvent), nil
}

func validateChat(req *llm.ChatRequest) error {
	if req == nil {
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: "nil chat request", HTTPStatus: http.StatusBadRequest}
	}
	if len(req.Messages) == 0 {
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: "chat request has no messages", HTTPStatus: http.StatusBadRequest}
	}
	return nil
}

func validateCompletions(req *llm.CompletionsRequest) error {
	if req == nil {
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: "nil completions request", HTTPStatus: http.StatusBadRequest}
	}
	if len(req.Prompts) == 0 {
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: "completions request has no prompts", HTTPStatus: http.StatusBadRequest}
	}
	return nil
}

// doJSON sends a non-streaming request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, operation, path string, body, out any) error {
	resp, err := c.send(ctx, c.http, operation, path, body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai: decode %s response: %w", operation, err)
	}
	return nil
}

// send performs the HTTP request, retrying retryable failures per c.retry.
// Responses with status >= 400 are converted to *llm.Error and their body is closed.
func (c *Client) send(ctx context.Context, client *http.Client, operation, path string, body any, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	return retry.Do(ctx, c.retry, c.logger, func(ctx context.Context) (*http.Response, error) {
		return c.sendOnce(ctx, client, operation, path, payload, stream)
	})
}

// sendOnce performs one HTTP round trip.
func (c *Client) sendOnce(ctx context.Context, client *http.Client, operation, path string, payload []byte, stream bool) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("openai: rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	requestID := uuid.NewString()
	c.buildHeaders(ctx, httpReq, requestID, stream)

	start := time.Now()
	resp, err := client.Do(httpReq)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.collector != nil {
		c.collector.RecordHTTPRequest(operation, status, time.Since(start), int64(len(payload)))
	}
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("operation", operation),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("openai: send %s request: %w", operation, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		apiErr := llm.ReadError(resp.StatusCode, resp.Body)
		c.logger.Debug("upstream error",
			zap.String("operation", operation),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("service_code", apiErr.ServiceCode))
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) buildHeaders(ctx context.Context, req *http.Request, requestID string, stream bool) {
	apiKey := c.cfg.APIKey
	if override, ok := llm.APIKeyFromContext(ctx); ok {
		apiKey = strings.TrimSpace(override)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if c.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.cfg.Organization)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
}

// endpoint builds the full URL for a given path.
func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// canceled reports whether err stems from cancellation of ctx.
func canceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}

func endWithError(ctx context.Context, agg *observability.StreamAggregator, err error) {
	if canceled(ctx, err) {
		agg.RecordCancellation()
		return
	}
	agg.RecordException(err)
}

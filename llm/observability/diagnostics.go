package observability

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/BaSui01/genaiscope/llm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// tracerName 是本包创建的 span 所用的 instrumentation scope。
const tracerName = "github.com/BaSui01/genaiscope/llm/observability"

// NewTracer 从 provider 取得本包 span 使用的 tracer。
func NewTracer(tp trace.TracerProvider) trace.Tracer { return tp.Tracer(tracerName) }

// Options 控制 Diagnostics 的行为。
type Options struct {
	Tracer   trace.Tracer
	Recorder *MetricRecorder
	// RecordEvents 开启后回放请求消息与候选结果。
	RecordEvents bool
	// RecordContent 开启后事件中保留正文，否则替换为 REDACTED。
	RecordContent bool
	Logger        *zap.Logger
}

// Diagnostics 为某个服务端点创建 OperationScope。一个客户端持有一个实例。
type Diagnostics struct {
	opts          Options
	serverAddress string
	serverPort    int
}

// NewDiagnostics 解析 endpoint 得到 server.address 与 server.port。
// 未显式指定端口时 https 为 443，http 为 80。
func NewDiagnostics(endpoint string, opts Options) (*Diagnostics, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint port %q: %w", p, err)
		}
	} else {
		switch u.Scheme {
		case "https":
			port = 443
		case "http":
			port = 80
		}
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		if opts.Recorder, err = NewMetricRecorder(nil); err != nil {
			return nil, err
		}
	}

	return &Diagnostics{
		opts:          opts,
		serverAddress: u.Hostname(),
		serverPort:    port,
	}, nil
}

// ServerAddress 返回 server.address。
func (d *Diagnostics) ServerAddress() string { return d.serverAddress }

// ServerPort 返回 server.port。
func (d *Diagnostics) ServerPort() int { return d.serverPort }

func (d *Diagnostics) newScope(req RequestInfo) *OperationScope {
	req.ServerAddress = d.serverAddress
	req.ServerPort = d.serverPort
	return NewOperationScope(req, ScopeConfig{
		Tracer:        d.opts.Tracer,
		Recorder:      d.opts.Recorder,
		RecordEvents:  d.opts.RecordEvents,
		RecordContent: d.opts.RecordContent,
		Logger:        d.opts.Logger,
	})
}

func chatRequestInfo(req *llm.ChatRequest) RequestInfo {
	return RequestInfo{
		OperationName: OperationChatCompletions,
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Messages:      req.Messages,
	}
}

func completionsRequestInfo(req *llm.CompletionsRequest) RequestInfo {
	prompts := req.Prompts
	if prompts == nil {
		prompts = []string{}
	}
	return RequestInfo{
		OperationName: OperationCompletions,
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Prompts:       prompts,
	}
}

// StartChatCompletionsScope 开始一次非流式 chat 操作。
func (d *Diagnostics) StartChatCompletionsScope(ctx context.Context, req *llm.ChatRequest) (context.Context, *OperationScope) {
	scope := d.newScope(chatRequestInfo(req))
	return scope.Start(ctx), scope
}

// StartCompletionsScope 开始一次非流式 completions 操作。
func (d *Diagnostics) StartCompletionsScope(ctx context.Context, req *llm.CompletionsRequest) (context.Context, *OperationScope) {
	scope := d.newScope(completionsRequestInfo(req))
	return scope.Start(ctx), scope
}

// StartChatCompletionsStreamingScope 开始一次流式 chat 操作，候选数为请求的 N（缺省 1）。
func (d *Diagnostics) StartChatCompletionsStreamingScope(ctx context.Context, req *llm.ChatRequest) (context.Context, *StreamAggregator, error) {
	scope := d.newScope(chatRequestInfo(req))
	ctx = scope.Start(ctx)
	agg, err := NewStreamAggregator(ctx, scope, llm.ChoiceCount(req.N, 1))
	if err != nil {
		scope.Dispose()
		return ctx, nil, err
	}
	return ctx, agg, nil
}

// StartCompletionsStreamingScope 开始一次流式 completions 操作，候选数为 prompt 数乘以 N。
func (d *Diagnostics) StartCompletionsStreamingScope(ctx context.Context, req *llm.CompletionsRequest) (context.Context, *StreamAggregator, error) {
	scope := d.newScope(completionsRequestInfo(req))
	ctx = scope.Start(ctx)
	agg, err := NewStreamAggregator(ctx, scope, llm.ChoiceCount(req.N, len(req.Prompts)))
	if err != nil {
		scope.Dispose()
		return ctx, nil, err
	}
	return ctx, agg, nil
}

package observability

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BaSui01/genaiscope/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// RequestInfo 描述一次请求的静态属性。可选参数为 nil 时不记录。
type RequestInfo struct {
	OperationName string
	Model         string
	ServerAddress string
	ServerPort    int
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	// Messages 与 Prompts 二选一：chat 请求使用 Messages，completions 请求使用 Prompts。
	Messages []llm.Message
	Prompts  []string
}

// ScopeConfig 是 OperationScope 的依赖。
type ScopeConfig struct {
	Tracer        trace.Tracer
	Recorder      *MetricRecorder
	RecordEvents  bool
	RecordContent bool
	Logger        *zap.Logger
	// Now 用于测试注入时钟，默认 time.Now。
	Now func() time.Time
}

// ResponseInfo 是写入 span 的响应属性。
type ResponseInfo struct {
	ResponseID       *string
	Model            *string
	FinishReason     *string
	PromptTokens     *int
	CompletionTokens *int
}

// MetricsInfo 是一次指标上报的可变维度与 token 数。
type MetricsInfo struct {
	ResponseModel    *string
	ErrorType        *string
	PromptTokens     *int
	CompletionTokens *int
}

// StreamResult 是流式操作结束时汇总的结果。
type StreamResult struct {
	ResponseID       *string
	Model            *string
	FinishReason     *string
	CompletionTokens *int
	Err              error
	Canceled         bool
}

// OperationScope 表示一次逻辑请求（流式或非流式）的生命周期：
// Start → 记录响应/失败 → Dispose。指标上报与 span 是否被采样无关。
type OperationScope struct {
	tracer        trace.Tracer
	recorder      *MetricRecorder
	logger        *zap.Logger
	req           RequestInfo
	recordEvents  bool
	recordContent bool
	now           func() time.Time

	span     trace.Span
	start    time.Time
	disposed atomic.Bool
}

// NewOperationScope 创建作用域；需要调用 Start 才会开始计时与追踪。
func NewOperationScope(req RequestInfo, cfg ScopeConfig) *OperationScope {
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	if cfg.Recorder == nil {
		cfg.Recorder, _ = NewMetricRecorder(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OperationScope{
		tracer:        cfg.Tracer,
		recorder:      cfg.Recorder,
		logger:        cfg.Logger.With(zap.String("component", "operation_scope")),
		req:           req,
		recordEvents:  cfg.RecordEvents,
		recordContent: cfg.RecordContent,
		now:           cfg.Now,
	}
}

// Start 开始 span 与计时，记录请求属性；开启事件记录时回放请求消息。
func (s *OperationScope) Start(ctx context.Context) context.Context {
	ctx, s.span = s.tracer.Start(ctx, s.spanName(), trace.WithSpanKind(trace.SpanKindClient))
	s.recordCommonAttributes()
	s.start = s.now()

	if s.IsRecording() && s.recordEvents {
		if s.req.Prompts != nil {
			for _, p := range s.req.Prompts {
				RecordPrompt(s.span, p, s.recordContent)
			}
		} else {
			for _, m := range s.req.Messages {
				RecordRequestMessage(s.span, m, s.recordContent)
			}
		}
	}
	return ctx
}

func (s *OperationScope) spanName() string {
	if s.req.Model == "" {
		return s.req.OperationName
	}
	return s.req.OperationName + " " + s.req.Model
}

// Span 返回底层 span，Start 之前为 nil。
func (s *OperationScope) Span() trace.Span { return s.span }

// IsRecording 报告 span 是否被采样。所有属性写入都以此为前提，避免无观察者时的分配。
func (s *OperationScope) IsRecording() bool {
	return s.span != nil && s.span.IsRecording()
}

// Elapsed 返回自 Start 以来的耗时。
func (s *OperationScope) Elapsed() time.Duration {
	if s.start.IsZero() {
		return 0
	}
	return s.now().Sub(s.start)
}

// RecordEvents 报告是否回放诊断事件。
func (s *OperationScope) RecordEvents() bool { return s.recordEvents }

// RecordContent 报告事件中是否包含正文。
func (s *OperationScope) RecordContent() bool { return s.recordContent }

func (s *OperationScope) recordCommonAttributes() {
	if !s.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrGenAISystem, SystemOpenAI),
		attribute.String(AttrGenAIRequestModel, s.req.Model),
		attribute.String(AttrServerAddress, s.req.ServerAddress),
		attribute.Int(AttrServerPort, s.req.ServerPort),
		attribute.String(AttrGenAIOperationName, s.req.OperationName),
	}
	if s.req.MaxTokens != nil {
		attrs = append(attrs, attribute.Int(AttrGenAIRequestMaxTokens, *s.req.MaxTokens))
	}
	if s.req.Temperature != nil {
		attrs = append(attrs, attribute.Float64(AttrGenAIRequestTemp, *s.req.Temperature))
	}
	if s.req.TopP != nil {
		attrs = append(attrs, attribute.Float64(AttrGenAIRequestTopP, *s.req.TopP))
	}
	s.span.SetAttributes(attrs...)
}

// RecordResponse 将响应属性写入 span；span 未被采样时不做任何事。
func (s *OperationScope) RecordResponse(info ResponseInfo) {
	if !s.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 5)
	if info.ResponseID != nil {
		attrs = append(attrs, attribute.String(AttrGenAIResponseID, *info.ResponseID))
	}
	if info.Model != nil {
		attrs = append(attrs, attribute.String(AttrGenAIResponseModel, *info.Model))
	}
	if info.FinishReason != nil {
		attrs = append(attrs, attribute.String(AttrGenAIResponseFinish, *info.FinishReason))
	}
	if info.PromptTokens != nil {
		attrs = append(attrs, attribute.Int(AttrGenAIUsagePrompt, *info.PromptTokens))
	}
	if info.CompletionTokens != nil {
		attrs = append(attrs, attribute.Int(AttrGenAIUsageCompletion, *info.CompletionTokens))
	}
	s.span.SetAttributes(attrs...)
}

// RecordMetrics 上报耗时直方图；token 数非 nil 时分别上报 input/output 用量。
func (s *OperationScope) RecordMetrics(ctx context.Context, info MetricsInfo) {
	tags := NewTagSet(
		Tag{AttrGenAISystem, SystemOpenAI},
		Tag{AttrGenAIRequestModel, s.req.Model},
		Tag{AttrGenAIResponseModel, info.ResponseModel},
		Tag{AttrServerAddress, s.req.ServerAddress},
		Tag{AttrServerPort, s.req.ServerPort},
		Tag{AttrGenAIOperationName, s.req.OperationName},
		Tag{AttrErrorType, info.ErrorType},
	)

	if info.PromptTokens != nil {
		s.recorder.RecordTokens(ctx, *info.PromptTokens, tags.With(AttrGenAITokenType, TokenTypeInput))
	}
	if info.CompletionTokens != nil {
		s.recorder.RecordTokens(ctx, *info.CompletionTokens, tags.With(AttrGenAITokenType, TokenTypeOutput))
	}
	s.recorder.RecordDuration(ctx, s.Elapsed().Seconds(), tags)
}

// RecordChatCompletions 记录非流式 chat 响应。
func (s *OperationScope) RecordChatCompletions(ctx context.Context, resp *llm.ChatResponse) {
	if resp == nil {
		s.RecordMetrics(ctx, MetricsInfo{})
		return
	}
	var usage llm.Usage
	if resp.Usage != nil {
		usage = *resp.Usage
	}

	if s.IsRecording() {
		if s.recordEvents {
			for _, c := range resp.Choices {
				role := c.Message.Role
				RecordChoice(s.span, ChoiceEvent{
					Index:        c.Index,
					FinishReason: c.FinishReason,
					Role:         &role,
					Content:      c.Message.Content,
					ToolCalls:    c.Message.ToolCalls,
				}, s.recordContent)
			}
		}
		s.RecordResponse(ResponseInfo{
			ResponseID:       optionalString(resp.ID),
			Model:            optionalString(resp.Model),
			FinishReason:     llm.FirstFinishReason(resp),
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
		})
	}

	s.RecordMetrics(ctx, MetricsInfo{
		ResponseModel:    optionalString(resp.Model),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	})
}

// RecordCompletions 记录非流式 completions 响应。
func (s *OperationScope) RecordCompletions(ctx context.Context, resp *llm.CompletionsResponse) {
	if resp == nil {
		s.RecordMetrics(ctx, MetricsInfo{})
		return
	}
	var usage llm.Usage
	if resp.Usage != nil {
		usage = *resp.Usage
	}

	if s.IsRecording() {
		if s.recordEvents {
			for _, c := range resp.Choices {
				text := c.Text
				RecordChoice(s.span, ChoiceEvent{
					Index:        c.Index,
					FinishReason: c.FinishReason,
					Content:      &text,
				}, s.recordContent)
			}
		}
		s.RecordResponse(ResponseInfo{
			ResponseID:       optionalString(resp.ID),
			Model:            optionalString(resp.Model),
			FinishReason:     llm.FirstCompletionsFinishReason(resp),
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
		})
	}

	s.RecordMetrics(ctx, MetricsInfo{
		ResponseModel:    optionalString(resp.Model),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	})
}

// RecordStreamingResponse 记录流式操作的汇总结果。流式响应没有 prompt token 数。
func (s *OperationScope) RecordStreamingResponse(ctx context.Context, res StreamResult) {
	errorType := ErrorType(res.Err, res.Canceled)

	s.RecordResponse(ResponseInfo{
		ResponseID:       res.ResponseID,
		Model:            res.Model,
		FinishReason:     res.FinishReason,
		CompletionTokens: res.CompletionTokens,
	})
	if errorType != nil {
		s.markFailed(res.Err, *errorType)
	}

	s.RecordMetrics(ctx, MetricsInfo{
		ResponseModel:    res.Model,
		ErrorType:        errorType,
		CompletionTokens: res.CompletionTokens,
	})
}

// Fail 记录失败：span 标记为错误，并以 error.type 维度上报耗时。
// 调用方负责继续返回原始错误。
func (s *OperationScope) Fail(ctx context.Context, err error, canceled bool) {
	errorType := ErrorType(err, canceled)
	s.RecordMetrics(ctx, MetricsInfo{ErrorType: errorType})
	if errorType != nil {
		s.markFailed(err, *errorType)
	}
	s.logger.Debug("operation failed",
		zap.String("operation", s.req.OperationName),
		zap.Stringp("error_type", errorType),
		zap.Error(err))
}

func (s *OperationScope) markFailed(err error, errorType string) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(attribute.String(AttrErrorType, errorType))
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Error, errorType)
}

// Dispose 结束 span，可重复调用。
func (s *OperationScope) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	if s.span != nil {
		s.span.End()
	}
}

// Disposed 报告 Dispose 是否已被调用。
func (s *OperationScope) Disposed() bool { return s.disposed.Load() }

// streamTags 是流计数器使用的维度。
func (s *OperationScope) streamTags() TagSet {
	return NewTagSet(
		Tag{AttrGenAISystem, SystemOpenAI},
		Tag{AttrGenAIRequestModel, s.req.Model},
		Tag{AttrServerAddress, s.req.ServerAddress},
		Tag{AttrServerPort, s.req.ServerPort},
		Tag{AttrGenAIOperationName, s.req.OperationName},
	)
}

// RecordStreamStart 流开始计数。
func (s *OperationScope) RecordStreamStart(ctx context.Context) {
	s.recorder.StreamStarted(ctx, s.streamTags())
}

// RecordStreamComplete 流结束计数。
func (s *OperationScope) RecordStreamComplete(ctx context.Context) {
	s.recorder.StreamCompleted(ctx, s.streamTags())
}

// ErrorType 计算 error.type：取消 → "cancelled"；带服务端错误码的 *llm.Error → 该错误码；
// 其他错误 → 最内层错误的 Go 类型名。无错误且未取消时返回 nil。
func ErrorType(err error, canceled bool) *string {
	if canceled || errors.Is(err, context.Canceled) {
		v := ErrorTypeCancelled
		return &v
	}
	if err == nil {
		return nil
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) && llmErr.ServiceCode != "" {
		v := llmErr.ServiceCode
		return &v
	}

	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	v := fmt.Sprintf("%T", inner)
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	clientMeterName = "github.com/BaSui01/genaiscope/llm/client"
	streamMeterName = "github.com/BaSui01/genaiscope/llm/streams"
)

// MetricRecorder 持有进程级的 GenAI 指标仪表。
// 仪表由显式传入的 MeterProvider 创建，一个进程通常只构造一次，
// 然后以指针形式注入到每个 OperationScope。所有方法都可并发调用。
type MetricRecorder struct {
	// 直方图
	duration metric.Float64Histogram
	tokens   metric.Int64Histogram
	// 柜台
	streamStart metric.Int64Counter
	streamEnd   metric.Int64Counter
}

// NewMetricRecorder 创建指标收集器。mp 为 nil 时使用 noop 实现。
func NewMetricRecorder(mp metric.MeterProvider) (*MetricRecorder, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	client := mp.Meter(clientMeterName)
	streams := mp.Meter(streamMeterName)

	r := &MetricRecorder{}
	var err error

	// 请求延迟
	r.duration, err = client.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("GenAI request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28, 2.56, 5.12, 10.24, 20.48, 40.96, 81.92))
	if err != nil {
		return nil, err
	}

	// Token 分布
	r.tokens, err = client.Int64Histogram(MetricTokenUsage,
		metric.WithDescription("GenAI token usage."),
		metric.WithUnit("{token}"),
		metric.WithExplicitBucketBoundaries(1, 4, 16, 64, 256, 1024, 4096, 16384, 65536, 262144, 1048576))
	if err != nil {
		return nil, err
	}

	r.streamStart, err = streams.Int64Counter(MetricStreamStart,
		metric.WithDescription("GenAI streams started."),
		metric.WithUnit("{stream}"))
	if err != nil {
		return nil, err
	}

	r.streamEnd, err = streams.Int64Counter(MetricStreamEnd,
		metric.WithDescription("GenAI streams completed."),
		metric.WithUnit("{stream}"))
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RecordDuration 记录一次操作的耗时（秒）。
func (r *MetricRecorder) RecordDuration(ctx context.Context, seconds float64, tags TagSet) {
	r.duration.Record(ctx, seconds, metric.WithAttributes(tags.Attributes()...))
}

// RecordTokens 记录 token 用量，tags 中应包含 gen_ai.usage.token_type。
func (r *MetricRecorder) RecordTokens(ctx context.Context, count int, tags TagSet) {
	r.tokens.Record(ctx, int64(count), metric.WithAttributes(tags.Attributes()...))
}

// StreamStarted 流开始计数 +1。
func (r *MetricRecorder) StreamStarted(ctx context.Context, tags TagSet) {
	r.streamStart.Add(ctx, 1, metric.WithAttributes(tags.Attributes()...))
}

// StreamCompleted 流结束计数 +1。
func (r *MetricRecorder) StreamCompleted(ctx context.Context, tags TagSet) {
	r.streamEnd.Add(ctx, 1, metric.WithAttributes(tags.Attributes()...))
}

// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 传输层指标收集器。
// 与 GenAI 语义约定指标（OTel）互补：这里记录的是 HTTP 往返与 SSE 分片层面的数据。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec

	// 流指标
	streamChunksTotal *prometheus.CounterVec
	streamErrorsTotal *prometheus.CounterVec
	streamsActive     *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg。reg 为 nil 时使用默认 Registerer。
func NewCollector(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of upstream HTTP requests",
		},
		[]string{"operation", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds, until response headers",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "Upstream HTTP request body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"operation"},
	)

	// 流指标
	c.streamChunksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total number of SSE chunks received",
		},
		[]string{"operation"},
	)

	c.streamErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Total number of streams terminated by an error",
		},
		[]string{"operation", "error_type"},
	)

	c.streamsActive = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of streams currently being read",
		},
		[]string{"operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录一次上游 HTTP 请求。status 为 0 表示未拿到响应。
func (c *Collector) RecordHTTPRequest(operation string, status int, duration time.Duration, requestSize int64) {
	c.httpRequestsTotal.WithLabelValues(operation, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(operation).Observe(float64(requestSize))
}

// =============================================================================
// 🌊 流指标记录
// =============================================================================

// StreamOpened 流开始读取。
func (c *Collector) StreamOpened(operation string) {
	c.streamsActive.WithLabelValues(operation).Inc()
}

// StreamClosed 流读取结束。
func (c *Collector) StreamClosed(operation string) {
	c.streamsActive.WithLabelValues(operation).Dec()
}

// RecordStreamChunk 记录收到的 SSE 分片
func (c *Collector) RecordStreamChunk(operation string) {
	c.streamChunksTotal.WithLabelValues(operation).Inc()
}

// RecordStreamError 记录流错误
func (c *Collector) RecordStreamError(operation, errorType string) {
	c.streamErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

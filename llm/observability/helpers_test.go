package observability

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// harness 把 OTel SDK 接到内存 reader/recorder 上。
type harness struct {
	reader   *sdkmetric.ManualReader
	spans    *tracetest.SpanRecorder
	tracer   trace.Tracer
	recorder *MetricRecorder
}

func newHarness(t require.TestingT, opts ...sdktrace.TracerProviderOption) *harness {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(sr)}, opts...)...)

	rec, err := NewMetricRecorder(mp)
	require.NoError(t, err)

	return &harness{
		reader:   reader,
		spans:    sr,
		tracer:   tp.Tracer("test"),
		recorder: rec,
	}
}

func (h *harness) diagnostics(t require.TestingT, recordEvents, recordContent bool) *Diagnostics {
	d, err := NewDiagnostics("https://api.openai.com/v1", Options{
		Tracer:        h.tracer,
		Recorder:      h.recorder,
		RecordEvents:  recordEvents,
		RecordContent: recordContent,
	})
	require.NoError(t, err)
	return d
}

func (h *harness) metric(t require.TestingT, name string) (metricdata.Metrics, bool) {
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// counterValue 返回计数器所有数据点之和；未记录时为 0。
func (h *harness) counterValue(t require.TestingT, name string) int64 {
	m, ok := h.metric(t, name)
	if !ok {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func (h *harness) durationPoints(t require.TestingT) []metricdata.HistogramDataPoint[float64] {
	m, ok := h.metric(t, MetricOperationDuration)
	if !ok {
		return nil
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	return hist.DataPoints
}

func (h *harness) tokenPoints(t require.TestingT) []metricdata.HistogramDataPoint[int64] {
	m, ok := h.metric(t, MetricTokenUsage)
	if !ok {
		return nil
	}
	hist, ok := m.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	return hist.DataPoints
}

func durationCount(points []metricdata.HistogramDataPoint[float64]) uint64 {
	var n uint64
	for _, dp := range points {
		n += dp.Count
	}
	return n
}

func tokenCount(points []metricdata.HistogramDataPoint[int64]) uint64 {
	var n uint64
	for _, dp := range points {
		n += dp.Count
	}
	return n
}

func (h *harness) endedSpan(t require.TestingT) sdktrace.ReadOnlySpan {
	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	return ended[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func setAttr(set attribute.Set, key string) (string, bool) {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return "", false
	}
	return v.Emit(), true
}

func eventsNamed(span sdktrace.ReadOnlySpan, name string) []sdktrace.Event {
	var out []sdktrace.Event
	for _, ev := range span.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// eventData 解码事件的 event.data 属性。
func eventData(t require.TestingT, attrs []attribute.KeyValue) map[string]any {
	for _, kv := range attrs {
		if string(kv.Key) == AttrEventData {
			var out map[string]any
			require.NoError(t, json.Unmarshal([]byte(kv.Value.AsString()), &out))
			return out
		}
	}
	require.Fail(t, "event.data attribute missing")
	return nil
}

type recordedEvent struct {
	name  string
	attrs []attribute.KeyValue
}

// fakeSink 记录 AddEvent 调用。
type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *fakeSink) AddEvent(name string, options ...trace.EventOption) {
	cfg := trace.NewEventConfig(options...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{name: name, attrs: cfg.Attributes()})
}

func (s *fakeSink) recorded() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedEvent, len(s.events))
	copy(out, s.events)
	return out
}

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(reg, "test", zap.NewNop()), reg
}

func TestNewCollector(t *testing.T) {
	collector, _ := newTestCollector(t)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.streamChunksTotal)
	assert.NotNil(t, collector.streamErrorsTotal)
	assert.NotNil(t, collector.streamsActive)
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg, "dup", nil)

	assert.Panics(t, func() { NewCollector(reg, "dup", nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordHTTPRequest("chat.completions", 200, 100*time.Millisecond, 1024)
	collector.RecordHTTPRequest("chat.completions", 201, 50*time.Millisecond, 512)
	collector.RecordHTTPRequest("chat.completions", 429, 10*time.Millisecond, 512)
	collector.RecordHTTPRequest("completions", 0, time.Second, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("chat.completions", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("chat.completions", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("completions", "unknown")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_StreamMetrics(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.StreamOpened("chat.completions")
	collector.RecordStreamChunk("chat.completions")
	collector.RecordStreamChunk("chat.completions")
	collector.RecordStreamError("chat.completions", "cancelled")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.streamsActive.WithLabelValues("chat.completions")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.streamChunksTotal.WithLabelValues("chat.completions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.streamErrorsTotal.WithLabelValues("chat.completions", "cancelled")))

	collector.StreamClosed("chat.completions")
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.streamsActive.WithLabelValues("chat.completions")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_stream_chunks_total")
	assert.Contains(t, names, "test_streams_active")
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("chat.completions", 200, 100*time.Millisecond, 1024)
			collector.RecordStreamChunk("chat.completions")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("chat.completions", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.streamChunksTotal.WithLabelValues("chat.completions")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}

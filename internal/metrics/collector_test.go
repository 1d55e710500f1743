package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.rpcRequestsTotal)
	assert.NotNil(t, collector.toolCallsTotal)
	assert.NotNil(t, collector.sessionsActive)
	assert.NotNil(t, collector.eventsDropped)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/message", 200, 10*time.Millisecond, 128, 256)
	collector.RecordHTTPRequest("POST", "/message", 400, 1*time.Millisecond, 3, 90)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/message", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/message", "4xx")))
	assert.Greater(t, testutil.CollectAndCount(collector.httpRequestDuration), 0)
}

func TestCollector_RecordRPC(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRPCRequest("tools/call", "ok", 2*time.Millisecond)
	collector.RecordRPCRequest("tools/call", "-32000", time.Millisecond)
	collector.RecordBatch(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.rpcRequestsTotal.WithLabelValues("tools/call", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.rpcRequestsTotal.WithLabelValues("tools/call", "-32000")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.rpcBatchSize))
}

func TestCollector_RecordToolCall(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordToolCall("digits", "success", time.Millisecond)
	collector.RecordToolCall("digits", "error", time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("digits", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("digits", "error")))
}

func TestCollector_Sessions(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSessionOpened()
	collector.RecordSessionOpened()
	collector.RecordSessionClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.sessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.sessionsTotal))
}

func TestCollector_Events(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordEventQueued("tool_result")
	collector.RecordEventDelivered("heartbeat", "sse")
	collector.RecordEventsDropped("evicted", 2)
	collector.RecordEventsDropped("evicted", 0)
	collector.RecordStream("sse", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.eventsQueued.WithLabelValues("tool_result")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.eventsDelivered.WithLabelValues("heartbeat", "sse")))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.eventsDropped.WithLabelValues("evicted")))
	assert.Greater(t, testutil.CollectAndCount(collector.streamDuration), 0)
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordHTTPRequest("GET", "/", 200, time.Millisecond, 0, 0)
		collector.RecordRPCRequest("initialize", "ok", time.Millisecond)
		collector.RecordBatch(1)
		collector.RecordToolCall("echo", "success", time.Millisecond)
		collector.RecordSessionOpened()
		collector.RecordSessionClosed()
		collector.RecordEventQueued("heartbeat")
		collector.RecordEventDelivered("heartbeat", "ws")
		collector.RecordEventsDropped("queue_full", 1)
		collector.RecordStream("ws", time.Second)
	})
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 15)
			collector.RecordEventQueued("heartbeat")
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, float64(10), testutil.ToFloat64(collector.eventsQueued.WithLabelValues("heartbeat")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"}, {204, "2xx"}, {302, "3xx"}, {400, "4xx"}, {503, "5xx"}, {100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}

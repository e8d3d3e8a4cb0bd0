package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	awspkg "supply-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type recordedMetric struct {
	name string
	dims map[string]string
}

type recordingMetrics struct {
	mu      sync.Mutex
	enabled bool
	got     []recordedMetric
	done    chan struct{}
	want    int
}

func (m *recordingMetrics) add(name string, dims map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, recordedMetric{name, dims})
	if len(m.got) == m.want {
		close(m.done)
	}
}

func (m *recordingMetrics) RecordCount(_ context.Context, name string, dims map[string]string) error {
	m.add(name, dims)
	return nil
}

func (m *recordingMetrics) RecordLatency(_ context.Context, name string, _ time.Duration, dims map[string]string) error {
	m.add(name, dims)
	return nil
}

func (m *recordingMetrics) IsEnabled() bool { return m.enabled }

func (m *recordingMetrics) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.got))
	for _, r := range m.got {
		out = append(out, r.name)
	}
	return out
}

func TestMetricsMiddleware_RecordsClientErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := &recordingMetrics{enabled: true, done: make(chan struct{}), want: 4}
	r := gin.New()
	r.Use(MetricsMiddleware(m, "supply-service"))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("metrics not recorded")
	}
	assert.ElementsMatch(t, []string{
		awspkg.MetricHTTPRequests, awspkg.MetricHTTPLatency, awspkg.MetricHTTPErrors, awspkg.MetricHTTP4xx,
	}, m.names())
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, "/orders/:id", m.got[0].dims["Path"])
	assert.Equal(t, "4xx", m.got[0].dims["Status"])
}

func TestMetricsMiddleware_DisabledIsPassThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := &recordingMetrics{}
	r := gin.New()
	r.Use(MetricsMiddleware(m, "supply-service"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, m.names())
}

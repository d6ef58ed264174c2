package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("platform", "kdp"),
		attribute.String("user_id", "user_1"),
		attribute.String("operation", "get"),
	)
	require.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("user_id"), attr.Key)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSyncLogFailure(context.Background(), "kdp")
	m.RecordCacheDegraded(context.Background(), "get")
}

func TestRecordSyncLogFailureIsCollected(t *testing.T) {
	m, reader := NewForTest()

	m.RecordSyncLogFailure(context.Background(), "kdp")
	m.RecordSyncLogFailure(context.Background(), "gumroad")

	assert.Equal(t, int64(2), CounterValue(reader, "authorstack_sync_log_failures_total"))
	assert.Equal(t, int64(0), CounterValue(reader, "authorstack_cache_degraded_total"))
}

func TestHTTPMetricsObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/books/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/abc", nil))
	}

	var out dto.Metric
	require.NoError(t, m.requests.WithLabelValues("/api/books/:id", http.MethodGet, "204").Write(&out))
	assert.Equal(t, float64(3), out.GetCounter().GetValue())
}

func TestJobMetricsClassifiesErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewJobMetrics(reg)
	require.NoError(t, err)

	m.ObserveRun("analytics-aggregation", time.Second, nil)
	m.ObserveRun("analytics-aggregation", time.Second, context.DeadlineExceeded)
	m.ObserveRun("analytics-aggregation", time.Second, errors.New("boom"))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.runs.WithLabelValues("analytics-aggregation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("analytics-aggregation", JobReasonDeadlineExceeded)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("analytics-aggregation", JobReasonUnknown)))
}

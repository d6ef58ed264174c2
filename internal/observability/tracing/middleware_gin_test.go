package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var errBookMissing = errors.New("book_not_found")

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func newTracedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		SkipPaths: []string{"/health"},
		ErrorClassifier: func(err error) (string, string) {
			if errors.Is(err, errBookMissing) {
				return "not_found", "NOT_FOUND"
			}
			return "internal_error", "INTERNAL"
		},
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/books/:id", func(c *gin.Context) {
		_ = c.Error(errBookMissing)
		c.Status(http.StatusNotFound)
	})
	r.GET("/api/sales", func(c *gin.Context) {
		_ = c.Error(errors.New("mongo: no reachable servers\nstack"))
		c.Status(http.StatusInternalServerError)
	})
	return r
}

func serve(r *gin.Engine, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareSkipsConfiguredPaths(t *testing.T) {
	recorder := recordSpans(t)

	serve(newTracedEngine(), "/health")

	assert.Empty(t, recorder.Ended())
}

func TestGinMiddlewareClientErrorKeepsSpanUnset(t *testing.T) {
	recorder := recordSpans(t)

	serve(newTracedEngine(), "/api/books/b-42")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/books/:id", span.Name())
	assert.Equal(t, codes.Unset, span.Status().Code)
	assert.Empty(t, span.Events())

	attrs := spanAttrs(span)
	assert.Equal(t, "/api/books/:id", attrs["http.route"].AsString())
	assert.Equal(t, int64(http.StatusNotFound), attrs["http.status_code"].AsInt64())
	assert.Equal(t, "not_found", attrs["error.type"].AsString())
}

func TestGinMiddlewareServerErrorMarksSpan(t *testing.T) {
	recorder := recordSpans(t)

	serve(newTracedEngine(), "/api/sales")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "internal_error", spanAttrs(span)["error.type"].AsString())

	require.Len(t, span.Events(), 1)
	for _, kv := range span.Events()[0].Attributes {
		if kv.Key == "exception.message" {
			assert.Equal(t, "mongo: no reachable servers", kv.Value.AsString())
		}
	}
}

func TestGinMiddlewareNamesUnmatchedRoutes(t *testing.T) {
	recorder := recordSpans(t)

	serve(newTracedEngine(), "/nope")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET unmatched", spans[0].Name())
	_, hasErrType := spanAttrs(spans[0])["error.type"]
	assert.False(t, hasErrType)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func tracedRouter(recorder *tracetest.SpanRecorder) *gin.Engine {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	router := gin.New()
	router.Use(RequestID(), otelgin.Middleware("reservation-test", otelgin.WithTracerProvider(provider)), SpanErrorMarker())
	router.GET("/api/v1/reservations/:id", func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSpanErrorMarker(t *testing.T) {
	t.Run("success keeps status unset", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/abc", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		tracedRouter(recorder).ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "GET /api/v1/reservations/:id", spans[0].Name())
		assert.NotEqual(t, codes.Error, spans[0].Status().Code)

		requestID, ok := spanAttr(spans[0], "request_id")
		require.True(t, ok)
		assert.Equal(t, "req-123", requestID.AsString())
	})

	t.Run("4xx marks error", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tracedRouter(recorder).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/reservations/missing", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, "Not Found", spans[0].Status().Description)
	})
}

func TestTracingWithConfigDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	okRouter(TracingWithConfig(TracingConfig{Enabled: false})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

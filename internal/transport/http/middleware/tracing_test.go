package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingRecordsServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(Tracing(tp), EnrichContext())
	r.GET("/api/v1/wifi/stats", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/wifi/stats", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "GET /api/v1/wifi/stats" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	if got := rr.Body.String(); got != spans[0].SpanContext().TraceID().String() {
		t.Fatalf("expected trace id %s to be reused, got %s", spans[0].SpanContext().TraceID(), got)
	}
}

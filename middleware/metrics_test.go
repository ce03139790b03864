package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"

	"eduquiz-platform/internal/telemetry"
)

type fakeCounter struct {
	embedded.Int64Counter
	total int64
}

func (c *fakeCounter) Add(_ context.Context, n int64, _ ...metric.AddOption) {
	c.total += n
}

type fakeHistogram struct {
	embedded.Float64Histogram
	values []float64
}

func (h *fakeHistogram) Record(_ context.Context, v float64, _ ...metric.RecordOption) {
	h.values = append(h.values, v)
}

func TestMetricsMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	counter := &fakeCounter{}
	duration := &fakeHistogram{}
	m := &telemetry.Metrics{RequestCounter: counter, RequestDuration: duration}

	router := gin.New()
	router.Use(MetricsMiddleware(m))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/boom"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	if counter.total != 2 {
		t.Fatalf("requests recorded: got %d, want 2", counter.total)
	}
	if len(duration.values) != 2 {
		t.Fatalf("durations recorded: got %d, want 2", len(duration.values))
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters_Histograms_InflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Body-carrying route: response size is observed.
	r.GET("/summaries/products", func(c *gin.Context) {
		c.String(http.StatusOK, `{"products":[]}`)
	})

	// Status-only route: size stays -1 and the size histogram is skipped.
	r.DELETE("/orders/o-1", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines first so other tests in the package cannot interfere.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/summaries/products", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/summaries/monthly", "404"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summaries/products", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /summaries/products -> %d", w.Code)
	}

	// Unmatched route: the path label falls back to the raw URL.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/summaries/monthly", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /summaries/monthly -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/orders/o-1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /orders/o-1 -> %d", w.Code)
	}

	gotOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/summaries/products", "200"))
	if gotOK != baseOK+1 {
		t.Fatalf("counter /summaries/products 200 = %v; want %v", gotOK, baseOK+1)
	}

	got404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/summaries/monthly", "404"))
	if got404 != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got404, base404+1)
	}

	// Nothing still in flight once the requests finish.
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}

	// Histogram bucket counts are timing-dependent, so the routes above
	// only need to drive both the observe and the skip-on-negative-size
	// paths.
}

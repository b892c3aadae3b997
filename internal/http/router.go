// Package httpapi wires the HTTP transport (Gin) to the pipeline: the
// message-ingest webhook, the task status store, operator order actions,
// and the summary read endpoints, plus health and metrics.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/config"
	"github.com/tbourn/go-order-backend/internal/http/handlers"
	"github.com/tbourn/go-order-backend/internal/http/middleware"
	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/tasks"
)

// Deps carries the wired application components the routes depend on.
type Deps struct {
	DB        *gorm.DB
	Pool      *tasks.Pool
	Ingest    *services.IngestService
	Orders    *services.OrderService
	Summaries *services.SummaryService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given
// Gin engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Structured request logging
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// CORS posture for the dashboard: allow all when no allowlist is set.
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
			MaxAge:          12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORS.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthz(d.DB))

	mergeWindow := cfg.Sweep.MergeWindow
	if mergeWindow <= 0 {
		mergeWindow = 5 * time.Minute
	}
	webhook := &handlers.WebhookHandler{Ingest: d.Ingest, Orders: d.Orders, Pool: d.Pool, Log: log.Logger, MergeWindow: mergeWindow}
	taskH := &handlers.TaskHandler{Pool: d.Pool}
	orderH := &handlers.OrderHandler{Orders: d.Orders}
	summaryH := &handlers.SummaryHandler{Summaries: d.Summaries, Pool: d.Pool}

	r.POST("/webhook/messages", webhook.PostMessage)
	r.POST("/webhook/messages/batch", webhook.PostBatch)
	r.GET("/tasks/:id", taskH.GetTask)
	r.PUT("/orders/:id/status", orderH.UpdateStatus)

	summaries := r.Group("/summaries")
	{
		summaries.GET("/daily", summaryH.GetDaily)
		summaries.GET("/weekly", summaryH.GetWeekly)
		summaries.GET("/customers/:id", summaryH.GetCustomer)
		summaries.GET("/products", summaryH.GetProducts)
		summaries.POST("/generate", summaryH.PostGenerate)
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})
}

// healthz reports liveness plus a storage round-trip.
func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody rejects request bodies larger than n bytes.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

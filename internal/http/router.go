// Package httpapi wires the HTTP transport (Gin) to the sync services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, and CORS.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-coach-sync/internal/config"
	"github.com/tbourn/go-coach-sync/internal/http/handlers"
	"github.com/tbourn/go-coach-sync/internal/http/middleware"
)

// Services bundles the application services exposed through the gateway.
// Fields map one-to-one onto the handler interfaces so tests can substitute
// fakes per concern.
type Services struct {
	Chat     handlers.ConversationService
	ChatApp  handlers.BackgroundSetter
	Syncer   handlers.RoutineSyncer
	Routines handlers.RoutineStore
	Store    handlers.StorageWiper
}

// RegisterRoutes attaches all middleware and endpoints to the Gin engine.
// baseCtx scopes the poll loops started via the gateway, so it should be
// the process context.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. CORS
func RegisterRoutes(baseCtx context.Context, r *gin.Engine, svcs Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())

	// Attachment payloads travel base64 in message bodies; 16 MiB covers
	// short videos while still bounding memory.
	r.Use(limitBody(16 << 20))

	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	ch := handlers.NewChatHandlers(baseCtx, svcs.Chat)
	rh := handlers.NewRoutineHandlers(svcs.Syncer, svcs.Routines)
	ah := handlers.NewAppHandlers(svcs.ChatApp, svcs.Store)

	api := r.Group("/api/v1")
	{
		// Routines
		api.POST("/sync/routines", rh.SyncRoutines)
		api.GET("/routines", rh.ListRoutines)
		api.GET("/routines/:id", rh.GetRoutine)
		api.POST("/routines", rh.CreateRoutine)
		api.DELETE("/routines/:id", rh.DeleteRoutine)
		api.PUT("/routines/:id/activate", rh.ActivateRoutine)

		// Conversations
		api.POST("/conversations/:id/start", ch.StartConversation)
		api.DELETE("/conversations/:id", ch.StopConversation)
		api.GET("/conversations/:id/messages", ch.ListMessages)
		api.POST("/conversations/:id/messages", ch.SendMessage)
		api.POST("/conversations/:id/activity", ch.Activity)

		// App state
		api.POST("/app/state", ah.SetAppState)
		api.POST("/logout", ah.Logout)
	}
}

// limitBody caps the request body for all endpoints using
// http.MaxBytesReader; reads past the cap error downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

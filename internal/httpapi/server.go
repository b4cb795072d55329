// Package httpapi exposes the giveaway engine over HTTP.
//
// Public routes: /, /health, /ready and the read-only giveaway views.
// Routes that change state require an X-API-Key.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/neko/internal/domain"
)

// Service is the engine surface the API calls.
type Service interface {
	CreateEvent(ctx context.Context, req domain.CreateRequest) (domain.Event, error)
	RegisterEntry(ctx context.Context, eventID, participantID string) (bool, error)
	WithdrawEntry(ctx context.Context, eventID, participantID string) (bool, error)
	Extend(ctx context.Context, eventID, length string) (domain.Event, error)
	Cancel(ctx context.Context, eventID string) error
	ListEvent(ctx context.Context, eventID string) (domain.EventView, error)
	ListAllEvents(ctx context.Context) ([]domain.Event, error)
}

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	APIKeys []string
	Logger  *slog.Logger
}

// NewRouter wires public and authenticated routes.
func NewRouter(svc Service, db Pinger, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// Keep-alive probe.
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "I'm alive!")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	h := &handlers{svc: svc, logger: logger}

	r.GET("/giveaways", h.list)
	r.GET("/giveaways/:id", h.view)

	authGroup := r.Group("/giveaways")
	authGroup.Use(APIKeyMiddleware(opts.APIKeys))
	authGroup.POST("", h.create)
	authGroup.POST("/:id/entries", h.enter)
	authGroup.DELETE("/:id/entries/:participant", h.withdraw)
	authGroup.POST("/:id/extend", h.extend)
	authGroup.DELETE("/:id", h.cancel)

	return r
}

// NewServer wraps the router in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

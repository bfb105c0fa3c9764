package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/internal/logger"
	"fanout/pkg/health"
	"fanout/pkg/middleware"
	"fanout/pkg/ratelimit"
)

// NewRouter serves /health and /metrics, plus the API routes when handler
// is non-nil. ctx bounds background work such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, handler *Handler, registry *health.CheckerRegistry, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(constants.ServiceName, otelgin.WithFilter(tracedRoute)))
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), constants.HealthCheckTimeout)
		defer cancel()

		h := registry.Check(checkCtx)
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if handler == nil {
		return router
	}

	api := router.Group("")
	if cfg.API.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             cfg.API.RateLimit.RPS,
			Burst:           cfg.API.RateLimit.Burst,
			CleanupInterval: time.Duration(cfg.API.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(cfg.API.RateLimit.MaxAge) * time.Second,
		}
		api.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		log.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}
	handler.RegisterRoutes(api)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}

// tracedRoute keeps health checks and metric scrapes out of the trace stream.
func tracedRoute(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/metrics":
		return false
	}
	return true
}

// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"docseries/internal/domain/documents/sales"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/http/v1/handlers"
	"docseries/internal/infrastructure/http/v1/middleware"
	"docseries/internal/infrastructure/metrics"
	"docseries/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	Numbering *numbering.Service
	Admin     *numbering.Admin
	Sales     *sales.Service

	// Idempotency replays repeated POST/PUT requests. Optional.
	Idempotency middleware.IdempotencyStore

	// Health checks run by /health/ready.
	HealthChecks map[string]handlers.Check
	Version      string

	// Metrics; nil disables /metrics and request instrumentation.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer

	// Development enables gin debug mode.
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	if cfg.Registry != nil {
		router.Use(metrics.NewHTTP(cfg.Registry).Middleware())
	}
	if cfg.Gatherer != nil {
		router.GET("/metrics", metrics.Handler(cfg.Gatherer))
	}

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Operator())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerNumberingRoutes(v1.Group("/numbering"), base, cfg)
	registerDocumentRoutes(v1.Group("/documents"), base, cfg)

	return router
}

// registerNumberingRoutes registers the numbering API and its administration.
func registerNumberingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Admin != nil {
		admin := handlers.NewAdminHandler(base, cfg.Admin)

		rg.GET("/configurations", admin.ListConfigurations)
		rg.POST("/configurations", admin.SetConfiguration)
		rg.POST("/configurations/seed", admin.SeedDefaults)
		rg.GET("/configurations/:documentType/active", admin.ActiveConfiguration)

		rg.GET("/series", admin.ListSeries)
		rg.POST("/series", admin.CreateSeries)
		rg.GET("/series/:id", admin.GetSeries)

		rg.GET("/settings", admin.GetSettings)
		rg.PUT("/settings", admin.UpdateSettings)

		rg.GET("/diagnostics", admin.Diagnostics)
		rg.POST("/resync", admin.Resync)
	}

	if cfg.Numbering != nil {
		h := handlers.NewNumberingHandler(base, cfg.Numbering)

		rg.GET("/:documentType/preview", h.Preview)
		rg.POST("/:documentType/reserve", h.Reserve)
		rg.POST("/:documentType/reconcile", h.Reconcile)
	}
}

// registerDocumentRoutes registers sales document endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Sales == nil {
		return
	}
	h := handlers.NewSalesHandler(base, cfg.Sales)

	rg.GET("/:documentType", h.List)
	rg.POST("/:documentType", h.Create)
	rg.GET("/:documentType/new", h.New)
	rg.GET("/:documentType/:id", h.Get)
}

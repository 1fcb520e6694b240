// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"clinicledger/internal/core/idempotency"
	"clinicledger/internal/domain/audit"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/inventory"
	"clinicledger/internal/infrastructure/http/v1/handlers"
	"clinicledger/internal/infrastructure/http/v1/middleware"
	"clinicledger/pkg/logger"
)

// RouterConfig holds the services behind the API.
type RouterConfig struct {
	Logger *logger.Logger
	Health *handlers.HealthHandler

	Inventory  *inventory.Service
	Procedures *procedure.Service
	Billing    *billing.Service
	Audit      audit.Reader

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency idempotency.Store

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
	router.Use(middleware.Actor())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Health != nil {
		health := router.Group("/health")
		health.GET("/live", cfg.Health.Live)
		health.GET("/ready", cfg.Health.Ready)
		health.GET("/info", cfg.Health.Info)
	}

	api := router.Group("/api/v1")
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerInventoryRoutes(api, base, cfg)
	registerProcedureRoutes(api, base, cfg)
	registerInvoiceRoutes(api, base, cfg)
	registerAuditRoutes(api, base, cfg)

	return router
}

func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Inventory == nil {
		return
	}
	handler := handlers.NewInventoryHandler(base, cfg.Inventory)

	inv := rg.Group("/inventory")
	items := inv.Group("/items")
	// Static segment before /:id.
	items.GET("/low-stock", handler.LowStock)
	RegisterCatalogRoutes(items, handler)
	items.GET("/:id/reconcile", handler.Reconcile)

	inv.POST("/movements", handler.RecordMovement)
	inv.GET("/movements", handler.ListMovements)
}

func registerProcedureRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Procedures == nil {
		return
	}
	handler := handlers.NewProcedureHandler(base, cfg.Procedures)

	procedures := rg.Group("/procedures")
	procedures.GET("/by-code/:code", handler.GetByCode)
	RegisterCatalogRoutes(procedures, handler)
}

func registerInvoiceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Billing == nil {
		return
	}
	handler := handlers.NewInvoiceHandler(base, cfg.Billing)

	invoices := rg.Group("/invoices")
	invoices.GET("", handler.List)
	invoices.POST("", handler.Create)
	invoices.GET("/:id", handler.Get)
	invoices.DELETE("/:id", handler.Delete)
}

func registerAuditRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Audit == nil {
		return
	}
	handler := handlers.NewAuditHandler(base, cfg.Audit)
	rg.GET("/audit/:entityType/:id", handler.History)
}

package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler is implemented by handlers of soft-deactivated catalogs
// (inventory items, procedures).
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	SetActive(c *gin.Context)
}

// RegisterCatalogRoutes registers the standard catalog routes on group.
// Catalog entries are never deleted, only deactivated.
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.POST("/:id/active", handler.SetActive)
}

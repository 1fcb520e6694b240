package handlers

import (
	"github.com/gin-gonic/gin"

	"clinicledger/internal/domain/inventory"
	"clinicledger/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves items, movements and reconciliation.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /inventory/items
func (h *InventoryHandler) List(c *gin.Context) {
	var q dto.ItemListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.ListItems(c.Request.Context(), q.ItemFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// LowStock handles GET /inventory/items/low-stock
func (h *InventoryHandler) LowStock(c *gin.Context) {
	var q dto.LowStockQuery
	if !h.BindQuery(c, &q) {
		return
	}

	items, err := h.service.ListLowStock(c.Request.Context(), q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": items})
}

// Create handles POST /inventory/items
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.CreateItem(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// Get handles GET /inventory/items/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	itemID, ok := h.PathID(c)
	if !ok {
		return
	}

	item, err := h.service.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Update handles PUT /inventory/items/:id
func (h *InventoryHandler) Update(c *gin.Context) {
	itemID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.UpdateItem(c.Request.Context(), itemID, req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// SetActive handles POST /inventory/items/:id/active
func (h *InventoryHandler) SetActive(c *gin.Context) {
	itemID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.SetActive(c.Request.Context(), itemID, *req.Active)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Reconcile handles GET /inventory/items/:id/reconcile
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	itemID, ok := h.PathID(c)
	if !ok {
		return
	}

	report, err := h.service.Reconcile(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// RecordMovement handles POST /inventory/movements
func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	movement, item, err := h.service.RecordMovement(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.MovementResponse{Movement: movement, Item: item})
}

// ListMovements handles GET /inventory/movements
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	var q dto.MovementListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.MovementFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

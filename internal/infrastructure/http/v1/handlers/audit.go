package handlers

import (
	"github.com/gin-gonic/gin"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/domain/audit"
)

// AuditHandler exposes the change history of catalog entries.
type AuditHandler struct {
	*BaseHandler
	reader audit.Reader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, reader audit.Reader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

var auditedEntities = map[string]bool{
	audit.EntityInventoryItem: true,
	audit.EntityProcedure:     true,
}

type historyQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// History handles GET /audit/:entityType/:id
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("entityType")
	if !auditedEntities[entityType] {
		h.Error(c, apperror.NewValidation("unknown entity type").
			WithDetail("field", "entityType").
			WithDetail("value", entityType))
		return
	}
	entityID, ok := h.PathID(c)
	if !ok {
		return
	}
	var q historyQuery
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.reader.History(c.Request.Context(), entityType, entityID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/infrastructure/http/v1/dto"
)

// ProcedureHandler serves the procedure catalog.
type ProcedureHandler struct {
	*BaseHandler
	service *procedure.Service
}

// NewProcedureHandler creates a new procedure handler.
func NewProcedureHandler(base *BaseHandler, service *procedure.Service) *ProcedureHandler {
	return &ProcedureHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /procedures
func (h *ProcedureHandler) List(c *gin.Context) {
	var q dto.ProcedureListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), q.ProcedureFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /procedures
func (h *ProcedureHandler) Create(c *gin.Context) {
	var req dto.CreateProcedureRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /procedures/:id
func (h *ProcedureHandler) Get(c *gin.Context) {
	procedureID, ok := h.PathID(c)
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), procedureID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// GetByCode handles GET /procedures/by-code/:code
func (h *ProcedureHandler) GetByCode(c *gin.Context) {
	p, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Update handles PUT /procedures/:id
func (h *ProcedureHandler) Update(c *gin.Context) {
	procedureID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.UpdateProcedureRequest
	if !h.BindJSON(c, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.Update(c.Request.Context(), procedureID, patch)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// SetActive handles POST /procedures/:id/active
func (h *ProcedureHandler) SetActive(c *gin.Context) {
	procedureID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.SetActive(c.Request.Context(), procedureID, *req.Active)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

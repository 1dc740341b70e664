package handlers

import (
	"github.com/gin-gonic/gin"

	"docseries/internal/core/apperror"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/http/v1/dto"
)

// NumberingHandler serves preview, reserve and reconcile.
type NumberingHandler struct {
	*BaseHandler
	service *numbering.Service
}

// NewNumberingHandler creates a new numbering handler.
func NewNumberingHandler(base *BaseHandler, service *numbering.Service) *NumberingHandler {
	return &NumberingHandler{BaseHandler: base, service: service}
}

// Preview handles GET /numbering/:documentType/preview
func (h *NumberingHandler) Preview(c *gin.Context) {
	documentType := c.Param("documentType")
	h.OK(c, dto.PreviewResponse{
		DocumentType: documentType,
		Number:       h.service.Preview(c.Request.Context(), documentType),
	})
}

// Reserve handles POST /numbering/:documentType/reserve
func (h *NumberingHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	r, err := h.service.Reserve(c.Request.Context(), c.Param("documentType"), req.Proposed)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Reconcile handles POST /numbering/:documentType/reconcile
// A skipped reconciliation, including one for a number no stored document
// carries, is a 200 with reconciled=false.
func (h *NumberingHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	documentType := c.Param("documentType")
	resp := dto.ReconcileResponse{DocumentType: documentType, Number: req.Number, Reconciled: true}

	if err := h.service.ReconcileStored(c.Request.Context(), documentType, req.Number); err != nil {
		appErr, ok := apperror.AsAppError(err)
		if !ok || !appErr.Soft() {
			h.Error(c, err)
			return
		}
		resp.Reconciled = false
		resp.Reason, _ = appErr.Details["reason"].(string)
	}
	h.OK(c, resp)
}

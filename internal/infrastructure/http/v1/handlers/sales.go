package handlers

import (
	"github.com/gin-gonic/gin"

	"docseries/internal/core/apperror"
	"docseries/internal/core/id"
	"docseries/internal/domain/documents/sales"
	"docseries/internal/infrastructure/http/v1/dto"
)

// SalesHandler serves sales invoices, orders and quotations.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, service *sales.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service}
}

func (h *SalesHandler) documentType(c *gin.Context) (string, bool) {
	documentType := c.Param("documentType")
	if !sales.IsSalesType(documentType) {
		h.Error(c, apperror.NewNotFound("document type", documentType))
		return "", false
	}
	return documentType, true
}

// New handles GET /documents/:documentType/new
// Returns an unsaved draft carrying the previewed number.
func (h *SalesHandler) New(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	doc, err := h.service.NewDraft(c.Request.Context(), documentType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSalesDocument(doc))
}

// Create handles POST /documents/:documentType
func (h *SalesHandler) Create(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	var req dto.CreateSalesDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToDocument(documentType)
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromSalesDocument(doc))
}

// Get handles GET /documents/:documentType/:id
func (h *SalesHandler) Get(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if doc.DocumentType != documentType {
		h.Error(c, apperror.NewNotFound(documentType, docID.String()))
		return
	}
	h.OK(c, dto.FromSalesDocument(doc))
}

// List handles GET /documents/:documentType
func (h *SalesHandler) List(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	var q dto.SalesListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), q.ToFilter(documentType))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MapList(result, dto.FromSalesDocument))
}

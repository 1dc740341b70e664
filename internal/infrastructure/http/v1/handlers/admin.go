package handlers

import (
	"github.com/gin-gonic/gin"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/http/v1/dto"
)

// AdminHandler serves series, configuration, settings and maintenance endpoints.
type AdminHandler struct {
	*BaseHandler
	admin *numbering.Admin
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(base *BaseHandler, admin *numbering.Admin) *AdminHandler {
	return &AdminHandler{BaseHandler: base, admin: admin}
}

// ListSeries handles GET /numbering/series
func (h *AdminHandler) ListSeries(c *gin.Context) {
	list, err := h.admin.ListSeries(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]dto.SeriesResponse, 0, len(list))
	for _, s := range list {
		items = append(items, dto.FromSeries(s))
	}
	h.OK(c, items)
}

// GetSeries handles GET /numbering/series/:id
func (h *AdminHandler) GetSeries(c *gin.Context) {
	s, err := h.admin.GetSeries(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSeries(s))
}

// CreateSeries handles POST /numbering/series
func (h *AdminHandler) CreateSeries(c *gin.Context) {
	var req dto.CreateSeriesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.admin.CreateSeries(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromSeries(s))
}

// ListConfigurations handles GET /numbering/configurations?documentType=
func (h *AdminHandler) ListConfigurations(c *gin.Context) {
	list, err := h.admin.ListConfigurations(c.Request.Context(), c.Query("documentType"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, mapConfigs(list))
}

// SetConfiguration handles POST /numbering/configurations
func (h *AdminHandler) SetConfiguration(c *gin.Context) {
	var req dto.SetConfigurationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		if _, ok := apperror.AsAppError(err); !ok {
			err = apperror.NewValidation("invalid configuration id").WithDetail("field", "id")
		}
		h.Error(c, err)
		return
	}

	cfg, err := h.admin.SetConfiguration(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.ID == "" {
		h.Created(c, dto.FromConfig(cfg))
		return
	}
	h.OK(c, dto.FromConfig(cfg))
}

// ActiveConfiguration handles GET /numbering/configurations/:documentType/active
func (h *AdminHandler) ActiveConfiguration(c *gin.Context) {
	cfg, err := h.admin.ActiveConfiguration(c.Request.Context(), c.Param("documentType"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromConfig(cfg))
}

// SeedDefaults handles POST /numbering/configurations/seed
func (h *AdminHandler) SeedDefaults(c *gin.Context) {
	created, err := h.admin.SeedDefaults(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, mapConfigs(created))
}

// GetSettings handles GET /numbering/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	s, err := h.admin.GetSettings(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// UpdateSettings handles PUT /numbering/settings
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.admin.UpdateSettings(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Diagnostics handles GET /numbering/diagnostics
func (h *AdminHandler) Diagnostics(c *gin.Context) {
	report, err := h.admin.Diagnose(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DiagnosticsResponse{Report: report, Healthy: report.Healthy()})
}

// Resync handles POST /numbering/resync
func (h *AdminHandler) Resync(c *gin.Context) {
	var req dto.ResyncRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	results, err := h.admin.Resync(c.Request.Context(), req.DocumentType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewResyncResponse(results))
}

func mapConfigs(list []*numerator.ModuleConfig) []dto.ConfigurationResponse {
	items := make([]dto.ConfigurationResponse, 0, len(list))
	for _, cfg := range list {
		items = append(items, dto.FromConfig(cfg))
	}
	return items
}

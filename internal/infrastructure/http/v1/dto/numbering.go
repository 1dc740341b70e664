package dto

import (
	"time"

	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/domain/numbering"
)

// --- Numbering API ---

// PreviewResponse carries the number a new document would get.
// Number is empty for manual or unconfigured types.
type PreviewResponse struct {
	DocumentType string `json:"documentType"`
	Number       string `json:"number"`
}

// ReserveRequest asks for a save-time number. Proposed is usually the
// previewed number, or the user's number in manual mode.
type ReserveRequest struct {
	Proposed string `json:"proposed" binding:"max=140"`
}

// ReconcileRequest folds a stored number back into its series.
type ReconcileRequest struct {
	Number string `json:"number" binding:"required,max=140"`
}

// ReconcileResponse reports the reconciliation outcome.
type ReconcileResponse struct {
	DocumentType string `json:"documentType"`
	Number       string `json:"number"`
	Reconciled   bool   `json:"reconciled"`
	Reason       string `json:"reason,omitempty"`
}

// --- Series ---

// CreateSeriesRequest creates a series. An empty id is derived from the document type.
type CreateSeriesRequest struct {
	ID           string `json:"id" binding:"max=64"`
	DocumentType string `json:"documentType" binding:"required,max=64"`
	Start        int64  `json:"start" binding:"omitempty,min=1"`
	PadWidth     *int   `json:"padWidth" binding:"omitempty,min=0,max=18"`
}

// ToInput maps the request to the domain input.
func (r CreateSeriesRequest) ToInput() numbering.SeriesInput {
	return numbering.SeriesInput{
		ID:           r.ID,
		DocumentType: r.DocumentType,
		Start:        r.Start,
		PadWidth:     r.PadWidth,
	}
}

// SeriesResponse describes a series with its next number.
type SeriesResponse struct {
	ID           string    `json:"id"`
	DocumentType string    `json:"documentType"`
	Start        int64     `json:"start"`
	PadWidth     int       `json:"padWidth"`
	Current      int64     `json:"current"`
	Next         string    `json:"next"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromSeries creates SeriesResponse from numerator.Series.
func FromSeries(s *numerator.Series) SeriesResponse {
	return SeriesResponse{
		ID:           s.ID,
		DocumentType: s.DocumentType,
		Start:        s.Start,
		PadWidth:     s.PadWidth,
		Current:      s.Current,
		Next:         s.Preview(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// --- Configurations ---

// SetConfigurationRequest creates (no id) or updates a configuration.
type SetConfigurationRequest struct {
	ID            string  `json:"id"`
	DocumentType  string  `json:"documentType" binding:"required,max=64"`
	Name          string  `json:"name" binding:"max=128"`
	Mode          string  `json:"numberingMode"`
	IsActive      *bool   `json:"isActive"`
	DisplayPrefix *string `json:"displayPrefix" binding:"omitempty,max=32"`
	Start         *int64  `json:"start" binding:"omitempty,min=1"`
	PadWidth      *int    `json:"padWidth" binding:"omitempty,min=0,max=18"`
}

// ToInput maps the request to the domain input.
func (r SetConfigurationRequest) ToInput() (numbering.ConfigInput, error) {
	mode, err := numerator.ParseMode(r.Mode)
	if err != nil {
		return numbering.ConfigInput{}, err
	}
	in := numbering.ConfigInput{
		DocumentType:  r.DocumentType,
		Name:          r.Name,
		Mode:          mode,
		IsActive:      r.IsActive,
		DisplayPrefix: r.DisplayPrefix,
		Start:         r.Start,
		PadWidth:      r.PadWidth,
	}
	if r.ID != "" {
		cid, err := id.Parse(r.ID)
		if err != nil {
			return numbering.ConfigInput{}, err
		}
		in.ID = cid
	}
	return in, nil
}

// ConfigurationResponse describes a module configuration.
type ConfigurationResponse struct {
	ID            string    `json:"id"`
	DocumentType  string    `json:"documentType"`
	Name          string    `json:"name"`
	Mode          string    `json:"numberingMode"`
	SeriesID      string    `json:"seriesId,omitempty"`
	IsActive      bool      `json:"isActive"`
	DisplayPrefix string    `json:"displayPrefix"`
	Start         int64     `json:"start"`
	PadWidth      int       `json:"padWidth"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FromConfig creates ConfigurationResponse from numerator.ModuleConfig.
func FromConfig(c *numerator.ModuleConfig) ConfigurationResponse {
	return ConfigurationResponse{
		ID:            c.ID.String(),
		DocumentType:  c.DocumentType,
		Name:          c.Name,
		Mode:          string(c.Mode),
		SeriesID:      c.SeriesID,
		IsActive:      c.IsActive,
		DisplayPrefix: c.DisplayPrefix,
		Start:         c.Start,
		PadWidth:      c.PadWidth,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// --- Settings ---

// UpdateSettingsRequest changes the fallback counter. Omitted fields keep their value.
type UpdateSettingsRequest struct {
	InvoiceNumberPrefix    *string `json:"invoiceNumberPrefix" binding:"omitempty,max=32"`
	CurrentInvoiceNumber   *int64  `json:"currentInvoiceNumber" binding:"omitempty,min=1"`
	ManualInvoiceNumbering *bool   `json:"manualInvoiceNumbering"`
}

// ToInput maps the request to the domain input.
func (r UpdateSettingsRequest) ToInput() numbering.SettingsInput {
	return numbering.SettingsInput{
		InvoiceNumberPrefix:    r.InvoiceNumberPrefix,
		CurrentInvoiceNumber:   r.CurrentInvoiceNumber,
		ManualInvoiceNumbering: r.ManualInvoiceNumbering,
	}
}

// --- Maintenance ---

// ResyncRequest limits a resync to one document type. Empty means all.
type ResyncRequest struct {
	DocumentType string `json:"documentType" binding:"max=64"`
}

// ResyncResponse lists the visited series.
type ResyncResponse struct {
	Results  []numbering.ResyncResult `json:"results"`
	Advanced int                      `json:"advanced"`
}

// NewResyncResponse counts advanced series.
func NewResyncResponse(results []numbering.ResyncResult) ResyncResponse {
	resp := ResyncResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []numbering.ResyncResult{}
	}
	for _, r := range results {
		if r.Advanced() {
			resp.Advanced++
		}
	}
	return resp
}

// DiagnosticsResponse wraps a diagnostics report.
type DiagnosticsResponse struct {
	*numbering.Report
	Healthy bool `json:"healthy"`
}

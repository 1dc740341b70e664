package numerator

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"docseries/internal/core/apperror"
	"docseries/internal/core/id"
)

// Mode selects who supplies document numbers.
type Mode string

const (
	ModeAutomatic Mode = "Automatic"
	ModeManual    Mode = "Manual"
)

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automatic", "auto", "":
		return ModeAutomatic, nil
	case "manual":
		return ModeManual, nil
	}
	return "", apperror.NewValidation("numbering mode must be Automatic or Manual").
		WithDetail("field", "numberingMode").
		WithDetail("value", s)
}

// ModuleConfig binds a document type to a numbering mode and a series.
type ModuleConfig struct {
	ID            id.ID     `db:"id" json:"id"`
	DocumentType  string    `db:"document_type" json:"documentType" validate:"required,max=64"`
	Name          string    `db:"name" json:"name" validate:"max=128"`
	Mode          Mode      `db:"numbering_mode" json:"numberingMode" validate:"required,oneof=Automatic Manual"`
	SeriesID      string    `db:"series_id" json:"seriesId" validate:"max=64"`
	IsActive      bool      `db:"is_active" json:"isActive"`
	DisplayPrefix string    `db:"display_prefix" json:"displayPrefix" validate:"max=32"`
	Start         int64     `db:"start" json:"start" validate:"gte=1"`
	PadWidth      int       `db:"pad_width" json:"padWidth" validate:"gte=0,lte=18"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// NewModuleConfig returns an active, automatic configuration with defaults
// derived from the document type.
func NewModuleConfig(documentType string) *ModuleConfig {
	now := time.Now().UTC()
	return &ModuleConfig{
		ID:            id.New(),
		DocumentType:  documentType,
		Name:          DisplayName(documentType),
		Mode:          ModeAutomatic,
		IsActive:      true,
		DisplayPrefix: DefaultAbbreviation(documentType),
		Start:         DefaultStart,
		PadWidth:      DefaultPadWidth,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Automatic reports whether numbers are generated by the engine.
func (c *ModuleConfig) Automatic() bool {
	return c.Mode == ModeAutomatic
}

// HasSeries reports whether a series is bound.
func (c *ModuleConfig) HasSeries() bool {
	return c.SeriesID != ""
}

// SeriesPrefix is the id base a new series for this configuration starts from.
func (c *ModuleConfig) SeriesPrefix() string {
	if strings.TrimSpace(c.DisplayPrefix) == "" {
		return NormalizePrefix(DefaultAbbreviation(c.DocumentType))
	}
	return NormalizePrefix(c.DisplayPrefix)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks field constraints and that the display prefix can become a series id.
func (c *ModuleConfig) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return apperror.NewValidation("invalid numbering configuration").
				WithDetail("fields", fields)
		}
		return apperror.NewValidation("invalid numbering configuration").WithCause(err)
	}
	return ValidateSeriesID(c.SeriesPrefix())
}

package numerator

import (
	"time"

	"docseries/internal/core/apperror"
)

// Series is the durable state of one named counter. Its ID doubles as the
// prefix of every number it issues.
//
// Current is the last value issued; zero means nothing was issued yet.
// Current never decreases.
type Series struct {
	ID           string    `db:"id" json:"id"`
	DocumentType string    `db:"document_type" json:"documentType"`
	Start        int64     `db:"start" json:"start"`
	PadWidth     int       `db:"pad_width" json:"padWidth"`
	Current      int64     `db:"current" json:"current"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// NewSeries builds a validated, unstarted series.
func NewSeries(seriesID, documentType string, start int64, padWidth int) (*Series, error) {
	now := time.Now().UTC()
	s := &Series{
		ID:           seriesID,
		DocumentType: documentType,
		Start:        start,
		PadWidth:     padWidth,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the invariants that can be verified without storage.
func (s *Series) Validate() error {
	if err := ValidateSeriesID(s.ID); err != nil {
		return err
	}
	if s.Start < 1 {
		return apperror.NewValidation("start must be at least 1").
			WithDetail("field", "start").
			WithDetail("value", s.Start)
	}
	if s.PadWidth < 0 {
		return apperror.NewValidation("pad width cannot be negative").
			WithDetail("field", "padWidth").
			WithDetail("value", s.PadWidth)
	}
	return nil
}

// Started reports whether at least one value has been issued.
func (s *Series) Started() bool {
	return s.Current > 0
}

// NextValue is the value the next allocation tries first:
// start when nothing was issued yet, current+1 otherwise.
func (s *Series) NextValue() int64 {
	if !s.Started() {
		if s.Start <= 0 {
			return DefaultStart
		}
		return s.Start
	}
	return s.Current + 1
}

// Preview returns the next number without reserving it.
func (s *Series) Preview() string {
	return s.Format(s.NextValue())
}

// Format renders n with this series' prefix and padding.
func (s *Series) Format(n int64) string {
	return Pad(s.ID, n, s.PadWidth)
}

// Suffix parses the numeric part of a number issued by this series.
func (s *Series) Suffix(number string) (int64, bool) {
	return ParseSuffix(s.ID, number)
}

package numbering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
	"docseries/pkg/logger"
)

// FindingKind classifies a diagnostics finding.
type FindingKind string

const (
	FindingMissingConfig   FindingKind = "missing_config"
	FindingMultipleConfigs FindingKind = "multiple_configs"
	FindingMultipleActive  FindingKind = "multiple_active"
	FindingMissingSeries   FindingKind = "missing_series"
	FindingTypeMismatch    FindingKind = "type_mismatch"
	FindingOrphanedSeries  FindingKind = "orphaned_series"
	FindingCounterBehind   FindingKind = "counter_behind"
)

// Severity of a finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one problem found by Diagnose.
type Finding struct {
	Kind         FindingKind `json:"kind"`
	Severity     Severity    `json:"severity"`
	DocumentType string      `json:"documentType,omitempty"`
	SeriesID     string      `json:"seriesId,omitempty"`
	ConfigID     string      `json:"configId,omitempty"`
	Message      string      `json:"message"`
}

// Report is the result of Diagnose.
type Report struct {
	Findings  []Finding `json:"findings"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Healthy reports whether no finding has error severity.
func (r *Report) Healthy() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Count returns the number of findings of a kind.
func (r *Report) Count(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Diagnose inspects configurations, series and stored numbers. It only reads.
func (a *Admin) Diagnose(ctx context.Context) (*Report, error) {
	configs, err := a.configs.ListAllConfigs(ctx)
	if err != nil {
		return nil, apperror.NewDatabase("list configurations", err)
	}
	seriesList, err := a.series.ListSeries(ctx)
	if err != nil {
		return nil, apperror.NewDatabase("list series", err)
	}

	report := &Report{Findings: []Finding{}, CheckedAt: time.Now().UTC()}

	byType := make(map[string][]*numerator.ModuleConfig)
	for _, c := range configs {
		byType[c.DocumentType] = append(byType[c.DocumentType], c)
	}
	series := make(map[string]*numerator.Series, len(seriesList))
	for _, s := range seriesList {
		series[s.ID] = s
	}

	for _, documentType := range numerator.SeededDocumentTypes() {
		if len(byType[documentType]) == 0 {
			report.add(Finding{
				Kind:         FindingMissingConfig,
				Severity:     SeverityWarning,
				DocumentType: documentType,
				Message:      "no numbering configuration; numbers come from the fallback counter",
			})
		}
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	referenced := make(map[string]bool)
	for _, documentType := range types {
		list := byType[documentType]
		if len(list) > 1 {
			report.add(Finding{
				Kind:         FindingMultipleConfigs,
				Severity:     SeverityInfo,
				DocumentType: documentType,
				Message:      fmt.Sprintf("%d configurations exist", len(list)),
			})
		}
		active := 0
		for _, c := range list {
			if c.IsActive {
				active++
			}
			if c.HasSeries() {
				referenced[c.SeriesID] = true
			}
		}
		if active > 1 {
			report.add(Finding{
				Kind:         FindingMultipleActive,
				Severity:     SeverityWarning,
				DocumentType: documentType,
				Message:      fmt.Sprintf("%d active configurations; the first one created wins", active),
			})
		}

		cfg := PickActive(list)
		if !cfg.Automatic() {
			continue
		}
		if !cfg.HasSeries() {
			report.add(Finding{
				Kind:         FindingMissingSeries,
				Severity:     SeverityWarning,
				DocumentType: documentType,
				ConfigID:     cfg.ID.String(),
				Message:      "automatic configuration has no series bound",
			})
			continue
		}
		s, ok := series[cfg.SeriesID]
		if !ok {
			report.add(Finding{
				Kind:         FindingMissingSeries,
				Severity:     SeverityError,
				DocumentType: documentType,
				SeriesID:     cfg.SeriesID,
				ConfigID:     cfg.ID.String(),
				Message:      "bound series does not exist",
			})
			continue
		}
		if s.DocumentType != "" && s.DocumentType != documentType {
			report.add(Finding{
				Kind:         FindingTypeMismatch,
				Severity:     SeverityWarning,
				DocumentType: documentType,
				SeriesID:     s.ID,
				ConfigID:     cfg.ID.String(),
				Message:      fmt.Sprintf("series belongs to %s", s.DocumentType),
			})
		}

		highest, err := a.highestStored(ctx, documentType, s)
		if err != nil {
			return nil, err
		}
		if highest > s.Current {
			report.add(Finding{
				Kind:         FindingCounterBehind,
				Severity:     SeverityError,
				DocumentType: documentType,
				SeriesID:     s.ID,
				ConfigID:     cfg.ID.String(),
				Message:      fmt.Sprintf("current is %d but %s is stored", s.Current, s.Format(highest)),
			})
		}
	}

	for _, s := range seriesList {
		if !referenced[s.ID] {
			report.add(Finding{
				Kind:         FindingOrphanedSeries,
				Severity:     SeverityInfo,
				DocumentType: s.DocumentType,
				SeriesID:     s.ID,
				Message:      "series is not bound to any configuration",
			})
		}
	}

	return report, nil
}

// ResyncResult describes one series visited by Resync.
type ResyncResult struct {
	DocumentType string `json:"documentType"`
	SeriesID     string `json:"seriesId"`
	Before       int64  `json:"before"`
	After        int64  `json:"after"`
}

// Advanced reports whether the counter moved.
func (r ResyncResult) Advanced() bool {
	return r.After > r.Before
}

// Resync raises the counter of every resolved automatic series to the highest
// number stored for its document type. An empty documentType visits all types.
func (a *Admin) Resync(ctx context.Context, documentType string) ([]ResyncResult, error) {
	configs, err := a.ListConfigurations(ctx, documentType)
	if err != nil {
		return nil, err
	}
	if documentType != "" && len(configs) == 0 {
		return nil, apperror.NewConfigurationMissing(documentType)
	}

	byType := make(map[string][]*numerator.ModuleConfig)
	var types []string
	for _, c := range configs {
		if _, seen := byType[c.DocumentType]; !seen {
			types = append(types, c.DocumentType)
		}
		byType[c.DocumentType] = append(byType[c.DocumentType], c)
	}
	sort.Strings(types)

	results := make([]ResyncResult, 0, len(types))
	for _, t := range types {
		cfg := PickActive(byType[t])
		if !cfg.Automatic() || !cfg.HasSeries() {
			continue
		}
		s, err := a.series.GetSeries(ctx, cfg.SeriesID)
		if err != nil {
			if errors.Is(err, numerator.ErrSeriesNotFound) {
				logger.Warn(ctx, "resync skipped, series missing", "document_type", t, "series", cfg.SeriesID)
				continue
			}
			return results, storeError("get series", cfg.SeriesID, err)
		}

		highest, err := a.highestStored(ctx, t, s)
		if err != nil {
			return results, err
		}
		result := ResyncResult{DocumentType: t, SeriesID: s.ID, Before: s.Current, After: s.Current}
		if highest > s.Current {
			before, after, err := a.allocator.AdvanceIfGreater(ctx, s.ID, highest)
			if err != nil {
				return results, err
			}
			result.Before, result.After = before, after
			logger.Info(ctx, "series resynced", "document_type", t, "series", s.ID, "from", before, "to", after)
		}
		results = append(results, result)
	}
	return results, nil
}

// highestStored returns the largest parsable suffix among stored numbers of
// the series, or 0 when there is none.
func (a *Admin) highestStored(ctx context.Context, documentType string, s *numerator.Series) (int64, error) {
	numbers, err := a.documents.ListNumbers(ctx, documentType, s.ID)
	if err != nil {
		return 0, apperror.NewDatabase("list numbers", err).WithDetail("document_type", documentType)
	}
	var highest int64
	for _, n := range numbers {
		if v, ok := s.Suffix(n); ok && v > highest {
			highest = v
		}
	}
	return highest, nil
}

// Package memory provides an in-process implementation of every numbering
// and document store. It backs service and HTTP tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"docseries/internal/core/apperror"
	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/core/tx"
	"docseries/internal/domain"
	"docseries/internal/domain/documents/sales"
)

// Store keeps all state in maps guarded by one RWMutex.
// Values are copied on the way in and out.
type Store struct {
	mu sync.RWMutex

	series   map[string]*numerator.Series
	configs  []*numerator.ModuleConfig // creation order
	settings *numerator.AccountingSettings
	docs     []*sales.Document // creation order
	audit    []numerator.AuditRecord
}

// New creates an empty store with default fallback settings.
func New() *Store {
	return &Store{
		series:   make(map[string]*numerator.Series),
		settings: numerator.DefaultAccountingSettings(),
	}
}

var (
	_ numerator.SeriesStore   = (*Store)(nil)
	_ numerator.ConfigStore   = (*Store)(nil)
	_ numerator.SettingsStore = (*Store)(nil)
	_ numerator.AuditLog      = (*Store)(nil)
	_ sales.Repository        = (*Store)(nil)
	_ tx.Manager              = (*Store)(nil)
)

// RunInTransaction implements tx.Manager. Every single store call is
// atomic; a failing fn is not rolled back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- SeriesStore ---

func (s *Store) GetSeries(_ context.Context, seriesID string) (*numerator.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.series[seriesID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", numerator.ErrSeriesNotFound, seriesID)
	}
	c := *v
	return &c, nil
}

func (s *Store) SeriesExists(_ context.Context, seriesID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.series[seriesID]
	return ok, nil
}

func (s *Store) CreateSeries(_ context.Context, v *numerator.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[v.ID]; ok {
		return fmt.Errorf("%w: %s", numerator.ErrSeriesExists, v.ID)
	}
	c := *v
	s.series[v.ID] = &c
	return nil
}

func (s *Store) UpdateSeriesSettings(_ context.Context, seriesID string, start int64, padWidth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.series[seriesID]
	if !ok {
		return fmt.Errorf("%w: %s", numerator.ErrSeriesNotFound, seriesID)
	}
	v.Start = start
	v.PadWidth = padWidth
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AdvanceCurrent(_ context.Context, seriesID string, value int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.series[seriesID]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", numerator.ErrSeriesNotFound, seriesID)
	}
	before := v.Current
	if value > v.Current {
		v.Current = value
		v.UpdatedAt = time.Now().UTC()
	}
	return before, v.Current, nil
}

func (s *Store) ListSeries(_ context.Context) ([]*numerator.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*numerator.Series, 0, len(s.series))
	for _, v := range s.series {
		c := *v
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- ConfigStore ---

func (s *Store) ListConfigs(_ context.Context, documentType string) ([]*numerator.ModuleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*numerator.ModuleConfig
	for _, c := range s.configs {
		if c.DocumentType == documentType {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListAllConfigs(_ context.Context) ([]*numerator.ModuleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*numerator.ModuleConfig, 0, len(s.configs))
	for _, c := range s.configs {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) GetConfig(_ context.Context, configID id.ID) (*numerator.ModuleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.configs {
		if c.ID == configID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", numerator.ErrConfigNotFound, configID)
}

func (s *Store) SaveConfig(_ context.Context, cfg *numerator.ModuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cfg
	for i, c := range s.configs {
		if c.ID == cfg.ID {
			s.configs[i] = &cp
			return nil
		}
	}
	s.configs = append(s.configs, &cp)
	return nil
}

func (s *Store) DeactivateSiblings(_ context.Context, documentType string, keep id.ID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, c := range s.configs {
		if c.DocumentType == documentType && c.ID != keep && c.IsActive {
			c.IsActive = false
			c.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

// --- SettingsStore ---

func (s *Store) GetSettings(_ context.Context) (*numerator.AccountingSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := *s.settings
	return &c, nil
}

func (s *Store) SaveSettings(_ context.Context, v *numerator.AccountingSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *v
	s.settings = &c
	return nil
}

func (s *Store) NextInvoiceNumber(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number := s.settings.TakeInvoiceNumber()
	s.settings.UpdatedAt = time.Now().UTC()
	return number, nil
}

// --- AuditLog ---

func (s *Store) Record(_ context.Context, r numerator.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, r)
	return nil
}

// AuditRecords returns recorded audit entries in order.
func (s *Store) AuditRecords() []numerator.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]numerator.AuditRecord(nil), s.audit...)
}

// --- sales.Repository ---

func (s *Store) NumberExists(_ context.Context, documentType, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findByNumber(documentType, number) != nil, nil
}

func (s *Store) ListNumbers(_ context.Context, documentType, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, d := range s.docs {
		if d.DocumentType == documentType && strings.HasPrefix(d.Number, prefix) {
			out = append(out, d.Number)
		}
	}
	return out, nil
}

// InsertNumber stores a bare document carrying number. Tests use it to
// simulate documents written by another process.
func (s *Store) InsertNumber(documentType, number string) {
	doc := sales.NewDocument(documentType)
	doc.Number = number
	doc.MarkLoaded()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

func (s *Store) Create(_ context.Context, doc *sales.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByNumber(doc.DocumentType, doc.Number) != nil {
		return fmt.Errorf("%w: %s %s", numerator.ErrNumberTaken, doc.DocumentType, doc.Number)
	}
	s.docs = append(s.docs, copyDocument(doc))
	return nil
}

func (s *Store) GetByID(_ context.Context, docID id.ID) (*sales.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.docs {
		if d.ID == docID {
			return copyDocument(d), nil
		}
	}
	return nil, apperror.NewNotFound("sales document", docID.String())
}

func (s *Store) GetByNumber(_ context.Context, documentType, number string) (*sales.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d := s.findByNumber(documentType, number); d != nil {
		return copyDocument(d), nil
	}
	return nil, apperror.NewNotFound("sales document", number)
}

func (s *Store) List(_ context.Context, filter sales.ListFilter) (domain.ListResult[*sales.Document], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*sales.Document
	for _, d := range s.docs {
		if filter.DocumentType != "" && d.DocumentType != filter.DocumentType {
			continue
		}
		if filter.Party != "" && !strings.EqualFold(d.Party, filter.Party) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(d.Number), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, d)
	}

	orderDocuments(matched, filter.OrderBy)

	result := domain.ListResult[*sales.Document]{
		Items:      []*sales.Document{},
		TotalCount: int64(len(matched)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if filter.Offset >= len(matched) {
		return result, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	for _, d := range matched[filter.Offset:end] {
		result.Items = append(result.Items, copyDocument(d))
	}
	return result, nil
}

func (s *Store) findByNumber(documentType, number string) *sales.Document {
	for _, d := range s.docs {
		if d.DocumentType == documentType && d.Number == number {
			return d
		}
	}
	return nil
}

func orderDocuments(docs []*sales.Document, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")

	less := func(a, b *sales.Document) bool {
		switch field {
		case "number":
			return a.Number < b.Number
		case "date":
			return a.Date.Before(b.Date)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if desc {
			return less(docs[j], docs[i])
		}
		return less(docs[i], docs[j])
	})
}

func copyDocument(d *sales.Document) *sales.Document {
	c := *d
	c.Lines = append([]sales.Line(nil), d.Lines...)
	c.MarkLoaded()
	return &c
}

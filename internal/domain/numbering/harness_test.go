package numbering

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docseries/internal/core/numerator"
	"docseries/internal/core/types"
	"docseries/internal/domain/documents/sales"
	"docseries/internal/infrastructure/storage/memory"
)

type harness struct {
	store     *memory.Store
	allocator *Allocator
	service   *Service
	admin     *Admin
	recorder  *spyRecorder
	publisher *spyPublisher
}

func newHarness(t *testing.T, maxAttempts int) *harness {
	t.Helper()

	store := memory.New()
	rec := &spyRecorder{}
	pub := &spyPublisher{}
	alloc := NewAllocator(AllocatorConfig{Series: store, Recorder: rec, MaxAttempts: maxAttempts})

	return &harness{
		store:     store,
		allocator: alloc,
		recorder:  rec,
		publisher: pub,
		service: NewService(ServiceConfig{
			Resolver:  NewResolver(store),
			Allocator: alloc,
			Series:    store,
			Documents: store,
			Settings:  store,
			Publisher: pub,
			Recorder:  rec,
		}),
		admin: NewAdmin(AdminConfig{
			Series:    store,
			Configs:   store,
			Settings:  store,
			Documents: store,
			Allocator: alloc,
			Audit:     store,
			TxManager: store,
		}),
	}
}

// configure binds documentType to a fresh automatic series derived from prefix.
func (h *harness) configure(t *testing.T, documentType, prefix string) *numerator.ModuleConfig {
	t.Helper()
	cfg, err := h.admin.SetConfiguration(context.Background(), ConfigInput{
		DocumentType:  documentType,
		Mode:          numerator.ModeAutomatic,
		DisplayPrefix: &prefix,
	})
	require.NoError(t, err)
	return cfg
}

func (h *harness) series(t *testing.T, seriesID string) *numerator.Series {
	t.Helper()
	s, err := h.store.GetSeries(context.Background(), seriesID)
	require.NoError(t, err)
	return s
}

func newInvoice(documentType string) *sales.Document {
	doc := sales.NewDocument(documentType)
	doc.Party = "Acme Ltd"
	doc.AddLine("ITEM-1", "Widget", types.MustMoney("2"), types.MustMoney("9.99"))
	return doc
}

func (h *harness) persistFunc(doc *sales.Document) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return h.store.Create(ctx, doc)
	}
}

type spyRecorder struct {
	mu         sync.Mutex
	allocated  map[numerator.Source]int
	conflicts  int
	exhausted  int
	reconciled map[string]int
}

func (r *spyRecorder) Allocated(_ string, source numerator.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allocated == nil {
		r.allocated = make(map[numerator.Source]int)
	}
	r.allocated[source]++
}

func (r *spyRecorder) Conflict(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *spyRecorder) Exhausted(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted++
}

func (r *spyRecorder) Reconciled(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reconciled == nil {
		r.reconciled = make(map[string]int)
	}
	r.reconciled[result]++
}

type spyPublisher struct {
	mu     sync.Mutex
	events []numerator.Event
}

func (p *spyPublisher) Publish(_ context.Context, e numerator.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *spyPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/numerator"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/storage/memory"
	"docseries/internal/infrastructure/storage/postgres"
	"docseries/pkg/logger"
)

func newTestWorker(t *testing.T) (*Worker, *memory.Store) {
	t.Helper()
	store := memory.New()
	alloc := numbering.NewAllocator(numbering.AllocatorConfig{Series: store})
	admin := numbering.NewAdmin(numbering.AdminConfig{
		Series:    store,
		Configs:   store,
		Settings:  store,
		Documents: store,
		Allocator: alloc,
		Audit:     store,
		TxManager: store,
	})
	return &Worker{admin: admin, log: logger.Nop(), resyncSchedule: "*/15 * * * *"}, store
}

func TestWorker_ResyncAdvancesLaggingSeries(t *testing.T) {
	w, store := newTestWorker(t)
	ctx := context.Background()

	created, err := w.admin.SeedDefaults(ctx)
	require.NoError(t, err)
	var seriesID string
	for _, c := range created {
		if c.DocumentType == numerator.SalesOrder {
			seriesID = c.SeriesID
		}
	}
	store.InsertNumber(numerator.SalesOrder, seriesID+"1100")

	jctx, cancel := w.jobContext(ctx, "resync")
	defer cancel()
	w.resync(jctx)

	s, err := store.GetSeries(ctx, seriesID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), s.Current)
}

func TestWorker_DoctorAndCleanupWithoutBackends(t *testing.T) {
	w, _ := newTestWorker(t)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		w.doctor(ctx)
		w.cleanup(ctx)
	})
}

func TestWorker_Schedule(t *testing.T) {
	w, _ := newTestWorker(t)
	c := cron.New()

	require.NoError(t, w.Schedule(context.Background(), c))
	// resync and cleanup; doctor has no schedule
	assert.Len(t, c.Entries(), 2)

	w.doctorSchedule = "not a schedule"
	assert.Error(t, w.Schedule(context.Background(), cron.New()))
}

type capturePublisher struct{ events []numerator.Event }

func (p *capturePublisher) Publish(_ context.Context, e numerator.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestOutboxHandler(t *testing.T) {
	pub := &capturePublisher{}
	h := outboxHandler(pub, logger.Nop())

	err := h.Handle(context.Background(), &postgres.OutboxMessage{Payload: []byte(`{"name":"document.numbered","number":"INV-1001"}`)})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "INV-1001", pub.events[0].Number)

	// Malformed payloads are dropped, not retried.
	assert.NoError(t, h.Handle(context.Background(), &postgres.OutboxMessage{Payload: []byte("{")}))
	assert.Len(t, pub.events, 1)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, numerator.Event) error { return errors.New("nsqd down") }

func TestOutboxHandler_PropagatesPublishError(t *testing.T) {
	h := outboxHandler(failingPublisher{}, logger.Nop())
	err := h.Handle(context.Background(), &postgres.OutboxMessage{Payload: []byte(`{"name":"document.numbered"}`)})
	assert.Error(t, err)
}

package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	appctx "docseries/internal/core/context"
	"docseries/internal/core/numerator"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/storage/postgres"
	"docseries/pkg/logger"
)

const (
	outboxPollInterval = 2 * time.Second
	outboxRetention    = 7 * 24 * time.Hour
	jobTimeout         = 5 * time.Minute
)

// Worker runs scheduled numbering maintenance and relays the outbox.
type Worker struct {
	admin *numbering.Admin
	relay *postgres.OutboxRelay
	idem  *postgres.IdempotencyStore
	log   *logger.Logger

	resyncSchedule string
	doctorSchedule string
}

// jobContext gives a job its own trace, operator and logger.
func (w *Worker) jobContext(parent context.Context, job string) (context.Context, context.CancelFunc) {
	ctx := appctx.WithTrace(parent, appctx.NewTraceContext())
	ctx = appctx.WithOperator(ctx, "worker")
	ctx = logger.WithLogger(ctx, w.log.With("job", job))
	return context.WithTimeout(ctx, jobTimeout)
}

// Schedule registers the cron jobs on c. Empty schedules are skipped.
func (w *Worker) Schedule(ctx context.Context, c *cron.Cron) error {
	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"resync", w.resyncSchedule, w.resync},
		{"doctor", w.doctorSchedule, w.doctor},
		{"cleanup", "@hourly", w.cleanup},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		name, run := j.name, j.run
		entryID, err := c.AddFunc(j.schedule, func() {
			jctx, cancel := w.jobContext(ctx, name)
			defer cancel()
			run(jctx)
		})
		if err != nil {
			return err
		}
		w.log.Infow("job scheduled", "job", name, "schedule", j.schedule, "entry_id", entryID)
	}
	return nil
}

// resync raises counters that fell behind stored numbers.
func (w *Worker) resync(ctx context.Context) {
	results, err := w.admin.Resync(ctx, "")
	if err != nil {
		logger.Error(ctx, "resync failed", "error", err)
		return
	}
	advanced := 0
	for _, r := range results {
		if r.Advanced() {
			advanced++
		}
	}
	logger.Info(ctx, "resync finished", "series", len(results), "advanced", advanced)
}

// doctor logs diagnostics findings.
func (w *Worker) doctor(ctx context.Context) {
	report, err := w.admin.Diagnose(ctx)
	if err != nil {
		logger.Error(ctx, "diagnostics failed", "error", err)
		return
	}
	for _, f := range report.Findings {
		kv := []any{"kind", f.Kind, "document_type", f.DocumentType, "series", f.SeriesID, "message", f.Message}
		switch f.Severity {
		case numbering.SeverityError:
			logger.Error(ctx, "numbering finding", kv...)
		case numbering.SeverityWarning:
			logger.Warn(ctx, "numbering finding", kv...)
		default:
			logger.Debug(ctx, "numbering finding", kv...)
		}
	}
	logger.Info(ctx, "diagnostics finished", "findings", len(report.Findings), "healthy", report.Healthy())
}

func (w *Worker) cleanup(ctx context.Context) {
	if w.idem != nil {
		if n, err := w.idem.CleanupExpired(ctx); err != nil {
			logger.Warn(ctx, "idempotency cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "cleaned up idempotency keys", "count", n)
		}
	}
	if w.relay != nil {
		if n, err := w.relay.PurgePublished(ctx, outboxRetention); err != nil {
			logger.Warn(ctx, "outbox purge failed", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "purged outbox messages", "count", n)
		}
	}
}

// RelayOutbox polls the outbox until ctx is done.
func (w *Worker) RelayOutbox(ctx context.Context) error {
	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := w.relay.ProcessBatch(ctx)
			if err != nil {
				w.log.Warnw("outbox relay failed", "error", err)
				continue
			}
			if n > 0 {
				w.log.Debugw("outbox batch relayed", "count", n)
			}
		}
	}
}

// outboxHandler forwards outbox messages to pub; a nil pub logs and drops them.
func outboxHandler(pub numerator.Publisher, log *logger.Logger) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		e, err := msg.Event()
		if err != nil {
			// Undecodable payloads never succeed; drop them.
			log.Warnw("dropping outbox message", "id", msg.ID, "error", err)
			return nil
		}
		if pub == nil {
			log.Debugw("event", "name", e.Name, "document_type", e.DocumentType, "number", e.Number)
			return nil
		}
		return pub.Publish(ctx, e)
	})
}

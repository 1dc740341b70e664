// Package main is the entry point for the docseries background worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"docseries/internal/app"
	"docseries/internal/config"
	"docseries/internal/core/numerator"
	"docseries/internal/infrastructure/events"
	"docseries/internal/infrastructure/storage/postgres"
)

func main() {
	envFile := flag.String("env", ".env", "path to env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	var pub numerator.Publisher
	var producer *events.Producer
	if cfg.NSQ.NsqdAddr != "" {
		producer, err = events.NewProducer(cfg.NSQ.NsqdAddr, cfg.NSQ.TopicPrefix, nil)
		if err != nil {
			log.Fatalw("failed to create nsq producer", "error", err)
		}
		defer producer.Stop()
		pub = producer
	}

	w := &Worker{
		admin:          a.Admin,
		relay:          postgres.NewOutboxRelay(a.TxManager, a.TxManager, 100, outboxHandler(pub, log)),
		idem:           a.Idempotency,
		log:            log,
		resyncSchedule: cfg.Worker.ResyncSchedule,
		doctorSchedule: cfg.Worker.DoctorSchedule,
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if err := w.Schedule(ctx, c); err != nil {
		log.Fatalw("invalid job schedule", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Start()
		<-gctx.Done()
		<-c.Stop().Done()
		return nil
	})
	g.Go(func() error {
		return w.RelayOutbox(gctx)
	})

	if producer != nil {
		// Replayed document.numbered events repair counters whose in-request
		// reconciliation was lost. Reconcile never moves a counter backwards.
		consumer, err := events.NewConsumer(cfg.NSQ.NsqdAddr, cfg.NSQ.TopicPrefix, numerator.EventDocumentNumbered, cfg.NSQ.Channel, nil)
		if err != nil {
			log.Fatalw("failed to create nsq consumer", "error", err)
		}
		if err := consumer.Start(ctx, func(ctx context.Context, e numerator.Event) error {
			if e.Number != "" && e.Source != numerator.SourceManual {
				a.Numbering.Reconcile(ctx, e.DocumentType, e.Number)
			}
			return nil
		}); err != nil {
			log.Fatalw("failed to start nsq consumer", "error", err)
		}
		defer consumer.Stop()
	}

	postgres.LogPoolStats(ctx, a.Pool)
	log.Infow("worker started", "version", app.Version, "nsq", cfg.NSQ.NsqdAddr != "")
	if err := g.Wait(); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		return
	}
	log.Info("worker stopped")
}

// Package app wires configuration, storage and services for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"docseries/internal/config"
	"docseries/internal/core/numerator"
	"docseries/internal/domain/documents/sales"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/lock"
	"docseries/internal/infrastructure/metrics"
	"docseries/internal/infrastructure/storage/postgres"
	"docseries/internal/infrastructure/storage/postgres/document_repo"
	"docseries/internal/infrastructure/storage/postgres/numbering_repo"
	"docseries/pkg/logger"
)

// idempotencyTTL bounds how long a reserve or create can be replayed.
const idempotencyTTL = 24 * time.Hour

// Version is set at build time with -ldflags.
var Version = "dev"

// App holds the wired dependencies.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Redis     *redis.Client

	Registry *prometheus.Registry
	Outbox   *postgres.OutboxPublisher

	Series    *numbering_repo.SeriesRepo
	Configs   *numbering_repo.ConfigRepo
	Settings  *numbering_repo.SettingsRepo
	Documents *document_repo.SalesRepo
	Audit     *postgres.AuditService

	Allocator *numbering.Allocator
	Numbering *numbering.Service
	Admin     *numbering.Admin
	Sales     *sales.Service

	Idempotency *postgres.IdempotencyStore
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		File:        logger.FileConfig{Path: cfg.LogFile, MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30, Compress: true},
	})
}

// New connects to storage and wires the services. Close releases it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.TxManager = postgres.NewTxManager(pool)

	if cfg.Database.MigrateOnStart {
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		if len(applied) > 0 {
			log.Infow("migrations applied", "versions", applied)
		}
	}

	var locker numerator.Locker
	if cfg.RedisEnabled() {
		rc, err := lock.Connect(ctx, cfg.Redis.URL, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rc
		locker = lock.NewRedisLocker(rc, lock.RedisConfig{TTL: cfg.Numbering.LockTTL})
		log.Infow("series locks in redis", "ttl", cfg.Numbering.LockTTL)
	}

	audit, err := postgres.NewAuditService(a.TxManager)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("audit service: %w", err)
	}
	a.Audit = audit

	a.Series = numbering_repo.NewSeriesRepo(a.TxManager)
	a.Configs = numbering_repo.NewConfigRepo(a.TxManager)
	a.Settings = numbering_repo.NewSettingsRepo(a.TxManager)
	a.Documents = document_repo.NewSalesRepo(a.TxManager)
	a.Outbox = postgres.NewOutboxPublisher(a.TxManager)
	a.Idempotency = postgres.NewIdempotencyStore(a.TxManager, idempotencyTTL)

	recorder := metrics.NewRecorder(a.Registry)
	a.Allocator = numbering.NewAllocator(numbering.AllocatorConfig{
		Series:      a.Series,
		Locker:      locker,
		Recorder:    recorder,
		MaxAttempts: cfg.Numbering.MaxAttempts,
	})
	a.Numbering = numbering.NewService(numbering.ServiceConfig{
		Resolver:  numbering.NewResolver(a.Configs),
		Allocator: a.Allocator,
		Series:    a.Series,
		Documents: a.Documents,
		Settings:  a.Settings,
		Publisher: a.Outbox,
		Recorder:  recorder,
		TxManager: a.TxManager,
	})
	a.Admin = numbering.NewAdmin(numbering.AdminConfig{
		Series:    a.Series,
		Configs:   a.Configs,
		Settings:  a.Settings,
		Documents: a.Documents,
		Allocator: a.Allocator,
		Audit:     a.Audit,
		TxManager: a.TxManager,
	})
	a.Sales = sales.NewService(a.Documents, a.Numbering, a.TxManager)

	return a, nil
}

// Ping checks every connected backend.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warnw("redis close failed", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

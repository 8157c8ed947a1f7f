package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/observability"
	"github.com/odyssey-erp/ledger/internal/platform/cache"
	"github.com/odyssey-erp/ledger/internal/platform/db"
	"github.com/odyssey-erp/ledger/internal/shared"
)

// Runtime holds the long-lived resources shared by the server, worker, and CLI.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Locker  *cache.Locker
	Metrics *observability.Metrics
	Ledger  *ledger.Ledger
}

// BootstrapOptions toggles optional startup steps.
type BootstrapOptions struct {
	// Migrate applies pending schema migrations before the ledger is built.
	Migrate bool
	// Metrics receives posting outcomes. Nil disables them.
	Metrics *observability.Metrics
}

// Bootstrap connects the configured stores and builds the ledger facade. Redis
// is optional: when it is unreachable the ledger runs without a report cache.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, opts BootstrapOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: opts.Metrics}

	var repo accounting.Repository
	var audit journals.AuditPort
	switch cfg.LedgerStore {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		if opts.Migrate {
			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				rt.Close()
				return nil, err
			}
			if len(applied) > 0 {
				logger.Info("migrations applied", slog.Any("files", applied))
			}
		}
		repo = accounting.NewPostgresRepository(pool)
		audit = shared.NewAuditLogger(pool)
	default:
		repo = accounting.NewMemoryRepository()
		audit = shared.NewLogAuditor(logger.With(slog.String("component", "audit")))
	}

	var reportCache *reports.Cache
	if cfg.CacheEnabled || cfg.IntegrityCron != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, running without report cache", slog.Any("error", err))
		} else {
			rt.Redis = client
			rt.Locker = cache.NewLocker(client)
			if cfg.CacheEnabled {
				reportCache = reports.NewCache(client, cfg.ReportCacheTTL)
			}
		}
	}

	options := ledger.Options{
		Logger:          logger,
		Audit:           audit,
		Cache:           reportCache,
		DefaultCurrency: cfg.LedgerDefaultCurrency,
	}
	if opts.Metrics != nil {
		options.Observer = opts.Metrics
	}
	rt.Ledger = ledger.Build(repo, options)
	return rt, nil
}

// Ready pings every connected store.
func (rt *Runtime) Ready(ctx context.Context) error {
	if rt.Pool != nil {
		if err := rt.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases every connection.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}

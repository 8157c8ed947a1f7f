package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/ledger/internal/jobs"
	"github.com/odyssey-erp/ledger/internal/platform/cache"
)

// ErrIntegrity reports that at least one tenant failed the integrity check.
var ErrIntegrity = errors.New("gl integrity: ledger inconsistent")

const integrityLockTTL = 5 * time.Minute

// IntegrityChecker is the slice of the ledger the job needs.
type IntegrityChecker interface {
	Tenants(ctx context.Context) ([]uuid.UUID, error)
	CheckIntegrity(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.IntegrityReport, error)
}

// Locker serialises runs for the same tenant across workers.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// GLIntegrityJob checks that every tenant's trial balance balances and that
// stored balances match posted history.
type GLIntegrityJob struct {
	Checker     IntegrityChecker
	Locker      Locker
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
	clock       func() time.Time
}

// NewGLIntegrityJob constructs the job handler. locker may be nil.
func NewGLIntegrityJob(checker IntegrityChecker, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Checker:     checker,
		Locker:      locker,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: 4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity job for an Asynq task.
func (j *GLIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	if errors.Is(err, ErrIntegrity) {
		// Retrying cannot repair the books.
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run checks the tenants selected by payload and returns one report per tenant
// that was checked. Tenants locked by another worker are skipped.
func (j *GLIntegrityJob) Run(ctx context.Context, payload GLIntegrityPayload) (out []reports.IntegrityReport, resultErr error) {
	if j == nil || j.Checker == nil {
		return nil, errors.New("gl integrity: dependencies not configured")
	}
	tracker := j.metrics().Track(TaskGLIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	asOf, err := payload.Date(j.now())
	if err != nil {
		return nil, fmt.Errorf("gl integrity: invalid as_of %q: %w", payload.AsOf, err)
	}
	tenants, err := j.resolveTenants(ctx, payload)
	if err != nil {
		j.log().Error("resolve tenants", slog.Any("error", err))
		return nil, err
	}
	if len(tenants) == 0 {
		j.log().Info("no tenants to check")
		return nil, nil
	}

	var mu sync.Mutex
	failed := 0
	g, gctx := errgroup.WithContext(ctx)
	if j.Concurrency > 0 {
		g.SetLimit(j.Concurrency)
	}
	for _, tenantID := range tenants {
		g.Go(func() error {
			var report reports.IntegrityReport
			err := j.withLock(gctx, tenantID, func(ctx context.Context) error {
				var err error
				report, err = j.Checker.CheckIntegrity(ctx, tenantID, asOf)
				return err
			})
			if errors.Is(err, cache.ErrLockHeld) {
				j.log().Info("tenant check already running", slog.String("tenant_id", tenantID.String()))
				return nil
			}
			if err != nil {
				return fmt.Errorf("gl integrity: tenant %s: %w", tenantID, err)
			}
			j.record(report)
			mu.Lock()
			defer mu.Unlock()
			out = append(out, report)
			if !report.OK() {
				failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		j.log().Error("integrity run", slog.Any("error", err))
		return out, err
	}

	j.log().Info("integrity run complete",
		slog.String("as_of", asOf.Format(time.DateOnly)),
		slog.Int("tenants", len(out)),
		slog.Int("failed", failed))
	if failed > 0 {
		return out, fmt.Errorf("%w: %d of %d tenants", ErrIntegrity, failed, len(out))
	}
	return out, nil
}

func (j *GLIntegrityJob) withLock(ctx context.Context, tenantID uuid.UUID, fn func(context.Context) error) error {
	if j.Locker == nil {
		return fn(ctx)
	}
	return j.Locker.WithLock(ctx, "ledger:integrity:"+tenantID.String(), integrityLockTTL, fn)
}

func (j *GLIntegrityJob) record(report reports.IntegrityReport) {
	if report.OK() {
		return
	}
	if !report.Balanced() {
		j.metrics().AddIntegrityFailures("trial_balance", 1)
	}
	j.metrics().AddIntegrityFailures("balance_drift", len(report.Drift))
	for _, d := range report.Drift {
		j.log().Error("balance drift",
			slog.String("tenant_id", report.TenantID.String()),
			slog.String("account", d.Code),
			slog.String("stored", d.Stored.String()),
			slog.String("derived", d.Derived.String()))
	}
}

func (j *GLIntegrityJob) resolveTenants(ctx context.Context, payload GLIntegrityPayload) ([]uuid.UUID, error) {
	id, scoped, err := payload.Tenant()
	if err != nil {
		return nil, fmt.Errorf("gl integrity: invalid tenant %q: %w", payload.TenantID, err)
	}
	if scoped {
		return []uuid.UUID{id}, nil
	}
	return j.Checker.Tenants(ctx)
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *GLIntegrityJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

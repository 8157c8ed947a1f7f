package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// Service computes financial statements from posted journal history. It never writes.
type Service struct {
	repo   accounting.Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the reporting engine.
func NewService(repo accounting.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// WithCache enables Redis caching of rendered reports.
func (s *Service) WithCache(cache *Cache) { s.cache = cache }

// Invalidate drops the tenant's cached reports.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return s.cache.Invalidate(ctx, tenantID)
}

// TrialBalance lists every leaf balance built from posted entries dated on or before asOf.
func (s *Service) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	if asOf.IsZero() {
		return TrialBalance{}, shared.Validation("trial balance", "as-of date is required")
	}
	asOf = accounting.DateOnly(asOf)
	return fetch(ctx, s, tenantID, []string{"tb", asOf.Format(time.DateOnly)}, func(ctx context.Context) (TrialBalance, error) {
		leaves, err := s.load(ctx, tenantID, accounting.ActivityFilter{To: &asOf})
		if err != nil {
			return TrialBalance{}, err
		}
		tb := BuildTrialBalance(asOf, leaves)
		if !tb.Balanced() {
			s.logger.Error("trial balance out of balance",
				slog.String("tenant_id", tenantID.String()),
				slog.String("debit", tb.TotalDebit.String()),
				slog.String("credit", tb.TotalCredit.String()))
		}
		return tb, nil
	})
}

// ProfitAndLoss sums income and expense activity of posted entries dated within [from, to].
func (s *Service) ProfitAndLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (ProfitAndLoss, error) {
	if from.IsZero() || to.IsZero() {
		return ProfitAndLoss{}, shared.Validation("profit and loss", "from and to dates are required")
	}
	from, to = accounting.DateOnly(from), accounting.DateOnly(to)
	if from.After(to) {
		return ProfitAndLoss{}, shared.Validation("profit and loss", "from %s is after to %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	parts := []string{"pl", from.Format(time.DateOnly), to.Format(time.DateOnly)}
	return fetch(ctx, s, tenantID, parts, func(ctx context.Context) (ProfitAndLoss, error) {
		leaves, err := s.load(ctx, tenantID, accounting.ActivityFilter{From: &from, To: &to})
		if err != nil {
			return ProfitAndLoss{}, err
		}
		return BuildProfitAndLoss(from, to, leaves), nil
	})
}

// BalanceSheet reports cumulative asset, liability, and equity balances as of a date.
func (s *Service) BalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
	if asOf.IsZero() {
		return BalanceSheet{}, shared.Validation("balance sheet", "as-of date is required")
	}
	asOf = accounting.DateOnly(asOf)
	return fetch(ctx, s, tenantID, []string{"bs", asOf.Format(time.DateOnly)}, func(ctx context.Context) (BalanceSheet, error) {
		leaves, err := s.load(ctx, tenantID, accounting.ActivityFilter{To: &asOf})
		if err != nil {
			return BalanceSheet{}, err
		}
		return BuildBalanceSheet(asOf, leaves), nil
	})
}

// load joins the chart's leaves with posted activity from one snapshot.
func (s *Service) load(ctx context.Context, tenantID uuid.UUID, filter accounting.ActivityFilter) ([]AccountBalance, error) {
	var out []AccountBalance
	err := s.repo.ReadSnapshot(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		activity, err := tx.PostedActivity(ctx, filter)
		if err != nil {
			return err
		}
		byAccount := make(map[int64]accounting.AccountActivity, len(activity))
		for _, a := range activity {
			byAccount[a.AccountID] = a
		}
		out = make([]AccountBalance, 0, len(accounts))
		for _, acc := range accounts {
			if acc.IsGroup {
				continue
			}
			row := AccountBalance{
				AccountID: acc.ID,
				Code:      acc.Code,
				Name:      acc.Name,
				Type:      acc.Type,
				Debit:     decimal.Zero,
				Credit:    decimal.Zero,
			}
			if a, ok := byAccount[acc.ID]; ok {
				row.Debit, row.Credit = a.Debit, a.Credit
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, shared.Storage("load report", err)
	}
	return out, nil
}

// fetch serves a report from the cache when one is configured. The version is
// read before the snapshot so a posting that commits mid-build orphans the entry.
func fetch[T any](ctx context.Context, s *Service, tenantID uuid.UUID, parts []string, build func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return build(ctx)
	}
	key, err := s.cache.BuildKey(ctx, tenantID, parts...)
	if err != nil {
		s.logger.Warn("report cache key", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
		return build(ctx)
	}
	var out T
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return build(ctx)
	})
	if err != nil {
		// Errors from build are already classified; anything else is Redis.
		if shared.IsBusiness(err) || errors.Is(err, shared.ErrStorage) || ctx.Err() != nil {
			return out, err
		}
		s.logger.Warn("report cache fetch", slog.String("key", key), slog.Any("error", err))
		return build(ctx)
	}
	return out, nil
}

package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// BalanceDrift describes a leaf whose stored balance disagrees with its posted lines.
type BalanceDrift struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Stored    decimal.Decimal `json:"stored"`
	Derived   decimal.Decimal `json:"derived"`
}

// IntegrityReport is the outcome of one tenant integrity check.
type IntegrityReport struct {
	TenantID    uuid.UUID       `json:"tenant_id"`
	AsOf        time.Time       `json:"as_of"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Drift       []BalanceDrift  `json:"drift,omitempty"`
}

// Balanced reports whether the trial balance columns agree.
func (r IntegrityReport) Balanced() bool { return r.TotalDebit.Equal(r.TotalCredit) }

// OK reports whether every check passed.
func (r IntegrityReport) OK() bool { return r.Balanced() && len(r.Drift) == 0 }

// Integrity re-derives every leaf balance from the full posted history and
// compares it with the stored balance, all inside one snapshot. It bypasses
// the cache.
func (s *Service) Integrity(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (IntegrityReport, error) {
	if asOf.IsZero() {
		return IntegrityReport{}, shared.Validation("integrity", "as-of date is required")
	}
	asOf = accounting.DateOnly(asOf)
	out := IntegrityReport{TenantID: tenantID, AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	err := s.repo.ReadSnapshot(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		list, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		all, err := tx.PostedActivity(ctx, accounting.ActivityFilter{})
		if err != nil {
			return err
		}
		upTo, err := tx.PostedActivity(ctx, accounting.ActivityFilter{To: &asOf})
		if err != nil {
			return err
		}
		for _, a := range upTo {
			out.TotalDebit = out.TotalDebit.Add(a.Debit)
			out.TotalCredit = out.TotalCredit.Add(a.Credit)
		}
		derived := make(map[int64]accounting.AccountActivity, len(all))
		for _, a := range all {
			derived[a.AccountID] = a
		}
		for _, acc := range list {
			if acc.IsGroup {
				continue
			}
			want := decimal.Zero
			if a, ok := derived[acc.ID]; ok {
				want = acc.Type.SignedDelta(a.Debit, a.Credit)
			}
			if !acc.Balance.Equal(want) {
				out.Drift = append(out.Drift, BalanceDrift{AccountID: acc.ID, Code: acc.Code, Stored: acc.Balance, Derived: want})
			}
		}
		return nil
	})
	if err != nil {
		return IntegrityReport{}, shared.Storage("integrity", err)
	}
	if !out.OK() {
		s.logger.Error("integrity mismatch",
			slog.String("tenant_id", tenantID.String()),
			slog.Bool("balanced", out.Balanced()),
			slog.Int("drift", len(out.Drift)))
	}
	return out, nil
}

// Tenants lists every tenant with a chart.
func (s *Service) Tenants(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.ListTenants(ctx)
	if err != nil {
		return nil, shared.Storage("list tenants", err)
	}
	return ids, nil
}

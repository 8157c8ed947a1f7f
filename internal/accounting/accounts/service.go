package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// Service maintains the chart of accounts and exposes current balances.
type Service struct {
	repo        accounting.Repository
	logger      *slog.Logger
	currency    string
	chart       func() ([]ChartNode, error)
	invalidator Invalidator
}

// Invalidator drops tenant-scoped report caches after the chart changes.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// NewService constructs the account directory.
func NewService(repo accounting.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, currency: accounting.DefaultCurrency, chart: DefaultChart}
}

// WithDefaultCurrency sets the currency applied when an account omits one.
func (s *Service) WithDefaultCurrency(code string) {
	if normalized, ok := accounting.NormalizeCurrency(code); ok {
		s.currency = normalized
	}
}

// WithChart overrides the template used by InitializeChart.
func (s *Service) WithChart(chart func() ([]ChartNode, error)) {
	if chart != nil {
		s.chart = chart
	}
}

// WithInvalidator registers the report cache invalidator.
func (s *Service) WithInvalidator(inv Invalidator) { s.invalidator = inv }

func (s *Service) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("report cache invalidate", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
	}
}

// List returns the tenant's chart parent-before-child, siblings by code, with
// group balances derived from their descendants.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]accounting.Account, error) {
	var out []accounting.Account
	err := s.repo.ReadSnapshot(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		list, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		tree := NewTree(list)
		totals := tree.Rollup(StoredBalance)
		out = tree.Ordered()
		for i := range out {
			out[i].Balance = totals[out[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, shared.Storage("list accounts", err)
	}
	return out, nil
}

// Create adds a single account to the tenant's chart.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in accounting.AccountInput) (accounting.Account, error) {
	in, err := s.normalize(in)
	if err != nil {
		return accounting.Account{}, err
	}
	var created accounting.Account
	err = s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		created, err = s.create(ctx, tx, in)
		return err
	})
	if err != nil {
		return accounting.Account{}, shared.Storage("create account", err)
	}
	s.invalidate(ctx, tenantID)
	s.logger.Info("account created",
		slog.String("tenant_id", tenantID.String()),
		slog.Int64("account_id", created.ID),
		slog.String("code", created.Code))
	return created, nil
}

func (s *Service) create(ctx context.Context, tx accounting.TxRepository, in accounting.AccountInput) (accounting.Account, error) {
	if in.ParentID != nil {
		parent, err := tx.GetAccount(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return accounting.Account{}, shared.Validation("create account", "parent account %d does not exist", *in.ParentID)
			}
			return accounting.Account{}, err
		}
		if !parent.IsGroup {
			return accounting.Account{}, shared.Validation("create account", "parent account %s is not a group", parent.Code)
		}
		if parent.Type != in.Type {
			return accounting.Account{}, shared.Validation("create account", "account type %s differs from parent %s type %s", in.Type, parent.Code, parent.Type)
		}
	}
	return tx.InsertAccount(ctx, in)
}

func (s *Service) normalize(in accounting.AccountInput) (accounting.AccountInput, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Type = accounting.AccountType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	if in.Code == "" {
		return in, shared.Validation("create account", "code is required")
	}
	if in.Name == "" {
		return in, shared.Validation("create account", "name is required")
	}
	if !in.Type.Valid() {
		return in, shared.Validation("create account", "unknown account type %q", in.Type)
	}
	if in.Currency == "" {
		in.Currency = s.currency
	}
	currency, ok := accounting.NormalizeCurrency(in.Currency)
	if !ok {
		return in, shared.Validation("create account", "unknown currency %q", in.Currency)
	}
	in.Currency = currency
	return in, nil
}

// InitializeChart seeds an empty tenant with the standard chart.
func (s *Service) InitializeChart(ctx context.Context, tenantID uuid.UUID) ([]accounting.Account, error) {
	nodes, err := s.chart()
	if err != nil {
		return nil, err
	}
	var created []accounting.Account
	err = s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		n, err := tx.CountAccounts(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return shared.Conflict("initialize chart", "tenant already has %d accounts", n)
		}
		created = created[:0]
		return s.seed(ctx, tx, nodes, nil, &created)
	})
	if err != nil {
		return nil, shared.Storage("initialize chart", err)
	}
	s.invalidate(ctx, tenantID)
	s.logger.Info("chart of accounts initialised",
		slog.String("tenant_id", tenantID.String()),
		slog.Int("accounts", len(created)))
	return created, nil
}

func (s *Service) seed(ctx context.Context, tx accounting.TxRepository, nodes []ChartNode, parentID *int64, out *[]accounting.Account) error {
	for _, node := range nodes {
		in, err := s.normalize(accounting.AccountInput{
			Code:     node.Code,
			Name:     node.Name,
			Type:     node.Type,
			ParentID: parentID,
			IsGroup:  node.Group,
		})
		if err != nil {
			return err
		}
		account, err := s.create(ctx, tx, in)
		if err != nil {
			return err
		}
		*out = append(*out, account)
		id := account.ID
		if err := s.seed(ctx, tx, node.Children, &id, out); err != nil {
			return err
		}
	}
	return nil
}

// Balance returns a leaf's running balance or the recursive sum of a group's leaves.
func (s *Service) Balance(ctx context.Context, tenantID uuid.UUID, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.repo.ReadSnapshot(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.IsGroup {
			balance = account.Balance
			return nil
		}
		list, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		balance = NewTree(list).Rollup(StoredBalance)[accountID]
		return nil
	})
	if err != nil {
		return decimal.Zero, shared.Storage("account balance", err)
	}
	return balance, nil
}

// ApplyPosting adjusts a leaf's stored balance by a natural-sign delta. It is the
// single mutation point for balances and only runs inside the caller's unit.
func (s *Service) ApplyPosting(ctx context.Context, tx accounting.TxRepository, accountID int64, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	return tx.AddAccountBalance(ctx, accountID, delta)
}

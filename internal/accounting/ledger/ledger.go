// Package ledger is the tenant-scoped entry point to the accounting subsystem.
// It only delegates; every rule lives in the accounts, journals, and reports packages.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
)

// Options carries the optional collaborators used by Build.
type Options struct {
	Logger          *slog.Logger
	Audit           journals.AuditPort
	Cache           *reports.Cache
	Observer        journals.Observer
	DefaultCurrency string
	Now             func() time.Time
}

// Ledger composes the account directory, journal engine, and reporting engine.
type Ledger struct {
	accounts *accounts.Service
	journals *journals.Service
	reports  *reports.Service
}

// New wraps already constructed services.
func New(accountSvc *accounts.Service, journalSvc *journals.Service, reportSvc *reports.Service) *Ledger {
	return &Ledger{accounts: accountSvc, journals: journalSvc, reports: reportSvc}
}

// Build constructs every service over repo and wires posting invalidation into
// the report cache.
func Build(repo accounting.Repository, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	accountSvc := accounts.NewService(repo, logger.With(slog.String("component", "accounts")))
	if opts.DefaultCurrency != "" {
		accountSvc.WithDefaultCurrency(opts.DefaultCurrency)
	}
	reportSvc := reports.NewService(repo, logger.With(slog.String("component", "reports")))
	if opts.Cache != nil {
		reportSvc.WithCache(opts.Cache)
	}
	journalSvc := journals.NewService(repo, accountSvc, opts.Audit, logger.With(slog.String("component", "journals")))
	journalSvc.WithNow(opts.Now)
	accountSvc.WithInvalidator(reportSvc)
	journalSvc.WithInvalidator(reportSvc)
	if opts.Observer != nil {
		journalSvc.WithObserver(opts.Observer)
	}
	return New(accountSvc, journalSvc, reportSvc)
}

// ListAccounts returns the tenant's chart with rolled-up group balances.
func (l *Ledger) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]accounting.Account, error) {
	return l.accounts.List(ctx, tenantID)
}

// CreateAccount adds one account to the tenant's chart.
func (l *Ledger) CreateAccount(ctx context.Context, tenantID uuid.UUID, in accounting.AccountInput) (accounting.Account, error) {
	return l.accounts.Create(ctx, tenantID, in)
}

// InitializeChartOfAccounts seeds the standard chart into an empty tenant.
func (l *Ledger) InitializeChartOfAccounts(ctx context.Context, tenantID uuid.UUID) ([]accounting.Account, error) {
	return l.accounts.InitializeChart(ctx, tenantID)
}

// GetAccountBalance returns the current natural-sign balance of an account.
func (l *Ledger) GetAccountBalance(ctx context.Context, tenantID uuid.UUID, accountID int64) (decimal.Decimal, error) {
	return l.accounts.Balance(ctx, tenantID, accountID)
}

// CreateJournalEntry validates and stores a draft entry.
func (l *Ledger) CreateJournalEntry(ctx context.Context, tenantID uuid.UUID, in journals.EntryInput, createdBy string) (accounting.JournalEntry, error) {
	return l.journals.Create(ctx, tenantID, in, createdBy)
}

// PostJournalEntry applies a draft to the balances.
func (l *Ledger) PostJournalEntry(ctx context.Context, tenantID uuid.UUID, journalID int64) (accounting.JournalEntry, error) {
	return l.journals.Post(ctx, tenantID, journalID)
}

// VoidJournalEntry cancels a draft.
func (l *Ledger) VoidJournalEntry(ctx context.Context, tenantID uuid.UUID, journalID int64) (accounting.JournalEntry, error) {
	return l.journals.Void(ctx, tenantID, journalID)
}

// ReverseJournalEntry drafts the mirror image of a posted entry.
func (l *Ledger) ReverseJournalEntry(ctx context.Context, tenantID uuid.UUID, in journals.ReverseInput) (accounting.JournalEntry, error) {
	return l.journals.Reverse(ctx, tenantID, in)
}

// GetJournalEntry loads one entry with its lines.
func (l *Ledger) GetJournalEntry(ctx context.Context, tenantID uuid.UUID, journalID int64) (accounting.JournalEntry, error) {
	return l.journals.Get(ctx, tenantID, journalID)
}

// ListJournalEntries lists entries matching filter.
func (l *Ledger) ListJournalEntries(ctx context.Context, tenantID uuid.UUID, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	return l.journals.List(ctx, tenantID, filter)
}

// GetTrialBalance reports every leaf balance as of a date.
func (l *Ledger) GetTrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.TrialBalance, error) {
	return l.reports.TrialBalance(ctx, tenantID, asOf)
}

// GetProfitAndLoss reports income and expense flow over [from, to].
func (l *Ledger) GetProfitAndLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (reports.ProfitAndLoss, error) {
	return l.reports.ProfitAndLoss(ctx, tenantID, from, to)
}

// GetBalanceSheet reports the financial position as of a date.
func (l *Ledger) GetBalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.BalanceSheet, error) {
	return l.reports.BalanceSheet(ctx, tenantID, asOf)
}

// CheckIntegrity verifies that the trial balance balances and stored balances
// match posted history.
func (l *Ledger) CheckIntegrity(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (reports.IntegrityReport, error) {
	return l.reports.Integrity(ctx, tenantID, asOf)
}

// Tenants lists every tenant that owns a chart.
func (l *Ledger) Tenants(ctx context.Context) ([]uuid.UUID, error) {
	return l.reports.Tenants(ctx)
}

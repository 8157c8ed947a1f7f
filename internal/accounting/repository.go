package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository opens tenant-scoped units of work. No unit ever spans tenants.
type Repository interface {
	// WithTx runs fn in an all-or-nothing read-write unit. When fn returns an
	// error nothing it wrote becomes visible.
	WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error
	// ReadSnapshot runs fn against a consistent point-in-time view that never
	// observes a partially applied unit and never blocks writers.
	ReadSnapshot(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error
	// ListTenants returns every tenant that owns at least one account.
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
}

// TxRepository exposes the storage operations available inside a unit. Every
// method is implicitly scoped to the unit's tenant.
type TxRepository interface {
	TenantID() uuid.UUID

	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	CountAccounts(ctx context.Context) (int, error)
	InsertAccount(ctx context.Context, in AccountInput) (Account, error)
	// LockAccounts loads and row-locks the given accounts in ascending id order
	// until the unit ends. Missing ids are absent from the result.
	LockAccounts(ctx context.Context, ids []int64) (map[int64]Account, error)
	// AddAccountBalance atomically adds delta to a leaf account's stored balance.
	AddAccountBalance(ctx context.Context, id int64, delta decimal.Decimal) error

	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	GetJournalEntry(ctx context.Context, id int64) (JournalEntry, error)
	// GetJournalEntryForUpdate loads the latest committed entry and locks it until the unit ends.
	GetJournalEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	UpdateJournalStatus(ctx context.Context, id int64, status JournalStatus, at time.Time) error
	ListJournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)

	// PostedActivity sums lines of posted entries whose date lies in the window, per account.
	PostedActivity(ctx context.Context, filter ActivityFilter) ([]AccountActivity, error)
}

package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

func seedCash(t *testing.T, repo *MemoryRepository, tenant uuid.UUID) Account {
	t.Helper()
	var cash Account
	err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		var err error
		cash, err = tx.InsertAccount(ctx, AccountInput{Code: "1010", Name: "Cash", Type: AccountTypeAsset, Currency: "USD"})
		return err
	})
	require.NoError(t, err)
	return cash
}

func TestMemoryWithTxDiscardsFailedUnit(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	cash := seedCash(t, repo, tenant)

	boom := errors.New("boom")
	err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockAccounts(ctx, []int64{cash.ID}); err != nil {
			return err
		}
		if err := tx.AddAccountBalance(ctx, cash.ID, decimal.NewFromInt(10)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		got, err := tx.GetAccount(ctx, cash.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestMemorySnapshotIgnoresLaterCommits(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	cash := seedCash(t, repo, tenant)

	err := repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		werr := repo.WithTx(ctx, tenant, func(ctx context.Context, w TxRepository) error {
			if _, err := w.LockAccounts(ctx, []int64{cash.ID}); err != nil {
				return err
			}
			return w.AddAccountBalance(ctx, cash.ID, decimal.NewFromInt(5))
		})
		require.NoError(t, werr)
		got, err := tx.GetAccount(ctx, cash.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.IsZero(), "snapshot must not observe the later unit")
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryReadSnapshotRejectsWrites(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	cash := seedCash(t, repo, tenant)

	err := repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		return tx.AddAccountBalance(ctx, cash.ID, decimal.NewFromInt(1))
	})
	require.Error(t, err)
}

func TestMemoryTenantsAreIsolated(t *testing.T) {
	repo := NewMemoryRepository()
	a, b := uuid.New(), uuid.New()
	cash := seedCash(t, repo, a)

	err := repo.ReadSnapshot(context.Background(), b, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.GetAccount(ctx, cash.ID)
		require.ErrorIs(t, err, shared.ErrNotFound)
		n, err := tx.CountAccounts(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	tenants, err := repo.ListTenants(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a}, tenants)
}

func TestMemoryPostedActivityHonoursWindow(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	cash := seedCash(t, repo, tenant)
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		for _, date := range []time.Time{jan, feb} {
			e, err := tx.InsertJournalEntry(ctx, JournalEntry{
				Date:   date,
				Status: JournalStatusDraft,
				Lines:  []JournalLine{{AccountID: cash.ID, Debit: decimal.NewFromInt(3), Credit: decimal.Zero}},
			})
			if err != nil {
				return err
			}
			if err := tx.UpdateJournalStatus(ctx, e.ID, JournalStatusPosted, date); err != nil {
				return err
			}
		}
		_, err := tx.InsertJournalEntry(ctx, JournalEntry{
			Date:   jan,
			Status: JournalStatusDraft,
			Lines:  []JournalLine{{AccountID: cash.ID, Debit: decimal.NewFromInt(100), Credit: decimal.Zero}},
		})
		return err
	})
	require.NoError(t, err)

	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	err = repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		acts, err := tx.PostedActivity(ctx, ActivityFilter{To: &end})
		require.NoError(t, err)
		require.Len(t, acts, 1)
		require.True(t, acts[0].Debit.Equal(decimal.NewFromInt(3)), "drafts and later entries are excluded")

		all, err := tx.PostedActivity(ctx, ActivityFilter{})
		require.NoError(t, err)
		require.True(t, all[0].Debit.Equal(decimal.NewFromInt(6)))
		return nil
	})
	require.NoError(t, err)
}

func postRaw(ctx context.Context, tx TxRepository, date time.Time, debit, credit int64, amount decimal.Decimal, reversalOf *int64) (JournalEntry, error) {
	e, err := tx.InsertJournalEntry(ctx, JournalEntry{
		Date:       date,
		Status:     JournalStatusDraft,
		ReversalOf: reversalOf,
		Lines: []JournalLine{
			{AccountID: debit, Debit: amount, Credit: decimal.Zero},
			{AccountID: credit, Debit: decimal.Zero, Credit: amount},
		},
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if _, err := tx.LockAccounts(ctx, []int64{debit, credit}); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.AddAccountBalance(ctx, debit, amount); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.AddAccountBalance(ctx, credit, amount.Neg()); err != nil {
		return JournalEntry{}, err
	}
	return e, tx.UpdateJournalStatus(ctx, e.ID, JournalStatusPosted, date)
}

func seedPair(t testing.TB, repo *MemoryRepository, tenant uuid.UUID, codes ...string) []Account {
	t.Helper()
	var out []Account
	err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		for _, code := range codes {
			a, err := tx.InsertAccount(ctx, AccountInput{Code: code, Name: code, Type: AccountTypeAsset, Currency: "USD"})
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
	return out
}

func TestMemoryCommitKeepsOnlyTouchedRevisions(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	accs := seedPair(t, repo, tenant, "1010", "1020", "1030", "1040")
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	one := decimal.NewFromInt(1)

	const history = 3000
	for i := 0; i < history; i++ {
		err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
			_, err := postRaw(ctx, tx, day, accs[0].ID, accs[1].ID, one, nil)
			return err
		})
		require.NoError(t, err)
	}

	b := repo.book(tenant)
	b.mu.RLock()
	require.Len(t, b.accounts[accs[0].ID].revs, 1, "unpinned history is pruned")
	require.Len(t, b.accounts[accs[2].ID].revs, 1, "untouched accounts gain no revisions")
	before := b.version
	b.mu.RUnlock()

	err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		_, err := postRaw(ctx, tx, day, accs[2].ID, accs[3].ID, one, nil)
		return err
	})
	require.NoError(t, err)

	b.mu.RLock()
	require.Equal(t, before+1, b.version)
	require.Len(t, b.accounts[accs[0].ID].revs, 1)
	b.mu.RUnlock()

	err = repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		got, err := tx.GetAccount(ctx, accs[0].ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(decimal.NewFromInt(history)))
		acts, err := tx.PostedActivity(ctx, ActivityFilter{})
		require.NoError(t, err)
		require.Len(t, acts, 4)
		entries, err := tx.ListJournalEntries(ctx, JournalFilter{Status: JournalStatusPosted})
		require.NoError(t, err)
		require.Len(t, entries, history+1)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryPinnedSnapshotSurvivesPruning(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	accs := seedPair(t, repo, tenant, "1010", "1020")
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	err := repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, snap TxRepository) error {
		for i := 0; i < 5; i++ {
			werr := repo.WithTx(ctx, tenant, func(ctx context.Context, tx TxRepository) error {
				_, err := postRaw(ctx, tx, day, accs[0].ID, accs[1].ID, decimal.NewFromInt(2), nil)
				return err
			})
			require.NoError(t, werr)
		}
		got, err := snap.GetAccount(ctx, accs[0].ID)
		require.NoError(t, err)
		require.True(t, got.Balance.IsZero())
		entries, err := snap.ListJournalEntries(ctx, JournalFilter{})
		require.NoError(t, err)
		require.Empty(t, entries)
		return nil
	})
	require.NoError(t, err)

	// The next commit after the reader leaves drops the revisions it pinned.
	err = repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		_, err := postRaw(ctx, tx, day, accs[0].ID, accs[1].ID, decimal.NewFromInt(2), nil)
		return err
	})
	require.NoError(t, err)
	b := repo.book(tenant)
	b.mu.RLock()
	require.Len(t, b.accounts[accs[0].ID].revs, 1)
	require.Empty(t, b.readers)
	b.mu.RUnlock()
}

func TestMemoryListJournalEntriesByReversal(t *testing.T) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	accs := seedPair(t, repo, tenant, "1010", "1020")
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var original JournalEntry
	err := repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		var err error
		original, err = postRaw(ctx, tx, day, accs[0].ID, accs[1].ID, decimal.NewFromInt(7), nil)
		return err
	})
	require.NoError(t, err)

	err = repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		_, err := postRaw(ctx, tx, day, accs[1].ID, accs[0].ID, decimal.NewFromInt(7), &original.ID)
		if err != nil {
			return err
		}
		own, err := tx.ListJournalEntries(ctx, JournalFilter{ReversalOf: &original.ID})
		require.NoError(t, err)
		require.Len(t, own, 1, "uncommitted reversal is visible to its own unit")
		return nil
	})
	require.NoError(t, err)

	err = repo.ReadSnapshot(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
		got, err := tx.ListJournalEntries(ctx, JournalFilter{ReversalOf: &original.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, original.ID, *got[0].ReversalOf)
		return nil
	})
	require.NoError(t, err)
}

func BenchmarkMemoryPostWithHistory(b *testing.B) {
	repo := NewMemoryRepository()
	tenant := uuid.New()
	accs := seedPair(b, repo, tenant, "1010", "1020")
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	one := decimal.NewFromInt(1)
	post := func() error {
		return repo.WithTx(context.Background(), tenant, func(ctx context.Context, tx TxRepository) error {
			_, err := postRaw(ctx, tx, day, accs[0].ID, accs[1].ID, one, nil)
			return err
		})
	}
	for i := 0; i < 20000; i++ {
		if err := post(); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := post(); err != nil {
			b.Fatal(err)
		}
	}
}

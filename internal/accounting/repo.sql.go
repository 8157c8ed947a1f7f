package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/platform/db"
)

const (
	maxTxAttempts = 3

	uniqueAccountCode = "uq_ledger_accounts_code"
)

// PostgresRepository persists ledger entities in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// WithTx executes fn within a read-committed transaction. Balance updates are
// atomic increments guarded by row locks, so unrelated accounts never contend.
// Serialization and deadlock failures are retried; business errors are not.
func (r *PostgresRepository) WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	return r.run(ctx, tenantID, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// ReadSnapshot executes fn within a repeatable-read, read-only transaction.
func (r *PostgresRepository) ReadSnapshot(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	return r.run(ctx, tenantID, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

// ListTenants returns tenants owning at least one account.
func (r *PostgresRepository) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("accounting repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM ledger_accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, shared.Storage("list tenants", err)
	}
	defer rows.Close()
	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, shared.Storage("list tenants", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, shared.Storage("list tenants", rows.Err())
}

func (r *PostgresRepository) run(ctx context.Context, tenantID uuid.UUID, opts pgx.TxOptions, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.runOnce(ctx, tenantID, opts, fn)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	return shared.Storage("transaction", err)
}

func (r *PostgresRepository) runOnce(ctx context.Context, tenantID uuid.UUID, opts pgx.TxOptions, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, tenantID: tenantID, readOnly: opts.AccessMode == pgx.ReadOnly})
	})
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type pgTx struct {
	tx       pgx.Tx
	tenantID uuid.UUID
	readOnly bool
	chart    bool
}

func (r *pgTx) TenantID() uuid.UUID { return r.tenantID }

const accountColumns = `id, tenant_id, code, name, type, parent_id, is_group, currency, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsGroup, &a.Currency, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *pgTx) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 ORDER BY code`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *pgTx) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND id=$2`, r.tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("get account", "account %d", id)
		}
		return Account{}, err
	}
	return a, nil
}

// lockChart serialises chart writers of one tenant until the transaction ends,
// so a count taken under it stays true until commit.
func (r *pgTx) lockChart(ctx context.Context) error {
	if r.readOnly || r.chart {
		return nil
	}
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "ledger_chart:"+r.tenantID.String()); err != nil {
		return err
	}
	r.chart = true
	return nil
}

func (r *pgTx) CountAccounts(ctx context.Context) (int, error) {
	if err := r.lockChart(ctx); err != nil {
		return 0, err
	}
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_accounts WHERE tenant_id=$1`, r.tenantID).Scan(&n)
	return n, err
}

func (r *pgTx) InsertAccount(ctx context.Context, in AccountInput) (Account, error) {
	if err := r.lockChart(ctx); err != nil {
		return Account{}, err
	}
	a, err := scanAccount(r.tx.QueryRow(ctx, `INSERT INTO ledger_accounts (tenant_id, code, name, type, parent_id, is_group, currency)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+accountColumns, r.tenantID, in.Code, in.Name, in.Type, in.ParentID, in.IsGroup, in.Currency))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == uniqueAccountCode {
			return Account{}, shared.Validation("create account", "account code %q already exists", in.Code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *pgTx) LockAccounts(ctx context.Context, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, r.tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *pgTx) AddAccountBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET balance = balance + $3, updated_at = NOW()
WHERE tenant_id=$1 AND id=$2 AND is_group = FALSE`, r.tenantID, id, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.Validation("apply posting", "account %d is not a postable leaf", id)
	}
	return nil
}

const journalColumns = `id, tenant_id, date, reference, description, created_by, created_at, posted_at, cancelled_at, reversal_of, status, total_debit, total_credit`

func scanJournal(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.Date, &e.Reference, &e.Description, &e.CreatedBy, &e.CreatedAt, &e.PostedAt, &e.CancelledAt, &e.ReversalOf, &e.Status, &e.TotalDebit, &e.TotalCredit)
	return e, err
}

func (r *pgTx) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	inserted, err := scanJournal(r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, date, reference, description, created_by, created_at, reversal_of, status, total_debit, total_credit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+journalColumns,
		r.tenantID, entry.Date, entry.Reference, entry.Description, entry.CreatedBy, entry.CreatedAt, entry.ReversalOf, entry.Status, entry.TotalDebit, entry.TotalCredit))
	if err != nil {
		return JournalEntry{}, err
	}
	batch := &pgx.Batch{}
	for idx, line := range entry.Lines {
		batch.Queue(`INSERT INTO journal_lines (journal_id, tenant_id, line_no, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, inserted.ID, r.tenantID, idx+1, line.AccountID, line.Debit, line.Credit, line.Description)
	}
	results := r.tx.SendBatch(ctx, batch)
	inserted.Lines = make([]JournalLine, 0, len(entry.Lines))
	for idx, line := range entry.Lines {
		line.JournalID = inserted.ID
		line.LineNo = idx + 1
		if err := results.QueryRow().Scan(&line.ID); err != nil {
			_ = results.Close()
			return JournalEntry{}, err
		}
		inserted.Lines = append(inserted.Lines, line)
	}
	if err := results.Close(); err != nil {
		return JournalEntry{}, err
	}
	return inserted, nil
}

func (r *pgTx) GetJournalEntry(ctx context.Context, id int64) (JournalEntry, error) {
	return r.getJournal(ctx, id, "")
}

func (r *pgTx) GetJournalEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return r.getJournal(ctx, id, " FOR UPDATE")
}

func (r *pgTx) getJournal(ctx context.Context, id int64, lock string) (JournalEntry, error) {
	entry, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`+lock, r.tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.NotFound("get journal", "journal entry %d", id)
		}
		return JournalEntry{}, err
	}
	lines, err := r.linesFor(ctx, []int64{id})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines[id]
	return entry, nil
}

func (r *pgTx) linesFor(ctx context.Context, ids []int64) (map[int64][]JournalLine, error) {
	out := make(map[int64][]JournalLine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT id, journal_id, line_no, account_id, debit, credit, description
FROM journal_lines WHERE tenant_id=$1 AND journal_id = ANY($2) ORDER BY journal_id, line_no`, r.tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return nil, err
		}
		out[line.JournalID] = append(out[line.JournalID], line)
	}
	return out, rows.Err()
}

func (r *pgTx) UpdateJournalStatus(ctx context.Context, id int64, status JournalStatus, at time.Time) error {
	var column string
	switch status {
	case JournalStatusPosted:
		column = "posted_at"
	case JournalStatusCancelled:
		column = "cancelled_at"
	default:
		return fmt.Errorf("accounting: cannot move journal to %s", status)
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$3, `+column+`=$4 WHERE tenant_id=$1 AND id=$2`, r.tenantID, id, status, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("update journal", "journal entry %d", id)
	}
	return nil
}

func (r *pgTx) ListJournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	clauses := []string{"tenant_id=$1"}
	args := []any{r.tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.ReversalOf != nil {
		args = append(args, *filter.ReversalOf)
		clauses = append(clauses, fmt.Sprintf("reversal_of = $%d", len(args)))
	}
	rows, err := r.tx.Query(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE `+strings.Join(clauses, " AND ")+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, err
	}
	var entries []JournalEntry
	var ids []int64
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Lines = lines[entries[i].ID]
	}
	return entries, nil
}

func (r *pgTx) PostedActivity(ctx context.Context, filter ActivityFilter) ([]AccountActivity, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.journal_id AND e.tenant_id = l.tenant_id
WHERE l.tenant_id=$1 AND e.status='posted'
  AND ($2::date IS NULL OR e.date >= $2::date)
  AND ($3::date IS NULL OR e.date <= $3::date)
GROUP BY l.account_id
ORDER BY l.account_id`, r.tenantID, filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		if err := rows.Scan(&a.AccountID, &a.Debit, &a.Credit); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

package accounting

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

var errReadOnly = errors.New("accounting: write attempted in read snapshot")

// latestVersion reads whatever was committed last.
const latestVersion = math.MaxInt64

// MemoryRepository is the embedded store. Every account and journal keeps a
// short list of committed revisions stamped with the tenant version that
// produced them. A commit appends revisions for the records its unit touched
// and bumps the version; snapshot readers pin a version and resolve each
// record against it, so they never see half of a unit.
type MemoryRepository struct {
	mu    sync.Mutex
	books map[uuid.UUID]*memBook
	seq   atomic.Int64
	now   func() time.Time
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{books: make(map[uuid.UUID]*memBook), now: time.Now}
}

// WithNow overrides the clock used for timestamps.
func (r *MemoryRepository) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

type memRevision[T any] struct {
	version int64
	value   T
}

type memRecord[T any] struct {
	revs []memRevision[T]
}

func (r *memRecord[T]) at(version int64) (T, bool) {
	for i := len(r.revs) - 1; i >= 0; i-- {
		if r.revs[i].version <= version {
			return r.revs[i].value, true
		}
	}
	var zero T
	return zero, false
}

// push appends a revision and drops those no pinned reader at or above floor can reach.
func (r *memRecord[T]) push(version, floor int64, value T) {
	r.revs = append(r.revs, memRevision[T]{version: version, value: value})
	keep := 0
	for keep+1 < len(r.revs) && r.revs[keep+1].version <= floor {
		keep++
	}
	if keep > 0 {
		n := copy(r.revs, r.revs[keep:])
		clear(r.revs[n:])
		r.revs = r.revs[:n]
	}
}

// memBook is one tenant's ledger. mu guards the indexes and is only held for
// lookups and for publishing a unit, never across caller code.
type memBook struct {
	mu        sync.RWMutex
	version   int64
	readers   map[int64]int
	accounts  map[int64]*memRecord[Account]
	codes     map[string]int64
	journals  map[int64]*memRecord[JournalEntry]
	order     []int64
	reversals map[int64][]int64

	chartMu sync.Mutex
	locks   sync.Map
}

func newMemBook() *memBook {
	return &memBook{
		readers:   map[int64]int{},
		accounts:  map[int64]*memRecord[Account]{},
		codes:     map[string]int64{},
		journals:  map[int64]*memRecord[JournalEntry]{},
		reversals: map[int64][]int64{},
	}
}

func (b *memBook) lockFor(key string) *sync.Mutex {
	mu, _ := b.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (b *memBook) pin() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readers[b.version]++
	return b.version
}

func (b *memBook) unpin(version int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readers[version]--; b.readers[version] <= 0 {
		delete(b.readers, version)
	}
}

// floor is the oldest version a pinned reader may still resolve. Callers hold mu.
func (b *memBook) floor(next int64) int64 {
	floor := next
	for v := range b.readers {
		if v < floor {
			floor = v
		}
	}
	return floor
}

func (r *MemoryRepository) book(tenantID uuid.UUID) *memBook {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[tenantID]
	if !ok {
		b = newMemBook()
		r.books[tenantID] = b
	}
	return b
}

// WithTx runs fn against the latest committed state plus the unit's own
// changes, then publishes only the records the unit touched.
func (r *MemoryRepository) WithTx(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	b := r.book(tenantID)
	tx := &memTx{repo: r, book: b, tenantID: tenantID, version: latestVersion}
	defer tx.release()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ReadSnapshot pins the current version for the duration of fn.
func (r *MemoryRepository) ReadSnapshot(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, TxRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := r.book(tenantID)
	version := b.pin()
	defer b.unpin(version)
	tx := &memTx{repo: r, book: b, tenantID: tenantID, version: version, readOnly: true}
	return fn(ctx, tx)
}

// ListTenants returns tenants owning at least one account.
func (r *MemoryRepository) ListTenants(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	books := make(map[uuid.UUID]*memBook, len(r.books))
	for id, b := range r.books {
		books[id] = b
	}
	r.mu.Unlock()

	var out []uuid.UUID
	for id, b := range books {
		b.mu.RLock()
		n := len(b.accounts)
		b.mu.RUnlock()
		if n > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

type memTx struct {
	repo     *MemoryRepository
	book     *memBook
	tenantID uuid.UUID
	version  int64
	readOnly bool

	// Unit overlay: records the unit created or locked, as the unit sees them.
	accounts    map[int64]Account
	journals    map[int64]JournalEntry
	newAccounts []int64
	newJournals []int64
	dirtyAcc    map[int64]struct{}
	dirtyJrn    map[int64]struct{}

	held     []*sync.Mutex
	heldKeys map[string]struct{}
	chart    bool
}

func (t *memTx) TenantID() uuid.UUID { return t.tenantID }

func (t *memTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
	if t.chart {
		t.book.chartMu.Unlock()
		t.chart = false
	}
}

// commit publishes the overlay's touched records under one new version.
func (t *memTx) commit() {
	if len(t.dirtyAcc) == 0 && len(t.dirtyJrn) == 0 {
		return
	}
	b := t.book
	b.mu.Lock()
	defer b.mu.Unlock()
	version := b.version + 1
	floor := b.floor(version)
	for _, id := range t.newAccounts {
		a := t.accounts[id]
		b.accounts[id] = &memRecord[Account]{}
		b.codes[a.Code] = id
	}
	for id := range t.dirtyAcc {
		b.accounts[id].push(version, floor, t.accounts[id])
	}
	for _, id := range t.newJournals {
		e := t.journals[id]
		b.journals[id] = &memRecord[JournalEntry]{}
		b.order = append(b.order, id)
		if e.ReversalOf != nil {
			b.reversals[*e.ReversalOf] = append(b.reversals[*e.ReversalOf], id)
		}
	}
	for id := range t.dirtyJrn {
		b.journals[id].push(version, floor, t.journals[id])
	}
	b.version = version
}

func (t *memTx) lock(key string) {
	if t.heldKeys == nil {
		t.heldKeys = map[string]struct{}{}
	}
	if _, ok := t.heldKeys[key]; ok {
		return
	}
	mu := t.book.lockFor(key)
	mu.Lock()
	t.held = append(t.held, mu)
	t.heldKeys[key] = struct{}{}
}

func (t *memTx) lockChart() {
	if !t.chart {
		t.book.chartMu.Lock()
		t.chart = true
	}
}

func (t *memTx) markAccount(a Account) {
	if t.accounts == nil {
		t.accounts = map[int64]Account{}
		t.dirtyAcc = map[int64]struct{}{}
	}
	t.accounts[a.ID] = a
	t.dirtyAcc[a.ID] = struct{}{}
}

func (t *memTx) markJournal(e JournalEntry) {
	if t.journals == nil {
		t.journals = map[int64]JournalEntry{}
		t.dirtyJrn = map[int64]struct{}{}
	}
	t.journals[e.ID] = e
	t.dirtyJrn[e.ID] = struct{}{}
}

// committedAccount resolves an account at the unit's version. Callers hold book.mu.
func (t *memTx) committedAccount(id int64) (Account, bool) {
	rec, ok := t.book.accounts[id]
	if !ok {
		return Account{}, false
	}
	return rec.at(t.version)
}

func (t *memTx) committedJournal(id int64) (JournalEntry, bool) {
	rec, ok := t.book.journals[id]
	if !ok {
		return JournalEntry{}, false
	}
	return rec.at(t.version)
}

func (t *memTx) account(id int64) (Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	t.book.mu.RLock()
	defer t.book.mu.RUnlock()
	return t.committedAccount(id)
}

func (t *memTx) journal(id int64) (JournalEntry, bool) {
	if e, ok := t.journals[id]; ok {
		return e, true
	}
	t.book.mu.RLock()
	defer t.book.mu.RUnlock()
	return t.committedJournal(id)
}

func (t *memTx) ListAccounts(_ context.Context) ([]Account, error) {
	t.book.mu.RLock()
	out := make([]Account, 0, len(t.book.accounts)+len(t.newAccounts))
	for id := range t.book.accounts {
		if a, ok := t.accounts[id]; ok {
			out = append(out, a)
			continue
		}
		if a, ok := t.committedAccount(id); ok {
			out = append(out, a)
		}
	}
	t.book.mu.RUnlock()
	for _, id := range t.newAccounts {
		out = append(out, t.accounts[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *memTx) GetAccount(_ context.Context, id int64) (Account, error) {
	if a, ok := t.account(id); ok {
		return a, nil
	}
	return Account{}, shared.NotFound("get account", "account %d", id)
}

func (t *memTx) CountAccounts(_ context.Context) (int, error) {
	if !t.readOnly {
		t.lockChart()
	}
	t.book.mu.RLock()
	defer t.book.mu.RUnlock()
	n := len(t.newAccounts)
	for id := range t.book.accounts {
		if _, ok := t.committedAccount(id); ok {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertAccount(_ context.Context, in AccountInput) (Account, error) {
	if t.readOnly {
		return Account{}, errReadOnly
	}
	t.lockChart()
	t.book.mu.RLock()
	_, taken := t.book.codes[in.Code]
	t.book.mu.RUnlock()
	for _, id := range t.newAccounts {
		if t.accounts[id].Code == in.Code {
			taken = true
		}
	}
	if taken {
		return Account{}, shared.Validation("create account", "account code %q already exists", in.Code)
	}
	now := t.repo.now()
	a := Account{
		ID:        t.repo.seq.Add(1),
		TenantID:  t.tenantID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsGroup:   in.IsGroup,
		Currency:  in.Currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.markAccount(a)
	t.newAccounts = append(t.newAccounts, a.ID)
	return a, nil
}

// lockAccount takes the row lock and loads the latest committed revision into the overlay.
func (t *memTx) lockAccount(id int64) (Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	t.lock("account:" + strconv.FormatInt(id, 10))
	t.book.mu.RLock()
	a, ok := t.committedAccount(id)
	t.book.mu.RUnlock()
	if !ok {
		return Account{}, false
	}
	if t.accounts == nil {
		t.accounts = map[int64]Account{}
		t.dirtyAcc = map[int64]struct{}{}
	}
	t.accounts[id] = a
	return a, true
}

func (t *memTx) LockAccounts(_ context.Context, ids []int64) (map[int64]Account, error) {
	if t.readOnly {
		return nil, errReadOnly
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make(map[int64]Account, len(sorted))
	for _, id := range sorted {
		if a, ok := t.lockAccount(id); ok {
			out[id] = a
		}
	}
	return out, nil
}

func (t *memTx) AddAccountBalance(_ context.Context, id int64, delta decimal.Decimal) error {
	if t.readOnly {
		return errReadOnly
	}
	a, ok := t.lockAccount(id)
	if !ok || a.IsGroup {
		return shared.Validation("apply posting", "account %d is not a postable leaf", id)
	}
	a.Balance = a.Balance.Add(delta)
	a.UpdatedAt = t.repo.now()
	t.markAccount(a)
	return nil
}

func (t *memTx) InsertJournalEntry(_ context.Context, entry JournalEntry) (JournalEntry, error) {
	if t.readOnly {
		return JournalEntry{}, errReadOnly
	}
	entry.ID = t.repo.seq.Add(1)
	entry.TenantID = t.tenantID
	lines := make([]JournalLine, len(entry.Lines))
	for idx, line := range entry.Lines {
		line.ID = t.repo.seq.Add(1)
		line.JournalID = entry.ID
		line.LineNo = idx + 1
		lines[idx] = line
	}
	entry.Lines = lines
	t.markJournal(entry)
	t.newJournals = append(t.newJournals, entry.ID)
	return entry, nil
}

func (t *memTx) GetJournalEntry(_ context.Context, id int64) (JournalEntry, error) {
	if e, ok := t.journal(id); ok {
		return e, nil
	}
	return JournalEntry{}, shared.NotFound("get journal", "journal entry %d", id)
}

func (t *memTx) lockJournal(id int64) (JournalEntry, bool) {
	if e, ok := t.journals[id]; ok {
		return e, true
	}
	t.lock("journal:" + strconv.FormatInt(id, 10))
	t.book.mu.RLock()
	e, ok := t.committedJournal(id)
	t.book.mu.RUnlock()
	if !ok {
		return JournalEntry{}, false
	}
	if t.journals == nil {
		t.journals = map[int64]JournalEntry{}
		t.dirtyJrn = map[int64]struct{}{}
	}
	t.journals[id] = e
	return e, true
}

func (t *memTx) GetJournalEntryForUpdate(_ context.Context, id int64) (JournalEntry, error) {
	if t.readOnly {
		return JournalEntry{}, errReadOnly
	}
	if e, ok := t.lockJournal(id); ok {
		return e, nil
	}
	return JournalEntry{}, shared.NotFound("get journal", "journal entry %d", id)
}

func (t *memTx) UpdateJournalStatus(_ context.Context, id int64, status JournalStatus, at time.Time) error {
	if t.readOnly {
		return errReadOnly
	}
	e, ok := t.lockJournal(id)
	if !ok {
		return shared.NotFound("update journal", "journal entry %d", id)
	}
	e.Status = status
	stamp := at
	switch status {
	case JournalStatusPosted:
		e.PostedAt = &stamp
	case JournalStatusCancelled:
		e.CancelledAt = &stamp
	}
	t.markJournal(e)
	return nil
}

// eachJournal visits committed entries in insertion order, then the unit's own,
// each resolved through the overlay. A non-nil reversalOf narrows to its reversals.
func (t *memTx) eachJournal(reversalOf *int64, visit func(JournalEntry)) {
	t.book.mu.RLock()
	ids := t.book.order
	if reversalOf != nil {
		ids = t.book.reversals[*reversalOf]
	}
	resolved := make([]JournalEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := t.journals[id]; ok {
			resolved = append(resolved, e)
			continue
		}
		if e, ok := t.committedJournal(id); ok {
			resolved = append(resolved, e)
		}
	}
	t.book.mu.RUnlock()
	for _, e := range resolved {
		visit(e)
	}
	for _, id := range t.newJournals {
		e := t.journals[id]
		if reversalOf != nil && (e.ReversalOf == nil || *e.ReversalOf != *reversalOf) {
			continue
		}
		visit(e)
	}
}

func (t *memTx) ListJournalEntries(_ context.Context, filter JournalFilter) ([]JournalEntry, error) {
	window := ActivityFilter{From: filter.From, To: filter.To}
	var out []JournalEntry
	t.eachJournal(filter.ReversalOf, func(e JournalEntry) {
		if filter.Status != "" && e.Status != filter.Status {
			return
		}
		if !window.Contains(e.Date) {
			return
		}
		out = append(out, e)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) PostedActivity(_ context.Context, filter ActivityFilter) ([]AccountActivity, error) {
	sums := map[int64]*AccountActivity{}
	t.eachJournal(nil, func(e JournalEntry) {
		if e.Status != JournalStatusPosted || !filter.Contains(e.Date) {
			return
		}
		for _, line := range e.Lines {
			act, ok := sums[line.AccountID]
			if !ok {
				act = &AccountActivity{AccountID: line.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
				sums[line.AccountID] = act
			}
			act.Debit = act.Debit.Add(line.Debit)
			act.Credit = act.Credit.Add(line.Credit)
		}
	})
	out := make([]AccountActivity, 0, len(sums))
	for _, act := range sums {
		out = append(out, *act)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

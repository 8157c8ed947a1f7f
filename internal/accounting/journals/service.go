package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ledger/internal/shared"
)

// Poster applies a natural-sign delta to a leaf balance inside an open unit.
type Poster interface {
	ApplyPosting(ctx context.Context, tx accounting.TxRepository, accountID int64, delta decimal.Decimal) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Observer receives posting outcomes for metrics.
type Observer interface {
	ObservePosting(outcome string)
}

// Invalidator drops tenant-scoped report caches after balances change.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// Posting outcomes reported to the Observer.
const (
	OutcomePosted   = "posted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Service validates and posts journal entries; it is the only writer of balances.
type Service struct {
	repo        accounting.Repository
	poster      Poster
	audit       AuditPort
	logger      *slog.Logger
	observer    Observer
	invalidator Invalidator
	now         func() time.Time
}

// NewService constructs the journal engine.
func NewService(repo accounting.Repository, poster Poster, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, poster: poster, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver registers a posting outcome observer.
func (s *Service) WithObserver(o Observer) { s.observer = o }

// WithInvalidator registers the report cache invalidator.
func (s *Service) WithInvalidator(inv Invalidator) { s.invalidator = inv }

// Create validates the entry and stores it as a draft. Balances are untouched.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in EntryInput, createdBy string) (accounting.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return accounting.JournalEntry{}, err
	}
	var entry accounting.JournalEntry
	err := s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		if err := s.checkAccounts(ctx, tx, in.Lines); err != nil {
			return err
		}
		inserted, err := tx.InsertJournalEntry(ctx, in.toEntry(createdBy, s.now()))
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return accounting.JournalEntry{}, shared.Storage("create journal", err)
	}
	s.logger.Info("journal drafted",
		slog.String("tenant_id", tenantID.String()),
		slog.Int64("journal_id", entry.ID),
		slog.String("total", entry.TotalDebit.String()))
	return entry, nil
}

func (s *Service) checkAccounts(ctx context.Context, tx accounting.TxRepository, lines []LineInput) error {
	const op = "create journal"
	cache := make(map[int64]accounting.Account, len(lines))
	for idx, line := range lines {
		account, ok := cache[line.AccountID]
		if !ok {
			var err error
			account, err = tx.GetAccount(ctx, line.AccountID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Validation(op, "line %d references unknown account %d", idx+1, line.AccountID)
				}
				return err
			}
			cache[line.AccountID] = account
		}
		if account.IsGroup {
			return shared.Validation(op, "line %d posts to group account %s", idx+1, account.Code)
		}
		amount := line.Debit
		if amount.IsZero() {
			amount = line.Credit
		}
		if !accounting.FitsMinorUnits(amount, account.Currency) {
			return shared.Validation(op, "line %d amount %s exceeds %s precision", idx+1, amount.String(), account.Currency)
		}
	}
	return nil
}

// Post moves a draft to posted and applies every line's delta in one unit:
// either all deltas and the status change land, or none do.
func (s *Service) Post(ctx context.Context, tenantID uuid.UUID, journalID int64) (accounting.JournalEntry, error) {
	const op = "post journal"
	var entry accounting.JournalEntry
	err := s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		current, err := tx.GetJournalEntryForUpdate(ctx, journalID)
		if err != nil {
			return err
		}
		if current.Status != accounting.JournalStatusDraft {
			return shared.State(op, "journal entry %d is %s", journalID, current.Status)
		}
		if !current.TotalDebit.Equal(current.TotalCredit) {
			return shared.Validation(op, "journal entry %d is unbalanced", journalID)
		}
		locked, err := tx.LockAccounts(ctx, current.AccountIDs())
		if err != nil {
			return err
		}
		for _, line := range current.Lines {
			account, ok := locked[line.AccountID]
			if !ok {
				return shared.Validation(op, "journal entry %d references missing account %d", journalID, line.AccountID)
			}
			if account.IsGroup {
				return shared.Validation(op, "journal entry %d posts to group account %s", journalID, account.Code)
			}
			delta := account.Type.SignedDelta(line.Debit, line.Credit)
			if err := s.poster.ApplyPosting(ctx, tx, line.AccountID, delta); err != nil {
				return err
			}
		}
		at := s.now()
		if err := tx.UpdateJournalStatus(ctx, journalID, accounting.JournalStatusPosted, at); err != nil {
			return err
		}
		entry = current
		entry.Status = accounting.JournalStatusPosted
		entry.PostedAt = &at
		return nil
	})
	if err != nil {
		s.observe(err)
		if !shared.IsBusiness(err) {
			s.logger.Error("post journal", slog.String("tenant_id", tenantID.String()), slog.Int64("journal_id", journalID), slog.Any("error", err))
		}
		return accounting.JournalEntry{}, shared.Storage(op, err)
	}
	s.observe(nil)
	s.invalidate(ctx, tenantID)
	s.logger.Info("journal posted",
		slog.String("tenant_id", tenantID.String()),
		slog.Int64("journal_id", entry.ID),
		slog.Int("lines", len(entry.Lines)))
	s.record(ctx, tenantID, entry.CreatedBy, "journal.post", entry.ID, map[string]any{
		"total": entry.TotalDebit.String(),
		"date":  entry.Date.Format(time.DateOnly),
	})
	return entry, nil
}

// Void cancels a draft. Posted entries are permanent and must be reversed instead.
func (s *Service) Void(ctx context.Context, tenantID uuid.UUID, journalID int64) (accounting.JournalEntry, error) {
	const op = "void journal"
	var entry accounting.JournalEntry
	err := s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		current, err := tx.GetJournalEntryForUpdate(ctx, journalID)
		if err != nil {
			return err
		}
		if current.Status != accounting.JournalStatusDraft {
			return shared.State(op, "journal entry %d is %s", journalID, current.Status)
		}
		at := s.now()
		if err := tx.UpdateJournalStatus(ctx, journalID, accounting.JournalStatusCancelled, at); err != nil {
			return err
		}
		entry = current
		entry.Status = accounting.JournalStatusCancelled
		entry.CancelledAt = &at
		return nil
	})
	if err != nil {
		return accounting.JournalEntry{}, shared.Storage(op, err)
	}
	s.logger.Info("journal voided", slog.String("tenant_id", tenantID.String()), slog.Int64("journal_id", entry.ID))
	s.record(ctx, tenantID, entry.CreatedBy, "journal.void", entry.ID, nil)
	return entry, nil
}

// Reverse drafts a new entry that swaps every line of a posted entry. The
// original stays posted; the reversal goes through the normal post step.
func (s *Service) Reverse(ctx context.Context, tenantID uuid.UUID, in ReverseInput) (accounting.JournalEntry, error) {
	const op = "reverse journal"
	var reversal accounting.JournalEntry
	err := s.repo.WithTx(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		original, err := tx.GetJournalEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != accounting.JournalStatusPosted {
			return shared.State(op, "journal entry %d is %s", in.EntryID, original.Status)
		}
		existing, err := tx.ListJournalEntries(ctx, accounting.JournalFilter{ReversalOf: &original.ID})
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Status != accounting.JournalStatusCancelled {
				return shared.Conflict(op, "journal entry %d already reversed by %d", original.ID, e.ID)
			}
		}
		date := original.Date
		if in.Date != nil {
			date = accounting.DateOnly(*in.Date)
		}
		origID := original.ID
		draft := accounting.JournalEntry{
			Date:        date,
			Reference:   original.Reference,
			Description: reversalMemo(in.Memo, original.ID),
			CreatedBy:   in.CreatedBy,
			CreatedAt:   s.now(),
			ReversalOf:  &origID,
			Status:      accounting.JournalStatusDraft,
			TotalDebit:  original.TotalCredit,
			TotalCredit: original.TotalDebit,
			Lines:       reverseLines(original.Lines),
		}
		reversal, err = tx.InsertJournalEntry(ctx, draft)
		return err
	})
	if err != nil {
		return accounting.JournalEntry{}, shared.Storage(op, err)
	}
	s.logger.Info("journal reversal drafted",
		slog.String("tenant_id", tenantID.String()),
		slog.Int64("journal_id", in.EntryID),
		slog.Int64("reversal_id", reversal.ID))
	s.record(ctx, tenantID, in.CreatedBy, "journal.reverse", in.EntryID, map[string]any{
		"reversal_id": reversal.ID,
	})
	return reversal, nil
}

// Get loads a single entry with its lines.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, journalID int64) (accounting.JournalEntry, error) {
	var entry accounting.JournalEntry
	err := s.repo.ReadSnapshot(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		entry, err = tx.GetJournalEntry(ctx, journalID)
		return err
	})
	return entry, shared.Storage("get journal", err)
}

// List returns the tenant's entries ordered by date.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	var entries []accounting.JournalEntry
	err := s.repo.ReadSnapshot(ctx, tenantID, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		entries, err = tx.ListJournalEntries(ctx, filter)
		return err
	})
	return entries, shared.Storage("list journals", err)
}

func (s *Service) observe(err error) {
	if s.observer == nil {
		return
	}
	switch {
	case err == nil:
		s.observer.ObservePosting(OutcomePosted)
	case shared.IsBusiness(err):
		s.observer.ObservePosting(OutcomeRejected)
	default:
		s.observer.ObservePosting(OutcomeFailed)
	}
}

func (s *Service) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("report cache invalidate", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, tenantID uuid.UUID, actor, action string, journalID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, internalShared.AuditLog{
		TenantID: tenantID,
		Actor:    actor,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(journalID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func reverseLines(lines []accounting.JournalLine) []accounting.JournalLine {
	out := make([]accounting.JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, accounting.JournalLine{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func reversalMemo(memo string, id int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE %d", id)
}

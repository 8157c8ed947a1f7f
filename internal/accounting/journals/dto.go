package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// LineInput describes one leg of a new journal entry.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// EntryInput groups fields required to create a journal entry.
type EntryInput struct {
	Date        time.Time
	Reference   string
	Description string
	Lines       []LineInput
}

// Totals sums the debit and credit columns.
func (in EntryInput) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Validate checks the shape of the entry: at least two lines, each line exactly
// one non-negative side, and equal totals. Account references are resolved later.
func (in EntryInput) Validate() error {
	const op = "create journal"
	if in.Date.IsZero() {
		return shared.Validation(op, "date is required")
	}
	if len(in.Lines) < 2 {
		return shared.Validation(op, "journal requires at least two lines, got %d", len(in.Lines))
	}
	for idx, line := range in.Lines {
		if line.AccountID <= 0 {
			return shared.Validation(op, "line %d missing account", idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.Validation(op, "line %d negative amount", idx+1)
		}
		hasDebit, hasCredit := !line.Debit.IsZero(), !line.Credit.IsZero()
		if hasDebit && hasCredit {
			return shared.Validation(op, "line %d cannot be both debit and credit", idx+1)
		}
		if !hasDebit && !hasCredit {
			return shared.Validation(op, "line %d has neither debit nor credit", idx+1)
		}
	}
	debit, credit := in.Totals()
	if !debit.Equal(credit) {
		return shared.Validation(op, "journal lines must balance: debit %s != credit %s", debit.String(), credit.String())
	}
	return nil
}

func (in EntryInput) toEntry(createdBy string, now time.Time) accounting.JournalEntry {
	debit, credit := in.Totals()
	lines := make([]accounting.JournalLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		lines = append(lines, accounting.JournalLine{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return accounting.JournalEntry{
		Date:        accounting.DateOnly(in.Date),
		Reference:   in.Reference,
		Description: in.Description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		Status:      accounting.JournalStatusDraft,
		TotalDebit:  debit,
		TotalCredit: credit,
		Lines:       lines,
	}
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID   int64
	Date      *time.Time
	CreatedBy string
	Memo      string
}

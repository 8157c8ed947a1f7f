package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every type in statement order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeExpense,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Side is the debit or credit column of a ledger.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// NormalSide returns the direction in which the account type increases.
func (t AccountType) NormalSide() Side {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return SideDebit
	}
	return SideCredit
}

// SignedDelta converts a debit/credit pair into a change in natural-sign terms.
func (t AccountType) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if t.NormalSide() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft     JournalStatus = "draft"
	JournalStatusPosted    JournalStatus = "posted"
	JournalStatusCancelled JournalStatus = "cancelled"
)

// Account models a chart of accounts node.
type Account struct {
	ID        int64
	TenantID  uuid.UUID
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsGroup   bool
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRoot reports whether the account has no parent.
func (a Account) IsRoot() bool { return a.ParentID == nil }

// AccountInput is the caller-supplied part of a new account.
type AccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
	IsGroup  bool
	Currency string
}

// JournalEntry captures a balanced transaction and its lifecycle.
type JournalEntry struct {
	ID          int64
	TenantID    uuid.UUID
	Date        time.Time
	Reference   string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	PostedAt    *time.Time
	CancelledAt *time.Time
	ReversalOf  *int64
	Status      JournalStatus
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Lines       []JournalLine
}

// AccountIDs returns the distinct account ids referenced by the lines, in line order.
func (e JournalEntry) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	ids := make([]int64, 0, len(e.Lines))
	for _, line := range e.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64
	JournalID   int64
	LineNo      int
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	Status     JournalStatus
	From       *time.Time
	To         *time.Time
	ReversalOf *int64
}

// ActivityFilter narrows posted-line aggregation to a date window. Nil bounds are open.
type ActivityFilter struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether date falls inside the inclusive window.
func (f ActivityFilter) Contains(date time.Time) bool {
	if f.From != nil && date.Before(*f.From) {
		return false
	}
	if f.To != nil && date.After(*f.To) {
		return false
	}
	return true
}

// AccountActivity sums posted debit and credit lines for one account.
type AccountActivity struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// DateOnly truncates t to a calendar date at 00:00 UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

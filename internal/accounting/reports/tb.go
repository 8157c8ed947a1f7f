package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

// AccountBalance models a leaf account with the posted activity aggregated over a window.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounting.AccountType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns the activity in the account's natural sign.
func (a AccountBalance) Net() decimal.Decimal {
	return a.Type.SignedDelta(a.Debit, a.Credit)
}

// HasActivity reports whether any posted line touched the account.
func (a AccountBalance) HasActivity() bool {
	return !a.Debit.IsZero() || !a.Credit.IsZero()
}

// TrialBalanceRow is one leaf account with its balance in the natural column.
type TrialBalanceRow struct {
	AccountID int64                  `json:"account_id"`
	Code      string                 `json:"code"`
	Name      string                 `json:"name"`
	Type      accounting.AccountType `json:"type"`
	Debit     decimal.Decimal        `json:"debit"`
	Credit    decimal.Decimal        `json:"credit"`
}

// TrialBalanceGroup aggregates rows of one account type.
type TrialBalanceGroup struct {
	Type   accounting.AccountType `json:"type"`
	Rows   []TrialBalanceRow      `json:"rows"`
	Debit  decimal.Decimal        `json:"debit"`
	Credit decimal.Decimal        `json:"credit"`
}

// TrialBalance is a point-in-time listing of every leaf balance.
type TrialBalance struct {
	AsOf        time.Time           `json:"as_of"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
}

// Balanced reports whether the debit and credit columns agree.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// Rows flattens the groups in presentation order.
func (tb TrialBalance) Rows() []TrialBalanceRow {
	var out []TrialBalanceRow
	for _, grp := range tb.Groups {
		out = append(out, grp.Rows...)
	}
	return out
}

// BuildTrialBalance places each account's net activity in its natural column. A
// negative balance stays in that column so the totals agree for any balanced history.
func BuildTrialBalance(asOf time.Time, accounts []AccountBalance) TrialBalance {
	groups := make(map[accounting.AccountType]*TrialBalanceGroup, len(accounting.AccountTypes))
	for _, acc := range accounts {
		grp, ok := groups[acc.Type]
		if !ok {
			grp = &TrialBalanceGroup{Type: acc.Type, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[acc.Type] = grp
		}
		row := TrialBalanceRow{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
		}
		if acc.Type.NormalSide() == accounting.SideDebit {
			row.Debit = acc.Net()
		} else {
			row.Credit = acc.Net()
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	result := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, typ := range accounting.AccountTypes {
		grp, ok := groups[typ]
		if !ok {
			continue
		}
		sort.Slice(grp.Rows, func(i, j int) bool { return grp.Rows[i].Code < grp.Rows[j].Code })
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}

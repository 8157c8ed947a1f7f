package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

// CurrentEarningsLabel names the synthetic equity row carrying unclosed profit.
const CurrentEarningsLabel = "Current Earnings"

// BalanceSheetRow summarises an account for assets, liabilities, or equity.
type BalanceSheetRow struct {
	AccountID int64           `json:"account_id,omitempty"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label string            `json:"label"`
	Rows  []BalanceSheetRow `json:"rows"`
	Total decimal.Decimal   `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	AsOf                      time.Time           `json:"as_of"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentEarnings           decimal.Decimal     `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
}

// Balanced reports whether assets equal liabilities plus equity.
func (bs BalanceSheet) Balanced() bool {
	return bs.Assets.Total.Equal(bs.TotalLiabilitiesAndEquity)
}

// BuildBalanceSheet aggregates cumulative balances into assets, liabilities, and
// equity. Income less expenses is folded into equity as current earnings since
// the ledger has no closing entries.
func BuildBalanceSheet(asOf time.Time, accounts []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Total: decimal.Zero}
	liabilities := BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero}
	equity := BalanceSheetSection{Label: "Equity", Total: decimal.Zero}
	earnings := decimal.Zero

	for _, acc := range accounts {
		row := BalanceSheetRow{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: acc.Net()}
		switch acc.Type {
		case accounting.AccountTypeAsset:
			assets.Rows = append(assets.Rows, row)
			assets.Total = assets.Total.Add(row.Balance)
		case accounting.AccountTypeLiability:
			liabilities.Rows = append(liabilities.Rows, row)
			liabilities.Total = liabilities.Total.Add(row.Balance)
		case accounting.AccountTypeEquity:
			equity.Rows = append(equity.Rows, row)
			equity.Total = equity.Total.Add(row.Balance)
		case accounting.AccountTypeIncome:
			earnings = earnings.Add(row.Balance)
		case accounting.AccountTypeExpense:
			earnings = earnings.Sub(row.Balance)
		}
	}

	sort.Slice(assets.Rows, func(i, j int) bool { return assets.Rows[i].Code < assets.Rows[j].Code })
	sort.Slice(liabilities.Rows, func(i, j int) bool { return liabilities.Rows[i].Code < liabilities.Rows[j].Code })
	sort.Slice(equity.Rows, func(i, j int) bool { return equity.Rows[i].Code < equity.Rows[j].Code })

	if !earnings.IsZero() {
		equity.Rows = append(equity.Rows, BalanceSheetRow{Name: CurrentEarningsLabel, Balance: earnings})
		equity.Total = equity.Total.Add(earnings)
	}

	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentEarnings:           earnings,
		TotalLiabilitiesAndEquity: liabilities.Total.Add(equity.Total),
	}
}

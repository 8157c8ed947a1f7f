package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

// ProfitAndLossRow represents an income or expense account's flow in the window.
type ProfitAndLossRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label string             `json:"label"`
	Rows  []ProfitAndLossRow `json:"rows"`
	Total decimal.Decimal    `json:"total"`
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`
	Income        ProfitAndLossSection `json:"income"`
	Expenses      ProfitAndLossSection `json:"expenses"`
	TotalIncome   decimal.Decimal      `json:"total_income"`
	TotalExpenses decimal.Decimal      `json:"total_expenses"`
	NetProfit     decimal.Decimal      `json:"net_profit"`
}

// BuildProfitAndLoss aggregates window activity into income and expense sections.
// Accounts without activity in the window are omitted.
func BuildProfitAndLoss(from, to time.Time, accounts []AccountBalance) ProfitAndLoss {
	income := ProfitAndLossSection{Label: "Income", Total: decimal.Zero}
	expenses := ProfitAndLossSection{Label: "Expenses", Total: decimal.Zero}

	for _, acc := range accounts {
		if !acc.HasActivity() {
			continue
		}
		row := ProfitAndLossRow{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Amount: acc.Net()}
		switch acc.Type {
		case accounting.AccountTypeIncome:
			income.Rows = append(income.Rows, row)
			income.Total = income.Total.Add(row.Amount)
		case accounting.AccountTypeExpense:
			expenses.Rows = append(expenses.Rows, row)
			expenses.Total = expenses.Total.Add(row.Amount)
		}
	}

	sort.Slice(income.Rows, func(i, j int) bool { return income.Rows[i].Code < income.Rows[j].Code })
	sort.Slice(expenses.Rows, func(i, j int) bool { return expenses.Rows[i].Code < expenses.Rows[j].Code })

	return ProfitAndLoss{
		From:          from,
		To:            to,
		Income:        income,
		Expenses:      expenses,
		TotalIncome:   income.Total,
		TotalExpenses: expenses.Total,
		NetProfit:     income.Total.Sub(expenses.Total),
	}
}

package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	_ "github.com/odyssey-erp/ledger/testing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBuildTrialBalance(t *testing.T) {
	asOf := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	accounts := []AccountBalance{
		{AccountID: 2, Code: "1120", Name: "Bank", Type: accounting.AccountTypeAsset, Debit: d("100"), Credit: d("250")},
		{AccountID: 1, Code: "1110", Name: "Cash", Type: accounting.AccountTypeAsset, Debit: d("700"), Credit: d("200")},
		{AccountID: 3, Code: "2110", Name: "Accounts Payable", Type: accounting.AccountTypeLiability, Debit: d("10"), Credit: d("60")},
		{AccountID: 4, Code: "4100", Name: "Sales", Type: accounting.AccountTypeIncome, Credit: d("400")},
		{AccountID: 5, Code: "5100", Name: "Rent", Type: accounting.AccountTypeExpense, Debit: d("100")},
	}

	tb := BuildTrialBalance(asOf, accounts)
	if len(tb.Groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(tb.Groups))
	}
	if tb.Groups[0].Type != accounting.AccountTypeAsset || tb.Groups[0].Rows[0].Code != "1110" {
		t.Fatalf("unexpected ordering: %+v", tb.Groups[0])
	}
	// the overdrawn bank stays in the debit column as a negative amount
	bank := tb.Groups[0].Rows[1]
	if !bank.Debit.Equal(d("-150")) || !bank.Credit.IsZero() {
		t.Fatalf("unexpected bank row: %+v", bank)
	}
	if !tb.TotalDebit.Equal(d("450")) {
		t.Fatalf("unexpected total debit: %s", tb.TotalDebit)
	}
	if !tb.TotalCredit.Equal(d("450")) {
		t.Fatalf("unexpected total credit: %s", tb.TotalCredit)
	}
	if !tb.Balanced() {
		t.Fatalf("expected balanced trial balance")
	}
	if len(tb.Rows()) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(tb.Rows()))
	}
}

func TestBuildProfitAndLoss(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	accounts := []AccountBalance{
		{Code: "4100", Name: "Sales", Type: accounting.AccountTypeIncome, Debit: d("0"), Credit: d("1200")},
		{Code: "4200", Name: "Services", Type: accounting.AccountTypeIncome, Debit: decimal.Zero, Credit: decimal.Zero},
		{Code: "5100", Name: "COGS", Type: accounting.AccountTypeExpense, Debit: d("300"), Credit: d("0")},
		{Code: "5210", Name: "Marketing", Type: accounting.AccountTypeExpense, Debit: d("250"), Credit: d("50")},
		{Code: "1110", Name: "Cash", Type: accounting.AccountTypeAsset, Debit: d("900")},
	}

	pl := BuildProfitAndLoss(from, to, accounts)
	if len(pl.Income.Rows) != 1 {
		t.Fatalf("expected idle income account to be omitted, got %d rows", len(pl.Income.Rows))
	}
	if !pl.TotalIncome.Equal(d("1200")) {
		t.Fatalf("expected income total 1200 got %s", pl.TotalIncome)
	}
	if !pl.TotalExpenses.Equal(d("500")) {
		t.Fatalf("expected expense total 500 got %s", pl.TotalExpenses)
	}
	if !pl.NetProfit.Equal(d("700")) {
		t.Fatalf("expected net profit 700 got %s", pl.NetProfit)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	asOf := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	accounts := []AccountBalance{
		{Code: "1110", Name: "Cash", Type: accounting.AccountTypeAsset, Debit: d("1100"), Credit: d("20")},
		{Code: "2110", Name: "AP", Type: accounting.AccountTypeLiability, Debit: d("10"), Credit: d("40")},
		{Code: "3100", Name: "Capital", Type: accounting.AccountTypeEquity, Credit: d("500")},
		{Code: "4100", Name: "Sales", Type: accounting.AccountTypeIncome, Credit: d("600")},
		{Code: "5100", Name: "Rent", Type: accounting.AccountTypeExpense, Debit: d("50")},
	}

	bs := BuildBalanceSheet(asOf, accounts)
	if !bs.Assets.Total.Equal(d("1080")) {
		t.Fatalf("unexpected assets total %s", bs.Assets.Total)
	}
	if !bs.CurrentEarnings.Equal(d("550")) {
		t.Fatalf("unexpected current earnings %s", bs.CurrentEarnings)
	}
	last := bs.Equity.Rows[len(bs.Equity.Rows)-1]
	if last.Name != CurrentEarningsLabel {
		t.Fatalf("expected current earnings row, got %+v", last)
	}
	if !bs.TotalLiabilitiesAndEquity.Equal(d("1080")) {
		t.Fatalf("unexpected liabilities and equity %s", bs.TotalLiabilitiesAndEquity)
	}
	if !bs.Balanced() {
		t.Fatalf("expected balanced sheet")
	}
}

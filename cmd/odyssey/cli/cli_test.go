package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"

	_ "github.com/odyssey-erp/ledger/testing"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("INTEGRITY_CRON", "")
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_FORMAT", "json")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCOAInitSeedsChart(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "coa", "init", "--tenant", uuid.NewString())
	require.NoError(t, err)
	require.Contains(t, out, "created ")
}

func TestTrialBalanceForEmptyTenant(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "tb", "--tenant", uuid.NewString(), "--as-of", "2025-01-31")
	require.NoError(t, err)
	require.Contains(t, out, "2025-01-31")
	require.Contains(t, out, "TOTAL")
}

func TestCommandsRejectBadInput(t *testing.T) {
	memoryEnv(t)
	_, err := execute(t, "tb", "--tenant", "nope")
	require.Error(t, err)

	_, err = execute(t, "pl", "--tenant", uuid.NewString(), "--from", "2025-02-01", "--to", "2025-01-01")
	require.Error(t, err)

	_, err = execute(t, "coa", "list")
	require.Error(t, err, "tenant flag is required")

	_, err = execute(t, "migrate")
	require.Error(t, err, "memory store has no schema")
}

func TestJobsIntegrityRunsInline(t *testing.T) {
	memoryEnv(t)
	out, err := execute(t, "jobs", "integrity")
	require.NoError(t, err)
	require.Contains(t, out, "null")
}

func TestFormatAmountUsesCurrencyMinorUnits(t *testing.T) {
	require.Equal(t, "500", formatAmount(decimal.RequireFromString("500"), "JPY"))
	require.Equal(t, "0.125", formatAmount(decimal.RequireFromString("0.125"), "BHD"))
	require.Equal(t, "12.50", formatAmount(decimal.RequireFromString("12.5"), "USD"))
}

func TestPrintTrialBalanceInYen(t *testing.T) {
	asOf := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	tb := reports.BuildTrialBalance(asOf, []reports.AccountBalance{
		{AccountID: 1, Code: "1010", Name: "Cash", Type: accounting.AccountTypeAsset, Debit: decimal.NewFromInt(1500), Credit: decimal.Zero},
		{AccountID: 2, Code: "4000", Name: "Sales", Type: accounting.AccountTypeIncome, Debit: decimal.Zero, Credit: decimal.NewFromInt(1500)},
	})
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, printTrialBalance(cmd, tb, "JPY"))
	require.Contains(t, out.String(), "(JPY)")
	require.Contains(t, out.String(), "1500")
	require.NotContains(t, out.String(), "1500.00")
}

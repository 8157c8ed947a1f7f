package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ledger/internal/app"
)

func newReportCommands() []*cobra.Command {
	return []*cobra.Command{newTrialBalanceCommand(), newProfitLossCommand(), newBalanceSheetCommand()}
}

func newTrialBalanceCommand() *cobra.Command {
	var tenant, asOf string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tb",
		Short: "Print the trial balance as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			date, err := parseDate(asOf, time.Now().UTC())
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			tb, err := rt.Ledger.GetTrialBalance(cmd.Context(), tenantID, date)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tb)
			}
			return printTrialBalance(cmd, tb, rt.Config.LedgerDefaultCurrency)
		},
	}
	tenantFlag(cmd, &tenant)
	cmd.Flags().StringVar(&asOf, "as-of", "", "as-of date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// formatAmount renders value with the currency's minor units.
func formatAmount(value decimal.Decimal, currency string) string {
	return value.StringFixed(accounting.MinorUnits(currency))
}

func printTrialBalance(cmd *cobra.Command, tb reports.TrialBalance, currency string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Trial balance as of %s (%s)\t\t\t\n", tb.AsOf.Format(time.DateOnly), currency)
	fmt.Fprintln(tw, "CODE\tNAME\tDEBIT\tCREDIT\t")
	for _, row := range tb.Rows() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", row.Code, row.Name, formatAmount(row.Debit, currency), formatAmount(row.Credit, currency))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", formatAmount(tb.TotalDebit, currency), formatAmount(tb.TotalCredit, currency))
	if err := tw.Flush(); err != nil {
		return err
	}
	if !tb.Balanced() {
		return fmt.Errorf("trial balance does not balance")
	}
	return nil
}

func newProfitLossCommand() *cobra.Command {
	var tenant, from, to string
	cmd := &cobra.Command{
		Use:   "pl",
		Short: "Print the profit and loss statement for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			end, err := parseDate(to, now)
			if err != nil {
				return err
			}
			start, err := parseDate(from, time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC))
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			pl, err := rt.Ledger.GetProfitAndLoss(cmd.Context(), tenantID, start, end)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pl)
		},
	}
	tenantFlag(cmd, &tenant)
	cmd.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD (default start of --to month)")
	cmd.Flags().StringVar(&to, "to", "", "last day YYYY-MM-DD (default today)")
	return cmd
}

func newBalanceSheetCommand() *cobra.Command {
	var tenant, asOf string
	cmd := &cobra.Command{
		Use:   "bs",
		Short: "Print the balance sheet as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			date, err := parseDate(asOf, time.Now().UTC())
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			bs, err := rt.Ledger.GetBalanceSheet(cmd.Context(), tenantID, date)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bs)
		},
	}
	tenantFlag(cmd, &tenant)
	cmd.Flags().StringVar(&asOf, "as-of", "", "as-of date YYYY-MM-DD (default today)")
	return cmd
}

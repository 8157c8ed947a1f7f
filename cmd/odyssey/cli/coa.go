package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger/internal/app"
)

func newCOACommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coa",
		Short: "Manage a tenant's chart of accounts",
	}
	cmd.AddCommand(newCOAInitCommand(), newCOAListCommand())
	return cmd
}

func newCOAInitCommand() *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed the standard chart into an empty tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			created, err := rt.Ledger.InitializeChartOfAccounts(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d accounts for tenant %s\n", len(created), tenantID)
			return nil
		},
	}
	tenantFlag(cmd, &tenant)
	return cmd
}

func newCOAListCommand() *cobra.Command {
	var tenant string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the chart with rolled-up balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), app.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			list, err := rt.Ledger.ListAccounts(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			depth := make(map[int64]int, len(list))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tCURRENCY\tBALANCE")
			for _, a := range list {
				d := 0
				if a.ParentID != nil {
					d = depth[*a.ParentID] + 1
				}
				depth[a.ID] = d
				fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\t%s\n", a.Code, strings.Repeat("  ", d), a.Name, a.Type, a.Currency, a.Balance.StringFixed(2))
			}
			return tw.Flush()
		},
	}
	tenantFlag(cmd, &tenant)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

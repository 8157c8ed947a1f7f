// Package cli implements the odyssey command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger/internal/app"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "odyssey",
		Short: "Multi-tenant double-entry ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand(), newMigrateCommand(), newCOACommand(), newJobsCommand())
	rootCmd.AddCommand(newReportCommands()...)

	return rootCmd
}

// openRuntime loads configuration and connects the ledger for one command.
func openRuntime(ctx context.Context, opts app.BootstrapOptions) (*app.Runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return app.Bootstrap(ctx, cfg, app.NewLogger(cfg), opts)
}

func tenantFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "tenant", "", "tenant id (uuid)")
	_ = cmd.MarkFlagRequired("tenant")
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant %q: %w", raw, err)
	}
	return id, nil
}

func parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

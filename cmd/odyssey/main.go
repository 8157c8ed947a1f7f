package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/ledger/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	if len(os.Args) == 1 {
		root.SetArgs([]string{"serve"})
	}
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ledger/internal/app"
)

//go:embed journals.yaml
var journalsYAML []byte

type seedLine struct {
	Account string          `yaml:"account"`
	Debit   decimal.Decimal `yaml:"debit"`
	Credit  decimal.Decimal `yaml:"credit"`
}

type seedEntry struct {
	Date        string     `yaml:"date"`
	Reference   string     `yaml:"reference"`
	Description string     `yaml:"description"`
	Lines       []seedLine `yaml:"lines"`
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	rt, err := app.Bootstrap(ctx, cfg, app.NewLogger(cfg), app.BootstrapOptions{Migrate: cfg.UsesPostgres()})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	tenant := uuid.MustParse(getenv("SEED_TENANT", "00000000-0000-0000-0000-000000000001"))
	fmt.Printf("→ Seeding tenant %s\n", tenant)
	if err := seed(ctx, rt.Ledger, tenant); err != nil {
		log.Fatalf("seed: %v", err)
	}

	tb, err := rt.Ledger.GetTrialBalance(ctx, tenant, time.Now().UTC())
	if err != nil {
		log.Fatalf("trial balance: %v", err)
	}
	fmt.Printf("✓ Trial balance debit=%s credit=%s\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
}

func seed(ctx context.Context, l *ledger.Ledger, tenant uuid.UUID) error {
	chart, err := l.InitializeChartOfAccounts(ctx, tenant)
	switch {
	case errors.Is(err, shared.ErrConflict):
		fmt.Println("→ Chart already present, skipping")
		return nil
	case err != nil:
		return err
	}
	byCode := make(map[string]int64, len(chart))
	for _, a := range chart {
		byCode[a.Code] = a.ID
	}

	var entries []seedEntry
	if err := yaml.Unmarshal(journalsYAML, &entries); err != nil {
		return fmt.Errorf("parse journals: %w", err)
	}
	for _, e := range entries {
		in, err := toInput(e, byCode)
		if err != nil {
			return err
		}
		draft, err := l.CreateJournalEntry(ctx, tenant, in, "seed")
		if err != nil {
			return fmt.Errorf("create %s: %w", e.Reference, err)
		}
		if _, err := l.PostJournalEntry(ctx, tenant, draft.ID); err != nil {
			return fmt.Errorf("post %s: %w", e.Reference, err)
		}
		fmt.Printf("  posted %s %s\n", e.Date, e.Reference)
	}
	return nil
}

func toInput(e seedEntry, byCode map[string]int64) (journals.EntryInput, error) {
	date, err := time.Parse(time.DateOnly, e.Date)
	if err != nil {
		return journals.EntryInput{}, fmt.Errorf("%s: %w", e.Reference, err)
	}
	in := journals.EntryInput{Date: accounting.DateOnly(date), Reference: e.Reference, Description: e.Description}
	for _, line := range e.Lines {
		id, ok := byCode[line.Account]
		if !ok {
			return journals.EntryInput{}, fmt.Errorf("%s: unknown account %s", e.Reference, line.Account)
		}
		in.Lines = append(in.Lines, journals.LineInput{AccountID: id, Debit: line.Debit, Credit: line.Credit})
	}
	return in, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

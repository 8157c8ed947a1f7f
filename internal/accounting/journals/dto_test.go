package journals

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

func TestEntryInputValidate(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	d := decimal.RequireFromString

	cases := map[string]struct {
		in      EntryInput
		wantErr bool
	}{
		"balanced": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("100")}, {AccountID: 2, Credit: d("100")},
		}}},
		"split credit": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("100")}, {AccountID: 2, Credit: d("60")}, {AccountID: 3, Credit: d("40")},
		}}},
		"single line": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("100")},
		}}, wantErr: true},
		"unbalanced": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("100")}, {AccountID: 2, Credit: d("99.99")},
		}}, wantErr: true},
		"both sides": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("100"), Credit: d("100")}, {AccountID: 2, Credit: d("0")},
		}}, wantErr: true},
		"empty line": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("100")}, {AccountID: 2, Credit: d("100")}, {AccountID: 3},
		}}, wantErr: true},
		"negative": {in: EntryInput{Date: date, Lines: []LineInput{
			{AccountID: 1, Debit: d("-100")}, {AccountID: 2, Credit: d("-100")},
		}}, wantErr: true},
		"missing date": {in: EntryInput{Lines: []LineInput{
			{AccountID: 1, Debit: d("1")}, {AccountID: 2, Credit: d("1")},
		}}, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				if !errors.Is(err, shared.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestReverseLinesSwapSides(t *testing.T) {
	entry := EntryInput{Date: time.Now(), Lines: []LineInput{
		{AccountID: 1, Debit: decimal.NewFromInt(7)},
		{AccountID: 2, Credit: decimal.NewFromInt(7)},
	}}.toEntry("tester", time.Now())

	lines := reverseLines(entry.Lines)
	if !lines[0].Credit.Equal(decimal.NewFromInt(7)) || !lines[0].Debit.IsZero() {
		t.Fatalf("first line not swapped: %+v", lines[0])
	}
	if !lines[1].Debit.Equal(decimal.NewFromInt(7)) || !lines[1].Credit.IsZero() {
		t.Fatalf("second line not swapped: %+v", lines[1])
	}
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
)

type createAccountRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=128"`
	Type     string `json:"type" validate:"required"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	IsGroup  bool   `json:"is_group"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

func (req createAccountRequest) input() accounting.AccountInput {
	return accounting.AccountInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     accounting.AccountType(req.Type),
		ParentID: req.ParentID,
		IsGroup:  req.IsGroup,
		Currency: req.Currency,
	}
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=256"`
}

type createJournalRequest struct {
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Reference   string        `json:"reference" validate:"max=64"`
	Description string        `json:"description" validate:"max=512"`
	Lines       []lineRequest `json:"lines" validate:"required,dive"`
}

func (req createJournalRequest) input() (journals.EntryInput, error) {
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return journals.EntryInput{}, err
	}
	lines := make([]journals.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, journals.LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return journals.EntryInput{
		Date:        date,
		Reference:   req.Reference,
		Description: req.Description,
		Lines:       lines,
	}, nil
}

type reverseJournalRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Memo string `json:"memo" validate:"max=512"`
}

type accountResponse struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	ParentID  *int64          `json:"parent_id,omitempty"`
	IsGroup   bool            `json:"is_group"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAccountResponse(a accounting.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		ParentID:  a.ParentID,
		IsGroup:   a.IsGroup,
		Currency:  a.Currency,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
	}
}

func toAccountResponses(list []accounting.Account) []accountResponse {
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	return out
}

type balanceResponse struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

type lineResponse struct {
	LineNo      int             `json:"line_no"`
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

type journalResponse struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"created_by,omitempty"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	ReversalOf  *int64          `json:"reversal_of,omitempty"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Lines       []lineResponse  `json:"lines"`
}

func toJournalResponse(e accounting.JournalEntry) journalResponse {
	lines := make([]lineResponse, 0, len(e.Lines))
	for _, line := range e.Lines {
		lines = append(lines, lineResponse{
			LineNo:      line.LineNo,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return journalResponse{
		ID:          e.ID,
		Date:        e.Date.Format(time.DateOnly),
		Reference:   e.Reference,
		Description: e.Description,
		Status:      string(e.Status),
		CreatedBy:   e.CreatedBy,
		PostedAt:    e.PostedAt,
		CancelledAt: e.CancelledAt,
		ReversalOf:  e.ReversalOf,
		TotalDebit:  e.TotalDebit,
		TotalCredit: e.TotalCredit,
		Lines:       lines,
	}
}

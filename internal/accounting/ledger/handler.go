package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/platform/httpx"
)

// ActorHeader names the caller recorded as creator of journal entries.
const ActorHeader = "X-Actor"

// Handler exposes the ledger over JSON HTTP. The tenant always comes from the path.
type Handler struct {
	logger    *slog.Logger
	ledger    *Ledger
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, l *Ledger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, ledger: l, validator: validator.New(), now: time.Now}
}

// MountRoutes registers ledger routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts", h.createAccount)
		r.Post("/accounts/initialize", h.initializeChart)
		r.Get("/accounts/{id}/balance", h.accountBalance)

		r.Get("/journals", h.listJournals)
		r.Post("/journals", h.createJournal)
		r.Get("/journals/{id}", h.getJournal)
		r.Post("/journals/{id}/post", h.postJournal)
		r.Post("/journals/{id}/void", h.voidJournal)
		r.Post("/journals/{id}/reverse", h.reverseJournal)

		r.Get("/reports/trial-balance", h.trialBalance)
		r.Get("/reports/profit-loss", h.profitAndLoss)
		r.Get("/reports/balance-sheet", h.balanceSheet)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	list, err := h.ledger.ListAccounts(r.Context(), tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponses(list))
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.ledger.CreateAccount(r.Context(), tenantID, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) initializeChart(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	created, err := h.ledger.InitializeChartOfAccounts(r.Context(), tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponses(created))
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.GetAccountBalance(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{AccountID: id, Balance: balance})
}

func (h *Handler) listJournals(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := accounting.JournalFilter{Status: accounting.JournalStatus(strings.ToLower(q.Get("status")))}
	var err error
	if filter.From, err = optionalDate(q.Get("from")); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.To, err = optionalDate(q.Get("to")); err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.ledger.ListJournalEntries(r.Context(), tenantID, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]journalResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toJournalResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createJournal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req createJournalRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	entry, err := h.ledger.CreateJournalEntry(r.Context(), tenantID, in, r.Header.Get(ActorHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(entry))
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	h.journalAction(w, r, http.StatusOK, h.ledger.GetJournalEntry)
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	h.journalAction(w, r, http.StatusOK, h.ledger.PostJournalEntry)
}

func (h *Handler) voidJournal(w http.ResponseWriter, r *http.Request) {
	h.journalAction(w, r, http.StatusOK, h.ledger.VoidJournalEntry)
}

func (h *Handler) reverseJournal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req reverseJournalRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	in := journals.ReverseInput{EntryID: id, CreatedBy: r.Header.Get(ActorHeader), Memo: req.Memo}
	date, err := optionalDate(req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in.Date = date
	entry, err := h.ledger.ReverseJournalEntry(r.Context(), tenantID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(entry))
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	asOf, err := h.dateOrToday(r.URL.Query().Get("as_of"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tb, err := h.ledger.GetTrialBalance(r.Context(), tenantID, asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := requiredDate("from", q.Get("from"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := requiredDate("to", q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pl, err := h.ledger.GetProfitAndLoss(r.Context(), tenantID, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	asOf, err := h.dateOrToday(r.URL.Query().Get("as_of"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bs, err := h.ledger.GetBalanceSheet(r.Context(), tenantID, asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) journalAction(w http.ResponseWriter, r *http.Request, status int, fn func(context.Context, uuid.UUID, int64) (accounting.JournalEntry, error)) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	entry, err := fn(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, status, toJournalResponse(entry))
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil || tenantID == uuid.Nil {
		h.fail(w, r, fmt.Errorf("%w: invalid tenant id", httpx.ErrBadRequest))
		return uuid.Nil, false
	}
	return tenantID, true
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, fmt.Errorf("%w: invalid id", httpx.ErrBadRequest))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
			err = errors.New(strings.Join(msgs, "; "))
		}
		h.fail(w, r, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("ledger request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) dateOrToday(raw string) (time.Time, error) {
	if raw == "" {
		return accounting.DateOnly(h.now()), nil
	}
	return requiredDate("as_of", raw)
}

func requiredDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", httpx.ErrBadRequest, name)
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrBadRequest, name)
	}
	return t, nil
}

func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q must be YYYY-MM-DD", httpx.ErrBadRequest, raw)
	}
	return &t, nil
}

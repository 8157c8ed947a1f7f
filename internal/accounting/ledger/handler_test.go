package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
	base   string
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	l := newTestLedger(t, accounting.NewMemoryRepository(), Options{})
	router := chi.NewRouter()
	NewHandler(discardLogger(), l).MountRoutes(router)
	return &apiClient{t: t, router: router, base: "/tenants/" + uuid.NewString()}
}

func (c *apiClient) do(method, path, body string, out any) int {
	c.t.Helper()
	req := httptest.NewRequest(method, c.base+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "api-test")
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestHandlerJournalLifecycle(t *testing.T) {
	c := newAPIClient(t)

	var cash, revenue accountResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/accounts", `{"code":"1000","name":"Cash","type":"asset"}`, &cash))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/accounts", `{"code":"4000","name":"Revenue","type":"income"}`, &revenue))
	assert.Equal(t, "USD", cash.Currency)

	body := `{"date":"2025-01-15","description":"sale","lines":[` +
		`{"account_id":` + itoa(cash.ID) + `,"debit":"500"},` +
		`{"account_id":` + itoa(revenue.ID) + `,"credit":500}]}`
	var draft journalResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/journals", body, &draft))
	assert.Equal(t, "draft", draft.Status)
	assert.Equal(t, "api-test", draft.CreatedBy)

	var posted journalResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/journals/"+itoa(draft.ID)+"/post", "", &posted))
	assert.Equal(t, "posted", posted.Status)

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/journals/"+itoa(draft.ID)+"/void", "", nil))

	var bal balanceResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/accounts/"+itoa(revenue.ID)+"/balance", "", &bal))
	assert.True(t, bal.Balance.Equal(amount("500")))

	var tb reports.TrialBalance
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/reports/trial-balance?as_of=2025-01-31", "", &tb))
	assert.True(t, tb.Balanced())
	assert.True(t, tb.TotalDebit.Equal(amount("500")))

	var pl reports.ProfitAndLoss
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/reports/profit-loss?from=2025-02-01&to=2025-02-28", "", &pl))
	assert.True(t, pl.TotalIncome.IsZero())

	var reversal journalResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/journals/"+itoa(draft.ID)+"/reverse", `{"memo":"undo"}`, &reversal))
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, draft.ID, *reversal.ReversalOf)

	var list []journalResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/journals?status=draft", "", &list))
	require.Len(t, list, 1)
	assert.Equal(t, reversal.ID, list[0].ID)
}

func TestHandlerErrorMapping(t *testing.T) {
	c := newAPIClient(t)
	var cash, revenue accountResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/accounts", `{"code":"1000","name":"Cash","type":"asset"}`, &cash))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/accounts", `{"code":"4000","name":"Revenue","type":"income"}`, &revenue))

	unbalanced := `{"date":"2025-01-15","lines":[` +
		`{"account_id":` + itoa(cash.ID) + `,"debit":"500"},` +
		`{"account_id":` + itoa(revenue.ID) + `,"credit":"400"}]}`
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/journals", unbalanced, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/journals", `{"date":"15/01/2025","lines":[]}`, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/accounts", `{"name":"No code","type":"asset"}`, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/accounts", `not json`, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/journals/999/post", "", nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/accounts/999/balance", "", nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/accounts/abc/balance", "", nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/reports/profit-loss?from=2025-01-01", "", nil))

	var created []accountResponse
	require.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/accounts/initialize", "", &created))

	c.base = "/tenants/not-a-uuid"
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/accounts", "", nil))
}

func TestHandlerInitializeChart(t *testing.T) {
	c := newAPIClient(t)
	var created []accountResponse
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/accounts/initialize", "", &created))
	require.NotEmpty(t, created)

	var listed []accountResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/accounts", "", &listed))
	assert.Len(t, listed, len(created))

	var bs reports.BalanceSheet
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/reports/balance-sheet", "", &bs))
	assert.True(t, bs.Balanced())
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

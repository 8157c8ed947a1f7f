package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_STORE", "Memory")
	t.Setenv("LEDGER_DEFAULT_CURRENCY", "eur")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.LedgerStore)
	require.Equal(t, "EUR", cfg.LedgerDefaultCurrency)
	require.False(t, cfg.UsesPostgres())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("LEDGER_STORE", "sqlite")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("LEDGER_DEFAULT_CURRENCY", "XYZW")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("LEDGER_DEFAULT_CURRENCY", "USD")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_API_TOKEN", "")
	_, err = LoadConfig()
	require.Error(t, err)
}

func newTestRouter(t *testing.T, token string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.Build(accounting.NewMemoryRepository(), ledger.Options{Logger: logger})
	return NewRouter(RouterParams{
		Logger:        logger,
		Config:        &Config{LedgerAPIToken: token},
		LedgerHandler: ledger.NewHandler(logger, l),
		Metrics:       observability.NewMetrics(),
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t, "s3cret")
	path := "/tenants/7b0c3e2a-6f1e-4c55-9b8e-0a4c0b7d2f11/accounts"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code, "health stays public")
}

func TestBootstrapMemoryStoreWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{
		LedgerStore:           StoreMemory,
		LedgerDefaultCurrency: "USD",
		RedisAddr:             mr.Addr(),
		CacheEnabled:          true,
		ReportCacheTTL:        time.Minute,
	}
	rt, err := Bootstrap(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), BootstrapOptions{Metrics: observability.NewMetrics()})
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	require.Nil(t, rt.Pool)
	require.NotNil(t, rt.Redis)
	require.NotNil(t, rt.Locker)
	require.NoError(t, rt.Ready(context.Background()))

	tenant := uuid.New()
	chart, err := rt.Ledger.InitializeChartOfAccounts(context.Background(), tenant)
	require.NoError(t, err)
	require.NotEmpty(t, chart)
	tb, err := rt.Ledger.GetTrialBalance(context.Background(), tenant, time.Now())
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	require.True(t, mr.Exists("ledger:"+tenant.String()+":version"))

	mr.Close()
	require.Error(t, rt.Ready(context.Background()))
}

func TestBootstrapWithoutRedisDegrades(t *testing.T) {
	cfg := &Config{
		LedgerStore:           StoreMemory,
		LedgerDefaultCurrency: "USD",
		RedisAddr:             "127.0.0.1:1",
		CacheEnabled:          true,
		ReportCacheTTL:        time.Minute,
	}
	rt, err := Bootstrap(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), BootstrapOptions{})
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	require.Nil(t, rt.Redis)
	require.Nil(t, rt.Locker)
	require.NoError(t, rt.Ready(context.Background()))
}

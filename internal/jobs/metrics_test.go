package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("ledger_gl_integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger_gl_integrity").End(boom), boom)
	m.AddIntegrityFailures("trial_balance", 2)
	m.AddIntegrityFailures("trial_balance", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger_gl_integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger_gl_integrity")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.integrity.WithLabelValues("trial_balance")))
}

func TestNilMetricsTracker(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddIntegrityFailures("x", 1)
}

package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("")

	m.RecordCommand("confirm", nil)
	m.RecordCommand("confirm", nil)
	m.RecordCommand("complete", errors.New("boom"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("confirm", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("complete", "error")))

	m.RecordSettlement(250*time.Millisecond, 3, 7.5)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LedgerEntriesPosted))
	assert.Equal(t, 7.5, testutil.ToFloat64(m.HoursSettled))

	m.RecordShortCircuit()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementShortCircuit))

	m.RecordLedgerFailure(true)
	m.RecordLedgerFailure(false)
	m.RecordLedgerFailure(true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerFailures.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerFailures.WithLabelValues("false")))

	m.SetBreakerState(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerBreakerState))

	m.RecordNotification("completed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("completed")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCommand("start", nil)
		m.RecordSettlement(time.Second, 1, 1)
		m.RecordShortCircuit()
		m.RecordLedgerFailure(false)
		m.SetBreakerState(0)
		m.RecordNotification("cancelled")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordCommand("start", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `test_engine_commands_total{action="start",outcome="ok"} 1`), body)
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collectors are registered")
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRPC(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRPC("/approval.v1.ApprovalService/Approve", "OK", 10*time.Millisecond)
	m.ObserveRPC("/approval.v1.ApprovalService/Approve", "OK", 20*time.Millisecond)
	m.ObserveConflict("locked")

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/approval.v1.ApprovalService/Approve", "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("locked")))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveRPC("method", "OK", time.Millisecond)
	m.ObserveConflict("overlap")
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveConflict("overlap")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `workforce_schedule_conflicts_total{reason="overlap"} 1`))
}

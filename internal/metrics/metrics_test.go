package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RowSubmitted()
	m.RowSubmitted()
	m.RowFailed()
	m.RowSkipped()
	m.AdditionalAnswer(core.OutcomeSubmitted)
	m.AdditionalAnswer(core.OutcomeEmpty)
	m.DateFallback()
	m.RunFinished(core.PhaseComplete)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.additional.WithLabelValues(core.OutcomeEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dateFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("complete")))
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("submit_answer", 201, 30*time.Millisecond)
	m.ObserveRequest("submit_answer", 0, time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(m.remote))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RowSubmitted()
		m.RowFailed()
		m.RowSkipped()
		m.AdditionalAnswer(core.OutcomeFailed)
		m.DateFallback()
		m.RunFinished(core.PhaseError)
		m.ObserveRequest("x", 500, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RowSubmitted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `surveyimport_rows_total{outcome="submitted"} 1`)
}

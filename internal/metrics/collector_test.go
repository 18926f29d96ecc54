package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector() *Collector {
	return NewCollector(prometheus.NewRegistry())
}

func TestRecordJob(t *testing.T) {
	c := newTestCollector()

	c.RecordJob("success", 2*time.Second)
	c.RecordJob("success", time.Second)
	c.RecordJob("failed", 500*time.Millisecond)

	expected := `
		# HELP transcribot_jobs_total Finished jobs by outcome
		# TYPE transcribot_jobs_total counter
		transcribot_jobs_total{status="failed"} 1
		transcribot_jobs_total{status="success"} 2
	`
	err := testutil.GatherAndCompare(c.registry, strings.NewReader(expected), "transcribot_jobs_total")
	assert.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(c.jobDuration))
}

func TestRecordQuotaDecision(t *testing.T) {
	c := newTestCollector()

	c.RecordQuotaDecision(true)
	c.RecordQuotaDecision(false)
	c.RecordQuotaDecision(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.quotaDecisions.WithLabelValues("allowed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.quotaDecisions.WithLabelValues("denied")))
}

func TestObserveExternalCall(t *testing.T) {
	c := newTestCollector()

	c.ObserveExternalCall("transcription", nil, time.Second)
	c.ObserveExternalCall("translation", errors.New("boom"), time.Second)
	c.ObserveExternalCall("translation", nil, time.Second)

	expected := `
		# HELP transcribot_external_calls_total Calls to conversion, transcription and translation backends
		# TYPE transcribot_external_calls_total counter
		transcribot_external_calls_total{backend="transcription",status="success"} 1
		transcribot_external_calls_total{backend="translation",status="error"} 1
		transcribot_external_calls_total{backend="translation",status="success"} 1
	`
	err := testutil.GatherAndCompare(c.registry, strings.NewReader(expected), "transcribot_external_calls_total")
	assert.NoError(t, err)
}

func TestGauges(t *testing.T) {
	c := newTestCollector()

	c.SetActiveSessions(4)
	c.SetQueueDepth(12)
	c.RecordSessionExpired()
	c.RecordDroppedResult()
	c.RecordCommand("/start")
	c.RecordRateLimited("global")
	c.RecordSubscriptionEvent("activate")

	assert.Equal(t, float64(4), testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, float64(12), testutil.ToFloat64(c.workerQueueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsExpired))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.droppedResults))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.commandsTotal.WithLabelValues("/start")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.rateLimitedTotal.WithLabelValues("global")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.subscriptionEvents.WithLabelValues("activate")))
}

func TestHandler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordJob("success", time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `transcribot_jobs_total{status="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

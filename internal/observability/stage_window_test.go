package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageWindowSnapshot(t *testing.T) {
	w := newStageWindow(8)
	w.Observe("ask_answer", 500)
	w.Observe("ask_answer", 700)
	w.Observe("ask_answer", 900)
	w.ObserveIndicator("keyword_fallback")
	w.ObserveIndicator("keyword_fallback")

	snap := w.Snapshot()
	assert.EqualValues(t, 8, snap.WindowSize)
	require.Len(t, snap.Stages, 1)
	s := snap.Stages[0]
	assert.EqualValues(t, 3, s.Samples)
	assert.EqualValues(t, 900, s.LastMS)
	assert.EqualValues(t, 700, s.P50MS)
	assert.Greater(t, s.P95MS, 700.0)
	assert.LessOrEqual(t, s.P95MS, 900.0)
	assert.EqualValues(t, 6000, s.TargetP95MS)
	require.Len(t, snap.Indicators, 1)
	assert.EqualValues(t, 2, snap.Indicators[0].Count)
}

func TestStageWindowWraps(t *testing.T) {
	w := newStageWindow(2)
	w.Observe("ask_search", 1)
	w.Observe("ask_search", 2)
	w.Observe("ask_search", 30)

	stages := w.Snapshot().Stages
	require.Len(t, stages, 1)
	assert.EqualValues(t, 2, stages[0].Samples)
	assert.InDelta(t, 16, stages[0].AvgMS, 0.001)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetricsWithRegistry("test", prometheus.NewRegistry())
	m.ObserveClaim(true)
	m.ObserveClaim(false)
	m.ObserveJobFinished("done", 2*time.Second)
	m.ObserveAsk("answered", time.Second)
	m.ObserveHTTP("", 404)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsClaimed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobClaimConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "404")))

	var nilMetrics *Metrics
	nilMetrics.ObserveAsk("answered", time.Second)
	assert.Empty(t, nilMetrics.SnapshotStages().Stages)
}

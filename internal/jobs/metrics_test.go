package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("upload:sweep").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("upload:sweep").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("upload:sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("upload:sweep", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("upload:sweep")))
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddRemoved("x", 3)
}

func TestAddRemovedIgnoresNonPositive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddRemoved("upload:sweep", 0)
	m.AddRemoved("upload:sweep", 2)
	require.Equal(t, 2.0, testutil.ToFloat64(m.removed.WithLabelValues("upload:sweep")))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaugeWithoutStorage(t *testing.T) {
	require.NoError(t, Close())
	SetGauge("test_gauge", 42)
	assert.Equal(t, float64(42), testutil.ToFloat64(gauges.WithLabelValues("test_gauge")))

	pts, err := Query("test_gauge", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestStorageRoundTrip(t *testing.T) {
	require.NoError(t, InitMetrics(t.TempDir()))
	defer Close()

	SetGauge("system_cpuuse", 1234)
	pts, err := Query("system_cpuuse", time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, float64(1234), pts[0].Value)
}

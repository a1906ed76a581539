package authflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricFlowStarted)
	assert.Zero(t, m.Value(MetricFlowStarted))
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRouteReceived)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(goroutines*perG), m.Value(MetricRouteReceived))
}

func TestMetricsHistogramsNeedLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricFlowDuration, time.Second)
	_, ok := m.Snapshot().Histograms[MetricFlowDuration]
	assert.False(t, ok, "histogram recorded without EnableLatencyHistograms")

	m = NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricFlowDuration, time.Second)
	buckets, ok := m.Snapshot().Histograms[MetricFlowDuration]
	require.True(t, ok)
	var total uint64
	for _, n := range buckets {
		total += n
	}
	assert.Equal(t, uint64(1), total)
}

func TestOutputMetric(t *testing.T) {
	cases := map[OutputKind]MetricID{
		OutputSuccess:     MetricFlowSucceeded,
		OutputCancel:      MetricFlowCanceled,
		OutputOnlyDismiss: MetricFlowDismissed,
		OutputNotStarted:  MetricFlowNotStarted,
	}
	for kind, want := range cases {
		assert.Equal(t, want, outputMetric(kind), kind.String())
	}
}

package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram.
type MetricID uint16

const (
	MetricFlowStarted MetricID = iota
	MetricFlowNotStarted
	MetricFlowSucceeded
	MetricFlowCanceled
	MetricFlowDismissed
	MetricVariantSignin
	MetricVariantSignup
	MetricStatusLookupFailure
	MetricDispositionAbort
	MetricDispositionError
	MetricCoordinatorSpawned
	MetricRouteReceived
	MetricRouteHandledByChild
	MetricRouteResetByChild
	MetricCodeValidationSuccess
	MetricCodeValidationFailure
	MetricValidationRejected
	MetricTermsRefreshFailure
	MetricFlowDuration
	MetricStatusLookupLatency
	MetricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config enables counters and, separately, histograms.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds the counters. A nil *Metrics is a valid disabled instance.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram for id. Only histogram ids are accepted.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !IsHistogram(id) {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(id, d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if IsHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		for _, id := range []MetricID{MetricFlowDuration, MetricStatusLookupLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

// IsHistogram reports whether id names a histogram rather than a counter.
func IsHistogram(id MetricID) bool {
	return id == MetricFlowDuration || id == MetricStatusLookupLatency
}

// Flow durations are human-scale; lookups are network-scale.
var (
	flowBounds   = [histBucketCount - 1]time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, time.Minute, 2 * time.Minute, 5 * time.Minute}
	lookupBounds = [histBucketCount - 1]time.Duration{25 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2500 * time.Millisecond}
)

// Bounds returns the upper bounds of the first seven buckets of a histogram id.
func Bounds(id MetricID) [histBucketCount - 1]time.Duration {
	if id == MetricFlowDuration {
		return flowBounds
	}
	return lookupBounds
}

func bucketIndex(id MetricID, d time.Duration) int {
	bounds := Bounds(id)
	for i, b := range bounds {
		if d <= b {
			return i
		}
	}
	return histBucketCount - 1
}

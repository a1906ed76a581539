package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/internaldefs"
)

type scenarioStats struct {
	flows    int
	failures int64
	total    time.Duration
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	flowsPS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) scenarioStats {
	if len(samples) == 0 {
		return scenarioStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return scenarioStats{
		total:    total,
		flows:    len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		flowsPS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s scenarioStats) {
	fmt.Fprintf(w, "%-20s flows=%d failures=%d total=%s flows/sec=%.1f p50=%s p95=%s p99=%s\n",
		name,
		s.flows,
		s.failures,
		s.total.Round(time.Millisecond),
		s.flowsPS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// mergeSnapshot adds src into dst. Every host keeps its own registry.
func mergeSnapshot(dst *authflow.MetricsSnapshot, src authflow.MetricsSnapshot) {
	if dst.Counters == nil {
		dst.Counters = map[authflow.MetricID]uint64{}
		dst.Histograms = map[authflow.MetricID][]uint64{}
	}
	for id, v := range src.Counters {
		dst.Counters[id] += v
	}
	for id, buckets := range src.Histograms {
		acc := dst.Histograms[id]
		if len(acc) < len(buckets) {
			grown := make([]uint64, len(buckets))
			copy(grown, acc)
			acc = grown
		}
		for i, v := range buckets {
			acc[i] += v
		}
		dst.Histograms[id] = acc
	}
}

func printMetrics(w io.Writer, snap authflow.MetricsSnapshot) {
	for _, def := range internaldefs.CounterDefs {
		if v := snap.Counters[def.ID]; v > 0 {
			fmt.Fprintf(w, "  %-48s %d\n", def.Name, v)
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(buckets))
		for i, bound := range def.Bounds {
			fmt.Fprintf(w, "  %s{le=%q} %d\n", def.Name, internaldefs.BoundLabel(bound), cumulative[i])
		}
		fmt.Fprintf(w, "  %s{le=\"+Inf\"} %d\n", def.Name, cumulative[len(cumulative)-1])
	}
}

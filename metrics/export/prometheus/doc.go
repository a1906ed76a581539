// Package prometheus exposes authflow host metrics as a client_golang
// [prometheus.Collector].
//
// Counters are named authflow_*_total. The flow duration and status lookup
// latency histograms are exported in seconds.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry; callers register the
//     collector or mount [Collector.Handler].
//   - Mutate host state.
package prometheus

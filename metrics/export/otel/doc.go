// Package otel binds authflow host metrics to an OpenTelemetry meter.
//
// Every counter becomes an Int64ObservableCounter. Each histogram becomes one
// Int64ObservableGauge of cumulative bucket counts, split by an "le"
// attribute, plus a _count gauge. One callback reads the host snapshot per
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate host state.
package otel

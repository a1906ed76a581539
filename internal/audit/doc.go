// Package audit relays flow lifecycle events to a caller-supplied sink without
// blocking the flow's execution context.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON lines, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: one flow lifecycle record: flow id, type, masked identifier, outcome.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide which events to
// emit; the orchestrator does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on flow logic.
//   - Import authflow or any sibling internal package.
package audit

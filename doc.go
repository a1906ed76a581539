// Package authflow coordinates multi-step sign-in and sign-up identity flows.
//
// A [Host] owns the single active-flow slot. Each started flow is driven by an
// [Orchestrator] that collects an identifier, resolves whether the user signs in
// or signs up, spawns one [AuthCoordinator] for the selected authentication
// method and delivers exactly one [Output] to the caller.
//
// # Concurrency
//
// Hosts, orchestrators and coordinators are confined to a single executor (see
// [Builder.WithExecutor]). Every exported method on [Host] and [Orchestrator]
// must be called from that executor. Network-bound collaborators run on their
// own goroutines and post their results back; results that arrive after the
// requesting step was torn down are dropped.
//
// # Architecture boundaries
//
// authflow is the public surface. Rendering is delegated to a
// [PresentationSurface], identity backends to [StatusFetcher], [CodeValidator]
// and [Authenticator]. Deep links are parsed by the deeplink package. Audit
// dispatch, metrics storage and navigation live under internal/.
//
// # What this package must NOT do
//
//   - Keep process-wide mutable state. The active flow lives on a Host value.
//   - Block the executor on network calls.
//   - Deliver more than one Output for a started flow.
package authflow

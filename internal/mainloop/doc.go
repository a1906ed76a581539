// Package mainloop provides the single confined execution context that owns all
// flow state.
//
// Every mutation of orchestrator, adapter and coordinator state happens inside a
// function posted to an [Executor]. Background work (network lookups) runs on its
// own goroutine and hands its result back with Post, so flow state never needs a
// lock.
package mainloop

// Package identity is a Redis-backed reference identity backend for
// authflow hosts. A [Manager] implements every backend collaborator the
// engine needs (status lookup, code validation, authentication, current
// user, redirect parsing and terms refresh) so a flow can run end to end
// in the simulator, the HTTP example and tests.
//
// Codes and reset links are handed to a [Notifier]. [Outbox] keeps them in
// memory, [LogNotifier] writes them to a zap logger.
package identity

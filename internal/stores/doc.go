// Package stores holds the Redis records behind the reference identity
// backend: accounts, one-time auth codes and sessions.
//
// # Design
//
// Accounts live in Redis hashes keyed by normalized identifier with a
// secondary id index. Creation is a WATCH/MULTI optimistic transaction so
// two concurrent sign ups for one identifier cannot both succeed.
//
// Auth codes are binary records keyed by the SHA-256 of the code, since a
// deep link carries the code alone. Consume is a Lua script that reads,
// checks expiry and deletes in one round trip; a code validates at most once.
//
// Sessions are hashes with a TTL. One session per store namespace is marked
// current, which is what the host reads as the signed-in user.
//
// # What this package must NOT do
//
//   - Import authflow or any sibling package.
//   - Store plaintext codes or passwords.
package stores

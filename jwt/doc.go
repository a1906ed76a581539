// Package jwt issues and verifies the session tokens handed back to hosts
// after a flow completes. Tokens carry the user id, a session id and the
// granted scopes.
package jwt

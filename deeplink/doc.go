// Package deeplink turns redirect URLs into structured flow intents.
//
// A recognized URL is classified twice: as a [Route], used to resume or redirect a
// live flow, and (when one applies) as a [LaunchPayload], used by an app shell that
// handles the link headlessly at launch time. The caller decides which to act on
// based on whether a flow is currently active.
//
// # What this package must NOT do
//
//   - Hold state between calls. [Parse] is a pure function.
//   - Import authflow or any sibling package.
package deeplink

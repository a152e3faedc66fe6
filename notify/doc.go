// Package notify fans subsystem state changes out to interested observers.
//
// The Notifier is the hub: subsystem holders feed it changes, and observers
// register and deregister explicitly. Fan-out is synchronous, so observers
// must be quick; anything slow belongs behind its own buffer.
//
// Two observers ship with the package. The Broadcaster exposes changes to
// UI clients over a websocket endpoint with a per-client rate limiter, and
// the Notifier itself can mirror every change onto a message bus subject
// for off-box consumers.
package notify

// Package events implements the in-process multiplexer that fans roster
// events out to subscribers.
//
// Dispatch is synchronous and snapshot based: Emit copies the subscriber list
// for a kind before invoking anything, so callbacks may subscribe, unsubscribe
// or emit again without disturbing the delivery in progress. A subscription
// registered with an origin tag is skipped for events carrying the same tag,
// which lets an actor apply its own action locally and ignore the echo that
// later comes back from the server.
package events

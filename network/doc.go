// Package network feeds decoded roster events into a multiplexer and serves
// the resulting roster to renderers.
//
// Sources (WSSource, RedisSource, Replay) call Emit exactly once per
// envelope; they never batch. Frames that fail to decode are logged and
// skipped. RosterHandler is read-only: nothing reachable from it mutates the
// roster.
package network

// Package server hosts the per-connection render actors and the
// websocket surface in front of them.
//
// Each connection gets a Session: a single goroutine that owns the
// connection's bindings, diff engine, and committed tree. Triggers
// (client events, server-side dispatches, resync requests) are queued
// into the actor and processed one at a time, so renders never
// interleave and every diff is computed against exactly the tree the
// client last applied. The cycle is compile, diff, encode, send,
// commit; the new tree becomes the baseline only after the diff is
// handed to the transport, and a failed compile leaves the baseline
// untouched.
//
// The Manager owns the session table, enforces limits, reaps idle
// sessions, and restores sessions from persisted snapshots so clients
// can resume across disconnects with a minimal diff instead of a full
// remount.
package server

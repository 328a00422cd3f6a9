// Package diff computes the minimal change set between two Rendered
// trees and tracks component identity across renders.
//
// The Engine is the entry point: given the previous committed tree (nil
// on first render) and the new one, Diff returns what changed and
// nothing else. Trees with equal fingerprints are compared slot by slot;
// unchanged leaves produce zero output, nested trees recurse, and
// comprehensions are diffed row by row positionally. Trees whose
// fingerprints differ are replaced wholesale.
//
// Component slots are never diffed inline. They resolve through the
// Registry, which assigns each logical position a monotonically
// increasing id for the lifetime of the connection. A component keeps
// its id while it stays mounted at the same position; a render that
// omits it evicts the instance and reports the id as removed, and a
// later reappearance gets a fresh id. Ids are never reused.
//
// Engines and registries belong to a single connection and a single
// goroutine; the render actor in pkg/server is the only caller.
package diff

// Package rendered defines the immutable value produced by one render
// pass: a tree of literal text segments interleaved with dynamic slots.
//
// A Rendered tree alternates statics and dynamics (always exactly one
// more static segment than slots). A Slot is a closed tagged union: a
// leaf string, a nested Rendered tree, a Comprehension (ordered rows
// sharing one static shape), or a reference to a tracked component.
//
// # Fingerprints
//
// A Fingerprint is a structural hash of a tree's shape: its statics and
// the kinds of its slots, recursively. Dynamic content is ignored.
// Two renders of the same template site on the same conditional branch
// produce equal fingerprints; a branch switch produces a different one.
// The diff engine uses Diffable to decide in O(1) whether two trees can
// be compared slot-by-slot or must be replaced wholesale.
package rendered

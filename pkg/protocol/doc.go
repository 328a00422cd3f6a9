// Package protocol implements the binary wire format that carries
// rendered trees and diffs from server to client, and events and control
// messages back.
//
// The server has already done all comparison work before anything is
// encoded: a diff contains only changed dynamic slots, keyed by index,
// and the absence of an index is the no-op signal. Statics travel only
// with a full tree (first render or wholesale replacement), never with a
// diff. Component payloads ride in a side map keyed by id; the first
// appearance of an id carries its full tree, every later one is a bare
// numeric reference resolved against the client's TreeStore cache.
//
// # Framing
//
// All messages are framed with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// An empty diff never produces a frame at all.
//
// # Encoding
//
//   - Varint: compact unsigned integers (protobuf-style) for counts,
//     slot indices, and component ids
//   - Length-prefixed: strings prefixed with a varint length
//   - Big-endian: fixed-width integers (uint16, uint64)
//
// Decoding enforces allocation, collection, and depth limits so a
// malicious peer cannot force large allocations or deep recursion.
package protocol

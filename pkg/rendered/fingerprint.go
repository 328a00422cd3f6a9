package rendered

import (
	"encoding/binary"
	"hash/fnv"
)

// Fingerprint is a structural identity for a Rendered tree's shape: the
// statics sequence and, recursively, the kind of each slot and the
// fingerprint of nested structure. Leaf values and component ids never
// contribute, so two renders of the same template branch always agree.
type Fingerprint uint64

// Diffable reports whether a tree with fingerprint next can be diffed
// slot-by-slot against a tree with fingerprint prev. When false the new
// tree must be sent as a full replacement.
func Diffable(prev, next Fingerprint) bool {
	return prev == next
}

// Fingerprint computes the structural fingerprint of the tree.
func (r *Rendered) Fingerprint() Fingerprint {
	h := fnv.New64a()
	hashTree(h, r)
	return Fingerprint(h.Sum64())
}

type hasher interface {
	Write(p []byte) (int, error)
}

func hashTree(h hasher, r *Rendered) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(r.Statics)))
	h.Write(buf[:])
	for _, s := range r.Statics {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	for _, slot := range r.Dynamics {
		h.Write([]byte{byte(slot.Kind)})
		switch slot.Kind {
		case KindTree:
			hashTree(h, slot.Tree)
		case KindComprehension:
			hashComprehension(h, slot.Comp)
		}
		// Leaf values and component ids are dynamic content, not shape.
	}
}

func hashComprehension(h hasher, c *Comprehension) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(c.Statics)))
	h.Write(buf[:])
	for _, s := range c.Statics {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	// Row contents are dynamic; row count is too (append/remove is a
	// diffable change, not a shape change).
}

// StaticsEqual reports whether two statics sequences are identical.
// Used by the comprehension differ, which compares row shapes directly
// instead of paying for a hash.
func StaticsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package diff

import (
	"github.com/treeline-dev/treeline/pkg/rendered"
)

// ChangeKind is the slot-change discriminator.
type ChangeKind uint8

const (
	ChangeLeaf      ChangeKind = iota // New leaf value
	ChangeTree                        // Nested diff (may itself be a replacement)
	ChangeSlot                        // Full slot replacement (kind changed)
	ChangeRows                        // Comprehension row updates
	ChangeComponent                   // Slot now references a component id
)

// String returns the string representation of the ChangeKind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeLeaf:
		return "Leaf"
	case ChangeTree:
		return "Tree"
	case ChangeSlot:
		return "Slot"
	case ChangeRows:
		return "Rows"
	case ChangeComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// Change describes what happened to one dynamic slot. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Change struct {
	Kind ChangeKind
	Leaf string         // ChangeLeaf
	Tree *Diff          // ChangeTree
	Slot *rendered.Slot // ChangeSlot
	Rows *RowsChange    // ChangeRows
	CID  int64          // ChangeComponent
}

// RowsChange describes updates to a comprehension whose statics shape is
// unchanged. Row identity is positional: rows present in both renders are
// diffed in place, rows beyond the old count are appended in full, and a
// shrink is signalled by the new row count so the client drops the tail.
type RowsChange struct {
	// RowChanges maps row index to the per-slot changes for that row.
	// Rows with no changes are absent.
	RowChanges map[int]map[int]Change

	// Appended holds full rows added past the old row count, in order.
	Appended [][]rendered.Slot

	// Truncate is the new row count when the comprehension shrank,
	// or -1 when no truncation happened.
	Truncate int
}

// Empty reports whether the rows change carries nothing.
func (rc *RowsChange) Empty() bool {
	return rc == nil || (len(rc.RowChanges) == 0 && len(rc.Appended) == 0 && rc.Truncate < 0)
}

// ComponentChange is the per-component payload of one render pass:
// the full tree on first mount (or on a shape change), a diff afterwards.
type ComponentChange struct {
	Full *rendered.Rendered
	Diff *Diff
}

// Diff is the minimal description of changes between two Rendered trees,
// always relative to exactly one previous committed tree. A nil or empty
// Diff means "no visible change" and must produce zero wire bytes.
type Diff struct {
	// Replace, when non-nil, is a wholesale replacement: the previous
	// tree (if any) had an incompatible shape and no slot comparison
	// applies. Changes is always empty in that case.
	Replace *rendered.Rendered

	// Changes maps dynamic-slot index to its change. Unchanged slots
	// are absent; absence is the no-op signal on the wire.
	Changes map[int]Change

	// Components maps component id to its change for this pass. Only
	// meaningful on the outermost Diff of a render pass.
	Components map[int64]ComponentChange

	// Removed lists component ids unmounted by this pass, ascending.
	Removed []int64
}

// Empty reports whether the diff carries no changes at all.
func (d *Diff) Empty() bool {
	if d == nil {
		return true
	}
	return d.Replace == nil && len(d.Changes) == 0 && len(d.Components) == 0 && len(d.Removed) == 0
}

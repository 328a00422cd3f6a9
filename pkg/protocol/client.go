package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/treeline-dev/treeline/pkg/diff"
	"github.com/treeline-dev/treeline/pkg/rendered"
)

// Client-side application errors.
var (
	// ErrUnknownComponent is the client-observable protocol desync: a
	// bare component reference arrived for an id with no cached tree.
	// The only recovery is a full resync; partial repair would let the
	// displayed state diverge from the server's.
	ErrUnknownComponent = errors.New("protocol: bare reference to unknown component")

	// ErrNoBaseline means a diff arrived before any full tree.
	ErrNoBaseline = errors.New("protocol: diff received before baseline tree")

	// ErrDiffShape means a diff does not fit the cached tree it targets.
	ErrDiffShape = errors.New("protocol: diff does not match cached tree shape")
)

// TreeStore is the client's view of the connection: the root tree plus
// an id→tree cache that must stay in lockstep with the server's
// component registry. It decodes nothing itself; callers hand it decoded
// diffs (the live client decodes, applies, and never re-encodes).
type TreeStore struct {
	root       *rendered.Rendered
	components map[int64]*rendered.Rendered
}

// NewTreeStore creates an empty store.
func NewTreeStore() *TreeStore {
	return &TreeStore{components: make(map[int64]*rendered.Rendered)}
}

// Root returns the current root tree (nil before the first mount).
func (ts *TreeStore) Root() *rendered.Rendered {
	return ts.root
}

// Component returns the cached tree for a component id.
func (ts *TreeStore) Component(id int64) (*rendered.Rendered, bool) {
	tree, ok := ts.components[id]
	return tree, ok
}

// Reset drops all state ahead of a full resync.
func (ts *TreeStore) Reset() {
	ts.root = nil
	ts.components = make(map[int64]*rendered.Rendered)
}

// Apply merges one decoded diff into the store. Full component trees
// land first so that diffs and references in the same pass resolve
// regardless of map order (an existing component's diff may swap in a
// child mounted in this very pass); the root follows, and removals come
// last so the client can free per-component view state.
func (ts *TreeStore) Apply(d *diff.Diff) error {
	if d.Empty() {
		return nil
	}
	for id, cc := range d.Components {
		if cc.Full != nil {
			ts.components[id] = cc.Full
		}
	}
	for id, cc := range d.Components {
		if cc.Full != nil || cc.Diff == nil {
			continue
		}
		cached, ok := ts.components[id]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrUnknownComponent, id)
		}
		applied, err := ts.applyTree(cached, cc.Diff)
		if err != nil {
			return fmt.Errorf("component %d: %w", id, err)
		}
		ts.components[id] = applied
	}

	switch {
	case d.Replace != nil:
		if err := ts.checkRefs(d.Replace); err != nil {
			return err
		}
		ts.root = d.Replace
	case len(d.Changes) > 0:
		if ts.root == nil {
			return ErrNoBaseline
		}
		applied, err := ts.applyTree(ts.root, d)
		if err != nil {
			return err
		}
		ts.root = applied
	}

	for _, id := range d.Removed {
		delete(ts.components, id)
	}
	return nil
}

// applyTree produces a new tree with the diff's changes substituted.
// The input tree is never mutated; unchanged slots are shared.
func (ts *TreeStore) applyTree(tree *rendered.Rendered, d *diff.Diff) (*rendered.Rendered, error) {
	if d.Replace != nil {
		if err := ts.checkRefs(d.Replace); err != nil {
			return nil, err
		}
		return d.Replace, nil
	}
	out := &rendered.Rendered{
		Statics:  tree.Statics,
		Dynamics: make([]rendered.Slot, len(tree.Dynamics)),
	}
	copy(out.Dynamics, tree.Dynamics)
	for idx, ch := range d.Changes {
		if idx < 0 || idx >= len(out.Dynamics) {
			return nil, fmt.Errorf("%w: slot index %d of %d", ErrDiffShape, idx, len(out.Dynamics))
		}
		slot, err := ts.applySlot(&out.Dynamics[idx], &ch)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", idx, err)
		}
		out.Dynamics[idx] = slot
	}
	return out, nil
}

func (ts *TreeStore) applySlot(old *rendered.Slot, ch *diff.Change) (rendered.Slot, error) {
	switch ch.Kind {
	case diff.ChangeLeaf:
		return rendered.LeafSlot(ch.Leaf), nil

	case diff.ChangeTree:
		if old.Kind != rendered.KindTree {
			return rendered.Slot{}, fmt.Errorf("%w: nested diff against %s slot", ErrDiffShape, old.Kind)
		}
		applied, err := ts.applyTree(old.Tree, ch.Tree)
		if err != nil {
			return rendered.Slot{}, err
		}
		return rendered.TreeSlot(applied), nil

	case diff.ChangeSlot:
		if ch.Slot.Kind == rendered.KindComponent {
			if _, ok := ts.components[ch.Slot.Ref.ID]; !ok {
				return rendered.Slot{}, fmt.Errorf("%w: id %d", ErrUnknownComponent, ch.Slot.Ref.ID)
			}
		}
		return *ch.Slot, nil

	case diff.ChangeRows:
		if old.Kind != rendered.KindComprehension {
			return rendered.Slot{}, fmt.Errorf("%w: row changes against %s slot", ErrDiffShape, old.Kind)
		}
		comp, err := ts.applyRows(old.Comp, ch.Rows)
		if err != nil {
			return rendered.Slot{}, err
		}
		return rendered.ComprehensionSlot(comp), nil

	case diff.ChangeComponent:
		if _, ok := ts.components[ch.CID]; !ok {
			return rendered.Slot{}, fmt.Errorf("%w: id %d", ErrUnknownComponent, ch.CID)
		}
		return rendered.Slot{Kind: rendered.KindComponent, Ref: &rendered.ComponentRef{ID: ch.CID}}, nil

	default:
		return rendered.Slot{}, fmt.Errorf("%w: unknown change kind %d", ErrDiffShape, ch.Kind)
	}
}

func (ts *TreeStore) applyRows(comp *rendered.Comprehension, rc *diff.RowsChange) (*rendered.Comprehension, error) {
	rows := make([][]rendered.Slot, len(comp.Rows))
	copy(rows, comp.Rows)
	if rc.Truncate >= 0 {
		if rc.Truncate > len(rows) {
			return nil, fmt.Errorf("%w: truncate %d beyond %d rows", ErrDiffShape, rc.Truncate, len(rows))
		}
		rows = rows[:rc.Truncate]
	}
	for rowIdx, changes := range rc.RowChanges {
		if rowIdx < 0 || rowIdx >= len(rows) {
			return nil, fmt.Errorf("%w: row index %d of %d", ErrDiffShape, rowIdx, len(rows))
		}
		row := make([]rendered.Slot, len(rows[rowIdx]))
		copy(row, rows[rowIdx])
		for slotIdx, ch := range changes {
			if slotIdx < 0 || slotIdx >= len(row) {
				return nil, fmt.Errorf("%w: row %d slot index %d of %d", ErrDiffShape, rowIdx, slotIdx, len(row))
			}
			slot, err := ts.applySlot(&row[slotIdx], &ch)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rowIdx, err)
			}
			row[slotIdx] = slot
		}
		rows[rowIdx] = row
	}
	for _, row := range rc.Appended {
		if len(row) != len(comp.Statics)-1 {
			return nil, fmt.Errorf("%w: appended row width %d does not match statics shape %d", ErrDiffShape, len(row), len(comp.Statics)-1)
		}
		for i := range row {
			if row[i].Kind == rendered.KindComponent {
				if _, ok := ts.components[row[i].Ref.ID]; !ok {
					return nil, fmt.Errorf("%w: id %d", ErrUnknownComponent, row[i].Ref.ID)
				}
			}
		}
		rows = append(rows, row)
	}
	return &rendered.Comprehension{Statics: comp.Statics, Rows: rows}, nil
}

// checkRefs verifies every component reference in a full tree resolves
// in the cache. Payloads for first-use ids are applied before the tree,
// so a miss here is a real desync.
func (ts *TreeStore) checkRefs(tree *rendered.Rendered) error {
	for i := range tree.Dynamics {
		if err := ts.checkSlotRefs(&tree.Dynamics[i]); err != nil {
			return err
		}
	}
	return nil
}

func (ts *TreeStore) checkSlotRefs(slot *rendered.Slot) error {
	switch slot.Kind {
	case rendered.KindTree:
		return ts.checkRefs(slot.Tree)
	case rendered.KindComprehension:
		for _, row := range slot.Comp.Rows {
			for i := range row {
				if err := ts.checkSlotRefs(&row[i]); err != nil {
					return err
				}
			}
		}
	case rendered.KindComponent:
		if _, ok := ts.components[slot.Ref.ID]; !ok {
			return fmt.Errorf("%w: id %d", ErrUnknownComponent, slot.Ref.ID)
		}
	}
	return nil
}

// RenderHTML flattens the current root tree to its text form, resolving
// component references through the cache. Used by tests and by thin
// clients that repaint whole regions instead of patching.
func (ts *TreeStore) RenderHTML() (string, error) {
	if ts.root == nil {
		return "", ErrNoBaseline
	}
	var sb strings.Builder
	if err := ts.renderTree(&sb, ts.root); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (ts *TreeStore) renderTree(sb *strings.Builder, tree *rendered.Rendered) error {
	for i, s := range tree.Statics {
		sb.WriteString(s)
		if i < len(tree.Dynamics) {
			if err := ts.renderSlot(sb, &tree.Dynamics[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ts *TreeStore) renderSlot(sb *strings.Builder, slot *rendered.Slot) error {
	switch slot.Kind {
	case rendered.KindLeaf:
		sb.WriteString(slot.Leaf)
		return nil
	case rendered.KindTree:
		return ts.renderTree(sb, slot.Tree)
	case rendered.KindComprehension:
		for _, row := range slot.Comp.Rows {
			for i, s := range slot.Comp.Statics {
				sb.WriteString(s)
				if i < len(row) {
					if err := ts.renderSlot(sb, &row[i]); err != nil {
						return err
					}
				}
			}
		}
		return nil
	case rendered.KindComponent:
		tree, ok := ts.components[slot.Ref.ID]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrUnknownComponent, slot.Ref.ID)
		}
		return ts.renderTree(sb, tree)
	default:
		return fmt.Errorf("%w: unknown slot kind %d", ErrDiffShape, slot.Kind)
	}
}

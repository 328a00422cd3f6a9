package diff

import (
	"fmt"

	"github.com/treeline-dev/treeline/pkg/rendered"
)

// Engine computes minimal diffs between successive Rendered trees and
// drives component identity through its Registry. One engine serves one
// connection; it is driven by a single goroutine and is not safe for
// concurrent use.
type Engine struct {
	registry *Registry
}

// NewEngine creates an engine with a fresh registry.
func NewEngine() *Engine {
	return &Engine{registry: NewRegistry()}
}

// NewEngineWithRegistry creates an engine over an existing registry,
// typically one restored from a session snapshot.
func NewEngineWithRegistry(r *Registry) *Engine {
	return &Engine{registry: r}
}

// Registry returns the engine's component registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// pass accumulates per-render component results while the tree walk runs.
type pass struct {
	components map[int64]ComponentChange
	parent     int64 // id of the component whose subtree is being walked
}

// Diff computes the change set between the previous committed tree (nil
// on first render) and the new tree. The returned Diff carries changed
// slots, per-component changes, and removed component ids; an empty Diff
// means no visible change. On error no diff is produced and the engine
// must be discarded with its connection: a half-finished pass cannot be
// resumed without risking a wrong baseline.
func (e *Engine) Diff(old, new *rendered.Rendered) (*Diff, error) {
	if new == nil {
		return nil, fmt.Errorf("%w: nil new tree", ErrMalformedTree)
	}
	if err := e.registry.beginPass(); err != nil {
		return nil, err
	}
	p := &pass{components: make(map[int64]ComponentChange)}
	root, err := e.diffTree(p, old, new)
	if err != nil {
		e.registry.fail()
		return nil, err
	}
	root.Removed = e.registry.endPass()
	if len(p.components) > 0 {
		root.Components = p.components
	}
	return root, nil
}

// diffTree compares two trees of equal fingerprint slot-by-slot, or
// falls back to a wholesale replacement when shapes are incompatible.
func (e *Engine) diffTree(p *pass, old, new *rendered.Rendered) (*Diff, error) {
	if old == nil ||
		!rendered.Diffable(old.Fingerprint(), new.Fingerprint()) ||
		len(old.Dynamics) != len(new.Dynamics) {
		if err := e.mountTree(p, new); err != nil {
			return nil, err
		}
		return &Diff{Replace: new}, nil
	}

	var changes map[int]Change
	for i := range new.Dynamics {
		ch, changed, err := e.diffSlot(p, &old.Dynamics[i], &new.Dynamics[i])
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		if !changed {
			continue
		}
		if changes == nil {
			changes = make(map[int]Change)
		}
		changes[i] = ch
	}
	return &Diff{Changes: changes}, nil
}

// diffSlot compares one dynamic slot by tag. The bool result reports
// whether the slot changed at all; unchanged slots never reach the wire.
func (e *Engine) diffSlot(p *pass, old, new *rendered.Slot) (Change, bool, error) {
	if old.Kind != new.Kind {
		if err := e.mountSlot(p, new); err != nil {
			return Change{}, false, err
		}
		return Change{Kind: ChangeSlot, Slot: new}, true, nil
	}

	switch new.Kind {
	case rendered.KindLeaf:
		if old.Leaf == new.Leaf {
			return Change{}, false, nil
		}
		return Change{Kind: ChangeLeaf, Leaf: new.Leaf}, true, nil

	case rendered.KindTree:
		d, err := e.diffTree(p, old.Tree, new.Tree)
		if err != nil {
			return Change{}, false, err
		}
		if d.Empty() {
			return Change{}, false, nil
		}
		return Change{Kind: ChangeTree, Tree: d}, true, nil

	case rendered.KindComprehension:
		return e.diffComprehension(p, old.Comp, new.Comp)

	case rendered.KindComponent:
		id, err := e.visitComponent(p, new.Ref)
		if err != nil {
			return Change{}, false, err
		}
		if old.Ref != nil && old.Ref.ID == id {
			return Change{}, false, nil
		}
		return Change{Kind: ChangeComponent, CID: id}, true, nil

	default:
		return Change{}, false, fmt.Errorf("%w: unknown slot kind %d", ErrMalformedTree, new.Kind)
	}
}

// diffComprehension diffs repeated rows positionally. A statics change
// replaces the whole comprehension; otherwise rows shared by both
// renders are diffed in place, extra new rows are appended in full, and
// a shrink is reported as the new row count.
func (e *Engine) diffComprehension(p *pass, old, new *rendered.Comprehension) (Change, bool, error) {
	if old == nil || new == nil {
		return Change{}, false, fmt.Errorf("%w: nil comprehension", ErrMalformedTree)
	}
	if !rendered.StaticsEqual(old.Statics, new.Statics) {
		for _, row := range new.Rows {
			if err := e.mountRow(p, row); err != nil {
				return Change{}, false, err
			}
		}
		return Change{Kind: ChangeSlot, Slot: &rendered.Slot{Kind: rendered.KindComprehension, Comp: new}}, true, nil
	}

	rc := &RowsChange{Truncate: -1}
	shared := len(old.Rows)
	if len(new.Rows) < shared {
		shared = len(new.Rows)
	}
	width := len(new.Statics) - 1
	for i := 0; i < shared; i++ {
		oldRow, newRow := old.Rows[i], new.Rows[i]
		if len(oldRow) != width || len(newRow) != width {
			return Change{}, false, fmt.Errorf("%w: comprehension row %d does not match statics shape", ErrMalformedTree, i)
		}
		var rowChanges map[int]Change
		for j := range newRow {
			ch, changed, err := e.diffSlot(p, &oldRow[j], &newRow[j])
			if err != nil {
				return Change{}, false, fmt.Errorf("row %d: %w", i, err)
			}
			if !changed {
				continue
			}
			if rowChanges == nil {
				rowChanges = make(map[int]Change)
			}
			rowChanges[j] = ch
		}
		if rowChanges != nil {
			if rc.RowChanges == nil {
				rc.RowChanges = make(map[int]map[int]Change)
			}
			rc.RowChanges[i] = rowChanges
		}
	}
	for i := shared; i < len(new.Rows); i++ {
		if err := e.mountRow(p, new.Rows[i]); err != nil {
			return Change{}, false, err
		}
		rc.Appended = append(rc.Appended, new.Rows[i])
	}
	if len(new.Rows) < len(old.Rows) {
		rc.Truncate = len(new.Rows)
	}
	if rc.Empty() {
		return Change{}, false, nil
	}
	return Change{Kind: ChangeRows, Rows: rc}, true, nil
}

// visitComponent resolves a component reference through the registry:
// reuse the id at a known logical position and diff against the stored
// tree, or allocate a fresh id and emit the full tree. The assigned id
// is written back into the reference so the committed tree carries it.
func (e *Engine) visitComponent(p *pass, ref *rendered.ComponentRef) (int64, error) {
	if ref == nil || ref.Tree == nil {
		return 0, fmt.Errorf("%w: component ref without tree", ErrMalformedTree)
	}
	if ref.Key == "" {
		return 0, fmt.Errorf("%w: component ref without logical position", ErrMalformedTree)
	}

	if inst, ok := e.registry.lookup(ref.Key); ok {
		if err := e.registry.markSeen(inst); err != nil {
			return 0, err
		}
		newFP := ref.Tree.Fingerprint()
		savedParent := p.parent
		p.parent = inst.id
		if rendered.Diffable(inst.fp, newFP) {
			d, err := e.diffTree(p, inst.last, ref.Tree)
			p.parent = savedParent
			if err != nil {
				return 0, fmt.Errorf("component %d: %w", inst.id, err)
			}
			if !d.Empty() {
				p.components[inst.id] = ComponentChange{Diff: d}
			}
		} else {
			// Branch change inside the component: same identity,
			// full tree.
			err := e.mountTree(p, ref.Tree)
			p.parent = savedParent
			if err != nil {
				return 0, err
			}
			p.components[inst.id] = ComponentChange{Full: ref.Tree}
		}
		inst.fp = newFP
		inst.last = ref.Tree
		ref.ID = inst.id
		return inst.id, nil
	}

	inst, err := e.registry.allocate(ref.Key, p.parent)
	if err != nil {
		return 0, err
	}
	savedParent := p.parent
	p.parent = inst.id
	err = e.mountTree(p, ref.Tree)
	p.parent = savedParent
	if err != nil {
		return 0, err
	}
	inst.fp = ref.Tree.Fingerprint()
	inst.last = ref.Tree
	p.components[inst.id] = ComponentChange{Full: ref.Tree}
	ref.ID = inst.id
	return inst.id, nil
}

// mountTree registers every component reference reachable from a tree
// that is being sent in full, assigning ids without slot comparison.
func (e *Engine) mountTree(p *pass, tree *rendered.Rendered) error {
	if tree == nil {
		return fmt.Errorf("%w: nil tree", ErrMalformedTree)
	}
	for i := range tree.Dynamics {
		if err := e.mountSlot(p, &tree.Dynamics[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) mountSlot(p *pass, slot *rendered.Slot) error {
	switch slot.Kind {
	case rendered.KindLeaf:
		return nil
	case rendered.KindTree:
		return e.mountTree(p, slot.Tree)
	case rendered.KindComprehension:
		if slot.Comp == nil {
			return fmt.Errorf("%w: nil comprehension", ErrMalformedTree)
		}
		for _, row := range slot.Comp.Rows {
			if err := e.mountRow(p, row); err != nil {
				return err
			}
		}
		return nil
	case rendered.KindComponent:
		_, err := e.visitComponent(p, slot.Ref)
		return err
	default:
		return fmt.Errorf("%w: unknown slot kind %d", ErrMalformedTree, slot.Kind)
	}
}

func (e *Engine) mountRow(p *pass, row []rendered.Slot) error {
	for i := range row {
		if err := e.mountSlot(p, &row[i]); err != nil {
			return err
		}
	}
	return nil
}

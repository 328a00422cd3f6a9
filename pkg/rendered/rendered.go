package rendered

import "fmt"

// SlotKind is the slot type discriminator.
type SlotKind uint8

const (
	KindLeaf          SlotKind = iota // Plain string value
	KindTree                          // Nested rendered tree
	KindComprehension                 // Repeated rows sharing one static shape
	KindComponent                     // Reference to a tracked component
)

// String returns the string representation of the SlotKind.
func (k SlotKind) String() string {
	switch k {
	case KindLeaf:
		return "Leaf"
	case KindTree:
		return "Tree"
	case KindComprehension:
		return "Comprehension"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// Rendered is the immutable result of one render pass: literal text
// segments interleaved with dynamic slots. Statics come from the template
// site and never change for a given structural branch; only the slots do.
type Rendered struct {
	Statics  []string
	Dynamics []Slot
}

// Slot is one dynamic position within a Rendered tree. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Slot struct {
	Kind SlotKind
	Leaf string         // KindLeaf
	Tree *Rendered      // KindTree
	Comp *Comprehension // KindComprehension
	Ref  *ComponentRef  // KindComponent
}

// ComponentRef marks a slot occupied by a stateful component. The
// compiler fills Key (stable logical position: template site plus loop
// index, if any) and Tree (the component's output this pass). The
// registry assigns ID during diffing; committed trees carry the id and
// drop the per-pass tree, and trees decoded on the client side carry
// only the id.
type ComponentRef struct {
	Key  string
	Tree *Rendered
	ID   int64
}

// Comprehension is an ordered collection of rows produced by one loop
// body. All rows share Statics; row count may vary between renders.
type Comprehension struct {
	Statics []string
	Rows    [][]Slot
}

// LeafSlot returns a leaf value slot.
func LeafSlot(value string) Slot {
	return Slot{Kind: KindLeaf, Leaf: value}
}

// TreeSlot returns a nested tree slot.
func TreeSlot(tree *Rendered) Slot {
	return Slot{Kind: KindTree, Tree: tree}
}

// ComprehensionSlot returns a comprehension slot.
func ComprehensionSlot(comp *Comprehension) Slot {
	return Slot{Kind: KindComprehension, Comp: comp}
}

// ComponentSlot returns a component reference slot for the given logical
// position and this pass's rendered output.
func ComponentSlot(key string, tree *Rendered) Slot {
	return Slot{Kind: KindComponent, Ref: &ComponentRef{Key: key, Tree: tree}}
}

// Validate checks the text/slot interleaving invariant recursively:
// a tree always has exactly one more static segment than dynamic slots,
// and every comprehension row matches its shared statics shape.
func (r *Rendered) Validate() error {
	if r == nil {
		return fmt.Errorf("rendered: nil tree")
	}
	if len(r.Statics) != len(r.Dynamics)+1 {
		return fmt.Errorf("rendered: %d statics for %d dynamics", len(r.Statics), len(r.Dynamics))
	}
	for i, slot := range r.Dynamics {
		switch slot.Kind {
		case KindLeaf:
			// Nothing nested to check.
		case KindComponent:
			if slot.Ref == nil {
				return fmt.Errorf("rendered: slot %d: nil component ref", i)
			}
		case KindTree:
			if err := slot.Tree.Validate(); err != nil {
				return fmt.Errorf("rendered: slot %d: %w", i, err)
			}
		case KindComprehension:
			if slot.Comp == nil {
				return fmt.Errorf("rendered: slot %d: nil comprehension", i)
			}
			if err := slot.Comp.validate(); err != nil {
				return fmt.Errorf("rendered: slot %d: %w", i, err)
			}
		default:
			return fmt.Errorf("rendered: slot %d: unknown kind %d", i, slot.Kind)
		}
	}
	return nil
}

func (c *Comprehension) validate() error {
	want := len(c.Statics) - 1
	for i, row := range c.Rows {
		if len(row) != want {
			return fmt.Errorf("comprehension row %d has %d slots, statics want %d", i, len(row), want)
		}
		for j, slot := range row {
			if slot.Kind == KindTree {
				if err := slot.Tree.Validate(); err != nil {
					return fmt.Errorf("comprehension row %d slot %d: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

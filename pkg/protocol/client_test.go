package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/treeline-dev/treeline/pkg/diff"
	"github.com/treeline-dev/treeline/pkg/rendered"
)

// applyWire encodes a server-side diff, decodes it, and applies it to
// the store, the same path a live client walks.
func applyWire(t *testing.T, ts *TreeStore, d *diff.Diff) {
	t.Helper()
	decoded, err := DecodeDiff(EncodeDiff(d))
	if err != nil {
		t.Fatalf("DecodeDiff: %v", err)
	}
	if err := ts.Apply(decoded); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func counterRender(count int) *rendered.Rendered {
	return &rendered.Rendered{
		Statics:  []string{"<p>count: ", "</p>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot(fmt.Sprintf("%d", count))},
	}
}

func TestTreeStoreCounterEndToEnd(t *testing.T) {
	e := diff.NewEngine()
	ts := NewTreeStore()

	// Mount.
	first := counterRender(0)
	d, err := e.Diff(nil, first)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	applyWire(t, ts, d)

	html, err := ts.RenderHTML()
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if html != "<p>count: 0</p>" {
		t.Errorf("html = %q", html)
	}

	// Increment: one leaf crosses the wire, statics do not.
	second := counterRender(1)
	d, err = e.Diff(first, second)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	payload := EncodeDiff(d)
	if len(payload) == 0 || len(payload) > 8 {
		t.Errorf("increment payload = %d bytes, want a handful", len(payload))
	}
	applyWire(t, ts, d)

	html, _ = ts.RenderHTML()
	if html != "<p>count: 1</p>" {
		t.Errorf("html = %q", html)
	}
}

func TestTreeStoreComponentEndToEnd(t *testing.T) {
	mk := func(count, items int) *rendered.Rendered {
		footer := &rendered.Rendered{
			Statics:  []string{"<footer>", " items</footer>"},
			Dynamics: []rendered.Slot{rendered.LeafSlot(fmt.Sprintf("%d", items))},
		}
		return &rendered.Rendered{
			Statics: []string{"<main>", "", "</main>"},
			Dynamics: []rendered.Slot{
				rendered.LeafSlot(fmt.Sprintf("%d", count)),
				rendered.ComponentSlot("footer", footer),
			},
		}
	}

	e := diff.NewEngine()
	ts := NewTreeStore()

	first := mk(0, 2)
	d, err := e.Diff(nil, first)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	applyWire(t, ts, d)

	html, err := ts.RenderHTML()
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if html != "<main>0<footer>2 items</footer></main>" {
		t.Errorf("html = %q", html)
	}

	// Component-internal change rides the side map; root untouched.
	second := mk(0, 3)
	d, err = e.Diff(first, second)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	applyWire(t, ts, d)

	html, _ = ts.RenderHTML()
	if html != "<main>0<footer>3 items</footer></main>" {
		t.Errorf("html after component update = %q", html)
	}
}

func TestTreeStoreComponentChildSwap(t *testing.T) {
	// A parent component's diff swaps in a child that is mounted in the
	// same pass: the parent's incremental diff references the child id
	// while the child's full tree rides the same side map. Apply must
	// resolve the reference no matter how it walks the map, so the
	// sequence is replayed against many fresh stores.
	mk := func(childKey, label string) *rendered.Rendered {
		child := &rendered.Rendered{
			Statics:  []string{"<b>", "</b>"},
			Dynamics: []rendered.Slot{rendered.LeafSlot(label)},
		}
		panel := &rendered.Rendered{
			Statics:  []string{"<section>", "</section>"},
			Dynamics: []rendered.Slot{rendered.ComponentSlot(childKey, child)},
		}
		return &rendered.Rendered{
			Statics:  []string{"<main>", "</main>"},
			Dynamics: []rendered.Slot{rendered.ComponentSlot("panel", panel)},
		}
	}

	e := diff.NewEngine()
	first := mk("child-a", "one")
	mountDiff, err := e.Diff(nil, first)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	second := mk("child-b", "two")
	swapDiff, err := e.Diff(first, second)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	mount, err := DecodeDiff(EncodeDiff(mountDiff))
	if err != nil {
		t.Fatalf("DecodeDiff mount: %v", err)
	}
	swap, err := DecodeDiff(EncodeDiff(swapDiff))
	if err != nil {
		t.Fatalf("DecodeDiff swap: %v", err)
	}

	for i := 0; i < 100; i++ {
		ts := NewTreeStore()
		if err := ts.Apply(mount); err != nil {
			t.Fatalf("Apply mount: %v", err)
		}
		if err := ts.Apply(swap); err != nil {
			t.Fatalf("Apply swap (run %d): %v", i, err)
		}
		html, err := ts.RenderHTML()
		if err != nil {
			t.Fatalf("RenderHTML (run %d): %v", i, err)
		}
		if html != "<main><section><b>two</b></section></main>" {
			t.Errorf("html = %q", html)
		}
	}
}

func TestTreeStoreComprehensionEndToEnd(t *testing.T) {
	mk := func(items ...string) *rendered.Rendered {
		rows := make([][]rendered.Slot, len(items))
		for i, item := range items {
			rows[i] = []rendered.Slot{rendered.LeafSlot(item)}
		}
		return &rendered.Rendered{
			Statics: []string{"<ul>", "</ul>"},
			Dynamics: []rendered.Slot{rendered.ComprehensionSlot(&rendered.Comprehension{
				Statics: []string{"<li>", "</li>"},
				Rows:    rows,
			})},
		}
	}

	e := diff.NewEngine()
	ts := NewTreeStore()

	first := mk("a", "b", "c")
	d, _ := e.Diff(nil, first)
	applyWire(t, ts, d)

	second := mk("a", "x", "c", "d")
	d, err := e.Diff(first, second)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	applyWire(t, ts, d)

	html, _ := ts.RenderHTML()
	want := "<ul><li>a</li><li>x</li><li>c</li><li>d</li></ul>"
	if html != want {
		t.Errorf("html = %q, want %q", html, want)
	}

	// Shrink.
	third := mk("a", "x")
	d, err = e.Diff(second, third)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	applyWire(t, ts, d)

	html, _ = ts.RenderHTML()
	if html != "<ul><li>a</li><li>x</li></ul>" {
		t.Errorf("html after shrink = %q", html)
	}
}

func TestTreeStoreComponentRemoval(t *testing.T) {
	e := diff.NewEngine()
	ts := NewTreeStore()

	withComp := &rendered.Rendered{
		Statics: []string{"<div>", "</div>"},
		Dynamics: []rendered.Slot{rendered.ComponentSlot("w", &rendered.Rendered{
			Statics: []string{"gone soon"},
		})},
	}
	d, _ := e.Diff(nil, withComp)
	applyWire(t, ts, d)
	if _, ok := ts.Component(1); !ok {
		t.Fatal("component 1 not cached after mount")
	}

	without := &rendered.Rendered{
		Statics:  []string{"<div>", "</div>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot("empty")},
	}
	d, err := e.Diff(withComp, without)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	applyWire(t, ts, d)

	if _, ok := ts.Component(1); ok {
		t.Error("component 1 still cached after removal")
	}
}

func TestTreeStoreUnknownComponentDesync(t *testing.T) {
	ts := NewTreeStore()
	ts.Apply(&diff.Diff{Replace: &rendered.Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot("x")},
	}})

	err := ts.Apply(&diff.Diff{Changes: map[int]diff.Change{
		0: {Kind: diff.ChangeComponent, CID: 99},
	}})
	if !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("Apply = %v, want ErrUnknownComponent", err)
	}
}

func TestTreeStoreDiffBeforeBaseline(t *testing.T) {
	ts := NewTreeStore()
	err := ts.Apply(&diff.Diff{Changes: map[int]diff.Change{
		0: {Kind: diff.ChangeLeaf, Leaf: "x"},
	}})
	if !errors.Is(err, ErrNoBaseline) {
		t.Errorf("Apply = %v, want ErrNoBaseline", err)
	}
}

func TestTreeStoreOutOfRangeSlot(t *testing.T) {
	ts := NewTreeStore()
	ts.Apply(&diff.Diff{Replace: &rendered.Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot("x")},
	}})

	err := ts.Apply(&diff.Diff{Changes: map[int]diff.Change{
		5: {Kind: diff.ChangeLeaf, Leaf: "y"},
	}})
	if !errors.Is(err, ErrDiffShape) {
		t.Errorf("Apply = %v, want ErrDiffShape", err)
	}
}

func TestTreeStoreRaggedAppendedRow(t *testing.T) {
	ts := NewTreeStore()
	ts.Apply(&diff.Diff{Replace: &rendered.Rendered{
		Statics: []string{"<ul>", "</ul>"},
		Dynamics: []rendered.Slot{rendered.ComprehensionSlot(&rendered.Comprehension{
			Statics: []string{"<li>", "</li>"},
			Rows:    [][]rendered.Slot{{rendered.LeafSlot("a")}},
		})},
	}})

	err := ts.Apply(&diff.Diff{Changes: map[int]diff.Change{
		0: {Kind: diff.ChangeRows, Rows: &diff.RowsChange{
			Truncate: -1,
			Appended: [][]rendered.Slot{{rendered.LeafSlot("b"), rendered.LeafSlot("extra")}},
		}},
	}})
	if !errors.Is(err, ErrDiffShape) {
		t.Errorf("Apply = %v, want ErrDiffShape", err)
	}
}

func TestTreeStoreApplyDoesNotMutateOldTree(t *testing.T) {
	ts := NewTreeStore()
	base := &rendered.Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot("old")},
	}
	ts.Apply(&diff.Diff{Replace: base})
	ts.Apply(&diff.Diff{Changes: map[int]diff.Change{
		0: {Kind: diff.ChangeLeaf, Leaf: "new"},
	}})

	if base.Dynamics[0].Leaf != "old" {
		t.Error("apply mutated the previous tree in place")
	}
	if ts.Root().Dynamics[0].Leaf != "new" {
		t.Errorf("root leaf = %q, want \"new\"", ts.Root().Dynamics[0].Leaf)
	}
}

func TestTreeStoreReset(t *testing.T) {
	ts := NewTreeStore()
	ts.Apply(&diff.Diff{
		Replace: &rendered.Rendered{Statics: []string{"x"}},
	})
	ts.Reset()
	if ts.Root() != nil {
		t.Error("root survives Reset")
	}
	if _, err := ts.RenderHTML(); !errors.Is(err, ErrNoBaseline) {
		t.Errorf("RenderHTML after Reset = %v, want ErrNoBaseline", err)
	}
}

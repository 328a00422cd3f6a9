package diff

import (
	"errors"
	"testing"

	"github.com/treeline-dev/treeline/pkg/rendered"
)

func testTree(value string) *rendered.Rendered {
	return &rendered.Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot(value)},
	}
}

func TestRegistryAllocateMonotonic(t *testing.T) {
	r := NewRegistry()
	if err := r.beginPass(); err != nil {
		t.Fatalf("beginPass: %v", err)
	}
	a, err := r.allocate("a", 0)
	if err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	b, err := r.allocate("b", 0)
	if err != nil {
		t.Fatalf("allocate b: %v", err)
	}
	if a.id != 1 || b.id != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", a.id, b.id)
	}
	r.endPass()
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistryIDNeverReused(t *testing.T) {
	r := NewRegistry()

	r.beginPass()
	r.allocate("a", 0)
	r.endPass()

	// Pass without visiting "a" evicts it.
	r.beginPass()
	removed := r.endPass()
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("removed = %v, want [1]", removed)
	}

	// The same logical position comes back with a fresh id.
	r.beginPass()
	inst, err := r.allocate("a", 0)
	if err != nil {
		t.Fatalf("re-allocate: %v", err)
	}
	r.endPass()
	if inst.id != 2 {
		t.Errorf("re-allocated id = %d, want 2", inst.id)
	}
}

func TestRegistryEvictsUnseen(t *testing.T) {
	r := NewRegistry()
	r.beginPass()
	r.allocate("a", 0)
	r.allocate("b", 0)
	r.allocate("c", 0)
	r.endPass()

	r.beginPass()
	instB, _ := r.lookup("b")
	if err := r.markSeen(instB); err != nil {
		t.Fatalf("markSeen: %v", err)
	}
	removed := r.endPass()

	if len(removed) != 2 || removed[0] != 1 || removed[1] != 3 {
		t.Errorf("removed = %v, want [1 3]", removed)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if _, ok := r.lookup("b"); !ok {
		t.Error("surviving instance evicted")
	}
}

func TestRegistryDuplicateVisit(t *testing.T) {
	r := NewRegistry()
	r.beginPass()
	r.allocate("a", 0)
	r.endPass()

	r.beginPass()
	inst, _ := r.lookup("a")
	if err := r.markSeen(inst); err != nil {
		t.Fatalf("first visit: %v", err)
	}
	err := r.markSeen(inst)
	if !errors.Is(err, ErrRegistryConsistency) {
		t.Errorf("second visit error = %v, want ErrRegistryConsistency", err)
	}
}

func TestRegistryFailedIsSticky(t *testing.T) {
	r := NewRegistry()
	r.beginPass()
	r.fail()
	if err := r.beginPass(); !errors.Is(err, ErrRegistryConsistency) {
		t.Errorf("beginPass after fail = %v, want ErrRegistryConsistency", err)
	}
}

func TestRegistrySnapshotRestore(t *testing.T) {
	r := NewRegistry()
	r.beginPass()
	a, _ := r.allocate("a", 0)
	b, _ := r.allocate("b", a.id)
	a.last = testTree("one")
	a.fp = a.last.Fingerprint()
	b.last = testTree("two")
	b.fp = b.last.Fingerprint()
	r.endPass()

	snaps := r.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("Snapshot len = %d, want 2", len(snaps))
	}
	if snaps[0].ID != 1 || snaps[1].ID != 2 {
		t.Errorf("snapshot order = %d, %d, want 1, 2", snaps[0].ID, snaps[1].ID)
	}
	if snaps[1].Parent != 1 {
		t.Errorf("nested parent = %d, want 1", snaps[1].Parent)
	}

	restored := NewRegistry()
	if err := restored.Restore(snaps); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Len() != 2 {
		t.Errorf("restored Len = %d, want 2", restored.Len())
	}
	tree, ok := restored.Tree(1)
	if !ok || tree.Dynamics[0].Leaf != "one" {
		t.Error("restored tree for id 1 wrong")
	}

	// Counter resumes past the highest restored id.
	restored.beginPass()
	inst, err := restored.allocate("c", 0)
	restored.endPass()
	if err != nil {
		t.Fatalf("allocate after restore: %v", err)
	}
	if inst.id != 3 {
		t.Errorf("id after restore = %d, want 3", inst.id)
	}
}

func TestRegistryRestoreIntoNonEmpty(t *testing.T) {
	r := NewRegistry()
	r.beginPass()
	r.allocate("a", 0)
	r.endPass()

	err := r.Restore([]InstanceSnapshot{{Key: "b", ID: 5, Tree: testTree("x")}})
	if !errors.Is(err, ErrRegistryConsistency) {
		t.Errorf("Restore into non-empty = %v, want ErrRegistryConsistency", err)
	}
}

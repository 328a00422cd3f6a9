package diff

import (
	"errors"
	"fmt"
	"sort"

	"github.com/treeline-dev/treeline/pkg/rendered"
)

// Registry errors.
var (
	// ErrRegistryConsistency marks an internal invariant failure in
	// component tracking. It is a programming-defect class: the current
	// render must be aborted rather than emit a possibly-wrong diff.
	ErrRegistryConsistency = errors.New("diff: registry consistency violation")

	// ErrMalformedTree marks a rendered tree that violates the model's
	// structural invariants (nil component payload, unknown slot kind).
	ErrMalformedTree = errors.New("diff: malformed rendered tree")
)

// instance is one live component tracked across renders.
type instance struct {
	id     int64
	key    string
	parent int64
	fp     rendered.Fingerprint
	last   *rendered.Rendered
	seen   bool // visited during the current pass
}

// Registry tracks the live component instances of one connection: their
// ids, last committed trees, and fingerprints across render cycles. Ids
// grow monotonically and are never reused after eviction, so the client
// can never confuse a stale reference with a new component.
//
// A Registry is owned exclusively by its connection's render actor and
// is not safe for concurrent use.
type Registry struct {
	byKey  map[string]*instance
	byID   map[int64]*instance
	nextID int64
	inPass bool
	failed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]*instance),
		byID:  make(map[int64]*instance),
	}
}

// Len returns the number of live component instances.
func (r *Registry) Len() int {
	return len(r.byKey)
}

// Tree returns the last committed tree for a component id.
func (r *Registry) Tree(id int64) (*rendered.Rendered, bool) {
	inst, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return inst.last, true
}

// IDs returns all live component ids in ascending order.
func (r *Registry) IDs() []int64 {
	ids := make([]int64, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// beginPass starts a render pass. Every pass must end with endPass; a
// pass abandoned after an error leaves the registry failed and the
// connection must be torn down.
func (r *Registry) beginPass() error {
	if r.failed {
		return fmt.Errorf("%w: registry failed by an earlier pass", ErrRegistryConsistency)
	}
	if r.inPass {
		return fmt.Errorf("%w: render pass already in progress", ErrRegistryConsistency)
	}
	r.inPass = true
	return nil
}

// endPass finishes a render pass: every instance not visited since
// beginPass is evicted and its id reported. Returned ids are ascending.
func (r *Registry) endPass() []int64 {
	var removed []int64
	for key, inst := range r.byKey {
		if inst.seen {
			inst.seen = false
			continue
		}
		removed = append(removed, inst.id)
		delete(r.byKey, key)
		delete(r.byID, inst.id)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	r.inPass = false
	return removed
}

// fail marks the registry unusable after an aborted pass.
func (r *Registry) fail() {
	r.failed = true
}

// lookup returns the live instance at a logical position.
func (r *Registry) lookup(key string) (*instance, bool) {
	inst, ok := r.byKey[key]
	return inst, ok
}

// markSeen records a visit to an existing instance. Visiting the same
// logical position twice in one pass means the caller produced duplicate
// keys, which would make identity ambiguous.
func (r *Registry) markSeen(inst *instance) error {
	if inst.seen {
		return fmt.Errorf("%w: logical position %q visited twice in one pass", ErrRegistryConsistency, inst.key)
	}
	inst.seen = true
	return nil
}

// allocate creates a fresh instance at a logical position with the next
// monotonic id. The instance is already marked seen for this pass.
func (r *Registry) allocate(key string, parent int64) (*instance, error) {
	if _, exists := r.byKey[key]; exists {
		return nil, fmt.Errorf("%w: logical position %q already registered", ErrRegistryConsistency, key)
	}
	r.nextID++
	inst := &instance{
		id:     r.nextID,
		key:    key,
		parent: parent,
		seen:   true,
	}
	r.byKey[key] = inst
	r.byID[inst.id] = inst
	return inst, nil
}

// InstanceSnapshot is the persistable view of one component instance,
// used by session snapshot stores to survive short disconnects.
type InstanceSnapshot struct {
	Key    string
	ID     int64
	Parent int64
	Tree   *rendered.Rendered
}

// Snapshot captures all live instances, ordered by id.
func (r *Registry) Snapshot() []InstanceSnapshot {
	snaps := make([]InstanceSnapshot, 0, len(r.byID))
	for _, id := range r.IDs() {
		inst := r.byID[id]
		snaps = append(snaps, InstanceSnapshot{
			Key:    inst.key,
			ID:     inst.id,
			Parent: inst.parent,
			Tree:   inst.last,
		})
	}
	return snaps
}

// Restore rebuilds the registry from a snapshot. The id counter resumes
// past the highest restored id so ids stay never-reused.
func (r *Registry) Restore(snaps []InstanceSnapshot) error {
	if len(r.byKey) != 0 || r.inPass {
		return fmt.Errorf("%w: restore into a non-empty registry", ErrRegistryConsistency)
	}
	for _, snap := range snaps {
		if snap.Tree == nil {
			return fmt.Errorf("%w: snapshot for id %d has no tree", ErrMalformedTree, snap.ID)
		}
		if _, exists := r.byID[snap.ID]; exists {
			return fmt.Errorf("%w: duplicate id %d in snapshot", ErrRegistryConsistency, snap.ID)
		}
		if _, exists := r.byKey[snap.Key]; exists {
			return fmt.Errorf("%w: duplicate logical position %q in snapshot", ErrRegistryConsistency, snap.Key)
		}
		inst := &instance{
			id:     snap.ID,
			key:    snap.Key,
			parent: snap.Parent,
			fp:     snap.Tree.Fingerprint(),
			last:   snap.Tree,
		}
		r.byKey[snap.Key] = inst
		r.byID[snap.ID] = inst
		if snap.ID > r.nextID {
			r.nextID = snap.ID
		}
	}
	return nil
}

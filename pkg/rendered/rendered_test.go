package rendered

import (
	"strings"
	"testing"
)

func TestValidateLeafTree(t *testing.T) {
	r := &Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []Slot{LeafSlot("hello")},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateNoDynamics(t *testing.T) {
	r := &Rendered{Statics: []string{"<hr>"}}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateInterleavingMismatch(t *testing.T) {
	cases := []struct {
		name     string
		statics  []string
		dynamics []Slot
	}{
		{"too few statics", []string{"<p>"}, []Slot{LeafSlot("a")}},
		{"too many statics", []string{"a", "b", "c"}, []Slot{LeafSlot("x")}},
		{"no statics", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Rendered{Statics: tc.statics, Dynamics: tc.dynamics}
			if err := r.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateNestedTree(t *testing.T) {
	inner := &Rendered{
		Statics:  []string{"<em>", "</em>"},
		Dynamics: []Slot{LeafSlot("x")},
	}
	r := &Rendered{
		Statics:  []string{"<div>", "</div>"},
		Dynamics: []Slot{TreeSlot(inner)},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	inner.Statics = []string{"<em>"} // now malformed
	if err := r.Validate(); err == nil {
		t.Error("Validate() = nil, want error for malformed nested tree")
	}
}

func TestValidateComprehensionRowWidth(t *testing.T) {
	comp := &Comprehension{
		Statics: []string{"<li>", "-", "</li>"},
		Rows: [][]Slot{
			{LeafSlot("a"), LeafSlot("1")},
			{LeafSlot("b")}, // ragged
		},
	}
	r := &Rendered{
		Statics:  []string{"<ul>", "</ul>"},
		Dynamics: []Slot{ComprehensionSlot(comp)},
	}
	err := r.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error for ragged row")
	}
	if !strings.Contains(err.Error(), "row") {
		t.Errorf("error = %q, want mention of the bad row", err)
	}
}

func TestValidateComponentSlot(t *testing.T) {
	r := &Rendered{
		Statics: []string{"<div>", "</div>"},
		Dynamics: []Slot{ComponentSlot("sidebar", &Rendered{
			Statics:  []string{"<aside>", "</aside>"},
			Dynamics: []Slot{LeafSlot("nav")},
		})},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	r.Dynamics[0].Ref = nil
	if err := r.Validate(); err == nil {
		t.Error("Validate() = nil, want error for nil component ref")
	}
}

func TestSlotKindString(t *testing.T) {
	cases := []struct {
		kind SlotKind
		want string
	}{
		{KindLeaf, "Leaf"},
		{KindTree, "Tree"},
		{KindComprehension, "Comprehension"},
		{KindComponent, "Component"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("SlotKind(%d).String() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

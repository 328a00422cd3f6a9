package rendered

import "testing"

func leafTree(statics []string, leaves ...string) *Rendered {
	dynamics := make([]Slot, len(leaves))
	for i, v := range leaves {
		dynamics[i] = LeafSlot(v)
	}
	return &Rendered{Statics: statics, Dynamics: dynamics}
}

func TestFingerprintIgnoresLeafValues(t *testing.T) {
	a := leafTree([]string{"<p>", "</p>"}, "one")
	b := leafTree([]string{"<p>", "</p>"}, "two")
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ for same shape with different leaf values")
	}
}

func TestFingerprintSensitiveToStatics(t *testing.T) {
	a := leafTree([]string{"<p>", "</p>"}, "x")
	b := leafTree([]string{"<div>", "</div>"}, "x")
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprints equal for different statics")
	}
}

func TestFingerprintSensitiveToSlotKind(t *testing.T) {
	a := &Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []Slot{LeafSlot("x")},
	}
	b := &Rendered{
		Statics:  []string{"<p>", "</p>"},
		Dynamics: []Slot{TreeSlot(leafTree([]string{"x"}))},
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprints equal for different slot kinds")
	}
}

func TestFingerprintStaticsBoundaryNotAmbiguous(t *testing.T) {
	// ["ab", "c"] and ["a", "bc"] concatenate identically; the length
	// prefix must keep them apart.
	a := leafTree([]string{"ab", "c"}, "x")
	b := leafTree([]string{"a", "bc"}, "x")
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprints equal across shifted statics boundary")
	}
}

func TestFingerprintIgnoresComprehensionRows(t *testing.T) {
	mk := func(items ...string) *Rendered {
		rows := make([][]Slot, len(items))
		for i, item := range items {
			rows[i] = []Slot{LeafSlot(item)}
		}
		return &Rendered{
			Statics: []string{"<ul>", "</ul>"},
			Dynamics: []Slot{ComprehensionSlot(&Comprehension{
				Statics: []string{"<li>", "</li>"},
				Rows:    rows,
			})},
		}
	}
	a := mk("a", "b", "c")
	b := mk("x")
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ for same comprehension shape with different rows")
	}

	c := mk()
	if a.Fingerprint() != c.Fingerprint() {
		t.Error("fingerprints differ for empty vs populated comprehension")
	}
}

func TestFingerprintIgnoresComponentOutput(t *testing.T) {
	mk := func(inner *Rendered) *Rendered {
		return &Rendered{
			Statics:  []string{"<div>", "</div>"},
			Dynamics: []Slot{ComponentSlot("widget", inner)},
		}
	}
	a := mk(leafTree([]string{"<p>", "</p>"}, "one"))
	b := mk(leafTree([]string{"<span>", "</span>"}, "two"))
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ when only the component's output differs")
	}
}

func TestFingerprintStableAcrossCalls(t *testing.T) {
	r := leafTree([]string{"<p>", "</p>"}, "x")
	if r.Fingerprint() != r.Fingerprint() {
		t.Error("fingerprint not deterministic")
	}
}

func TestDiffable(t *testing.T) {
	a := leafTree([]string{"<p>", "</p>"}, "x")
	b := leafTree([]string{"<p>", "</p>"}, "y")
	c := leafTree([]string{"<div>", "</div>"}, "x")

	if !Diffable(a.Fingerprint(), b.Fingerprint()) {
		t.Error("Diffable = false for same shape")
	}
	if Diffable(a.Fingerprint(), c.Fingerprint()) {
		t.Error("Diffable = true for different shapes")
	}
}

func TestStaticsEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
		want bool
	}{
		{"equal", []string{"a", "b"}, []string{"a", "b"}, true},
		{"different value", []string{"a", "b"}, []string{"a", "c"}, false},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
		{"both empty", nil, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StaticsEqual(tc.a, tc.b); got != tc.want {
				t.Errorf("StaticsEqual = %v, want %v", got, tc.want)
			}
		})
	}
}

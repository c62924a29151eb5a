package anchor

import (
	"testing"

	"github.com/grailbio/omaln/invindex"
	"github.com/grailbio/omaln/molecule"
)

func mkMol(id uint64, positions ...uint32) *molecule.Molecule {
	labels := make([]molecule.Label, len(positions))
	for i, p := range positions {
		labels[i] = molecule.Label{Position: p}
	}
	return &molecule.Molecule{ID: id, Length: positions[len(positions)-1], Labels: labels}
}

func TestAnchorShortQueryProducesNoAnchors(t *testing.T) {
	store := molecule.NewMapStore()
	store.AddRef(mkMol(1, 0, 10000, 23000, 41000, 62000, 80000, 100000))
	idx, err := invindex.Build(store, 0, invindex.DefaultParams)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	a := New(idx, invindex.DefaultParams, 0)
	set := a.Anchor([]uint32{0, 10000, 20000})
	if len(set) != 0 {
		t.Errorf("expected no anchors for a too-short query, got %v", set)
	}
}

func TestAnchorIdentityQueryHitsReference(t *testing.T) {
	positions := []uint32{0, 10000, 23000, 41000, 62000, 80000, 100000}
	store := molecule.NewMapStore()
	store.AddRef(mkMol(1, positions...))
	idx, err := invindex.Build(store, 0, invindex.DefaultParams)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	a := New(idx, invindex.DefaultParams, 0)
	set := a.Anchor(positions)
	pairs, ok := set[1]
	if !ok || len(pairs) == 0 {
		t.Fatalf("expected anchors against reference 1, got %v", set)
	}
	foundIdentity := false
	for _, p := range pairs {
		if p.QPos == p.TPos {
			foundIdentity = true
		}
	}
	if !foundIdentity {
		t.Errorf("expected at least one identity anchor (qpos==tpos), got %v", pairs)
	}
}

func TestPositionsFromGapSequence(t *testing.T) {
	mol := mkMol(1, 0, 10000, 23000, 41000)
	gaps := molecule.NewGapSequence(mol, false)
	positions := PositionsFromGapSequence(gaps)
	want := []uint32{0, 10000, 23000, 41000}
	if len(positions) != len(want) {
		t.Fatalf("positions = %v, want %v", positions, want)
	}
	for i := range want {
		if positions[i] != want[i] {
			t.Errorf("positions[%d] = %d, want %d", i, positions[i], want[i])
		}
	}
}

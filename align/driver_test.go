package align

import (
	"context"
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

func buildStore(t *testing.T, refs, queries []*molecule.Molecule) (*molecule.MapStore, *invindex.Index) {
	t.Helper()
	store := molecule.NewMapStore()
	for _, r := range refs {
		if err := store.AddRef(r); err != nil {
			t.Fatalf("AddRef(%d): %v", r.ID, err)
		}
	}
	for _, q := range queries {
		if err := store.AddQuery(q); err != nil {
			t.Fatalf("AddQuery(%d): %v", q.ID, err)
		}
	}
	idx, err := invindex.Build(store, 0, invindex.DefaultParams)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return store, idx
}

// TestScenarioAIdentityMatch aligns a query that is an exact,
// same-orientation copy of the reference.
func TestScenarioAIdentityMatch(t *testing.T) {
	ref := mkMol(1, 0, 10000, 23000, 41000, 62000, 80000, 100000)
	query := mkMol(7, 0, 10000, 23000, 41000, 62000, 80000, 100000)
	store, idx := buildStore(t, []*molecule.Molecule{ref}, []*molecule.Molecule{query})

	opts := DefaultOpts
	opts.MinLabels = 3
	opts.StartMol, opts.EndMol = 7, 7

	d := New(store, idx, opts)
	var got []Record
	d.Run(context.Background(), func(id uint64, records []Record) { got = records })

	if len(got) != 1 {
		t.Fatalf("expected 1 alignment, got %d: %+v", len(got), got)
	}
	r := got[0]
	if r.RefID != 1 || r.QRev {
		t.Errorf("RefID/QRev = %d/%v, want 1/false", r.RefID, r.QRev)
	}
	if r.Score < 5 {
		t.Errorf("score = %f, want >= 5", r.Score)
	}
	if r.QStartIdx != 0 || r.QEndIdx != 6 {
		t.Errorf("QStart/QEnd = %d/%d, want 0/6", r.QStartIdx, r.QEndIdx)
	}
}

// TestScenarioCMissedLabel aligns a query missing one interior
// reference label, which DTW should absorb into a wider gap match.
func TestScenarioCMissedLabel(t *testing.T) {
	ref := mkMol(1, 0, 10000, 23000, 41000, 62000, 80000, 100000)
	query := mkMol(7, 0, 10000, 23000, 62000, 80000, 100000)
	store, idx := buildStore(t, []*molecule.Molecule{ref}, []*molecule.Molecule{query})

	opts := DefaultOpts
	opts.MinLabels = 3
	opts.StartMol, opts.EndMol = 7, 7

	d := New(store, idx, opts)
	var got []Record
	d.Run(context.Background(), func(id uint64, records []Record) { got = records })

	if len(got) != 1 || !got[0].HasAlignment {
		t.Fatalf("expected 1 real alignment, got %+v", got)
	}
	if got[0].Score < 5 {
		t.Errorf("score = %f, want >= 5", got[0].Score)
	}
}

// TestScenarioEBelowThreshold aligns a query too short to meet
// MinLabels and expects no alignment to be reported.
func TestScenarioEBelowThreshold(t *testing.T) {
	ref := mkMol(1, 0, 10000, 23000, 41000, 62000, 80000, 100000)
	query := mkMol(7, 0, 10000, 23000, 41000)
	store, idx := buildStore(t, []*molecule.Molecule{ref}, []*molecule.Molecule{query})

	opts := DefaultOpts // MinLabels defaults to 11; query has 3 labels.
	opts.StartMol, opts.EndMol = 7, 7

	d := New(store, idx, opts)
	var got []Record
	d.Run(context.Background(), func(id uint64, records []Record) { got = records })

	if len(got) != 1 || got[0].HasAlignment {
		t.Fatalf("expected a single placeholder record, got %+v", got)
	}
	if got[0].QueryID != 7 || got[0].QLabelCount != 3 {
		t.Errorf("placeholder = %+v, want QueryID=7, QLabelCount=3", got[0])
	}
}

func TestRunPreservesQueryIDOrdering(t *testing.T) {
	ref := mkMol(1, 0, 10000, 23000, 41000, 62000, 80000, 100000)
	q1 := mkMol(1, 0, 10000, 23000)
	q2 := mkMol(2, 0, 10000, 23000)
	q3 := mkMol(3, 0, 10000, 23000)
	store, idx := buildStore(t, []*molecule.Molecule{ref}, []*molecule.Molecule{q1, q2, q3})

	opts := DefaultOpts
	opts.StartMol, opts.EndMol = 1, 3

	d := New(store, idx, opts)
	seen := make(map[uint64]bool)
	var order []uint64
	d.Run(context.Background(), func(id uint64, records []Record) {
		seen[id] = true
		order = append(order, id)
	})

	for _, id := range []uint64{1, 2, 3} {
		if !seen[id] {
			t.Errorf("query %d was never emitted", id)
		}
	}
	for i := 1; i < len(order); i++ {
		if order[i] <= order[i-1] {
			t.Errorf("emit order = %v, want ascending query ids", order)
			break
		}
	}
}

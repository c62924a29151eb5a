package chain

import (
	"testing"

	"github.com/grailbio/omaln/anchor"
)

func TestRunChainsCollinearAnchors(t *testing.T) {
	set := anchor.Set{
		1: {
			{QPos: 0, TPos: 0},
			{QPos: 1, TPos: 1},
			{QPos: 2, TPos: 2},
			{QPos: 3, TPos: 3},
			{QPos: 4, TPos: 4},
		},
	}
	chains, err := Run(set, DefaultOpts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chains) != 1 {
		t.Fatalf("expected 1 chain, got %d: %v", len(chains), chains)
	}
	got := chains[0]
	if got.Ref != 1 {
		t.Errorf("Ref = %d, want 1", got.Ref)
	}
	if len(got.Anchors) != 5 {
		t.Fatalf("chain length = %d, want 5", len(got.Anchors))
	}
	for i, a := range got.Anchors {
		if a.QPos != i || a.TPos != i {
			t.Errorf("Anchors[%d] = %+v, want QPos=TPos=%d", i, a, i)
		}
	}
}

func TestRunDropsChainsShorterThanMinChainLength(t *testing.T) {
	set := anchor.Set{
		1: {
			{QPos: 0, TPos: 0},
			{QPos: 1, TPos: 1},
		},
	}
	opts := DefaultOpts
	opts.MinChainLength = 3
	chains, err := Run(set, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chains) != 0 {
		t.Errorf("expected no chains below MinChainLength, got %v", chains)
	}
}

func TestRunRejectsNonCollinearGaps(t *testing.T) {
	// QPos decreasing relative to TPos ordering (or gap beyond MaxGap)
	// should not be chained together.
	set := anchor.Set{
		1: {
			{QPos: 0, TPos: 0},
			{QPos: 1000, TPos: 1},
		},
	}
	opts := DefaultOpts
	opts.MaxGap = 10
	opts.MinChainLength = 1
	chains, err := Run(set, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range chains {
		if len(c.Anchors) > 1 {
			t.Errorf("expected anchors beyond MaxGap to not chain together, got %v", c.Anchors)
		}
	}
}

func TestRunEachAnchorUsedAtMostOnce(t *testing.T) {
	set := anchor.Set{
		1: {
			{QPos: 0, TPos: 0},
			{QPos: 1, TPos: 1},
			{QPos: 2, TPos: 2},
		},
		2: {
			{QPos: 0, TPos: 0},
			{QPos: 1, TPos: 1},
			{QPos: 2, TPos: 2},
		},
	}
	opts := DefaultOpts
	opts.MinChainLength = 1
	chains, err := Run(set, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := make(map[[3]int]bool)
	for _, c := range chains {
		for _, a := range c.Anchors {
			key := [3]int{int(c.Ref), a.QPos, a.TPos}
			if seen[key] {
				t.Errorf("anchor %+v reused across chains", a)
			}
			seen[key] = true
		}
	}
}

func TestRunRespectsMaxChains(t *testing.T) {
	set := anchor.Set{
		1: {{QPos: 0, TPos: 0}, {QPos: 1, TPos: 1}, {QPos: 2, TPos: 2}},
		2: {{QPos: 0, TPos: 0}, {QPos: 1, TPos: 1}, {QPos: 2, TPos: 2}},
		3: {{QPos: 0, TPos: 0}, {QPos: 1, TPos: 1}, {QPos: 2, TPos: 2}},
	}
	opts := DefaultOpts
	opts.MinChainLength = 1
	opts.MaxChains = 2
	chains, err := Run(set, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chains) > 2 {
		t.Errorf("expected at most MaxChains=2 chains, got %d", len(chains))
	}
}

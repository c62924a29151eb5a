// Package anchor produces candidate anchor pairs (query-index ->
// reference-index) for one query molecule against a built
// invindex.Index.
package anchor

import (
	"github.com/grailbio/omaln/invindex"
	"github.com/grailbio/omaln/molecule"
)

// Pair is one candidate anchor: a query label index paired with a
// reference label index that share a signature.
type Pair struct {
	QPos int
	TPos int
}

// Set is the per-target anchor lists produced by one Anchorer run:
// target molecule id -> ordered-by-discovery anchor pairs.
type Set map[uint64][]Pair

// Anchorer scans a query molecule's windows against an invindex.Index
// and accumulates candidate AnchorPairs per target.
type Anchorer struct {
	idx     *invindex.Index
	params  invindex.Params
	maxHits int
}

// New returns an Anchorer bound to idx. maxHits is the posting-list
// length past which a signature is treated as repetitive and skipped.
func New(idx *invindex.Index, params invindex.Params, maxHits int) *Anchorer {
	return &Anchorer{idx: idx, params: params, maxHits: maxHits}
}

// Anchor scans positions, the label positions of a query molecule in
// one orientation (as rebuilt by PositionsFromGapSequence), and returns
// the candidate anchors it produces.
// Queries shorter than the window size produce no anchors.
func (a *Anchorer) Anchor(positions []uint32) Set {
	set := make(Set)
	n := len(positions)
	if n < invindex.WindowSize {
		return set
	}
	var variants []invindex.Signature
	for i := 0; i+invindex.WindowSize <= n; i++ {
		var window [invindex.WindowSize]uint32
		copy(window[:], positions[i:i+invindex.WindowSize])

		variants = variants[:0]
		variants = invindex.AppendVariants(variants, window, a.params)

		seenSig := make(map[invindex.Signature]struct{}, len(variants))
		for _, sig := range variants {
			if _, dup := seenSig[sig]; dup {
				continue
			}
			seenSig[sig] = struct{}{}

			for _, hit := range a.idx.Lookup(sig, a.maxHits) {
				a.appendDedup(set, hit.MoleculeID, i, hit.StartIdx)
			}
		}
	}
	return set
}

// appendDedup appends (qpos,tpos) to target's anchor list, suppressing
// the append if the tail of the list already holds the same (qpos,
// tpos) pair — consecutive signature variants commonly resolve to the
// same hit.
func (a *Anchorer) appendDedup(set Set, target uint64, qpos, tpos int) {
	list := set[target]
	if n := len(list); n > 0 && list[n-1].QPos == qpos && list[n-1].TPos == tpos {
		return
	}
	set[target] = append(list, Pair{QPos: qpos, TPos: tpos})
}

// PositionsFromGapSequence reconstructs absolute label positions from a
// gap sequence view, which is what Anchor needs to recompute windows.
// The first position is always 0 in this local coordinate frame; only
// relative spacing matters to the signature.
func PositionsFromGapSequence(gaps molecule.GapSequence) []uint32 {
	n := gaps.Len()
	if n == 0 {
		return nil
	}
	positions := make([]uint32, n+1)
	for i := 0; i < n; i++ {
		positions[i+1] = positions[i] + gaps.At(i)
	}
	return positions
}

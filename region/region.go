// Package region collapses overlapping or adjacent candidate reference
// intervals produced by the chainer so DTW refinement never redoes
// work on the same stretch of reference twice.
package region

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"

	"github.com/grailbio/omaln/chain"
	"github.com/grailbio/omaln/molecule"
)

// Region is a candidate reference-label-index interval to refine with
// DTW, plus the chain that produced it.
type Region struct {
	Ref        uint64
	StartIdx   int
	EndIdx     int
	SourceChain chain.Chain
}

// liveRegion is the mutable node kept in the llrb.Tree while a merge
// pass is in progress; dead regions have already been folded into
// another live one.
type liveRegion struct {
	ref      uint64
	start    int
	end      int
	dead     bool
	chains   []chain.Chain
}

// key orders liveRegions within the tree by (ref, start), so regions on
// the same reference can be located and merged by an ordered range
// scan instead of a linear pass over every live region.
type key struct {
	ref    uint64
	start  int
	region *liveRegion
}

// Compare implements llrb.Comparable.
func (k key) Compare(c2 llrb.Comparable) int {
	k2 := c2.(key)
	if k.ref != k2.ref {
		if k.ref < k2.ref {
			return -1
		}
		return 1
	}
	return k.start - k2.start
}

// Merge computes an estimated reference span for each chain meeting
// minAnchors, widens it outward to plausibly cover the whole query,
// and transitively unions overlapping spans on the same reference. It
// returns the surviving (non-dead) merged regions. queryPositions are
// query label positions in the same coordinate frame and orientation
// as the chain's qpos indices (the forward or reversed gap sequence,
// reconstructed via anchor.PositionsFromGapSequence); queryLength is
// the molecule's total length in base pairs, invariant to orientation.
func Merge(chains []chain.Chain, store *molecule.MapStore, queryPositions []uint32, queryLength uint32, minAnchors int) ([]Region, error) {
	tree := llrb.Tree{}

	for _, c := range chains {
		if len(c.Anchors) < minAnchors {
			continue
		}
		ref := store.RefMolecule(c.Ref)
		if ref == nil {
			return nil, errors.E("region merge: chain references unknown target", c.Ref)
		}
		start, end, err := estimateSpan(c, ref, queryPositions, queryLength)
		if err != nil {
			return nil, err
		}
		insertMerged(&tree, c.Ref, start, end, c)
	}

	var out []Region
	tree.Do(func(c llrb.Comparable) bool {
		k := c.(key)
		if k.region.dead {
			return false
		}
		out = append(out, Region{
			Ref:         k.region.ref,
			StartIdx:    k.region.start,
			EndIdx:      k.region.end,
			SourceChain: bestChain(k.region.chains),
		})
		return false
	})
	return out, nil
}

// estimateSpan computes the estimated reference start/end positions
// implied by the chain's first and last anchors (projecting the
// unmatched query overhang on either side onto the reference), then
// locates the label-index bounds that reach those estimated positions
// via binary search over the reference's (sorted) label positions.
func estimateSpan(c chain.Chain, ref *molecule.Molecule, queryPositions []uint32, queryLength uint32) (start, end int, err error) {
	first, last := c.Anchors[0], c.Anchors[len(c.Anchors)-1]
	if first.QPos >= len(queryPositions) || last.QPos >= len(queryPositions) {
		return 0, 0, errors.E("region merge: anchor query index out of range", c.Ref)
	}
	if first.TPos >= len(ref.Labels) || last.TPos >= len(ref.Labels) {
		return 0, 0, errors.E("region merge: anchor target index out of range", c.Ref)
	}

	qFirstPos := int64(queryPositions[first.QPos])
	qLastPos := int64(queryPositions[last.QPos])
	tFirstPos := int64(ref.Labels[first.TPos].Position)
	tLastPos := int64(ref.Labels[last.TPos].Position)
	length := int64(queryLength)

	estStart := tFirstPos - qFirstPos
	estEnd := tLastPos + (length - qLastPos)

	positions := make([]molecule.PosType, len(ref.Labels))
	for i, l := range ref.Labels {
		positions[i] = clampPosType(int64(l.Position))
	}

	// startIdx is the smallest index whose position is >= estStart: the
	// leftmost label that could still be inside the estimated span.
	startIdx := molecule.SearchPosTypes(positions, clampPosType(estStart))
	if startIdx >= len(positions) {
		startIdx = len(positions) - 1
	}
	// endIdx is the largest index whose position is <= estEnd, i.e. one
	// before the smallest index whose position is > estEnd.
	endIdx := molecule.SearchPosTypes(positions, clampPosType(estEnd+1)) - 1
	if endIdx < 0 {
		endIdx = 0
	}
	if endIdx >= len(positions) {
		endIdx = len(positions) - 1
	}
	return startIdx, endIdx, nil
}

// clampPosType converts a possibly out-of-range int64 position into
// PosType, saturating instead of wrapping; every real label position
// is non-negative and well under PosTypeMax, so this only triggers on
// an estimated bound that overshoots past either end of the reference.
func clampPosType(v int64) molecule.PosType {
	if v < 0 {
		return 0
	}
	if v > int64(molecule.PosTypeMax) {
		return molecule.PosTypeMax
	}
	return molecule.PosType(v)
}

// insertMerged folds [start,end] for ref into tree, merging
// transitively with any overlapping or adjacent live region already
// present for that reference.
func insertMerged(tree *llrb.Tree, ref uint64, start, end int, c chain.Chain) {
	chains := []chain.Chain{c}
	// Regions folded into this one are removed from the tree before the
	// merged region is inserted, so the tree only ever holds live,
	// pairwise non-overlapping regions and Floor always finds the live one.
	var merged []llrb.Comparable

	// A live predecessor whose end reaches into [start,end] (or is
	// adjacent to it) merges leftward first.
	if pred := tree.Floor(key{ref: ref, start: start}); pred != nil {
		pk := pred.(key)
		if pk.ref == ref && !pk.region.dead && pk.region.end+1 >= start {
			start = min(start, pk.region.start)
			end = max(end, pk.region.end)
			pk.region.dead = true
			chains = append(chains, pk.region.chains...)
			merged = append(merged, pk)
		}
	}

	// Any live region whose start falls within [start,end+1] overlaps or
	// is adjacent by construction (its start is already >= our current
	// start) and folds rightward, transitively extending end further.
	for {
		extended := false
		tree.DoRange(func(c llrb.Comparable) bool {
			k := c.(key)
			if k.region.dead || k.region.start > end+1 {
				return false
			}
			if k.region.start >= start {
				start = min(start, k.region.start)
				end = max(end, k.region.end)
				k.region.dead = true
				chains = append(chains, k.region.chains...)
				merged = append(merged, k)
				extended = true
			}
			return false
		}, key{ref: ref, start: start}, key{ref: ref, start: end + 2})
		if !extended {
			break
		}
	}
	for _, m := range merged {
		tree.Delete(m)
	}

	tree.Insert(key{ref: ref, start: start, region: &liveRegion{
		ref: ref, start: start, end: end, chains: chains,
	}})
}

// bestChain returns the highest-scoring chain among those folded into
// a merged region, which becomes its representative SourceChain.
func bestChain(chains []chain.Chain) chain.Chain {
	best := chains[0]
	for _, c := range chains[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

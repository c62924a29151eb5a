// Package chain implements collinear chaining of anchor pairs per
// reference contig via a bounded-lookback dynamic program.
package chain

import (
	"math"
	"sort"

	"github.com/grailbio/base/errors"

	"github.com/grailbio/omaln/anchor"
)

// Opts holds the Chainer's tunable parameters.
type Opts struct {
	Lookback       int // default 50; bounds how far back the DP looks for a predecessor
	MaxGap         int // default 50
	MatchScore     int // M; default 4
	MinChainLength int // default 3
	MaxChains      int // default unbounded in practice; caller sets a cap
}

// DefaultOpts are the recommended starting parameters.
var DefaultOpts = Opts{
	Lookback:       50,
	MaxGap:         50,
	MatchScore:     4,
	MinChainLength: 3,
	MaxChains:      1 << 30,
}

// Chain is a maximally-scoring collinear sequence of anchors for one
// reference, with strictly increasing QPos and TPos.
type Chain struct {
	Ref     uint64
	Anchors []anchor.Pair
	Score   float64
}

// scoredAnchor is one node of the chaining DP: one target's anchors,
// sorted by TPos, with the running best score and predecessor index
// within that target's own slice.
type scoredAnchor struct {
	pos   anchor.Pair
	score float64
	prev  int // -1 if none
	used  bool
}

// Run chains the anchors in set (as produced by one anchor.Anchorer
// invocation) and returns up to opts.MaxChains Chains, highest score
// first. It returns an error only when a traceback lands on a target
// not present in the input set, which should never happen and
// indicates a corrupted intermediate state.
func Run(set anchor.Set, opts Opts) ([]Chain, error) {
	type targetDP struct {
		ref     uint64
		anchors []scoredAnchor
	}

	targets := make([]targetDP, 0, len(set))
	for ref, pairs := range set {
		sorted := append([]anchor.Pair(nil), pairs...)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].TPos != sorted[j].TPos {
				return sorted[i].TPos < sorted[j].TPos
			}
			return sorted[i].QPos < sorted[j].QPos
		})
		targets = append(targets, targetDP{ref: ref, anchors: sortedToScored(sorted, opts)})
	}
	// Deterministic target iteration order, so ties in global score sort
	// (below) break the same way across runs.
	sort.Slice(targets, func(i, j int) bool { return targets[i].ref < targets[j].ref })

	type globalPos struct {
		targetIdx int
		anchorIdx int
		score     float64
	}
	var global []globalPos
	for ti, td := range targets {
		h := opts.Lookback
		for i := range td.anchors {
			best := float64(opts.MatchScore)
			bestPrev := -1
			lo := i - h
			if lo < 0 {
				lo = 0
			}
			for j := lo; j < i; j++ {
				qdiff := td.anchors[i].pos.QPos - td.anchors[j].pos.QPos
				tdiff := td.anchors[i].pos.TPos - td.anchors[j].pos.TPos
				if qdiff <= 0 || tdiff <= 0 || qdiff > opts.MaxGap || tdiff > opts.MaxGap {
					continue
				}
				diffdiff := qdiff - tdiff
				if diffdiff < 0 {
					diffdiff = -diffdiff
				}
				var gapCost float64
				if diffdiff != 0 {
					gapCost = 0.01*float64(opts.MatchScore)*float64(diffdiff) + 0.5*math.Log2(float64(diffdiff))
				}
				minDiff := qdiff
				if tdiff < minDiff {
					minDiff = tdiff
				}
				matchTerm := float64(minDiff)
				if matchTerm > float64(opts.MatchScore) {
					matchTerm = float64(opts.MatchScore)
				}
				score := td.anchors[j].score + matchTerm - gapCost
				if score > best {
					best = score
					bestPrev = j
				}
			}
			td.anchors[i].score = best
			td.anchors[i].prev = bestPrev
		}
		for i := range td.anchors {
			global = append(global, globalPos{targetIdx: ti, anchorIdx: i, score: td.anchors[i].score})
		}
	}

	// Sort all positions by score descending; ties keep encounter order
	// (stable sort), which is itself deterministic given the target
	// ordering above.
	sort.SliceStable(global, func(i, j int) bool { return global[i].score > global[j].score })

	var chains []Chain
	for _, g := range global {
		if len(chains) >= opts.MaxChains {
			break
		}
		td := &targets[g.targetIdx]
		pos := g.anchorIdx
		if pos < 0 || pos >= len(td.anchors) {
			return nil, errors.E("chain traceback target inconsistency", td.ref, pos)
		}
		length := 0
		walk := pos
		for !td.anchors[walk].used {
			length++
			if td.anchors[walk].prev == -1 {
				break
			}
			walk = td.anchors[walk].prev
		}
		if length < opts.MinChainLength {
			continue
		}
		anchors := make([]anchor.Pair, length)
		walk = pos
		for i := 0; i < length; i++ {
			td.anchors[walk].used = true
			anchors[length-1-i] = td.anchors[walk].pos
			walk = td.anchors[walk].prev
		}
		chains = append(chains, Chain{Ref: td.ref, Anchors: anchors, Score: g.score})
	}
	return chains, nil
}

func sortedToScored(sorted []anchor.Pair, opts Opts) []scoredAnchor {
	out := make([]scoredAnchor, len(sorted))
	for i, p := range sorted {
		out[i] = scoredAnchor{pos: p, score: float64(opts.MatchScore), prev: -1}
	}
	return out
}

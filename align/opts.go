// Package align orchestrates the per-query sweep — anchor, chain,
// merge, refine, rank, threshold, emit — across forward and reverse
// orientations.
package align

import (
	"github.com/grailbio/omaln/chain"
	"github.com/grailbio/omaln/dtw"
	"github.com/grailbio/omaln/invindex"
)

// Opts holds every tunable of the alignment pipeline, from the
// top-level acceptance thresholds down to the per-stage parameters of
// the anchor index, chainer, and DTW refiner.
type Opts struct {
	MinLabels       int // default 11
	ChainThreshold  int // default 1; minimum anchors per chain to attempt DTW
	DTWThreshold    float64 // default 5
	MaxQgrams       int     // posting lists longer are skipped as repetitive; 0 means uncapped
	ResolutionMin   uint32  // default 500; index-construction label-spacing filter
	StartMol        uint64
	EndMol          uint64
	MaxAlignments   int // default 3

	Chain chain.Opts
	DTW   dtw.Opts
	Index invindex.Params

	// IndexBothOrientations is not read by the Driver or by
	// invindex.Build and has no effect: the index always holds forward
	// reference windows only, and the reverse orientation is probed by
	// reversing each query's gaps. Off by default.
	IndexBothOrientations bool
}

// DefaultOpts are the recommended starting parameters.
var DefaultOpts = Opts{
	MinLabels:      11,
	ChainThreshold: 1,
	DTWThreshold:   5,
	MaxQgrams:      0,
	ResolutionMin:  500,
	MaxAlignments:  3,
	Chain:          chain.DefaultOpts,
	DTW:            dtw.DefaultOpts,
	Index:          invindex.DefaultParams,
}

// Package dtw implements the overlap dynamic-time-warping refinement
// over inter-label gap sequences.
package dtw

import (
	"github.com/grailbio/base/errors"
)

// Move is one traceback symbol.
type Move uint8

const (
	Match Move = iota
	Ins
	Del
)

// Opts holds the DTWRefiner's tunable parameters.
type Opts struct {
	InsScore        float64 // default -1
	DelScore        float64 // default -1
	NeutralDeviation float64 // default 0.2
	QMatchBonus     float64 // default 0.1; bonus for matching the query gaps accumulated over preceding INS steps, plus the current one, against one target gap
	TMatchBonus     float64 // default 0.1
	QTMatchBonus    float64 // default 0.2
}

// DefaultOpts are the recommended starting parameters.
var DefaultOpts = Opts{
	InsScore:         -1,
	DelScore:         -1,
	NeutralDeviation: 0.2,
	QMatchBonus:      0.1,
	TMatchBonus:      0.1,
	QTMatchBonus:     0.2,
}

// Result is the outcome of one DTW refinement: a score, the label-index
// bounds of the aligned region on each side, and the traceback path.
// The caller already knows the reference id, so Result omits it.
type Result struct {
	Failed bool
	Score  float64
	// QStart/QEnd/TStart/TEnd are label-index bounds; both ends are
	// inclusive.
	QStart, QEnd, TStart, TEnd int
	Path                       []Move
	Reverse                    bool
}

// Arena is scratch space reused across calls to Align so a worker
// processing many queries doesn't reallocate the DP lattice per
// candidate region; it only grows, never shrinks.
type Arena struct {
	score    [][]float64
	dir      [][]Move
	qCum     [][]float64
	tCum     [][]float64
}

// NewArena returns an empty scratch arena for Align.
func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) ensure(qlen, tlen int) {
	rows := qlen + 1
	cols := tlen + 1
	if len(a.score) < rows {
		growScore := make([][]float64, rows)
		growDir := make([][]Move, rows)
		growQ := make([][]float64, rows)
		growT := make([][]float64, rows)
		copy(growScore, a.score)
		copy(growDir, a.dir)
		copy(growQ, a.qCum)
		copy(growT, a.tCum)
		a.score, a.dir, a.qCum, a.tCum = growScore, growDir, growQ, growT
	}
	for y := 0; y < rows; y++ {
		if len(a.score[y]) < cols {
			a.score[y] = make([]float64, cols)
			a.dir[y] = make([]Move, cols)
			a.qCum[y] = make([]float64, cols)
			a.tCum[y] = make([]float64, cols)
		}
	}
}

// matchScore scores how well gap lengths a and b agree given a
// neutral-deviation tolerance: a relative-tolerance model when neutral
// < 1 (scaled by b), an absolute-tolerance model otherwise.
func matchScore(a, b, neutral float64) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if neutral >= 1.0 {
		return 1.0 - diff/neutral
	}
	return 1.0 - diff/b/neutral
}

// Align runs the overlap DP of query gaps against target gaps and
// returns the best-scoring local alignment reaching the last row or
// column. An empty query or target fails immediately rather than
// running the DP over a degenerate lattice. reverse selects which end
// of query is walked first.
func Align(a *Arena, query, target []uint32, opts Opts, reverse bool) Result {
	qlen, tlen := len(query), len(target)
	if qlen == 0 || tlen == 0 {
		return Result{Failed: true, Score: -1, Reverse: reverse}
	}
	a.ensure(qlen, tlen)

	for y := 1; y <= qlen; y++ {
		a.score[y][0] = 0
		a.qCum[y][0] = 0
		a.tCum[y][0] = 0
	}
	for x := 0; x <= tlen; x++ {
		a.score[0][x] = 0
		a.qCum[0][x] = 0
		a.tCum[0][x] = 0
	}

	for y := 0; y < qlen; y++ {
		qy := y
		if reverse {
			qy = qlen - 1 - y
		}
		qv := float64(query[qy])
		for x := 0; x < tlen; x++ {
			tv := float64(target[x])
			qCum, tCum := a.qCum[y][x], a.tCum[y][x]

			plain := matchScore(qv, tv, opts.NeutralDeviation)
			qmatch := matchScore(qCum+qv, tv, opts.NeutralDeviation) + opts.QMatchBonus
			tmatch := matchScore(qv, tCum+tv, opts.NeutralDeviation) + opts.TMatchBonus
			qtmatch := matchScore(qCum+qv, tCum+tv, opts.NeutralDeviation) + opts.QTMatchBonus

			matchBest := plain
			if qmatch > matchBest {
				matchBest = qmatch
			}
			if tmatch > matchBest {
				matchBest = tmatch
			}
			if qtmatch > matchBest {
				matchBest = qtmatch
			}
			matchBest += a.score[y][x]

			ins := a.score[y][x+1] + opts.InsScore
			del := a.score[y+1][x] + opts.DelScore

			switch {
			case matchBest >= ins && matchBest >= del:
				a.score[y+1][x+1] = matchBest
				a.dir[y+1][x+1] = Match
				a.qCum[y+1][x+1] = 0
				a.tCum[y+1][x+1] = 0
			case ins >= del:
				a.score[y+1][x+1] = ins
				a.dir[y+1][x+1] = Ins
				a.qCum[y+1][x+1] = a.qCum[y][x+1] + qv
				a.tCum[y+1][x+1] = a.tCum[y][x+1]
			default:
				a.score[y+1][x+1] = del
				a.dir[y+1][x+1] = Del
				a.tCum[y+1][x+1] = a.tCum[y+1][x] + tv
				a.qCum[y+1][x+1] = a.qCum[y+1][x]
			}
		}
	}

	maxX, maxY := 0, 0
	for x := 1; x <= tlen; x++ {
		if a.score[qlen][x] > a.score[maxY][maxX] {
			maxX, maxY = x, qlen
		}
	}
	for y := 1; y <= qlen; y++ {
		if a.score[y][tlen] > a.score[maxY][maxX] {
			maxX, maxY = tlen, y
		}
	}

	x, y := maxX, maxY
	var path []Move
	for y > 0 && x > 0 {
		m := a.dir[y][x]
		path = append(path, m)
		switch m {
		case Match:
			x--
			y--
		case Ins:
			y--
		case Del:
			x--
		}
	}
	// Traceback walks from the end of the alignment backward; reverse it
	// so Path reads in forward (query/target start to end) order.
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}

	return Result{
		Score:   a.score[maxY][maxX],
		QStart:  y,
		QEnd:    maxY,
		TStart:  x,
		TEnd:    maxX,
		Path:    path,
		Reverse: reverse,
	}
}

// ErrEmptySequence is returned by callers that want to surface an
// empty query or target sequence as an error rather than a failed
// Result; Align itself never returns an error, it reports failure in
// the Result's Failed field.
var ErrEmptySequence = errors.E("dtw: empty query or target sequence")

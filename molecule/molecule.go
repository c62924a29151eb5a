// Package molecule holds the in-memory representation of optical-mapping
// molecules (reference contigs and query reads): ordered label positions,
// the derived inter-label gap sequences, and the MapStore that owns both
// collections for the lifetime of a run.
//
// Field layout follows the documented CMap record: position, stdev,
// coverage and occurrence are all carried per label, but only
// position participates in any core computation.
package molecule

import (
	"sort"

	"github.com/grailbio/base/log"
)

// PosType is the coordinate type of the sorted base-pair label
// positions that SearchPosTypes searches to find a label index. int32
// holds positions up to PosTypeMax; callers saturate larger values.
type PosType = int32

// PosTypeMax is the maximum representable PosType.
const PosTypeMax = PosType(1<<31 - 1)

// Label is a position along a molecule, in base pairs, plus the
// per-label attributes the core carries but does not consume.
type Label struct {
	Position   uint32
	Stdev      float32
	Coverage   uint16
	Occurrence uint16
	Channel    uint8
}

// Molecule is a reference contig or query read: an id, a length in base
// pairs, and an ordered sequence of labels. The last entry in Labels is
// the terminal marker (Position == Length) and is not a real label.
type Molecule struct {
	ID      uint64
	Length  uint32
	Labels  []Label
}

// LabelCount returns the number of real labels (excluding the terminal
// marker).
func (m *Molecule) LabelCount() int {
	if len(m.Labels) == 0 {
		return 0
	}
	return len(m.Labels) - 1
}

// Validate checks the Molecule invariant: positions strictly
// non-decreasing, and the last position equal to Length. It returns a
// description of the violation, or "" if the molecule is well-formed.
func (m *Molecule) Validate() string {
	if len(m.Labels) == 0 {
		return "molecule has no labels, not even a terminal marker"
	}
	for i := 1; i < len(m.Labels); i++ {
		if m.Labels[i].Position < m.Labels[i-1].Position {
			return "label positions are not non-decreasing"
		}
	}
	if m.Labels[len(m.Labels)-1].Position != m.Length {
		return "terminal marker position does not equal molecule length"
	}
	return ""
}

// SearchPosTypes returns the smallest index i such that a[i] >= x (or
// len(a) if no such index exists), for a sorted a. Used to locate a
// reference label-position bound without a linear scan.
func SearchPosTypes(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// warnMalformed logs a molecule validation problem at debug level;
// MapStore callers decide whether a malformed molecule is fatal to the
// load or merely excluded.
func warnMalformed(id uint64, reason string) {
	log.Debug.Printf("molecule %d is malformed: %s", id, reason)
}

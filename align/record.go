package align

import "github.com/grailbio/omaln/dtw"

// Record is one emitted alignment record, matching the 17-field
// tab-separated output layout.
type Record struct {
	QueryID uint64

	// HasAlignment is false for a placeholder record: every field below
	// is then ignored except QueryID, QLabelCount, and QLength,
	// which are always populated.
	HasAlignment bool

	RefID uint64
	QRev  bool

	QStartIdx, QEndIdx   int
	QLabelCount          int
	QStartPos, QEndPos   uint32
	QLength              uint32

	TStartIdx, TEndIdx int
	TLabelCount        int
	TStartPos, TEndPos uint32
	TLength            uint32

	Score float64
	Path  []dtw.Move
}

// placeholder returns the "no alignment" record for a query that was
// too short, produced no chains, or hit an internal inconsistency:
// fields 2-5, 7-8, 10-17 are "-"; 1, 6, 9 are populated.
func placeholder(queryID uint64, labelCount int, length uint32) Record {
	return Record{
		QueryID:      queryID,
		HasAlignment: false,
		QLabelCount:  labelCount,
		QLength:      length,
	}
}

package align

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/yasushi-saito/zlibng"

	"github.com/grailbio/omaln/dtw"
)

// Emitter serializes Records to a tab-separated layout, one line per
// record, funneling concurrent writes from multiple workers through a
// single mutex-guarded writer.
type Emitter struct {
	mu sync.Mutex
	w  *bufio.Writer
	gz *zlibng.Writer
}

// NewEmitter wraps w in a buffered writer. If compressed is true, a
// zlibng gzip stream is interposed as an optional output convenience;
// Close must be called to flush both layers in that case.
func NewEmitter(w io.Writer, compressed bool) (*Emitter, error) {
	e := &Emitter{}
	if compressed {
		gz, err := zlibng.NewWriter(w, zlibng.Opts{})
		if err != nil {
			return nil, err
		}
		e.gz = gz
		e.w = bufio.NewWriter(gz)
	} else {
		e.w = bufio.NewWriter(w)
	}
	return e, nil
}

// Emit writes one query's records, in the order given. Callers that
// need across-query id-ascending ordering must call Emit with queries
// already sorted by id; Driver.Run does this.
func (e *Emitter) Emit(records []Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		if err := writeRecord(e.w, r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffered writer without closing an underlying
// compressed stream.
func (e *Emitter) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Flush()
}

// Close flushes and, if this Emitter owns a compressed stream, closes
// it too.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.w.Flush(); err != nil {
		return err
	}
	if e.gz != nil {
		return e.gz.Close()
	}
	return nil
}

const placeholderField = "-"

func writeRecord(w io.Writer, r Record) error {
	if !r.HasAlignment {
		_, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.QueryID,
			placeholderField, placeholderField, placeholderField, placeholderField,
			r.QLabelCount,
			placeholderField, placeholderField,
			r.QLength,
			placeholderField, placeholderField, placeholderField,
			placeholderField, placeholderField, placeholderField,
			placeholderField, placeholderField,
		)
		return err
	}

	rev := "0"
	if r.QRev {
		rev = "1"
	}
	_, err := fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%f\t%s\n",
		r.QueryID,
		r.RefID,
		rev,
		r.QStartIdx, r.QEndIdx,
		r.QLabelCount,
		r.QStartPos, r.QEndPos, r.QLength,
		r.TStartIdx, r.TEndIdx,
		r.TLabelCount,
		r.TStartPos, r.TEndPos, r.TLength,
		r.Score,
		pathString(r.Path),
	)
	return err
}

// pathString renders a DP path as a one-character-per-step string:
// '.' for MATCH, 'I' for INS, 'D' for DEL.
func pathString(path []dtw.Move) string {
	buf := make([]byte, len(path))
	for i, m := range path {
		switch m {
		case dtw.Match:
			buf[i] = '.'
		case dtw.Ins:
			buf[i] = 'I'
		case dtw.Del:
			buf[i] = 'D'
		}
	}
	return string(buf)
}

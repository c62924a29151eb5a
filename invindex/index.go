package invindex

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/omaln/molecule"
)

// Posting is one (molecule, start-index) pair stored under a Signature.
type Posting struct {
	MoleculeID uint64
	StartIdx   int
}

// Index is the built, immutable inverted index: Signature -> postings.
// Safe for concurrent reads once Build has returned; it is never
// mutated after that point.
type Index struct {
	params   Params
	postings map[Signature][]Posting
}

// Build constructs an Index over every reference molecule in store,
// after filtering each molecule's labels to at least minSpacing apart
// so that label jitter does not destabilize signatures. It fails if
// the reference collection is empty.
func Build(store *molecule.MapStore, minSpacing uint32, params Params) (*Index, error) {
	ids := store.RefIDs()
	if len(ids) == 0 {
		return nil, errors.E("cannot build InvariantIndex: reference MapStore is empty")
	}
	idx := &Index{params: params, postings: make(map[Signature][]Posting)}
	var variants []Signature
	for _, id := range ids {
		mol := store.RefMolecule(id)
		filtered := molecule.FilterLabels(mol, minSpacing)
		n := len(filtered.Labels)
		for i := 0; i+WindowSize <= n; i++ {
			var window [WindowSize]uint32
			for j := 0; j < WindowSize; j++ {
				window[j] = filtered.Labels[i+j].Position
			}
			variants = variants[:0]
			variants = AppendVariants(variants, window, params)
			seen := make(map[Signature]struct{}, len(variants))
			for _, sig := range variants {
				if _, dup := seen[sig]; dup {
					continue
				}
				seen[sig] = struct{}{}
				idx.postings[sig] = append(idx.postings[sig], Posting{MoleculeID: id, StartIdx: i})
			}
		}
	}
	log.Debug.Printf("InvariantIndex built: %d references, %d distinct signatures", len(ids), len(idx.postings))
	return idx, nil
}

// Lookup returns the postings for sig, or nil if absent. If the posting
// list's length exceeds maxHits, it is treated as repetitive and an
// empty slice is returned instead.
func (idx *Index) Lookup(sig Signature, maxHits int) []Posting {
	hits := idx.postings[sig]
	if maxHits > 0 && len(hits) > maxHits {
		return nil
	}
	return hits
}

// NumSignatures returns the number of distinct signatures in the index.
func (idx *Index) NumSignatures() int { return len(idx.postings) }

// Entry is one signature's posting list, as produced by Export.
type Entry struct {
	Signature Signature
	Postings  []Posting
}

// Export flattens the index's posting map into a slice, for a caller
// that wants to serialize it (mapio's index cache) without reaching
// into the unexported postings field.
func (idx *Index) Export() []Entry {
	out := make([]Entry, 0, len(idx.postings))
	for sig, postings := range idx.postings {
		out = append(out, Entry{sig, postings})
	}
	return out
}

// Import rebuilds an Index directly from a previously Exported posting
// map, skipping the Build scan over reference molecules entirely; used
// by mapio's index cache loader.
func Import(params Params, postings map[Signature][]Posting) *Index {
	return &Index{params: params, postings: postings}
}

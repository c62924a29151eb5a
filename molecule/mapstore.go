package molecule

import (
	"github.com/grailbio/base/errors"
)

// MapStore is the in-memory representation of two Molecule collections
// — reference contigs and query molecules — keyed by id. It is owned
// by the alignment driver for the lifetime of one run; references are
// loaded once and never mutated thereafter.
type MapStore struct {
	refs    map[uint64]*Molecule
	queries map[uint64]*Molecule
	// RecognitionSites are the pass-through enzyme recognition-site
	// strings from the reference map file header; the core never
	// interprets them, only reproduces them in output headers.
	RecognitionSites []string
}

// NewMapStore returns an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{
		refs:    make(map[uint64]*Molecule),
		queries: make(map[uint64]*Molecule),
	}
}

// AddRef inserts or replaces a reference molecule. It rejects
// molecules that violate the Molecule invariant, returning an error
// and leaving the store unchanged for that id; the caller is expected
// to continue loading the remaining molecules.
func (s *MapStore) AddRef(mol *Molecule) error {
	if reason := mol.Validate(); reason != "" {
		warnMalformed(mol.ID, reason)
		return errors.E("malformed reference molecule", mol.ID, reason)
	}
	s.refs[mol.ID] = mol
	return nil
}

// AddQuery inserts or replaces a query molecule, with the same
// validation as AddRef.
func (s *MapStore) AddQuery(mol *Molecule) error {
	if reason := mol.Validate(); reason != "" {
		warnMalformed(mol.ID, reason)
		return errors.E("malformed query molecule", mol.ID, reason)
	}
	s.queries[mol.ID] = mol
	return nil
}

// RefMolecule returns the reference molecule with the given id, or nil
// if absent.
func (s *MapStore) RefMolecule(id uint64) *Molecule { return s.refs[id] }

// QueryMolecule returns the query molecule with the given id, or nil if
// absent.
func (s *MapStore) QueryMolecule(id uint64) *Molecule { return s.queries[id] }

// CountRef returns the number of loaded reference molecules.
func (s *MapStore) CountRef() int { return len(s.refs) }

// CountQuery returns the number of loaded query molecules.
func (s *MapStore) CountQuery() int { return len(s.queries) }

// RefIDs returns the set of loaded reference ids, order unspecified.
func (s *MapStore) RefIDs() []uint64 {
	ids := make([]uint64, 0, len(s.refs))
	for id := range s.refs {
		ids = append(ids, id)
	}
	return ids
}

// QueryIDRange returns [min, max] over loaded query ids. Used by the
// command to fill in a start_mol/end_mol bound the caller left unset.
func (s *MapStore) QueryIDRange() (min, max uint64, ok bool) {
	first := true
	for id := range s.queries {
		if first {
			min, max = id, id
			first = false
			continue
		}
		if id < min {
			min = id
		}
		if id > max {
			max = id
		}
	}
	return min, max, !first
}

// GapSequence returns the zero-copy forward/reverse gap view over mol.
func (s *MapStore) GapSequence(mol *Molecule, reverse bool) GapSequence {
	return NewGapSequence(mol, reverse)
}

// Refs returns every loaded reference molecule, order unspecified. Used
// by mapio's snapshot cache to serialize the store without reaching
// into its unexported maps.
func (s *MapStore) Refs() []*Molecule {
	out := make([]*Molecule, 0, len(s.refs))
	for _, m := range s.refs {
		out = append(out, m)
	}
	return out
}

// Queries returns every loaded query molecule, order unspecified.
func (s *MapStore) Queries() []*Molecule {
	out := make([]*Molecule, 0, len(s.queries))
	for _, m := range s.queries {
		out = append(out, m)
	}
	return out
}

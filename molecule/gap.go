package molecule

// GapSequence is a zero-copy derived view over a Molecule's labels,
// yielding the inter-label distances g[i] = pos[i+1] - pos[i]. Its
// length is len(Labels)-1, which equals LabelCount(): the terminal
// marker contributes the final gap.
//
// A reverse GapSequence over the same labels reads the same gaps
// right-to-left; the terminal marker is not reversed with them, it
// stays logically at the end of the molecule.
type GapSequence struct {
	mol     *Molecule
	reverse bool
}

// NewGapSequence returns the forward or reverse gap view of mol.
func NewGapSequence(mol *Molecule, reverse bool) GapSequence {
	return GapSequence{mol: mol, reverse: reverse}
}

// Len returns the number of gaps.
func (g GapSequence) Len() int {
	n := len(g.mol.Labels)
	if n < 2 {
		return 0
	}
	return n - 1
}

// At returns the i-th gap (0-indexed), honoring orientation.
func (g GapSequence) At(i int) uint32 {
	n := g.Len()
	if g.reverse {
		// The k-th gap from the end, reading right to left, is the gap
		// between labels (n-k-1) and (n-k): same magnitude, reversed order.
		i = n - 1 - i
	}
	return g.mol.Labels[i+1].Position - g.mol.Labels[i].Position
}

// Slice materializes gaps [start, end) into a new []uint32, honoring
// orientation. Used by DTW, which needs a contiguous slice to index
// into repeatedly.
func (g GapSequence) Slice(start, end int) []uint32 {
	if end < start {
		end = start
	}
	out := make([]uint32, end-start)
	for i := range out {
		out[i] = g.At(start + i)
	}
	return out
}

// FilterLabels returns a new Molecule retaining only labels whose
// distance from the previously kept label is at least minSpacing. The
// first and terminal labels are always kept. Used when building the
// InvariantIndex so that label jitter does not destabilize signatures.
func FilterLabels(mol *Molecule, minSpacing uint32) *Molecule {
	if len(mol.Labels) == 0 {
		return mol
	}
	kept := make([]Label, 0, len(mol.Labels))
	kept = append(kept, mol.Labels[0])
	for i := 1; i < len(mol.Labels)-1; i++ {
		if mol.Labels[i].Position-kept[len(kept)-1].Position >= minSpacing {
			kept = append(kept, mol.Labels[i])
		}
	}
	// Always keep the terminal marker, even if it's closer than minSpacing
	// to the last kept real label: it isn't a real label and callers rely
	// on it being present to compute the final gap.
	last := mol.Labels[len(mol.Labels)-1]
	if len(kept) == 0 || kept[len(kept)-1].Position != last.Position {
		kept = append(kept, last)
	}
	return &Molecule{ID: mol.ID, Length: mol.Length, Labels: kept}
}

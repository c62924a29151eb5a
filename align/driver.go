package align

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/grailbio/base/log"

	"github.com/grailbio/omaln/anchor"
	"github.com/grailbio/omaln/chain"
	"github.com/grailbio/omaln/dtw"
	"github.com/grailbio/omaln/invindex"
	"github.com/grailbio/omaln/molecule"
	"github.com/grailbio/omaln/region"
)

// Driver orchestrates the per-query sweep against a built index:
// anchor, chain, merge, refine, rank, threshold, emit.
type Driver struct {
	Store *molecule.MapStore
	Index *invindex.Index
	Opts  Opts
}

// New returns a Driver bound to store and idx.
func New(store *molecule.MapStore, idx *invindex.Index, opts Opts) *Driver {
	return &Driver{Store: store, Index: idx, Opts: opts}
}

// Run processes every query id in [Opts.StartMol, Opts.EndMol] using a
// worker per CPU, splitting the id range into one contiguous chunk per
// worker. After every worker has finished, it invokes emit once per
// query from the calling goroutine in ascending query-id order, so the
// caller needs no buffering, sorting or locking for reproducible
// output. Cancellation is cooperative: a worker checks ctx between
// queries, never mid-DP; queries not reached before cancellation are
// not emitted.
func (d *Driver) Run(ctx context.Context, emit func(id uint64, records []Record)) {
	type result struct {
		id      uint64
		records []Record
	}

	ids := make([]uint64, 0, d.Opts.EndMol-d.Opts.StartMol+1)
	for id := d.Opts.StartMol; id <= d.Opts.EndMol; id++ {
		if d.Store.QueryMolecule(id) != nil {
			ids = append(ids, id)
		}
	}

	results := make([]result, len(ids))
	parallelism := runtime.NumCPU()
	if parallelism < 1 {
		parallelism = 1
	}
	var wg sync.WaitGroup
	chunk := (len(ids) + parallelism - 1) / parallelism
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(ids); start += chunk {
		end := start + chunk
		if end > len(ids) {
			end = len(ids)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			arena := dtw.NewArena()
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results[i] = result{id: ids[i], records: d.alignQuery(arena, ids[i])}
			}
		}(start, end)
	}
	wg.Wait()

	for _, r := range results {
		if r.records == nil {
			continue
		}
		emit(r.id, r.records)
	}
}

// alignQuery produces the ranked, thresholded record set for one
// query. It never returns a nil slice for a query that was present in
// the store.
func (d *Driver) alignQuery(arena *dtw.Arena, queryID uint64) []Record {
	query := d.Store.QueryMolecule(queryID)
	if query == nil {
		return nil
	}
	labelCount := query.LabelCount()
	if labelCount < d.Opts.MinLabels {
		return []Record{placeholder(queryID, labelCount, query.Length)}
	}

	anchorer := anchor.New(d.Index, d.Opts.Index, d.Opts.MaxQgrams)

	var candidates []Record
	for _, reverse := range [2]bool{false, true} {
		gaps := molecule.NewGapSequence(query, reverse)
		positions := anchor.PositionsFromGapSequence(gaps)
		set := anchorer.Anchor(positions)
		if len(set) == 0 {
			continue
		}

		chains, err := chain.Run(set, d.Opts.Chain)
		if err != nil {
			log.Error.Printf("omaln: query %d: chain inconsistency: %v", queryID, err)
			return []Record{placeholder(queryID, labelCount, query.Length)}
		}

		regions, err := region.Merge(chains, d.Store, positions, query.Length, d.Opts.ChainThreshold)
		if err != nil {
			log.Error.Printf("omaln: query %d: region inconsistency: %v", queryID, err)
			return []Record{placeholder(queryID, labelCount, query.Length)}
		}

		queryGaps := gaps.Slice(0, gaps.Len())
		for _, rgn := range regions {
			ref := d.Store.RefMolecule(rgn.Ref)
			if ref == nil {
				log.Error.Printf("omaln: query %d: region references unknown target %d", queryID, rgn.Ref)
				continue
			}
			refGaps := molecule.NewGapSequence(ref, false).Slice(rgn.StartIdx, rgn.EndIdx)

			res := dtw.Align(arena, queryGaps, refGaps, d.Opts.DTW, false)
			if res.Failed {
				candidates = append(candidates, Record{
					QueryID:      queryID,
					HasAlignment: true,
					RefID:        rgn.Ref,
					QRev:         reverse,
					Score:        -1,
					QLabelCount:  labelCount,
					QLength:      query.Length,
					TLabelCount:  ref.LabelCount(),
					TLength:      ref.Length,
				})
				continue
			}

			tStartIdx := rgn.StartIdx + res.TStart
			tEndIdx := rgn.StartIdx + res.TEnd
			candidates = append(candidates, Record{
				QueryID:      queryID,
				HasAlignment: true,
				RefID:        rgn.Ref,
				QRev:         reverse,
				QStartIdx:    res.QStart,
				QEndIdx:      res.QEnd,
				QLabelCount:  labelCount,
				QStartPos:    positions[res.QStart],
				QEndPos:      positions[res.QEnd],
				QLength:      query.Length,
				TStartIdx:    tStartIdx,
				TEndIdx:      tEndIdx,
				TLabelCount:  ref.LabelCount(),
				TStartPos:    ref.Labels[tStartIdx].Position,
				TEndPos:      ref.Labels[tEndIdx].Position,
				TLength:      ref.Length,
				Score:        res.Score,
				Path:         res.Path,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	out := make([]Record, 0, d.Opts.MaxAlignments)
	for _, c := range candidates {
		if len(out) >= d.Opts.MaxAlignments {
			break
		}
		if c.Score < d.Opts.DTWThreshold {
			break
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return []Record{placeholder(queryID, labelCount, query.Length)}
	}
	return out
}

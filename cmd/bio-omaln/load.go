package main

import (
	"context"

	"github.com/grailbio/base/log"

	"github.com/grailbio/omaln/align"
	"github.com/grailbio/omaln/invindex"
	"github.com/grailbio/omaln/mapio"
	"github.com/grailbio/omaln/molecule"
)

// loadStore builds the MapStore from refPath/queryPath. If
// snapshotPath is set and still valid for refPath's current contents,
// refPath is not parsed: the cached store (its references and the
// queries saved with it) is used instead, and queryPath is then parsed
// into it, replacing cached queries with the same id. Otherwise both
// files are parsed fresh and, if snapshotPath is set, a fresh snapshot
// is saved for next time.
func loadStore(ctx context.Context, refPath, queryPath, snapshotPath string) (*molecule.MapStore, error) {
	if snapshotPath != "" {
		if store, err := mapio.LoadSnapshot(ctx, snapshotPath, refPath); err == nil {
			log.Printf("omaln: loaded cached MapStore from %s", snapshotPath)
			if err := mapio.LoadQueryMap(ctx, queryPath, store); err != nil {
				return nil, err
			}
			return store, nil
		} else {
			log.Debug.Printf("omaln: snapshot cache unusable (%v), parsing %s fresh", err, refPath)
		}
	}

	store := molecule.NewMapStore()
	if err := mapio.LoadReferenceMap(ctx, refPath, store); err != nil {
		return nil, err
	}
	if err := mapio.LoadQueryMap(ctx, queryPath, store); err != nil {
		return nil, err
	}

	if snapshotPath != "" {
		if err := mapio.SaveSnapshot(ctx, snapshotPath, refPath, store); err != nil {
			log.Error.Printf("omaln: failed to save snapshot cache to %s: %v", snapshotPath, err)
		}
	}
	return store, nil
}

// loadIndex builds the InvariantIndex over store's references, or
// loads it from indexCachePath if present and readable; on a fresh
// build it saves the result back to indexCachePath when set.
func loadIndex(ctx context.Context, store *molecule.MapStore, indexCachePath string, opts align.Opts) (*invindex.Index, error) {
	if indexCachePath != "" {
		if idx, err := mapio.LoadIndexCache(ctx, indexCachePath, opts.Index); err == nil {
			log.Printf("omaln: loaded cached InvariantIndex from %s", indexCachePath)
			return idx, nil
		} else {
			log.Debug.Printf("omaln: index cache unusable (%v), building fresh", err)
		}
	}

	idx, err := invindex.Build(store, opts.ResolutionMin, opts.Index)
	if err != nil {
		return nil, err
	}
	if indexCachePath != "" {
		if err := mapio.SaveIndexCache(ctx, indexCachePath, idx); err != nil {
			log.Error.Printf("omaln: failed to save index cache to %s: %v", indexCachePath, err)
		}
	}
	return idx, nil
}

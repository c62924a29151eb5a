// Command bio-omaln aligns optical-mapping query molecules against a
// reference map using the geometric-invariant anchor/chain/DTW
// pipeline, end to end from CMap/BNX-style input files to a
// tab-separated alignment record stream.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/omaln/align"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bio-omaln --ref=<cmap> --query=<bnx> [flags]

Aligns every query molecule in --query against the reference map in
--ref, writing up to --max-alignments alignment records (or one
placeholder) per query to --output.

`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage

	refPath := flag.String("ref", "", "Path to a CMap-format reference map (required).")
	queryPath := flag.String("query", "", "Path to a BNX-format query map (required).")
	outputPath := flag.String("output", "", "Path to write alignment records to. (default stdout)")
	gzipOutput := flag.Bool("gzip-output", false, "Compress --output with a gzip-compatible stream.")

	indexCachePath := flag.String("index-cache", "", "If set, load the InvariantIndex from this path if present, else build it and save it here.")
	snapshotPath := flag.String("snapshot-cache", "", "If set, load the parsed MapStore from this path if it matches --ref's current contents, else build it and save it here.")

	opts := align.DefaultOpts
	flag.IntVar(&opts.MinLabels, "min-labels", opts.MinLabels, "Minimum label count for a query to be aligned at all.")
	flag.IntVar(&opts.ChainThreshold, "chain-threshold", opts.ChainThreshold, "Minimum anchors per chain to attempt region merging.")
	flag.Float64Var(&opts.DTWThreshold, "dtw-threshold", opts.DTWThreshold, "Minimum DTW score for a candidate to be emitted as a real alignment.")
	flag.IntVar(&opts.MaxQgrams, "max-qgrams", opts.MaxQgrams, "Posting lists longer than this are skipped as repetitive. 0 means uncapped.")
	flag.Uint64Var(&opts.StartMol, "start-mol", 0, "First query id to align (inclusive). 0 means the lowest loaded id.")
	flag.Uint64Var(&opts.EndMol, "end-mol", 0, "Last query id to align (inclusive). 0 means the highest loaded id.")
	flag.IntVar(&opts.MaxAlignments, "max-alignments", opts.MaxAlignments, "Maximum alignments emitted per query.")
	flag.BoolVar(&opts.IndexBothOrientations, "index-both-orientations", opts.IndexBothOrientations, "Has no effect: the index is always forward-only and each query is reversed to probe the reverse orientation.")
	resolutionMin := flag.Uint("resolution-min", uint(opts.ResolutionMin), "Minimum label spacing kept by filter_labels before index construction.")
	binSize := flag.Int("bin-size", int(opts.Index.BinSize), "Number of cross-ratio buckets per signature.")

	chainOpts := opts.Chain
	flag.IntVar(&chainOpts.Lookback, "chain-lookback", chainOpts.Lookback, "Bounded lookback window for the chaining DP.")
	flag.IntVar(&chainOpts.MaxGap, "chain-max-gap", chainOpts.MaxGap, "Maximum query/target gap between chained anchors.")
	flag.IntVar(&chainOpts.MatchScore, "chain-match-score", chainOpts.MatchScore, "Match score M of the chaining DP.")
	flag.IntVar(&chainOpts.MinChainLength, "chain-min-length", chainOpts.MinChainLength, "Minimum anchor count for a chain to survive.")
	flag.IntVar(&chainOpts.MaxChains, "chain-max-chains", chainOpts.MaxChains, "Maximum chains kept per query per orientation.")

	dtwOpts := opts.DTW
	flag.Float64Var(&dtwOpts.InsScore, "dtw-ins-score", dtwOpts.InsScore, "DTW insertion penalty.")
	flag.Float64Var(&dtwOpts.DelScore, "dtw-del-score", dtwOpts.DelScore, "DTW deletion penalty.")
	flag.Float64Var(&dtwOpts.NeutralDeviation, "dtw-neutral-deviation", dtwOpts.NeutralDeviation, "Relative-vs-absolute match-score crossover.")

	cleanup := grail.Init()
	defer cleanup()

	if *refPath == "" || *queryPath == "" {
		log.Error.Printf("omaln: --ref and --query are both required")
		usage()
	}
	opts.Chain = chainOpts
	opts.DTW = dtwOpts
	opts.ResolutionMin = uint32(*resolutionMin)
	opts.Index.BinSize = int32(*binSize)

	ctx := vcontext.Background()

	store, err := loadStore(ctx, *refPath, *queryPath, *snapshotPath)
	if err != nil {
		log.Fatalf("omaln: %v", err)
	}

	idx, err := loadIndex(ctx, store, *indexCachePath, opts)
	if err != nil {
		log.Fatalf("omaln: %v", err)
	}

	if opts.StartMol == 0 || opts.EndMol == 0 {
		min, max, ok := store.QueryIDRange()
		if !ok {
			log.Fatalf("omaln: no query molecules loaded from %s", *queryPath)
		}
		if opts.StartMol == 0 {
			opts.StartMol = min
		}
		if opts.EndMol == 0 {
			opts.EndMol = max
		}
	}

	out := os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Fatalf("omaln: create %s: %v", *outputPath, err)
		}
		defer f.Close() // nolint: errcheck
		out = f
	}
	emitter, err := align.NewEmitter(out, *gzipOutput)
	if err != nil {
		log.Fatalf("omaln: create emitter: %v", err)
	}

	driver := align.New(store, idx, opts)
	driver.Run(ctx, func(id uint64, records []align.Record) {
		if err := emitter.Emit(records); err != nil {
			log.Error.Printf("omaln: query %d: emit: %v", id, err)
		}
	})

	if err := emitter.Close(); err != nil {
		log.Fatalf("omaln: close emitter: %v", err)
	}
	log.Printf("omaln: done")
}

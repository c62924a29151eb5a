// Package mapio loads the two tab-delimited text formats the core
// alignment pipeline treats as an external concern, plus the
// index/snapshot cache files built around them: reference maps (CMap
// format) and query molecule maps (BNX format).
package mapio

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/grailbio/omaln/molecule"
)

// knownRecognitionSites are common nicking-enzyme recognition motifs;
// a site parsed from a CMap header that is a near-miss (Levenshtein
// distance 1 or 2) against one of these is very likely a transcription
// typo in the header rather than a genuinely novel enzyme, and is
// logged as a warning.
var knownRecognitionSites = []string{
	"CTTAAG",  // DLE-1
	"GCTCTTC", // Nt.BspQI
	"CACGAG",  // Nb.BssSI
	"CCTCAGC", // Nt.BbvCI
}

// LoadReferenceMap reads a CMap-format file at path into store as
// reference molecules, and records the file's recognition-site
// strings on store.RecognitionSites. A malformed molecule is logged
// and skipped; the load continues with the rest of the file.
func LoadReferenceMap(ctx context.Context, path string, store *molecule.MapStore) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "mapio: open %s", path)
	}
	defer f.Close(ctx) // nolint: errcheck

	type builder struct {
		length uint32
		labels []molecule.Label
	}
	order := []uint64{}
	builders := make(map[uint64]*builder)

	scanner := bufio.NewScanner(f.Reader(ctx))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if site, ok := parseRecognitionSiteComment(line); ok {
				checkRecognitionSiteTypo(site)
				store.RecognitionSites = append(store.RecognitionSites, site)
			}
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			return errors.Errorf("mapio: %s: malformed CMap row (want 9 fields, got %d): %q", path, len(fields), line)
		}
		cmapID, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: CMapId field", path)
		}
		contigLength, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: ContigLength field", path)
		}
		channel, err := strconv.ParseUint(fields[4], 10, 8)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: LabelChannel field", path)
		}
		position, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: Position field", path)
		}
		stdev, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: StdDev field", path)
		}
		coverage, err := strconv.ParseUint(fields[7], 10, 16)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: Coverage field", path)
		}
		occurrence, err := strconv.ParseUint(fields[8], 10, 16)
		if err != nil {
			return errors.Wrapf(err, "mapio: %s: Occurrence field", path)
		}

		b, ok := builders[cmapID]
		if !ok {
			b = &builder{length: uint32(contigLength)}
			builders[cmapID] = b
			order = append(order, cmapID)
		}
		b.labels = append(b.labels, molecule.Label{
			Position:   uint32(position),
			Stdev:      float32(stdev),
			Coverage:   uint16(coverage),
			Occurrence: uint16(occurrence),
			Channel:    uint8(channel),
		})
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "mapio: %s", path)
	}

	for _, id := range order {
		b := builders[id]
		mol := &molecule.Molecule{ID: id, Length: b.length, Labels: b.labels}
		if err := store.AddRef(mol); err != nil {
			log.Error.Printf("mapio: %s: skipping reference %d: %v", path, id, err)
		}
	}
	return nil
}

// parseRecognitionSiteComment extracts the site string from a
// "# Nickase Recognition Site N:\t<SITE>" header comment.
func parseRecognitionSiteComment(line string) (string, bool) {
	const marker = "Recognition Site"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(marker):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", false
	}
	site := strings.TrimSpace(rest[colon+1:])
	if site == "" {
		return "", false
	}
	return site, true
}

// checkRecognitionSiteTypo logs a warning if site is a near-miss
// against a known recognition motif, per this package's typo check.
func checkRecognitionSiteTypo(site string) {
	for _, known := range knownRecognitionSites {
		if site == known {
			return
		}
		if d := matchr.Levenshtein(site, known); d > 0 && d <= 2 {
			log.Error.Printf("mapio: recognition site %q is close to known site %q (edit distance %d); possible typo", site, known, d)
		}
	}
}

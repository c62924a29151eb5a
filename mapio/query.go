package mapio

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/grailbio/omaln/molecule"
)

// LoadQueryMap reads a BNX-format file at path into store as query
// molecules: a "0" line gives the molecule id and length, the
// following "1" line gives its label positions. The final position is
// kept even when it duplicates the molecule length rather than being
// special-cased away. If a file's "1" line doesn't already end at the
// molecule length, a terminal marker is appended so every loaded
// Molecule satisfies the non-decreasing-positions invariant.
func LoadQueryMap(ctx context.Context, path string, store *molecule.MapStore) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "mapio: open %s", path)
	}
	defer f.Close(ctx) // nolint: errcheck

	scanner := bufio.NewScanner(f.Reader(ctx))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		haveMolecule bool
		id           uint64
		length       uint32
		autoID       uint64
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		switch fields[0] {
		case "0":
			if len(fields) < 3 {
				return errors.Errorf("mapio: %s: malformed molecule line: %q", path, line)
			}
			parsedID, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				autoID++
				parsedID = autoID
			}
			size, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return errors.Wrapf(err, "mapio: %s: molecule size", path)
			}
			id, length = parsedID, uint32(size)
			haveMolecule = true
		case "1":
			if !haveMolecule {
				return errors.Errorf("mapio: %s: label line before molecule line", path)
			}
			labels, err := parseLabelLine(fields[1:], length)
			if err != nil {
				return errors.Wrapf(err, "mapio: %s", path)
			}
			mol := &molecule.Molecule{ID: id, Length: length, Labels: labels}
			if err := store.AddQuery(mol); err != nil {
				log.Error.Printf("mapio: %s: skipping query %d: %v", path, id, err)
			}
			haveMolecule = false
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "mapio: %s", path)
	}
	return nil
}

// parseLabelLine parses the tab-separated floating-point positions of
// a BNX "1" record, truncating each to an integer base-pair position
// (the fraction is dropped), and appends a terminal marker at length if the
// last parsed position doesn't already reach it.
func parseLabelLine(fields []string, length uint32) ([]molecule.Label, error) {
	labels := make([]molecule.Label, 0, len(fields)+1)
	for _, field := range fields {
		if field == "" {
			continue
		}
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrap(err, "label position")
		}
		labels = append(labels, molecule.Label{Position: uint32(value)})
	}
	if len(labels) == 0 || labels[len(labels)-1].Position != length {
		labels = append(labels, molecule.Label{Position: length})
	}
	return labels, nil
}

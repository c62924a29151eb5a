package mapio

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"

	"github.com/grailbio/omaln/molecule"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
	return path
}

func TestLoadReferenceMapParsesLabelsAndHeader(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	contents := "# Nickase Recognition Site 1:\tCTTAAG\n" +
		"1\t100000\t3\t1\t1\t10000.0\t0.5\t10\t2\n" +
		"1\t100000\t3\t2\t1\t62000.0\t0.4\t9\t1\n" +
		"1\t100000\t3\t3\t0\t100000.0\t0.0\t0\t0\n"
	path := writeTempFile(t, tempDir, "ref.cmap", contents)

	store := molecule.NewMapStore()
	if err := LoadReferenceMap(context.Background(), path, store); err != nil {
		t.Fatalf("LoadReferenceMap: %v", err)
	}

	if store.CountRef() != 1 {
		t.Fatalf("CountRef = %d, want 1", store.CountRef())
	}
	mol := store.RefMolecule(1)
	if mol == nil {
		t.Fatal("RefMolecule(1) = nil")
	}
	if len(mol.Labels) != 3 {
		t.Fatalf("len(Labels) = %d, want 3", len(mol.Labels))
	}
	if mol.Labels[2].Position != mol.Length {
		t.Errorf("terminal marker position = %d, want %d", mol.Labels[2].Position, mol.Length)
	}
	if len(store.RecognitionSites) != 1 || store.RecognitionSites[0] != "CTTAAG" {
		t.Errorf("RecognitionSites = %v, want [CTTAAG]", store.RecognitionSites)
	}
}

func TestLoadReferenceMapSkipsMalformedMoleculeButContinues(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	// Molecule 1's terminal marker (60000) doesn't match its
	// ContigLength (100000), so it's malformed and should be skipped;
	// molecule 2 is well-formed and should still load.
	contents := "1\t100000\t1\t1\t0\t60000.0\t0.0\t0\t0\n" +
		"2\t1000\t1\t1\t0\t1000.0\t0.0\t0\t0\n"
	path := writeTempFile(t, tempDir, "ref.cmap", contents)

	store := molecule.NewMapStore()
	if err := LoadReferenceMap(context.Background(), path, store); err != nil {
		t.Fatalf("LoadReferenceMap: %v", err)
	}
	if store.CountRef() != 1 {
		t.Fatalf("CountRef = %d, want 1", store.CountRef())
	}
	if store.RefMolecule(2) == nil {
		t.Error("expected molecule 2 to load despite molecule 1 being malformed")
	}
}

func TestLoadReferenceMapRejectsShortRow(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := writeTempFile(t, tempDir, "ref.cmap", "1\t100\t1\n")

	store := molecule.NewMapStore()
	if err := LoadReferenceMap(context.Background(), path, store); err == nil {
		t.Error("LoadReferenceMap succeeded on a malformed row, want error")
	}
}

func TestCheckRecognitionSiteTypoDoesNotPanicOnKnownSite(t *testing.T) {
	// Exercises the no-typo path for coverage; a known site should
	// never log a warning (nothing to assert against log output, but
	// this should run to completion without touching the mismatch branch).
	checkRecognitionSiteTypo("CTTAAG")
}

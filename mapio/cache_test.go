package mapio

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/testutil"

	"github.com/grailbio/omaln/invindex"
	"github.com/grailbio/omaln/molecule"
)

func TestIndexCacheRoundTrip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	store := molecule.NewMapStore()
	ref := &molecule.Molecule{ID: 1, Length: 100000, Labels: []molecule.Label{
		{Position: 0}, {Position: 10000}, {Position: 23000}, {Position: 41000},
		{Position: 62000}, {Position: 80000}, {Position: 100000},
	}}
	require.NoError(t, store.AddRef(ref))
	idx, err := invindex.Build(store, 0, invindex.DefaultParams)
	require.NoError(t, err)

	cachePath := filepath.Join(tempDir, "index.cache")
	ctx := context.Background()
	require.NoError(t, SaveIndexCache(ctx, cachePath, idx))

	loaded, err := LoadIndexCache(ctx, cachePath, invindex.DefaultParams)
	require.NoError(t, err)
	assert.Equal(t, idx.NumSignatures(), loaded.NumSignatures())
}

func TestLoadIndexCacheRejectsCorruptedChecksum(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	store := molecule.NewMapStore()
	ref := &molecule.Molecule{ID: 1, Length: 1000, Labels: []molecule.Label{
		{Position: 0}, {Position: 200}, {Position: 400}, {Position: 600}, {Position: 800}, {Position: 1000},
	}}
	require.NoError(t, store.AddRef(ref))
	idx, err := invindex.Build(store, 0, invindex.DefaultParams)
	require.NoError(t, err)

	cachePath := filepath.Join(tempDir, "index.cache")
	ctx := context.Background()
	require.NoError(t, SaveIndexCache(ctx, cachePath, idx))

	raw, err := ioutil.ReadFile(cachePath)
	require.NoError(t, err)
	raw[0] ^= 0xFF // flip a bit in the checksum
	require.NoError(t, ioutil.WriteFile(cachePath, raw, 0644))

	_, err = LoadIndexCache(ctx, cachePath, invindex.DefaultParams)
	assert.Error(t, err, "LoadIndexCache should reject a corrupted cache")
}

func TestSnapshotRoundTrip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	sourcePath := filepath.Join(tempDir, "source.cmap")
	require.NoError(t, ioutil.WriteFile(sourcePath, []byte("placeholder source contents\n"), 0644))

	store := molecule.NewMapStore()
	store.RecognitionSites = []string{"CTTAAG"}
	ref := &molecule.Molecule{ID: 1, Length: 1000, Labels: []molecule.Label{{Position: 0}, {Position: 500}, {Position: 1000}}}
	require.NoError(t, store.AddRef(ref))
	query := &molecule.Molecule{ID: 9, Length: 1000, Labels: []molecule.Label{{Position: 0}, {Position: 1000}}}
	require.NoError(t, store.AddQuery(query))

	snapshotPath := filepath.Join(tempDir, "store.snapshot")
	ctx := context.Background()
	require.NoError(t, SaveSnapshot(ctx, snapshotPath, sourcePath, store))

	loaded, err := LoadSnapshot(ctx, snapshotPath, sourcePath)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CountRef())
	assert.Equal(t, 1, loaded.CountQuery())
	assert.NotNil(t, loaded.RefMolecule(1))
	assert.NotNil(t, loaded.QueryMolecule(9))
	assert.Equal(t, []string{"CTTAAG"}, loaded.RecognitionSites)
}

func TestLoadSnapshotRejectsChangedSourceFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	sourcePath := filepath.Join(tempDir, "source.cmap")
	require.NoError(t, ioutil.WriteFile(sourcePath, []byte("v1\n"), 0644))

	store := molecule.NewMapStore()
	ref := &molecule.Molecule{ID: 1, Length: 1000, Labels: []molecule.Label{{Position: 0}, {Position: 1000}}}
	require.NoError(t, store.AddRef(ref))

	snapshotPath := filepath.Join(tempDir, "store.snapshot")
	ctx := context.Background()
	require.NoError(t, SaveSnapshot(ctx, snapshotPath, sourcePath, store))

	require.NoError(t, ioutil.WriteFile(sourcePath, []byte("v2, changed\n"), 0644))

	_, err := LoadSnapshot(ctx, snapshotPath, sourcePath)
	assert.Error(t, err, "LoadSnapshot should reject a stale snapshot")
}

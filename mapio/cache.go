package mapio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"hash"
	"os"

	"github.com/blainsmith/seahash"
	"github.com/golang/snappy"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/grailbio/omaln/invindex"
	"github.com/grailbio/omaln/molecule"
)

// SaveIndexCache writes idx to path as a gzip-compressed gob stream
// with a leading seahash checksum, so a rebuild can be skipped on a
// later run over the same reference set.
func SaveIndexCache(ctx context.Context, path string, idx *invindex.Index) error {
	var body bytes.Buffer
	enc := gob.NewEncoder(&body)
	entries := idx.Export()
	if err := enc.Encode(entries); err != nil {
		return errors.Wrap(err, "mapio: encode index cache")
	}

	h := seahash.New()
	h.Write(body.Bytes()) // nolint: errcheck
	checksum := h.Sum64()

	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "mapio: create %s", path)
	}
	defer out.Close(ctx) // nolint: errcheck

	w := out.Writer(ctx)
	var checksumBuf [8]byte
	binary.LittleEndian.PutUint64(checksumBuf[:], checksum)
	if _, err := w.Write(checksumBuf[:]); err != nil {
		return errors.Wrap(err, "mapio: write index cache checksum")
	}
	gz := gzip.NewWriter(w)
	if _, err := gz.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "mapio: write index cache body")
	}
	return gz.Close()
}

// LoadIndexCache reads back a cache written by SaveIndexCache,
// rejecting it if the stored seahash checksum doesn't match the
// decompressed body.
func LoadIndexCache(ctx context.Context, path string, params invindex.Params) (*invindex.Index, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapio: open %s", path)
	}
	defer in.Close(ctx) // nolint: errcheck

	r := in.Reader(ctx)
	var checksumBuf [8]byte
	if _, err := readFull(r, checksumBuf[:]); err != nil {
		return nil, errors.Wrap(err, "mapio: read index cache checksum")
	}
	wantChecksum := binary.LittleEndian.Uint64(checksumBuf[:])

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "mapio: open index cache gzip stream")
	}
	defer gz.Close() // nolint: errcheck

	var body bytes.Buffer
	if _, err := body.ReadFrom(gz); err != nil {
		return nil, errors.Wrap(err, "mapio: decompress index cache")
	}

	h := seahash.New()
	h.Write(body.Bytes()) // nolint: errcheck
	if got := h.Sum64(); got != wantChecksum {
		return nil, errors.Errorf("mapio: %s: index cache checksum mismatch (got %x, want %x)", path, got, wantChecksum)
	}

	var entries []invindex.Entry
	if err := gob.NewDecoder(&body).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "mapio: decode index cache")
	}
	return invindex.Import(params, toPostingMap(entries)), nil
}

func toPostingMap(entries []invindex.Entry) map[invindex.Signature][]invindex.Posting {
	m := make(map[invindex.Signature][]invindex.Posting, len(entries))
	for _, e := range entries {
		m[e.Signature] = e.Postings
	}
	return m
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// snapshotFingerprintSeed is a fixed highwayhash key; the snapshot
// cache only needs a stable fingerprint to detect a changed source
// file, not a keyed MAC, so a constant all-zero key is fine.
var snapshotFingerprintSeed = make([]byte, highwayhash.Size)

// snapshotData is the gob-serializable form of a molecule.MapStore;
// MapStore keeps its molecule maps unexported, so SaveSnapshot/
// LoadSnapshot round-trip through this instead of gob-encoding the
// store directly (gob silently drops unexported fields).
type snapshotData struct {
	Refs             []*molecule.Molecule
	Queries          []*molecule.Molecule
	RecognitionSites []string
}

// SaveSnapshot writes a snappy-compressed gob snapshot of store to
// path, plus a highwayhash fingerprint of sourcePath so LoadSnapshot
// can detect a stale cache.
func SaveSnapshot(ctx context.Context, path, sourcePath string, store *molecule.MapStore) error {
	fingerprint, err := fingerprintFile(ctx, sourcePath)
	if err != nil {
		return err
	}

	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "mapio: create %s", path)
	}
	defer out.Close(ctx) // nolint: errcheck

	w := out.Writer(ctx)
	if _, err := w.Write(fingerprint); err != nil {
		return errors.Wrap(err, "mapio: write snapshot fingerprint")
	}

	sw := snappy.NewBufferedWriter(w)
	enc := gob.NewEncoder(sw)
	data := snapshotData{
		Refs:             store.Refs(),
		Queries:          store.Queries(),
		RecognitionSites: store.RecognitionSites,
	}
	if err := enc.Encode(data); err != nil {
		return errors.Wrap(err, "mapio: encode snapshot")
	}
	return sw.Close()
}

// LoadSnapshot reads back a snapshot written by SaveSnapshot, only if
// sourcePath's current fingerprint still matches the one recorded at
// save time.
func LoadSnapshot(ctx context.Context, path, sourcePath string) (*molecule.MapStore, error) {
	wantFingerprint, err := fingerprintFile(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapio: open %s", path)
	}
	defer in.Close(ctx) // nolint: errcheck

	r := in.Reader(ctx)
	gotFingerprint := make([]byte, highwayhash.Size)
	if _, err := readFull(r, gotFingerprint); err != nil {
		return nil, errors.Wrap(err, "mapio: read snapshot fingerprint")
	}
	if !bytes.Equal(gotFingerprint, wantFingerprint) {
		return nil, errors.Errorf("mapio: %s: snapshot is stale relative to %s", path, sourcePath)
	}

	sr := snappy.NewReader(r)
	var data snapshotData
	if err := gob.NewDecoder(sr).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "mapio: decode snapshot")
	}

	store := molecule.NewMapStore()
	store.RecognitionSites = data.RecognitionSites
	for _, m := range data.Refs {
		if err := store.AddRef(m); err != nil {
			log.Error.Printf("mapio: %s: skipping cached reference %d: %v", path, m.ID, err)
		}
	}
	for _, m := range data.Queries {
		if err := store.AddQuery(m); err != nil {
			log.Error.Printf("mapio: %s: skipping cached query %d: %v", path, m.ID, err)
		}
	}
	return store, nil
}

// fingerprintFile hashes path's full contents with highwayhash,
// preferring the zero-copy mmap path (MmapReferenceMap) over a
// buffered read whenever path is a local file; it falls back to a
// buffered file.Open read for anything mmap can't handle (a
// non-local path, or an empty file).
func fingerprintFile(ctx context.Context, path string) ([]byte, error) {
	if data, err := MmapReferenceMap(path); err == nil {
		sum := highwayhash.Sum(data, snapshotFingerprintSeed)
		if uerr := unix.Munmap(data); uerr != nil {
			log.Error.Printf("mapio: munmap %s: %v", path, uerr)
		}
		return sum[:], nil
	}

	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapio: open %s", path)
	}
	defer f.Close(ctx) // nolint: errcheck

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f.Reader(ctx)); err != nil {
		return nil, errors.Wrapf(err, "mapio: read %s for fingerprint", path)
	}
	sum := highwayhash.Sum(buf.Bytes(), snapshotFingerprintSeed)
	return sum[:], nil
}

// MmapReferenceMap memory-maps a local CMap file read-only, used by
// fingerprintFile to hash a reference file's contents without an
// extra buffered-read copy. The caller is responsible for
// unix.Munmap'ing the returned slice.
func MmapReferenceMap(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapio: open %s", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "mapio: stat %s", path)
	}
	size := fi.Size()
	if size == 0 {
		return nil, errors.Errorf("mapio: %s: empty file, nothing to map", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mapio: mmap %s", path)
	}
	log.Debug.Printf("mapio: mmapped %s (%d bytes)", path, size)
	return data, nil
}

// seahash.New satisfies hash.Hash64.
var _ hash.Hash64 = seahash.New()

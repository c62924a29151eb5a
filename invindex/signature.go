// Package invindex builds and queries the geometric-invariant inverted
// index: a multimap from a 32-bit Signature (a cross-ratio-based hash of
// a 5-label window) to the (molecule, start-index) pairs that produced
// it. It is built once from the reference MapStore and is read-only and
// concurrency-safe thereafter.
package invindex

import (
	"encoding/binary"
	"math"

	farm "github.com/dgryski/go-farm"
)

// WindowSize is the number of consecutive labels a Signature is derived
// from.
const WindowSize = 5

// Signature is a 32-bit integer computed from a window of WindowSize
// consecutive labels.
type Signature uint32

// Params holds the tunable constants of the signature computation.
// Defaults preserve numeric equivalence with the canonical
// cross-ratio-hash model these signatures are derived from.
type Params struct {
	// BinSize is the number of CDF buckets the cross-ratio is scaled
	// into. Default 100.
	BinSize int32
	// SizeScale is the divisor of the window's base-pair span in the
	// size-correction term. Default 2000.
	SizeScale float64
}

// DefaultParams are the standard defaults.
var DefaultParams = Params{BinSize: 100, SizeScale: 2000}

// crossRatio computes the projective cross-ratio of a 5-label window:
//
//	cr = ((p3-p0)(p4-p2)) / ((p3-p2)(p4-p0))
func crossRatio(p [WindowSize]uint32) float64 {
	p0, p2, p3, p4 := float64(p[0]), float64(p[2]), float64(p[3]), float64(p[4])
	return ((p3 - p0) * (p4 - p2)) / ((p3 - p2) * (p4 - p0))
}

// cdfTransform maps a cross-ratio value through the monotone transform
// derived from the cross-ratio CDF's F1 branch (valid for our
// monotonically increasing label order):
//
//	crcdf = (1/2 + (cr*(1-cr)*ln((cr-1)/cr) - cr + 1/2)) * 2
func cdfTransform(cr float64) float64 {
	return (0.5 + (cr*(1-cr)*math.Log((cr-1)/cr) - cr + 0.5)) * 2
}

// bucket computes the integer signature bucket for one (possibly
// jittered) window: the CDF-transformed cross-ratio scaled by BinSize,
// offset by a size-correction term proportional to the window's
// base-pair span. This is what makes two geometrically similar but
// absolutely dissimilar windows (same cr, very different span)
// separate into different buckets.
func bucket(p [WindowSize]uint32, params Params) int32 {
	cr := crossRatio(p)
	crcdf := cdfTransform(cr)
	span := float64(p[WindowSize-1]) - float64(p[0])
	v := crcdf*float64(params.BinSize) + float64(params.BinSize)*span/params.SizeScale
	return int32(v)
}

// mix turns an integer bucket into the final Signature using
// farm.Hash32, giving a better-distributed 32-bit key than the raw
// bucket integer would be as a Go map key. It is a pure function of
// bucket, so two jitter variants that coincidentally land on the same
// bucket still collide identically downstream.
func mix(b int32) Signature {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(b))
	return Signature(farm.Hash32(buf[:]))
}

// Window computes the plain (unjittered) Signature for the 5 label
// positions in p.
func Window(p [WindowSize]uint32, params Params) Signature {
	return mix(bucket(p, params))
}

// variant computes one member of the family of signature variants for
// a window, produced by perturbing each of the WindowSize-1 inter-label gaps by
// zero or one integer unit (floor vs ceil) to compensate for
// discretization error. mask's low
// WindowSize-1 bits select, per gap, whether +1 is added before
// reconstructing downstream positions; p[0] is never perturbed. Callers
// should iterate mask over [0, 1<<(WindowSize-1)) to get the full
// family, then dedup the resulting Signatures (repeats are common and
// harmless).
func variant(p [WindowSize]uint32, mask uint32, params Params) Signature {
	var adjusted [WindowSize]uint32
	adjusted[0] = p[0]
	for i := 0; i < WindowSize-1; i++ {
		gap := p[i+1] - p[i]
		if mask&(1<<uint(i)) != 0 {
			gap++
		}
		adjusted[i+1] = adjusted[i] + gap
	}
	return mix(bucket(adjusted, params))
}

// MaxVariants is the number of distinct jitter masks for a WindowSize-5
// window: 2^(WindowSize-1) = 16.
const MaxVariants = 1 << (WindowSize - 1)

// AppendVariants appends the full jitter family for window p to dst,
// returning the extended slice. Duplicate Signatures across masks are
// not removed here; callers that need a unique set should dedup (the
// Anchorer does).
func AppendVariants(dst []Signature, p [WindowSize]uint32, params Params) []Signature {
	for mask := uint32(0); mask < MaxVariants; mask++ {
		dst = append(dst, variant(p, mask, params))
	}
	return dst
}

// Package physical implements the raw-to-physical conversion of decoded
// bitfields: sign extension, float reinterpretation and factor/offset
// scaling (spec.md §4.3).
package physical

import (
	"math"

	"github.com/canbusgo/decoder/bitfield"
	"github.com/canbusgo/decoder/signal"
)

// RawValue is the decoded raw integer for a signal, typed according to its
// signedness: unsigned and float signals carry their magnitude in Raw and
// leave Signed at zero; signed signals carry the sign-extended value in
// Signed.
type RawValue struct {
	Raw    uint64
	Signed int64
	IsSigned bool
}

// Int64 returns the raw value as a signed integer regardless of
// signedness, for callers that only need a single numeric raw value
// (spec.md's decoded tuple schema, §6).
func (r RawValue) Int64() int64 {
	if r.IsSigned {
		return r.Signed
	}
	return int64(r.Raw)
}

// SignExtend interprets the low `size` bits of raw as a two's-complement
// signed integer, per spec.md §4.3: if bit size-1 is set, all bits in
// [size, 64) are set to 1 before reinterpreting.
func SignExtend(raw uint64, size int) int64 {
	if size <= 0 || size >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << uint(size-1)
	if raw&signBit != 0 {
		mask := ^uint64(0) << uint(size)
		raw |= mask
	}
	return int64(raw)
}

// DecodeRaw converts the raw unsigned bitfield values for sig (one per
// row, as produced by bitfield.Extract) into typed RawValues honouring
// sig's signedness. Float signals pass their raw bit pattern through
// unchanged; reinterpretation happens in ToPhysical.
func DecodeRaw(sig *signal.Signal, raw []uint64) []RawValue {
	out := make([]RawValue, len(raw))
	for i, r := range raw {
		if sig.IsSigned && !sig.IsFloat {
			out[i] = RawValue{Signed: SignExtend(r, sig.Size), IsSigned: true}
		} else {
			out[i] = RawValue{Raw: r}
		}
	}
	return out
}

// ToPhysical scales raw values to physical (double-precision) values:
// physical = raw*factor + offset, per spec.md §4.3 and §8 property 2.
// Float signals are reinterpreted from their raw bit pattern as
// IEEE-754 binary32 (size 32) or binary64 (size 64) before scaling; any
// other float size is a fatal UnsupportedSignal error, per spec.md §4.3
// and §7.
func ToPhysical(sig *signal.Signal, raw []RawValue) ([]float64, error) {
	if sig.IsFloat {
		return decodeFloat(sig, raw)
	}
	out := make([]float64, len(raw))
	for i, r := range raw {
		var v float64
		if r.IsSigned {
			v = float64(r.Signed)
		} else {
			v = float64(r.Raw)
		}
		out[i] = v*sig.Factor + sig.Offset
	}
	return out, nil
}

func decodeFloat(sig *signal.Signal, raw []RawValue) ([]float64, error) {
	out := make([]float64, len(raw))
	switch sig.Size {
	case 32:
		for i, r := range raw {
			v := float64(math.Float32frombits(uint32(r.Raw)))
			out[i] = v*sig.Factor + sig.Offset
		}
	case 64:
		for i, r := range raw {
			v := math.Float64frombits(r.Raw)
			out[i] = v*sig.Factor + sig.Offset
		}
	default:
		return nil, signal.ErrUnsupportedSignal
	}
	return out, nil
}

// Decode extracts, sign-extends/reinterprets and scales sig over data in
// one call, returning parallel raw and physical slices (one entry per
// input row). This is the shared scalar/batch kernel: the streaming
// decoder calls it with a single-row slice, the batch decoder with N rows
// (spec.md's "Columnar vs scalar paths" design note).
func Decode(sig *signal.Signal, data [][]byte) (raw []RawValue, phys []float64, err error) {
	rawInts := bitfield.Extract(sig, data)
	raw = DecodeRaw(sig, rawInts)
	phys, err = ToPhysical(sig, raw)
	return raw, phys, err
}

// Package j1939 implements the J1939-specific helpers shared by the
// streaming and batch decoders: PGN derivation and the invalid-value
// ceiling (spec.md §4.4).
package j1939

import "github.com/canbusgo/decoder/signal"

// limits maps a J1939 signal bit-width to the lowest raw value considered
// invalid, per the table in spec.md §4.4.
var limits = map[int]uint64{
	2:  0x3,
	4:  0xF,
	8:  0xFF,
	10: 0x3FF,
	12: 0xFF0,
	16: 0xFF00,
	20: 0xFF000,
	24: 0xFF0000,
	28: 0xFF00000,
	32: 0xFF000000,
}

// Limit returns the lowest invalid raw value for an unsigned J1939 signal
// of the given bit width. Widths outside the table have no defined
// filter, so the limit is the maximum representable value for that width.
func Limit(bits int) uint64 {
	if l, ok := limits[bits]; ok {
		return l
	}
	if bits <= 0 {
		return 0
	}
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

// IsValid reports whether raw is a valid J1939 value for sig: signed
// signals are always valid; unsigned signals are valid iff raw is below
// Limit(sig.Size) (spec.md §4.4, §8 property 4).
func IsValid(sig *signal.Signal, raw uint64) bool {
	if sig.IsSigned {
		return true
	}
	return raw < Limit(sig.Size)
}

// PGN holds the decomposed Parameter Group Number fields for a 29-bit
// arbitration ID (spec.md §4.4, glossary "PGN").
type PGN struct {
	Value         uint32 // pgn as used for frame lookup (destination cleared for PDU1)
	PF            uint8  // PDU format
	PS            uint8  // PDU specific (group extension or destination address)
	SourceAddress uint8
}

// Decompose computes the PGN fields from a 29-bit arbitration ID, per
// spec.md §4.4 and §8 property 5:
//
//	pgn = (id >> 8) & 0x3FFFF
//	pf  = (pgn >> 8) & 0xFF
//	ps  = pgn & 0xFF
//	PDU1 (pf < 240): destination-specific, clear the low 8 bits of pgn.
//	PDU2 (pf >= 240): broadcast, keep ps as the group extension.
func Decompose(id uint32) PGN {
	pgn := (id >> 8) & 0x3FFFF
	pf := uint8((pgn >> 8) & 0xFF)
	ps := uint8(pgn & 0xFF)
	if pf < 240 {
		pgn &^= 0xFF
	}
	return PGN{
		Value:         pgn,
		PF:            pf,
		PS:            ps,
		SourceAddress: uint8(id & 0xFF),
	}
}

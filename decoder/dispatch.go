package decoder

import (
	"fmt"

	"github.com/canbusgo/decoder/j1939"
	"github.com/canbusgo/decoder/signal"
)

// Protocol identifies which frame-lookup/validity specialisation a
// Decoder uses (spec.md §4.7).
type Protocol int

const (
	// ProtocolGeneric looks frames up by their compound CAN ID directly
	// and never filters decoded values.
	ProtocolGeneric Protocol = iota
	// ProtocolJ1939 looks frames up by PGN, skips non-extended records,
	// and filters unsigned signals through the J1939 invalid-value
	// ceiling (spec.md §4.4).
	ProtocolJ1939
)

// protocolFor maps a SignalDB's protocol tag to a Protocol, the "explicit
// table mapping protocol tags to constructor functions" called for by
// spec.md §9's design notes (new protocols are added here).
var protocolFor = map[string]Protocol{
	"":      ProtocolGeneric,
	"J1939": ProtocolJ1939,
}

// resolveProtocol looks up db's protocol tag, returning ErrUnknownProtocol
// when no specialisation matches (spec.md §4.7, §7).
func resolveProtocol(db *signal.SignalDB) (Protocol, error) {
	p, ok := protocolFor[db.Protocol()]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, db.Protocol())
	}
	return p, nil
}

// engine bundles the per-protocol frame resolution used by both the
// streaming and batch decoders (spec.md: "The dispatch is identical for
// the streaming and batch decoders").
type engine struct {
	protocol Protocol
	db       *signal.SignalDB
	// pgnIndex maps PGN -> frame for the J1939 variant, built once at
	// construction time (spec.md §4.5 "pre-indexed by PGN at construction").
	pgnIndex map[uint32]*signal.Frame
}

func newEngine(db *signal.SignalDB) (*engine, error) {
	p, err := resolveProtocol(db)
	if err != nil {
		return nil, err
	}
	e := &engine{protocol: p, db: db}
	if p == ProtocolJ1939 {
		e.pgnIndex = make(map[uint32]*signal.Frame, len(db.Frames))
		for id, frame := range db.Frames {
			pgn := j1939.Decompose(uint32(id)).Value
			e.pgnIndex[pgn] = frame
		}
	}
	return e, nil
}

// resolved describes the frame matched for one record/row, plus the
// fields the J1939 variant adds to the output schema.
type resolved struct {
	frame         *signal.Frame
	canID         uint32
	pgn           uint32
	sourceAddress uint8
	hasPGN        bool
}

// resolve finds the frame (if any) that id/ide matches, per protocol.
func (e *engine) resolve(id uint32, ide bool) (resolved, bool) {
	switch e.protocol {
	case ProtocolJ1939:
		if !ide {
			// Non-extended records cannot be J1939 (spec.md §4.5, §4.6, §8 S4).
			return resolved{}, false
		}
		canonical := uint32(signal.CanonicalFrameID(id, true))
		p := j1939.Decompose(canonical)
		frame, ok := e.pgnIndex[p.Value]
		if !ok {
			return resolved{}, false
		}
		return resolved{
			frame:         frame,
			canID:         canonical,
			pgn:           p.Value,
			sourceAddress: p.SourceAddress,
			hasPGN:        true,
		}, true
	default:
		canonical := uint32(signal.CanonicalFrameID(id, ide))
		frame, ok := e.db.Lookup(signal.FrameID(canonical))
		if !ok {
			return resolved{}, false
		}
		return resolved{frame: frame, canID: canonical}, true
	}
}

// acceptable applies the J1939 invalid-value ceiling (spec.md §4.4); the
// generic protocol never filters.
func (e *engine) acceptable(sig *signal.Signal, raw uint64, ignoreInvalid bool) bool {
	if e.protocol != ProtocolJ1939 || !ignoreInvalid {
		return true
	}
	return j1939.IsValid(sig, raw)
}

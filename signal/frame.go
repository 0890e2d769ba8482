package signal

import "fmt"

// FrameID is the compound 32-bit CAN ID used as the database key: bit 31
// is the extended-ID flag, bits 28..0 are the arbitration ID (spec.md §6).
type FrameID uint32

const extendedFlag FrameID = 0x80000000

// CanonicalFrameID packs an arbitration ID and its extended-ID flag into
// the compound form used as the frame lookup key.
func CanonicalFrameID(id uint32, extended bool) FrameID {
	if extended {
		return FrameID(id&0x1FFFFFFF) | extendedFlag
	}
	return FrameID(id & 0x7FF)
}

// Frame is a CAN frame description: its compound ID, payload size and the
// signals attached to it.
type Frame struct {
	ID          FrameID
	Size        int // payload bytes, typically 8
	Signals     []*Signal
	Multiplexer *Signal // first top-level signal seen that is a multiplexer, if any
}

// NewFrame constructs an empty Frame.
func NewFrame(id FrameID, size int) *Frame {
	return &Frame{ID: id, Size: size}
}

// AddSignal appends s to the frame's top-level signal list. If s is a
// multiplexer and the frame already has a root multiplexer, it returns
// ErrInvalidFrame per spec.md §4.1 and the signal is not added.
func (f *Frame) AddSignal(s *Signal) error {
	if s.IsMultiplexer() {
		if f.Multiplexer != nil {
			return fmt.Errorf("%w: frame 0x%08X already has a root multiplexer signal %q; should %q be a child of it instead?",
				ErrInvalidFrame, uint32(f.ID), f.Multiplexer.Name, s.Name)
		}
		f.Multiplexer = s
	}
	f.Signals = append(f.Signals, s)
	return nil
}

type frameTuple struct {
	id   FrameID
	size int
}

func (f *Frame) tuple() frameTuple { return frameTuple{f.ID, f.Size} }

// Equal compares frames by ID and size only, per spec.md §3.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.tuple() == other.tuple()
}

func (f *Frame) String() string {
	return fmt.Sprintf("CAN Frame with ID 0x%08X - %d bytes, %d registered signals", uint32(f.ID), f.Size, len(f.Signals))
}

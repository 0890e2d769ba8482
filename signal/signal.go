// Package signal holds the signal database model: Signal, Frame and
// SignalDB. It has no dependency beyond the standard library, matching
// how the teacher repo's wire types (internal/can, internal/cnl) stay
// free of logging/metrics concerns.
package signal

import "fmt"

// Signal describes a single bitfield within a CAN frame payload: where it
// lives, how wide it is, how it is interpreted, and (for a multiplexer)
// which child signals it selects between.
//
// A Signal is immutable after construction except for attaching children
// via AddMultiplexedSignal.
type Signal struct {
	Name           string
	StartBit       int
	Size           int
	IsLittleEndian bool
	IsSigned       bool
	IsFloat        bool
	Factor         float64
	Offset         float64

	// Children maps a selector value (the raw integer decoded from the
	// parent multiplexer) to the group of signals active for that value.
	// Non-empty Children makes this Signal a multiplexer.
	Children map[uint64][]*Signal
}

// New constructs a Signal with factor 1 and offset 0, little-endian and
// unsigned by default, matching the Python reference's constructor
// defaults.
func New(name string, startBit, size int) *Signal {
	return &Signal{
		Name:           name,
		StartBit:       startBit,
		Size:           size,
		IsLittleEndian: true,
		Factor:         1,
		Offset:         0,
		Children:       make(map[uint64][]*Signal),
	}
}

// IsMultiplexer reports whether this signal selects between child signal
// groups.
func (s *Signal) IsMultiplexer() bool {
	return len(s.Children) != 0
}

// AddMultiplexedSignal appends child under the given selector value. Several
// children may share a selector; they are appended in call order.
func (s *Signal) AddMultiplexedSignal(selector uint64, child *Signal) {
	if s.Children == nil {
		s.Children = make(map[uint64][]*Signal)
	}
	s.Children[selector] = append(s.Children[selector], child)
}

// Validate checks the geometry invariants from spec.md §3: size in
// [1,64], the bitfield fits within frameSizeBytes*8, and float signals are
// 32 or 64 bits wide.
func (s *Signal) Validate(frameSizeBytes int) error {
	if s.Size < 1 || s.Size > 64 {
		return fmt.Errorf("signal %q: size %d out of range [1,64]", s.Name, s.Size)
	}
	if s.StartBit+s.Size > frameSizeBytes*8 {
		return fmt.Errorf("signal %q: start_bit %d + size %d exceeds frame size %d bytes", s.Name, s.StartBit, s.Size, frameSizeBytes)
	}
	if s.IsFloat && s.Size != 32 && s.Size != 64 {
		return fmt.Errorf("%w: signal %q declared float with size %d", ErrUnsupportedSignal, s.Name, s.Size)
	}
	return nil
}

// definingTuple is what participates in value equality: name, geometry and
// scaling. The children graph does not participate, per spec.md §3.
type definingTuple struct {
	name                     string
	factor, offset           float64
	startBit, size           int
	littleEndian, signed, f  bool
}

func (s *Signal) tuple() definingTuple {
	return definingTuple{
		name:         s.Name,
		factor:       s.Factor,
		offset:       s.Offset,
		startBit:     s.StartBit,
		size:         s.Size,
		littleEndian: s.IsLittleEndian,
		signed:       s.IsSigned,
		f:            s.IsFloat,
	}
}

// Equal compares the defining attributes of two signals (value equality,
// ignoring Children), per spec.md §3.
func (s *Signal) Equal(other *Signal) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.tuple() == other.tuple()
}

func (s *Signal) String() string {
	name := s.Name
	if name == "" {
		name = "Unnamed"
	}
	return fmt.Sprintf("Signal %q %d:%d", name, s.StartBit, s.Size)
}

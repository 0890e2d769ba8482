// Package decoder implements the protocol-specialised streaming and
// batch decoders (spec.md §4.5, §4.6, §4.7): given a signal.SignalDB and a
// stream or batch of raw CAN records, it produces decoded signal tuples.
package decoder

import (
	"time"

	"github.com/canbusgo/decoder/signal"
)

// Record is one raw CAN record as defined in spec.md §6: a timestamp in
// nanoseconds since the Unix epoch, an 11- or 29-bit arbitration ID, the
// extended-ID flag, and up to 8 payload bytes (first byte first on the
// wire).
type Record struct {
	TimeStamp int64
	ID        uint32
	IDE       bool
	DataBytes []byte
}

// CanonicalID returns the compound 32-bit frame key for r (spec.md §6):
// the low 29 bits of ID, OR'd with the extended-ID flag bit when IDE is
// set, or the low 11 bits otherwise.
func (r Record) CanonicalID() signal.FrameID {
	return signal.CanonicalFrameID(r.ID, r.IDE)
}

// Time converts r's nanosecond timestamp to an absolute UTC instant
// (spec.md §4.5 step 2).
func (r Record) Time() time.Time {
	return time.Unix(0, r.TimeStamp).UTC()
}

// DecodedSignal is one decoded tuple, as defined in spec.md §6.
type DecodedSignal struct {
	TimeStamp            time.Time
	CanID                uint32
	Signal               string
	SignalValueRaw       int64
	SignalValuePhysical  float64
	// PGN and SourceAddress are populated by the J1939 variant only.
	PGN           uint32
	SourceAddress uint8
	HasPGN        bool
}

// Equal compares two decoded signals for equality of all fields (the
// timestamp comparison uses time.Time.Equal, which correctly handles
// differing but equivalent time.Time representations).
func (d DecodedSignal) Equal(other DecodedSignal) bool {
	return d.TimeStamp.Equal(other.TimeStamp) &&
		d.CanID == other.CanID &&
		d.Signal == other.Signal &&
		d.SignalValueRaw == other.SignalValueRaw &&
		d.SignalValuePhysical == other.SignalValuePhysical &&
		d.PGN == other.PGN &&
		d.SourceAddress == other.SourceAddress &&
		d.HasPGN == other.HasPGN
}

package decoder

import (
	"errors"
	"fmt"

	"github.com/canbusgo/decoder/signal"
)

// Error/warning taxonomy, spec.md §7.
var (
	// ErrUnknownProtocol: re-exported for convenience; see signal.ErrUnknownProtocol.
	ErrUnknownProtocol = signal.ErrUnknownProtocol
	// ErrMissingColumn: a batch input table lacks ID, IDE or DataBytes.
	ErrMissingColumn = errors.New("decoder: missing column")
)

// WarningKind classifies a non-fatal decode-time anomaly (spec.md §7).
type WarningKind int

const (
	// DataSizeMismatch: a group's DataBytes width does not match what the
	// signal layout requires; that group is skipped.
	DataSizeMismatch WarningKind = iota
	// MissingFieldInRecord: a streaming record lacks a required key; that
	// record is skipped.
	MissingFieldInRecord
	// J1939Invalid: a decoded raw value sits at or above the J1939
	// invalid-value ceiling for its width (spec.md §4.4); the signal is
	// dropped rather than emitted.
	J1939Invalid
)

func (k WarningKind) String() string {
	switch k {
	case DataSizeMismatch:
		return "DataSizeMismatch"
	case MissingFieldInRecord:
		return "MissingFieldInRecord"
	case J1939Invalid:
		return "J1939Invalid"
	default:
		return "Unknown"
	}
}

// Warning is a non-fatal diagnostic raised for a single record or group.
// Iteration and batch processing continue after a Warning (spec.md §7).
type Warning struct {
	Kind    WarningKind
	Detail  string
	FrameID uint32
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s (frame 0x%08X)", w.Kind, w.Detail, w.FrameID)
}

package signal

import "errors"

// Error taxonomy from spec.md §7. These are sentinel errors: callers
// classify them with errors.Is.
var (
	// ErrUnknownProtocol: the database carries a protocol tag with no
	// matching decoder.
	ErrUnknownProtocol = errors.New("signal: no known support for protocol")
	// ErrUnsupportedSignal: a signal is declared float with a size other
	// than 32 or 64.
	ErrUnsupportedSignal = errors.New("signal: unsupported signal")
	// ErrInvalidFrame: a second top-level multiplexer was attached to a
	// frame that already has one.
	ErrInvalidFrame = errors.New("signal: invalid frame")
)

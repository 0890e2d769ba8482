package decoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/canbusgo/decoder/bitfield"
	"github.com/canbusgo/decoder/physical"
	"github.com/canbusgo/decoder/signal"
)

// RecordSource is a lazy upstream source of raw CAN records (spec.md
// §4.5). Next returns false once exhausted; the streaming decoder never
// calls Next again after that.
type RecordSource interface {
	Next() (Record, bool)
}

// SliceSource adapts an in-memory slice of records to a RecordSource, for
// tests and simple manual-entry use (spec.md original_source
// examples/manual_data_entry.py).
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource wraps records as a RecordSource.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next implements RecordSource.
func (s *SliceSource) Next() (Record, bool) {
	if s.pos >= len(s.records) {
		return Record{}, false
	}
	r := s.records[s.pos]
	s.pos++
	return r, true
}

// ChanSource adapts a channel of live records to a RecordSource, for
// backends that feed the streaming decoder from a serial or SocketCAN
// receive loop. Next blocks until a record arrives or the channel is
// closed, at which point the source reports exhaustion.
type ChanSource struct {
	records <-chan Record
}

// NewChanSource wraps records as a RecordSource.
func NewChanSource(records <-chan Record) *ChanSource {
	return &ChanSource{records: records}
}

// Next implements RecordSource.
func (s *ChanSource) Next() (Record, bool) {
	rec, ok := <-s.records
	return rec, ok
}

// StreamDecoder wraps a RecordSource and yields decoded signal tuples one
// at a time. A single upstream record may decode to zero, one or many
// signals; these are buffered in an internal FIFO and drained one per
// Next() call before another upstream record is pulled (spec.md §4.5,
// §5: "lazy sequence with internal FIFO").
//
// State machine: Constructed -> (Next calls) Iterating/Yielding ->
// Exhausted, matching spec.md §4.7.
type StreamDecoder struct {
	engine        *engine
	source        RecordSource
	ignoreInvalid bool
	queue         []DecodedSignal
	warnings      []Warning
	exhausted     bool
}

// NewStreamDecoder constructs a streaming decoder over source using db's
// protocol to select the generic or J1939 specialisation (spec.md §4.7).
// Returns ErrUnknownProtocol if db's protocol tag has no matching
// decoder.
func NewStreamDecoder(source RecordSource, db *signal.SignalDB) (*StreamDecoder, error) {
	e, err := newEngine(db)
	if err != nil {
		return nil, err
	}
	return &StreamDecoder{engine: e, source: source, ignoreInvalid: true}, nil
}

// Warnings returns and clears any warnings accumulated so far. Callers
// that want warnings surfaced promptly should poll this after each Next
// call; it is always safe to call, even when empty.
func (d *StreamDecoder) Warnings() []Warning {
	w := d.warnings
	d.warnings = nil
	return w
}

func (d *StreamDecoder) warn(kind WarningKind, frameID uint32, detail string) {
	d.warnings = append(d.warnings, Warning{Kind: kind, FrameID: frameID, Detail: detail})
}

// Next pulls upstream records until at least one decoded signal is
// available or the source is exhausted, and returns it. The second
// return is false only once the source yields nothing further and the
// internal queue is drained (spec.md §4.5, §8 property 7: ordering
// follows source order, pre-order within a record). A non-nil error
// (e.g. signal.ErrUnsupportedSignal, spec.md §7) aborts the current call;
// the decoder may still be queried afterwards but the offending record's
// remaining signals were not decoded.
func (d *StreamDecoder) Next() (DecodedSignal, bool, error) {
	for len(d.queue) == 0 {
		if d.exhausted {
			return DecodedSignal{}, false, nil
		}
		rec, ok := d.source.Next()
		if !ok {
			d.exhausted = true
			return DecodedSignal{}, false, nil
		}
		if err := d.decodeOne(rec); err != nil {
			return DecodedSignal{}, false, err
		}
	}
	out := d.queue[0]
	d.queue = d.queue[1:]
	return out, true, nil
}

func (d *StreamDecoder) decodeOne(rec Record) error {
	if len(rec.DataBytes) == 0 {
		d.warn(MissingFieldInRecord, rec.ID, "record has no DataBytes")
		return nil
	}
	res, ok := d.engine.resolve(rec.ID, rec.IDE)
	if !ok {
		return nil
	}
	payload := [][]byte{rec.DataBytes}
	ts := rec.Time()
	for _, sig := range res.frame.Signals {
		if err := d.walk(sig, payload, ts, res); err != nil {
			return err
		}
	}
	return nil
}

// walk decodes sig, recursing into the selected child group when sig is a
// multiplexer, appending results to the FIFO queue in pre-order (spec.md
// §4.5). A selector value with no matching child group yields no output
// for that branch. A signal whose bit range runs past the end of the
// record's payload raises a DataSizeMismatch warning and is skipped.
func (d *StreamDecoder) walk(sig *signal.Signal, payload [][]byte, ts time.Time, res resolved) error {
	if need := (sig.StartBit + sig.Size + 7) / 8; len(payload[0]) < need {
		d.warn(DataSizeMismatch, res.canID, fmt.Sprintf("signal %q needs %d payload bytes, record has %d", sig.Name, need, len(payload[0])))
		return nil
	}
	if !sig.IsMultiplexer() {
		return d.emit(sig, payload, ts, res)
	}
	selector := bitfield.Extract(sig, payload)[0]
	children, ok := sig.Children[selector]
	if !ok {
		return nil
	}
	for _, child := range children {
		if err := d.walk(child, payload, ts, res); err != nil {
			return err
		}
	}
	return nil
}

// emit decodes a single (non-multiplexer) signal and, if valid, appends a
// DecodedSignal to the FIFO queue. Payload length has already been
// checked by walk, so the only error this can surface is an unsupported
// float signal.
func (d *StreamDecoder) emit(sig *signal.Signal, payload [][]byte, ts time.Time, res resolved) error {
	raw, phys, err := physical.Decode(sig, payload)
	if err != nil {
		if errors.Is(err, signal.ErrUnsupportedSignal) {
			return err
		}
		d.warn(DataSizeMismatch, res.canID, err.Error())
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	rawValue := raw[0].Int64()
	if !d.engine.acceptable(sig, raw[0].Raw, d.ignoreInvalid) {
		d.warn(J1939Invalid, res.canID, sig.Name)
		return nil
	}
	out := DecodedSignal{
		TimeStamp:           ts,
		CanID:               res.canID,
		Signal:              sig.Name,
		SignalValueRaw:      rawValue,
		SignalValuePhysical: phys[0],
	}
	if res.hasPGN {
		out.PGN = res.pgn
		out.SourceAddress = res.sourceAddress
		out.HasPGN = true
	}
	d.queue = append(d.queue, out)
	return nil
}

package decoder

import (
	"errors"
	"testing"

	"github.com/canbusgo/decoder/signal"
)

func mustAddFrame(t *testing.T, db *signal.SignalDB, f *signal.Frame) {
	t.Helper()
	if !db.AddFrame(f) {
		t.Fatalf("frame 0x%08X should have been added", uint32(f.ID))
	}
}

func drain(t *testing.T, sd *StreamDecoder) []DecodedSignal {
	t.Helper()
	var out []DecodedSignal
	for {
		ds, ok, err := sd.Next()
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, ds)
	}
}

// obd2DB builds the nested multiplexer database from spec.md §8 scenario S1.
func obd2DB(t *testing.T) *signal.SignalDB {
	t.Helper()
	db := signal.NewDB("")
	frame := signal.NewFrame(signal.CanonicalFrameID(0x7E8, false), 8)
	engineRPM := &signal.Signal{Name: "EngineRPM", StartBit: 24, Size: 16, Factor: 1, Offset: 0.25}
	pidMux := &signal.Signal{Name: "PIDMux", StartBit: 16, Size: 8}
	pidMux.AddMultiplexedSignal(0x0C, engineRPM)
	serviceMux := &signal.Signal{Name: "ServiceMux", StartBit: 8, Size: 8}
	serviceMux.AddMultiplexedSignal(0x41, pidMux)
	if err := frame.AddSignal(serviceMux); err != nil {
		t.Fatalf("AddSignal: %v", err)
	}
	mustAddFrame(t, db, frame)
	return db
}

func TestStreamS1OBD2Multiplexed(t *testing.T) {
	db := obd2DB(t)
	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 1000, ID: 0x07E8, IDE: false, DataBytes: []byte{0x04, 0x41, 0x0C, 0x32, 0x32, 0xAA, 0xAA, 0xAA}},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	out := drain(t, sd)
	if len(out) != 1 {
		t.Fatalf("expected exactly one decoded signal, got %d: %+v", len(out), out)
	}
	got := out[0]
	if got.Signal != "EngineRPM" || got.SignalValueRaw != 12850 || got.SignalValuePhysical != 12850.25 || got.CanID != 0x07E8 {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func j1939DB(t *testing.T) *signal.SignalDB {
	t.Helper()
	db := signal.NewDB("J1939")
	frame := signal.NewFrame(signal.CanonicalFrameID(0x0CF004FE, true), 8)
	engineSpeed := &signal.Signal{Name: "EngineSpeed", StartBit: 24, Size: 16, IsLittleEndian: true, Factor: 0.125}
	if err := frame.AddSignal(engineSpeed); err != nil {
		t.Fatalf("AddSignal: %v", err)
	}
	mustAddFrame(t, db, frame)
	return db
}

func TestStreamS2J1939ValidEngineSpeed(t *testing.T) {
	db := j1939DB(t)
	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 0, ID: 0x0CF004FE, IDE: true, DataBytes: []byte{0x10, 0x7D, 0x82, 0xBD, 0x12, 0x00, 0xF4, 0x82}},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	out := drain(t, sd)
	if len(out) != 1 {
		t.Fatalf("expected one decoded signal, got %d", len(out))
	}
	got := out[0]
	if got.Signal != "EngineSpeed" || got.SignalValueRaw != 4797 || got.SignalValuePhysical != 599.625 {
		t.Fatalf("unexpected decode: %+v", got)
	}
	if !got.HasPGN || got.PGN != 0xF004 || got.SourceAddress != 0xFE {
		t.Fatalf("unexpected PGN/source: %+v", got)
	}
}

func TestStreamS3J1939InvalidValueDropped(t *testing.T) {
	db := j1939DB(t)
	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 0, ID: 0x0CF004FE, IDE: true, DataBytes: []byte{0x10, 0x7D, 0x82, 0xBD, 0xFF, 0xFF, 0xF4, 0x82}},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	out := drain(t, sd)
	if len(out) != 0 {
		t.Fatalf("expected zero outputs for an invalid J1939 value, got %+v", out)
	}
	warnings := sd.Warnings()
	if len(warnings) != 1 || warnings[0].Kind != J1939Invalid {
		t.Fatalf("expected a single J1939Invalid warning, got %+v", warnings)
	}
}

func TestChanSourceFeedsStreamDecoder(t *testing.T) {
	db := j1939DB(t)
	ch := make(chan Record, 2)
	ch <- Record{TimeStamp: 0, ID: 0x0CF004FE, IDE: true, DataBytes: []byte{0x10, 0x7D, 0x82, 0xBD, 0x12, 0x00, 0xF4, 0x82}}
	close(ch)

	sd, err := NewStreamDecoder(NewChanSource(ch), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	out := drain(t, sd)
	if len(out) != 1 || out[0].Signal != "EngineSpeed" {
		t.Fatalf("expected EngineSpeed decoded from channel source, got %+v", out)
	}
}

func TestChanSourceBlocksUntilClosed(t *testing.T) {
	ch := make(chan Record)
	src := NewChanSource(ch)
	done := make(chan struct{})
	go func() {
		_, ok := src.Next()
		if ok {
			t.Errorf("expected Next to report exhaustion on closed channel")
		}
		close(done)
	}()
	close(ch)
	<-done
}

func TestStreamSkipsNonExtendedForJ1939(t *testing.T) {
	db := j1939DB(t)
	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 0, ID: 0x123, IDE: false, DataBytes: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	if out := drain(t, sd); len(out) != 0 {
		t.Fatalf("non-extended record must be ignored by the J1939 decoder, got %+v", out)
	}
}

func TestStreamSkipsUnknownFrame(t *testing.T) {
	db := signal.NewDB("")
	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 0, ID: 0xDEAD, IDE: false, DataBytes: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	if out := drain(t, sd); len(out) != 0 {
		t.Fatalf("unmatched frame should silently yield nothing, got %+v", out)
	}
}

func TestStreamMissingDataBytesWarns(t *testing.T) {
	db := obd2DB(t)
	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 0, ID: 0x07E8, IDE: false, DataBytes: nil},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	if out := drain(t, sd); len(out) != 0 {
		t.Fatalf("expected no output for a record with no DataBytes, got %+v", out)
	}
	warnings := sd.Warnings()
	if len(warnings) != 1 || warnings[0].Kind != MissingFieldInRecord {
		t.Fatalf("expected one MissingFieldInRecord warning, got %+v", warnings)
	}
}

func TestStreamUnknownProtocolFails(t *testing.T) {
	db := signal.NewDB("CANopen")
	_, err := NewStreamDecoder(NewSliceSource(nil), db)
	if !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("expected ErrUnknownProtocol, got %v", err)
	}
}

func TestStreamOrderingFollowsSourceAndPreOrder(t *testing.T) {
	db := signal.NewDB("")
	frame := signal.NewFrame(signal.CanonicalFrameID(0x200, false), 8)
	a := &signal.Signal{Name: "A", StartBit: 0, Size: 8, Factor: 1}
	b := &signal.Signal{Name: "B", StartBit: 8, Size: 8, Factor: 1}
	frame.AddSignal(a)
	frame.AddSignal(b)
	mustAddFrame(t, db, frame)

	sd, err := NewStreamDecoder(NewSliceSource([]Record{
		{TimeStamp: 1, ID: 0x200, DataBytes: []byte{1, 2, 0, 0, 0, 0, 0, 0}},
		{TimeStamp: 2, ID: 0x200, DataBytes: []byte{3, 4, 0, 0, 0, 0, 0, 0}},
	}), db)
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}
	out := drain(t, sd)
	if len(out) != 4 {
		t.Fatalf("expected 4 decoded signals, got %d", len(out))
	}
	wantNames := []string{"A", "B", "A", "B"}
	wantRaw := []int64{1, 2, 3, 4}
	for i, ds := range out {
		if ds.Signal != wantNames[i] || ds.SignalValueRaw != wantRaw[i] {
			t.Fatalf("index %d: got %+v, want name=%s raw=%d", i, ds, wantNames[i], wantRaw[i])
		}
	}
}

package decoder

import (
	"testing"
	"time"
)

func TestRecordCanonicalID(t *testing.T) {
	r := Record{ID: 0x0CF004FE, IDE: true}
	if got, want := r.CanonicalID(), uint32(0x8CF004FE); uint32(got) != want {
		t.Fatalf("CanonicalID = 0x%X, want 0x%X", uint32(got), want)
	}
}

func TestRecordTimeFromNanos(t *testing.T) {
	r := Record{TimeStamp: int64(1_600_000_000) * int64(time.Second)}
	got := r.Time()
	if got.Unix() != 1_600_000_000 {
		t.Fatalf("Time() = %v, want unix 1600000000", got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("Time() should be in UTC")
	}
}

func TestDecodedSignalEqual(t *testing.T) {
	now := time.Now()
	a := DecodedSignal{TimeStamp: now, CanID: 1, Signal: "x", SignalValueRaw: 5, SignalValuePhysical: 5.0}
	b := DecodedSignal{TimeStamp: now, CanID: 1, Signal: "x", SignalValueRaw: 5, SignalValuePhysical: 5.0}
	if !a.Equal(b) {
		t.Fatalf("identical decoded signals should be equal")
	}
	c := b
	c.SignalValueRaw = 6
	if a.Equal(c) {
		t.Fatalf("decoded signals with different raw values should not be equal")
	}
}

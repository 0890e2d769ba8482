package signal

import "testing"

func TestDBAddFrameIdempotent(t *testing.T) {
	db := NewDB("")
	f1 := NewFrame(0x100, 8)
	f2 := NewFrame(0x100, 8)
	f2.AddSignal(New("Later", 0, 8))

	if added := db.AddFrame(f1); !added {
		t.Fatalf("first insertion should report added")
	}
	if added := db.AddFrame(f2); added {
		t.Fatalf("duplicate ID insertion should report not added")
	}
	got, ok := db.Lookup(0x100)
	if !ok {
		t.Fatalf("frame 0x100 should be present")
	}
	if got != f1 {
		t.Fatalf("the original frame should be retained, not the duplicate")
	}
}

func TestDBLookupMiss(t *testing.T) {
	db := NewDB("")
	if _, ok := db.Lookup(0xDEAD); ok {
		t.Fatalf("lookup of absent frame should report not found")
	}
}

func TestDBSignalsEnumeratesTree(t *testing.T) {
	db := NewDB("")
	frame := NewFrame(0x7E8, 8)
	mux := New("ServiceMux", 8, 8)
	pidMux := New("PIDMux", 16, 8)
	pidMux.AddMultiplexedSignal(0x0C, New("EngineRPM", 24, 16))
	mux.AddMultiplexedSignal(0x41, pidMux)
	frame.AddSignal(mux)
	db.AddFrame(frame)

	names := map[string]bool{}
	for _, n := range db.Signals() {
		names[n] = true
	}
	for _, want := range []string{"ServiceMux", "PIDMux", "EngineRPM"} {
		if !names[want] {
			t.Errorf("expected %q among enumerated signal names, got %v", want, names)
		}
	}
}

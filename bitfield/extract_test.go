package bitfield

import (
	"math/rand"
	"testing"

	"github.com/canbusgo/decoder/signal"
	"pgregory.net/rapid"
)

func TestWidthBytesRoundsUp(t *testing.T) {
	cases := map[int]int{1: 1, 8: 1, 9: 2, 16: 2, 17: 4, 24: 4, 25: 4, 32: 4, 33: 8, 40: 8, 48: 8, 56: 8, 64: 8}
	for size, want := range cases {
		if got := WidthBytes(size); got != want {
			t.Errorf("WidthBytes(%d) = %d, want %d", size, got, want)
		}
	}
}

// TestExtractS1 reproduces spec scenario S1's nested multiplexer payload by
// hand to pin the byte-slicing and big-endian bit-reversal algorithm.
func TestExtractS1(t *testing.T) {
	payload := [][]byte{{0x04, 0x41, 0x0C, 0x32, 0x32, 0xAA, 0xAA, 0xAA}}

	serviceMux := &signal.Signal{Name: "ServiceMux", StartBit: 8, Size: 8}
	if got := Extract(serviceMux, payload)[0]; got != 0x41 {
		t.Errorf("ServiceMux raw = 0x%X, want 0x41", got)
	}

	pidMux := &signal.Signal{Name: "PIDMux", StartBit: 16, Size: 8}
	if got := Extract(pidMux, payload)[0]; got != 0x0C {
		t.Errorf("PIDMux raw = 0x%X, want 0x0C", got)
	}

	engineRPM := &signal.Signal{Name: "EngineRPM", StartBit: 24, Size: 16}
	if got := Extract(engineRPM, payload)[0]; got != 12850 {
		t.Errorf("EngineRPM raw = %d, want 12850", got)
	}
}

func TestExtractLittleEndianAcrossBytes(t *testing.T) {
	payload := [][]byte{{0x10, 0x7D, 0x82, 0xBD, 0x12, 0x00, 0xF4, 0x82}}
	sig := &signal.Signal{Name: "EngineSpeed", StartBit: 24, Size: 16, IsLittleEndian: true}
	if got := Extract(sig, payload)[0]; got != 4797 {
		t.Errorf("raw = %d, want 4797", got)
	}
}

func TestExtractShortPayloadYieldsZero(t *testing.T) {
	sig := &signal.Signal{Name: "x", StartBit: 56, Size: 8, IsLittleEndian: true}
	payload := [][]byte{{0x01, 0x02}}
	if got := Extract(sig, payload)[0]; got != 0 {
		t.Errorf("raw over short payload = %d, want 0", got)
	}
}

// buildPayload writes raw (size bits, honouring endianness and start_bit) into
// an 8-byte payload, as the inverse of the Extract algorithm, to exercise the
// round-trip property from spec.md §8 property 1.
func buildPayload(startBit, size int, littleEndian bool, raw uint64) []byte {
	payload := make([]byte, 8)
	for i := 0; i < size; i++ {
		bitVal := (raw >> uint(i)) & 1
		if bitVal == 0 {
			continue
		}
		var pos int
		if littleEndian {
			pos = startBit + i
		} else {
			// Reverse within the window: bit i (LSB-first in the decoded
			// value) lands at window position size-1-i, counted MSB-first
			// from startBit.
			pos = startBit + (size - 1 - i)
		}
		byteIdx := pos / 8
		bitIdx := pos % 8
		if littleEndian {
			payload[byteIdx] |= 1 << uint(bitIdx)
		} else {
			payload[byteIdx] |= 1 << uint(7-bitIdx)
		}
	}
	return payload
}

func TestExtractRoundTrip(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		size := rapid.IntRange(1, 64).Draw(tt, "size")
		maxStart := 64 - size
		startBit := rapid.IntRange(0, maxStart).Draw(tt, "startBit")
		littleEndian := rapid.Bool().Draw(tt, "littleEndian")
		var raw uint64
		if size == 64 {
			raw = rapid.Uint64().Draw(tt, "raw")
		} else {
			raw = rapid.Uint64Range(0, (uint64(1)<<uint(size))-1).Draw(tt, "raw")
		}

		payload := buildPayload(startBit, size, littleEndian, raw)
		sig := &signal.Signal{Name: "x", StartBit: startBit, Size: size, IsLittleEndian: littleEndian}
		got := Extract(sig, [][]byte{payload})[0]
		if got != raw {
			tt.Fatalf("round trip failed: start=%d size=%d little=%v raw=%d got=%d", startBit, size, littleEndian, raw, got)
		}
	})
}

func TestExtractBatchMatchesScalarPerRow(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	sig := &signal.Signal{Name: "x", StartBit: 10, Size: 12, IsLittleEndian: true}
	rows := make([][]byte, 5)
	for i := range rows {
		row := make([]byte, 8)
		r.Read(row)
		rows[i] = row
	}
	batch := Extract(sig, rows)
	for i, row := range rows {
		scalar := Extract(sig, [][]byte{row})[0]
		if batch[i] != scalar {
			t.Fatalf("row %d: batch=%d scalar=%d mismatch", i, batch[i], scalar)
		}
	}
}

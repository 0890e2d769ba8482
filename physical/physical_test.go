package physical

import (
	"math"
	"testing"

	"github.com/canbusgo/decoder/signal"
	"pgregory.net/rapid"
)

func TestSignExtend(t *testing.T) {
	cases := []struct {
		raw  uint64
		size int
		want int64
	}{
		{0, 8, 0},
		{127, 8, 127},
		{128, 8, -128},
		{255, 8, -1},
		{0x7FF, 12, 0x7FF},
		{0x800, 12, -2048},
	}
	for _, tc := range cases {
		if got := SignExtend(tc.raw, tc.size); got != tc.want {
			t.Errorf("SignExtend(%d, %d) = %d, want %d", tc.raw, tc.size, got, tc.want)
		}
	}
}

// TestSignExtendProperty exercises spec.md §8 property 3: for any raw value
// in [0, 2^s), the decoded signed integer equals r if the top bit is 0, and
// r - 2^s otherwise.
func TestSignExtendProperty(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		size := rapid.IntRange(1, 63).Draw(tt, "size")
		raw := rapid.Uint64Range(0, (uint64(1)<<uint(size))-1).Draw(tt, "raw")
		got := SignExtend(raw, size)
		topBit := raw & (uint64(1) << uint(size-1))
		var want int64
		if topBit == 0 {
			want = int64(raw)
		} else {
			want = int64(raw) - (int64(1) << uint(size))
		}
		if got != want {
			tt.Fatalf("SignExtend(%d,%d)=%d want %d", raw, size, got, want)
		}
	})
}

func TestToPhysicalScaling(t *testing.T) {
	sig := &signal.Signal{Name: "x", Factor: 0.125, Offset: 1.5}
	raw := []RawValue{{Raw: 100}}
	phys, err := ToPhysical(sig, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 100*0.125 + 1.5
	if phys[0] != want {
		t.Fatalf("physical = %v, want %v", phys[0], want)
	}
}

func TestToPhysicalFloat32(t *testing.T) {
	sig := &signal.Signal{Name: "temp", IsFloat: true, Size: 32, Factor: 1, Offset: 0}
	bits := math.Float32bits(36.5)
	raw := []RawValue{{Raw: uint64(bits)}}
	phys, err := ToPhysical(sig, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(phys[0]-36.5) > 1e-5 {
		t.Fatalf("physical = %v, want ~36.5", phys[0])
	}
}

func TestToPhysicalFloat64(t *testing.T) {
	sig := &signal.Signal{Name: "temp", IsFloat: true, Size: 64, Factor: 2, Offset: 0}
	bits := math.Float64bits(3.25)
	raw := []RawValue{{Raw: bits}}
	phys, err := ToPhysical(sig, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phys[0] != 6.5 {
		t.Fatalf("physical = %v, want 6.5", phys[0])
	}
}

func TestToPhysicalUnsupportedFloatSize(t *testing.T) {
	sig := &signal.Signal{Name: "bad", IsFloat: true, Size: 16}
	_, err := ToPhysical(sig, []RawValue{{Raw: 1}})
	if err == nil {
		t.Fatalf("expected an error for a float signal with unsupported size")
	}
}

func TestDecodeSignedAcrossByteBoundary(t *testing.T) {
	// spec.md §8 scenario S5: size 12, start_bit 10, little-endian, signed,
	// raw value -100 must round-trip through the bit layout.
	sig := &signal.Signal{Name: "x", StartBit: 10, Size: 12, IsLittleEndian: true, IsSigned: true, Factor: 1}
	const want = -100
	rawBits := uint64(want) & 0xFFF // low 12 bits, two's complement
	payload := make([]byte, 8)
	for i := 0; i < 12; i++ {
		if rawBits&(1<<uint(i)) == 0 {
			continue
		}
		pos := 10 + i
		payload[pos/8] |= 1 << uint(pos%8)
	}
	raw, phys, err := Decode(sig, [][]byte{payload})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw[0].Int64() != want {
		t.Fatalf("raw = %d, want %d", raw[0].Int64(), want)
	}
	if phys[0] != -100.0 {
		t.Fatalf("physical = %v, want -100.0", phys[0])
	}
}

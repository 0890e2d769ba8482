// Package bitfield implements the bit-level signal extraction shared by
// the streaming and batch decoders (spec.md §4.2). The batch kernel
// operates on N>=1 payload rows; the scalar path is simply N=1, so there
// is exactly one implementation to keep correct.
package bitfield

import "github.com/canbusgo/decoder/signal"

// WidthBytes returns the smallest width in {1,2,4,8} bytes that can hold a
// raw value of the given bit size, applying the round-up rule from
// spec.md §4.2 step 5 (3,5,6,7 byte fields round up to 4 or 8).
func WidthBytes(size int) int {
	nbytes := (size + 7) / 8
	switch nbytes {
	case 1, 2, 4, 8:
		return nbytes
	case 3:
		return 4
	default: // 5, 6, 7
		return 8
	}
}

// Extract slices the bits for sig out of each row of data (N rows, each
// exactly frameSize bytes) and returns N raw unsigned integers, following
// the algorithm in spec.md §4.2:
//
//  1. Slice the byte range covering [start, stop) bits.
//  2. Unpack those bytes into a bit sequence, honouring endianness.
//  3. Take the window of sig.Size bits starting at start%8.
//  4. If big-endian (Motorola), reverse the window.
//  5. Repack LSB-first into a zero-extended uint64.
//  6. Interpret as an unsigned little-endian integer.
func Extract(sig *signal.Signal, data [][]byte) []uint64 {
	out := make([]uint64, len(data))
	start := sig.StartBit
	stop := start + sig.Size
	startByte := start / 8
	stopByte := (stop + 7) / 8
	subStart := start % 8

	for row, payload := range data {
		if stopByte > len(payload) {
			// Caller is responsible for shape validation (spec.md §7
			// DataSizeMismatch); extracting past the slice yields a
			// defined zero value rather than panicking.
			continue
		}
		window := extractBits(payload[startByte:stopByte], subStart, sig.Size, sig.IsLittleEndian)
		out[row] = packLittleEndian(window)
	}
	return out
}

// extractBits returns exactly size bits (LSB-first, little-endian
// representation of the signal window) from the byte slice, honouring the
// signal's declared bit order.
func extractBits(slice []byte, subStart, size int, littleEndian bool) []bool {
	bits := unpackBits(slice, littleEndian)
	window := make([]bool, size)
	copy(window, bits[subStart:subStart+size])
	if !littleEndian {
		reverse(window)
	}
	return window
}

// unpackBits expands each byte of data into 8 bools. In little-endian bit
// order, bit k of the payload is byte k/8, bit k%8 counted from the LSB.
// In big-endian (Motorola) order, it is counted from the MSB.
func unpackBits(data []byte, littleEndian bool) []bool {
	bits := make([]bool, len(data)*8)
	for i, b := range data {
		for j := 0; j < 8; j++ {
			var set bool
			if littleEndian {
				set = b&(1<<uint(j)) != 0
			} else {
				set = b&(1<<uint(7-j)) != 0
			}
			bits[i*8+j] = set
		}
	}
	return bits
}

func reverse(bits []bool) {
	for i, j := 0, len(bits)-1; i < j; i, j = i+1, j-1 {
		bits[i], bits[j] = bits[j], bits[i]
	}
}

// packLittleEndian repacks a little-endian-ordered bit window into an
// unsigned integer, zero-extended to 64 bits.
func packLittleEndian(bits []bool) uint64 {
	var v uint64
	for i, set := range bits {
		if set {
			v |= 1 << uint(i)
		}
	}
	return v
}

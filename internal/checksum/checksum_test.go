package checksum

import (
	"encoding/binary"
	"testing"
)

func TestSum_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xffff},
		{"single zero word", []byte{0x00, 0x00}, 0xffff},
		{"all ones word", []byte{0xff, 0xff}, 0x0000},
		{"odd length pads with zero", []byte{0x01}, ^uint16(0x0100)},
		// RFC 1071 section 3 example
		{"rfc1071", []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}, ^uint16(0xddf2)},
		// Echo request type 8, id 1, seq 1, no payload
		{"echo request header", []byte{8, 0, 0, 0, 0, 1, 0, 1}, 0xf7fd},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sum(tc.data); got != tc.want {
				t.Errorf("Sum(%x) = %#04x, want %#04x", tc.data, got, tc.want)
			}
		})
	}
}

func TestSum_CarryFolding(t *testing.T) {
	// 0xffff + 0x0001 overflows 16 bits and must fold back to 0x0001.
	data := []byte{0xff, 0xff, 0x00, 0x01}
	if got := Sum(data); got != ^uint16(0x0001) {
		t.Errorf("Sum() = %#04x, want %#04x", got, ^uint16(0x0001))
	}
}

func TestSum_InsertedChecksumValidates(t *testing.T) {
	sizes := []int{8, 9, 32, 33, 1472}

	for _, size := range sizes {
		buf := make([]byte, size)
		for i := range buf {
			buf[i] = byte(i*31 + 7)
		}
		buf[2], buf[3] = 0, 0

		binary.BigEndian.PutUint16(buf[2:4], Sum(buf))

		if !Valid(buf) {
			t.Errorf("size %d: Valid() = false after inserting checksum", size)
		}
		if got := Sum(buf); got != 0 {
			t.Errorf("size %d: Sum() over checksummed buffer = %#04x, want 0", size, got)
		}
	}
}

func TestValid_DetectsCorruption(t *testing.T) {
	buf := []byte{8, 0, 0, 0, 0x12, 0x34, 0x00, 0x01, 'p', 'i', 'n', 'g'}
	binary.BigEndian.PutUint16(buf[2:4], Sum(buf))

	buf[len(buf)-1] ^= 0x01
	if Valid(buf) {
		t.Error("Valid() = true for corrupted buffer")
	}
}

func BenchmarkSum(b *testing.B) {
	buf := make([]byte, 64)
	for i := 0; i < b.N; i++ {
		_ = Sum(buf)
	}
}

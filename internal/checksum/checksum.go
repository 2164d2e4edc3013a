// Package checksum implements the Internet checksum (RFC 1071) shared by the
// ICMP and IPv4 layers.
package checksum

// Sum returns the ones' complement of the ones' complement sum of b, read as
// big-endian 16-bit words. An odd trailing byte is padded with zero.
//
// Callers computing a header checksum must zero the checksum field first and
// write the result back into it afterwards.
func Sum(b []byte) uint16 {
	return ^fold(b)
}

// Valid reports whether b, with its checksum field already filled in, sums to
// zero.
func Valid(b []byte) bool {
	return Sum(b) == 0
}

func fold(b []byte) uint16 {
	var sum uint32

	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}

	// End-around carry
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}

	return uint16(sum)
}

package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/postalsys/metroo-ping/internal/checksum"
)

// HeaderSize is the size of the ICMP echo header in bytes.
const HeaderSize = 8

// IANA protocol numbers.
const (
	ProtocolNumberICMP     = 1
	ProtocolNumberIPv6ICMP = 58
)

var (
	// ErrInvalidProtocol is returned for an unknown variant or an address that
	// is neither IPv4 nor IPv6.
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrInternal is returned when a request cannot be encoded.
	ErrInternal = errors.New("internal error")

	// ErrDecodeV4 is returned when an IPv4 header is malformed.
	ErrDecodeV4 = errors.New("decode IPv4 packet")

	// ErrDecodeEchoReply is returned when bytes are not an echo reply of the
	// expected variant.
	ErrDecodeEchoReply = errors.New("decode echo reply")
)

// Variant selects ICMPv4 or ICMPv6 message semantics.
type Variant uint8

const (
	ICMPv4 Variant = iota + 1
	ICMPv6
)

// VariantFor returns the variant matching the address family of addr.
// IPv4-mapped IPv6 addresses are treated as IPv4.
func VariantFor(addr netip.Addr) (Variant, error) {
	switch {
	case !addr.IsValid():
		return 0, fmt.Errorf("%w: invalid address", ErrInvalidProtocol)
	case addr.Unmap().Is4():
		return ICMPv4, nil
	case addr.Is6():
		return ICMPv6, nil
	default:
		return 0, fmt.Errorf("%w: unsupported address %s", ErrInvalidProtocol, addr)
	}
}

// RequestType returns the echo request type code.
func (v Variant) RequestType() uint8 {
	switch v {
	case ICMPv4:
		return uint8(ipv4.ICMPTypeEcho)
	case ICMPv6:
		return uint8(ipv6.ICMPTypeEchoRequest)
	default:
		return 0
	}
}

// ReplyType returns the echo reply type code.
func (v Variant) ReplyType() uint8 {
	switch v {
	case ICMPv4:
		return uint8(ipv4.ICMPTypeEchoReply)
	case ICMPv6:
		return uint8(ipv6.ICMPTypeEchoReply)
	default:
		return 0
	}
}

// Protocol returns the IANA protocol number carried in the IP header.
func (v Variant) Protocol() int {
	if v == ICMPv6 {
		return ProtocolNumberIPv6ICMP
	}
	return ProtocolNumberICMP
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == ICMPv4 || v == ICMPv6
}

// String returns a human-readable name for the variant.
func (v Variant) String() string {
	switch v {
	case ICMPv4:
		return "icmpv4"
	case ICMPv6:
		return "icmpv6"
	default:
		return "unknown"
	}
}

// EchoRequest is an outgoing echo request.
type EchoRequest struct {
	ID      uint16
	Seq     uint16
	Payload []byte
}

// Len returns the encoded size of the request.
func (r *EchoRequest) Len() int {
	return HeaderSize + len(r.Payload)
}

// Encode writes the request into out and fills in the checksum.
// out must hold at least Len() bytes; only the first Len() bytes are written.
func (r *EchoRequest) Encode(v Variant, out []byte) error {
	if !v.Valid() {
		return fmt.Errorf("%w: variant %d", ErrInvalidProtocol, v)
	}

	n := r.Len()
	if len(out) < n {
		return fmt.Errorf("%w: buffer of %d bytes too small for %d byte echo request", ErrInternal, len(out), n)
	}
	msg := out[:n]

	msg[0] = v.RequestType()
	msg[1] = 0
	msg[2] = 0
	msg[3] = 0
	binary.BigEndian.PutUint16(msg[4:6], r.ID)
	binary.BigEndian.PutUint16(msg[6:8], r.Seq)
	copy(msg[HeaderSize:], r.Payload)

	binary.BigEndian.PutUint16(msg[2:4], checksum.Sum(msg))

	return nil
}

// Marshal returns the encoded request in a newly allocated buffer.
func (r *EchoRequest) Marshal(v Variant) ([]byte, error) {
	buf := make([]byte, r.Len())
	if err := r.Encode(v, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// EchoReply is a decoded echo reply.
type EchoReply struct {
	ID      uint16
	Seq     uint16
	Payload []byte
}

// DecodeEchoReply parses b as an echo reply of variant v.
// The checksum is not verified; the payload is copied out of b.
func DecodeEchoReply(b []byte, v Variant) (*EchoReply, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: variant %d", ErrInvalidProtocol, v)
	}
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the echo header", ErrDecodeEchoReply, len(b))
	}
	if b[0] != v.ReplyType() {
		return nil, fmt.Errorf("%w: type %d is not an %s echo reply", ErrDecodeEchoReply, b[0], v)
	}

	payload := make([]byte, len(b)-HeaderSize)
	copy(payload, b[HeaderSize:])

	return &EchoReply{
		ID:      binary.BigEndian.Uint16(b[4:6]),
		Seq:     binary.BigEndian.Uint16(b[6:8]),
		Payload: payload,
	}, nil
}

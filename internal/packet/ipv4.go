package packet

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"
)

// IPProtocol is the protocol field of an IPv4 header.
type IPProtocol uint8

// ProtocolICMP marks an IPv4 packet carrying ICMPv4.
const ProtocolICMP IPProtocol = ProtocolNumberICMP

// IsICMP reports whether the packet carries ICMPv4.
func (p IPProtocol) IsICMP() bool {
	return p == ProtocolICMP
}

func (p IPProtocol) String() string {
	if p.IsICMP() {
		return "icmp"
	}
	return fmt.Sprintf("other(%d)", uint8(p))
}

// IPv4Packet is a received IPv4 datagram with its header stripped.
type IPv4Packet struct {
	Protocol IPProtocol
	TTL      int
	Src      netip.Addr
	Data     []byte // bytes following the header, aliasing the input
}

// DecodeIPv4 strips the variable-length IPv4 header from b.
func DecodeIPv4(b []byte) (*IPv4Packet, error) {
	if len(b) < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the minimum header", ErrDecodeV4, len(b))
	}

	hdrLen := int(b[0]&0x0f) << 2
	if hdrLen < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: header length %d below minimum", ErrDecodeV4, hdrLen)
	}
	if hdrLen > len(b) {
		return nil, fmt.Errorf("%w: header length %d exceeds %d byte packet", ErrDecodeV4, hdrLen, len(b))
	}

	h, err := ipv4.ParseHeader(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeV4, err)
	}

	src, _ := netip.AddrFromSlice(h.Src.To4())

	return &IPv4Packet{
		Protocol: IPProtocol(h.Protocol),
		TTL:      h.TTL,
		Src:      src,
		Data:     b[hdrLen:],
	}, nil
}

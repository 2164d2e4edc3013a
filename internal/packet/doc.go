// Package packet encodes ICMP echo requests and decodes echo replies for
// ICMPv4 and ICMPv6, and unwraps the IPv4 header that raw IPv4 sockets
// deliver in front of the ICMP message.
//
// # Echo Message Layout
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     Type      |     Code      |          Checksum             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|           Identifier          |        Sequence Number        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     Data ...
//	+-+-+-+-+-
//
// ICMPv4 uses type 8 for requests and 0 for replies (RFC 792). ICMPv6 uses
// 128 and 129 (RFC 4443). The code is always 0.
//
// The checksum is computed over the ICMP message only. For ICMPv6 the kernel
// recomputes it with the pseudo-header before transmission, so the value
// written here only matters for ICMPv4.
package packet

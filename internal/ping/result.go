package ping

import (
	"net/netip"
	"time"
)

// Result describes the accepted echo reply.
//
// Replies are matched on the echo identifier alone. A reply carrying the
// expected identifier and a different sequence number is accepted; Seq holds
// the sequence number the reply actually carried.
type Result struct {
	// Elapsed is the round-trip time, never longer than the timeout.
	Elapsed time.Duration

	ID      uint16
	Seq     uint16
	Payload []byte
	Target  netip.Addr

	// TTL is the reply's IPv4 TTL when the socket delivers the IP header,
	// zero otherwise.
	TTL int

	// Size is the length of the ICMP reply in bytes.
	Size int
}

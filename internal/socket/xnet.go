package socket

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"time"

	"golang.org/x/net/icmp"
)

// netConn is the portable backend built on golang.org/x/net/icmp. The
// runtime strips the IPv4 header from raw reads, so it never delivers one.
type netConn struct {
	conn   *icmp.PacketConn
	family Family
	kind   Kind

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// network returns the icmp.ListenPacket network and listen address.
func network(family Family, kind Kind) (string, string) {
	switch {
	case family == FamilyIPv4 && kind == KindRaw:
		return "ip4:icmp", "0.0.0.0"
	case family == FamilyIPv4:
		return "udp4", "0.0.0.0"
	case kind == KindRaw:
		return "ip6:ipv6-icmp", "::"
	default:
		return "udp6", "::"
	}
}

func openXNet(family Family, kind Kind, opts Options) (Conn, error) {
	if opts.Interface != "" {
		return nil, fmt.Errorf("bind to interface %q with xnet backend: %w", opts.Interface, ErrUnsupported)
	}

	netw, laddr := network(family, kind)
	conn, err := icmp.ListenPacket(netw, laddr)
	if err != nil {
		return nil, fmt.Errorf("create ICMP socket (%s): %w", netw, err)
	}

	return &netConn{conn: conn, family: family, kind: kind}, nil
}

func (c *netConn) Send(b []byte, dst netip.Addr) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	ip := dst.AsSlice()
	if c.family == FamilyIPv4 {
		ip = dst.Unmap().AsSlice()
	}

	// Unprivileged sockets address the peer with a UDP address.
	var addr net.Addr = &net.IPAddr{IP: ip, Zone: dst.Zone()}
	if c.kind == KindDatagram {
		addr = &net.UDPAddr{IP: ip, Zone: dst.Zone()}
	}

	_, err := c.conn.WriteTo(b, addr)
	return err
}

func (c *netConn) Receive(b []byte) (int, error) {
	deadline := time.Time{}
	if c.readTimeout > 0 {
		deadline = time.Now().Add(c.readTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}

	n, _, err := c.conn.ReadFrom(b)
	return n, err
}

func (c *netConn) SetReadTimeout(d time.Duration) error {
	c.readTimeout = d
	return nil
}

func (c *netConn) SetWriteTimeout(d time.Duration) error {
	c.writeTimeout = d
	return nil
}

func (c *netConn) SetTTL(ttl int) error {
	if c.family == FamilyIPv6 {
		if p := c.conn.IPv6PacketConn(); p != nil {
			return p.SetHopLimit(ttl)
		}
		return fmt.Errorf("set hop limit: %w", ErrUnsupported)
	}
	if p := c.conn.IPv4PacketConn(); p != nil {
		return p.SetTTL(ttl)
	}
	return fmt.Errorf("set ttl: %w", ErrUnsupported)
}

func (c *netConn) IncludesIPv4Header() bool {
	return false
}

// BoundIdentifier reports the local port of unprivileged sockets, which the
// Linux kernel substitutes for the echo identifier.
func (c *netConn) BoundIdentifier() (uint16, bool) {
	if c.kind != KindDatagram || runtime.GOOS != "linux" {
		return 0, false
	}
	addr, ok := c.conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.Port == 0 {
		return 0, false
	}
	return uint16(addr.Port), true
}

func (c *netConn) Close() error {
	return c.conn.Close()
}

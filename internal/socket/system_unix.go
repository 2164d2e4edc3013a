//go:build linux || darwin || freebsd || netbsd || openbsd

package socket

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const systemSupported = true

type sysConn struct {
	fd      int
	family  Family
	kind    Kind
	boundID uint16
	bound   bool
}

func openSystem(family Family, kind Kind, opts Options) (Conn, error) {
	domain, proto := unix.AF_INET, unix.IPPROTO_ICMP
	if family == FamilyIPv6 {
		domain, proto = unix.AF_INET6, unix.IPPROTO_ICMPV6
	}
	typ := unix.SOCK_RAW
	if kind == KindDatagram {
		typ = unix.SOCK_DGRAM
	}

	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return nil, fmt.Errorf("create %s %s ICMP socket: %w", family, kind, os.NewSyscallError("socket", err))
	}
	unix.CloseOnExec(fd)

	c := &sysConn{fd: fd, family: family, kind: kind}

	if opts.Interface != "" {
		if err := bindToDevice(fd, opts.Interface); err != nil {
			c.Close()
			return nil, fmt.Errorf("bind to interface %q: %w", opts.Interface, err)
		}
	}

	if kind == KindDatagram {
		id, ok, err := bindIdentifier(fd, family, opts.Identifier)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("bind echo identifier %d: %w", opts.Identifier, err)
		}
		c.boundID, c.bound = id, ok
	}

	return c, nil
}

func (c *sysConn) Send(b []byte, dst netip.Addr) error {
	sa, err := c.sockaddr(dst)
	if err != nil {
		return err
	}
	for {
		err = unix.Sendto(c.fd, b, 0, sa)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return os.NewSyscallError("sendto", err)
	}
	return nil
}

func (c *sysConn) Receive(b []byte) (int, error) {
	for {
		n, _, err := unix.Recvfrom(c.fd, b, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, os.NewSyscallError("recvfrom", err)
		}
		return n, nil
	}
}

func (c *sysConn) SetReadTimeout(d time.Duration) error {
	tv := timeval(d)
	return os.NewSyscallError("setsockopt", unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv))
}

func (c *sysConn) SetWriteTimeout(d time.Duration) error {
	tv := timeval(d)
	return os.NewSyscallError("setsockopt", unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv))
}

func (c *sysConn) SetTTL(ttl int) error {
	if c.family == FamilyIPv6 {
		return os.NewSyscallError("setsockopt", unix.SetsockoptInt(c.fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, ttl))
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(c.fd, unix.IPPROTO_IP, unix.IP_TTL, ttl))
}

func (c *sysConn) IncludesIPv4Header() bool {
	if c.family != FamilyIPv4 {
		return false
	}
	return c.kind == KindRaw || datagramIncludesIPv4Header
}

func (c *sysConn) BoundIdentifier() (uint16, bool) {
	return c.boundID, c.bound
}

func (c *sysConn) Close() error {
	return os.NewSyscallError("close", unix.Close(c.fd))
}

func (c *sysConn) sockaddr(dst netip.Addr) (unix.Sockaddr, error) {
	if c.family == FamilyIPv4 {
		dst = dst.Unmap()
		if !dst.Is4() {
			return nil, fmt.Errorf("send to %s: not an IPv4 address", dst)
		}
		return &unix.SockaddrInet4{Addr: dst.As4()}, nil
	}

	if !dst.Is6() || dst.Is4In6() {
		return nil, fmt.Errorf("send to %s: not an IPv6 address", dst)
	}
	sa := &unix.SockaddrInet6{Addr: dst.As16()}
	if zone := dst.Zone(); zone != "" {
		ifi, err := net.InterfaceByName(zone)
		if err != nil {
			return nil, fmt.Errorf("resolve zone %q: %w", zone, err)
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return sa, nil
}

// timeval converts d for SO_RCVTIMEO/SO_SNDTIMEO. A zero timeval means
// "block forever", so positive durations below the clock resolution are
// rounded up to one microsecond.
func timeval(d time.Duration) unix.Timeval {
	if d <= 0 {
		return unix.Timeval{}
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if tv.Sec == 0 && tv.Usec == 0 {
		tv.Usec = 1
	}
	return tv
}

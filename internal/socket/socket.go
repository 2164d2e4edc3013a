// Package socket opens the ICMP sockets an echo exchange runs over.
//
// Two backends are available. The system backend drives the socket directly
// through golang.org/x/sys/unix and exposes per-call send and receive timeouts
// the way SO_SNDTIMEO and SO_RCVTIMEO define them. The xnet backend wraps
// golang.org/x/net/icmp and works wherever that package does, including
// Windows.
//
// # Framing
//
// A raw IPv4 socket opened by the system backend delivers the IPv4 header in
// front of every ICMP message; callers check IncludesIPv4Header before
// decoding. IPv6 sockets, Linux datagram sockets, and every xnet socket
// deliver the ICMP message alone.
//
// # Unprivileged Sockets
//
// Datagram sockets need no elevated privilege on Linux when the
// ping_group_range sysctl admits the caller's group:
//
//	sysctl -w net.ipv4.ping_group_range="0 65535"
//
// On Linux the kernel owns the echo identifier of a datagram socket: it is
// the socket's local port. The system backend binds the requested identifier
// as the port so replies can still be matched on it.
package socket

import (
	"errors"
	"fmt"
	"net/netip"
	"runtime"
	"strings"
	"time"
)

// ErrUnsupported is returned when the requested backend or option is not
// available on this platform.
var ErrUnsupported = errors.New("not supported on this platform")

// Family is the address family of a socket.
type Family uint8

const (
	FamilyIPv4 Family = iota + 1
	FamilyIPv6
)

// FamilyOf returns the family of addr. IPv4-mapped IPv6 addresses are IPv4.
func FamilyOf(addr netip.Addr) (Family, error) {
	switch {
	case !addr.IsValid():
		return 0, fmt.Errorf("invalid address")
	case addr.Unmap().Is4():
		return FamilyIPv4, nil
	default:
		return FamilyIPv6, nil
	}
}

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Kind selects a raw or datagram socket.
type Kind uint8

const (
	KindRaw Kind = iota + 1
	KindDatagram
)

// DefaultKind returns the socket kind used when none is configured.
// Windows has no unprivileged ICMP sockets, so it gets raw sockets; every
// other platform starts unprivileged.
func DefaultKind() Kind {
	if runtime.GOOS == "windows" {
		return KindRaw
	}
	return KindDatagram
}

// ParseKind parses "raw", "dgram"/"datagram", or "auto" (DefaultKind).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return KindRaw, nil
	case "dgram", "datagram":
		return KindDatagram, nil
	case "", "auto":
		return DefaultKind(), nil
	default:
		return 0, fmt.Errorf("invalid socket kind: %q (must be raw, dgram, or auto)", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindDatagram:
		return "dgram"
	default:
		return "unknown"
	}
}

// Backend selects the socket implementation.
type Backend uint8

const (
	// BackendAuto picks the system backend where supported, xnet elsewhere.
	BackendAuto Backend = iota
	BackendSystem
	BackendXNet
)

// ParseBackend parses "auto", "system", or "xnet".
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BackendAuto, nil
	case "system":
		return BackendSystem, nil
	case "xnet":
		return BackendXNet, nil
	default:
		return 0, fmt.Errorf("invalid socket backend: %q (must be auto, system, or xnet)", s)
	}
}

func (b Backend) String() string {
	switch b {
	case BackendAuto:
		return "auto"
	case BackendSystem:
		return "system"
	case BackendXNet:
		return "xnet"
	default:
		return "unknown"
	}
}

// Options tunes socket construction.
type Options struct {
	Backend Backend

	// Interface binds the socket to a network device (Linux only).
	Interface string

	// Identifier is the echo identifier the socket will carry. Datagram
	// sockets on Linux bind it as their local port.
	Identifier uint16
}

// Conn is an ICMP socket owned by a single exchange.
type Conn interface {
	// Send transmits one ICMP message to dst.
	Send(b []byte, dst netip.Addr) error

	// Receive reads one datagram into b and returns its length.
	Receive(b []byte) (int, error)

	// SetReadTimeout bounds the next Receive calls. d <= 0 disables the timeout.
	SetReadTimeout(d time.Duration) error

	// SetWriteTimeout bounds the next Send calls. d <= 0 disables the timeout.
	SetWriteTimeout(d time.Duration) error

	// SetTTL sets the IPv4 TTL or IPv6 unicast hop limit.
	SetTTL(ttl int) error

	// IncludesIPv4Header reports whether received datagrams start with the
	// IPv4 header.
	IncludesIPv4Header() bool

	Close() error
}

// IdentifierBinder is implemented by sockets whose kernel assigns the echo
// identifier. BoundIdentifier returns the identifier replies will carry.
type IdentifierBinder interface {
	BoundIdentifier() (uint16, bool)
}

// Open creates an ICMP socket of the given family and kind.
func Open(family Family, kind Kind, opts Options) (Conn, error) {
	if family != FamilyIPv4 && family != FamilyIPv6 {
		return nil, fmt.Errorf("open socket: invalid family %d", family)
	}
	if kind != KindRaw && kind != KindDatagram {
		return nil, fmt.Errorf("open socket: invalid kind %d", kind)
	}

	backend := opts.Backend
	if backend == BackendAuto {
		backend = BackendXNet
		if systemSupported {
			backend = BackendSystem
		}
	}

	switch backend {
	case BackendSystem:
		return openSystem(family, kind, opts)
	case BackendXNet:
		return openXNet(family, kind, opts)
	default:
		return nil, fmt.Errorf("open socket: invalid backend %d", backend)
	}
}

package ping

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/postalsys/metroo-ping/internal/logging"
	"github.com/postalsys/metroo-ping/internal/metrics"
	"github.com/postalsys/metroo-ping/internal/packet"
	"github.com/postalsys/metroo-ping/internal/socket"
)

// Defaults applied to unset options.
const (
	DefaultTimeout     = 4 * time.Second
	DefaultTTL         = 64
	DefaultSequence    = 1
	DefaultPayloadSize = 24
)

// MaxPayloadSize is the largest payload that fits an IPv4 datagram.
const MaxPayloadSize = 65535 - 20 - packet.HeaderSize

// Dialer opens the socket an exchange runs over.
type Dialer interface {
	Dial(family socket.Family, kind socket.Kind, opts socket.Options) (socket.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(family socket.Family, kind socket.Kind, opts socket.Options) (socket.Conn, error)

func (f DialerFunc) Dial(family socket.Family, kind socket.Kind, opts socket.Options) (socket.Conn, error) {
	return f(family, kind, opts)
}

// Options configures one exchange. Nil pointer fields take their defaults.
type Options struct {
	Timeout    *time.Duration
	TTL        *int
	Identifier *uint16
	Sequence   *uint16

	// Payload defaults to DefaultPayloadSize random bytes when nil.
	Payload []byte

	// SocketKind zero means the entry point's default.
	SocketKind socket.Kind
	Backend    socket.Backend
	Interface  string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Source  Source
	Dialer  Dialer

	now func() time.Time
}

// request is the immutable form of Options for a single exchange.
type request struct {
	target  netip.Addr
	variant packet.Variant
	family  socket.Family
	kind    socket.Kind
	backend socket.Backend
	iface   string
	timeout time.Duration
	ttl     int
	echo    packet.EchoRequest
	logger  *slog.Logger
	metrics *metrics.Metrics
	dialer  Dialer
	now     func() time.Time
}

// finalize validates o and resolves every default.
func (o Options) finalize(addr netip.Addr, defaultKind socket.Kind) (*request, error) {
	variant, err := packet.VariantFor(addr)
	if err != nil {
		return nil, err
	}
	family, err := socket.FamilyOf(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProtocol, err)
	}
	if variant == packet.ICMPv4 {
		addr = addr.Unmap()
	}

	r := &request{
		target:  addr,
		variant: variant,
		family:  family,
		kind:    o.SocketKind,
		backend: o.Backend,
		iface:   o.Interface,
		timeout: DefaultTimeout,
		ttl:     DefaultTTL,
		logger:  o.Logger,
		metrics: o.Metrics,
		dialer:  o.Dialer,
		now:     o.now,
	}
	if r.kind == 0 {
		r.kind = defaultKind
	}
	if r.kind != socket.KindRaw && r.kind != socket.KindDatagram {
		return nil, fmt.Errorf("%w: invalid socket kind %d", ErrInternal, r.kind)
	}
	if r.logger == nil {
		r.logger = logging.NopLogger()
	}
	r.logger = r.logger.With(logging.KeyComponent, "ping")
	if r.dialer == nil {
		r.dialer = DialerFunc(socket.Open)
	}
	if r.now == nil {
		r.now = time.Now
	}

	if o.Timeout != nil {
		if *o.Timeout <= 0 {
			return nil, fmt.Errorf("%w: timeout must be positive, got %v", ErrInternal, *o.Timeout)
		}
		r.timeout = *o.Timeout
	}
	if o.TTL != nil {
		if *o.TTL < 1 || *o.TTL > 255 {
			return nil, fmt.Errorf("%w: ttl must be between 1 and 255, got %d", ErrInternal, *o.TTL)
		}
		r.ttl = *o.TTL
	}

	src := o.Source
	if src == nil {
		src = CryptoSource{}
	}

	r.echo.Seq = DefaultSequence
	if o.Sequence != nil {
		r.echo.Seq = *o.Sequence
	}
	if o.Identifier != nil {
		r.echo.ID = *o.Identifier
	} else {
		r.echo.ID = src.Uint16()
	}

	if o.Payload != nil {
		if len(o.Payload) > MaxPayloadSize {
			return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInternal, len(o.Payload), MaxPayloadSize)
		}
		r.echo.Payload = append([]byte(nil), o.Payload...)
	} else {
		r.echo.Payload = make([]byte, DefaultPayloadSize)
		if _, err := src.Read(r.echo.Payload); err != nil {
			return nil, fmt.Errorf("%w: generate payload: %v", ErrInternal, err)
		}
	}

	return r, nil
}

func (r *request) socketOptions() socket.Options {
	return socket.Options{
		Backend:    r.backend,
		Interface:  r.iface,
		Identifier: r.echo.ID,
	}
}

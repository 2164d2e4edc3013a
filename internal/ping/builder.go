package ping

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/postalsys/metroo-ping/internal/metrics"
	"github.com/postalsys/metroo-ping/internal/socket"
)

// Builder accumulates options for one exchange. Setters return the builder
// so calls can be chained:
//
//	res, err := ping.New(addr).Timeout(time.Second).Sequence(7).Send(ctx)
type Builder struct {
	addr netip.Addr
	opts Options
}

// New returns a builder for addr using the platform's default socket kind.
func New(addr netip.Addr) *Builder {
	return &Builder{
		addr: addr,
		opts: Options{SocketKind: socket.DefaultKind()},
	}
}

// Timeout sets the time budget for the exchange.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.opts.Timeout = &d
	return b
}

// TTL sets the outgoing hop limit.
func (b *Builder) TTL(ttl int) *Builder {
	b.opts.TTL = &ttl
	return b
}

// Identifier sets the echo identifier.
func (b *Builder) Identifier(id uint16) *Builder {
	b.opts.Identifier = &id
	return b
}

// Sequence sets the echo sequence number.
func (b *Builder) Sequence(seq uint16) *Builder {
	b.opts.Sequence = &seq
	return b
}

// Payload sets the echo payload. The bytes are copied.
func (b *Builder) Payload(p []byte) *Builder {
	b.opts.Payload = append([]byte{}, p...)
	return b
}

// SocketKind selects a raw or datagram socket.
func (b *Builder) SocketKind(k socket.Kind) *Builder {
	b.opts.SocketKind = k
	return b
}

// Backend selects the socket implementation.
func (b *Builder) Backend(backend socket.Backend) *Builder {
	b.opts.Backend = backend
	return b
}

// Interface binds the socket to a network device (Linux only).
func (b *Builder) Interface(name string) *Builder {
	b.opts.Interface = name
	return b
}

// Logger sets the logger for exchange events.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.opts.Logger = l
	return b
}

// Metrics sets the collector updated by the exchange.
func (b *Builder) Metrics(m *metrics.Metrics) *Builder {
	b.opts.Metrics = m
	return b
}

// Source sets the randomness used for unset identifiers and payloads.
func (b *Builder) Source(src Source) *Builder {
	b.opts.Source = src
	return b
}

// Dialer replaces the socket dialer.
func (b *Builder) Dialer(d Dialer) *Builder {
	b.opts.Dialer = d
	return b
}

// Options returns a copy of the accumulated options.
func (b *Builder) Options() Options {
	return b.opts
}

// Send runs the exchange.
func (b *Builder) Send(ctx context.Context) (*Result, error) {
	return exchange(ctx, b.addr, b.opts, socket.DefaultKind())
}

// Package ping runs a single ICMP echo exchange: it sends one echo request
// and waits, within a time budget, for the reply carrying the same
// identifier.
//
// Replies are correlated on the identifier only. Datagrams that are not
// ICMP, are not echo replies, or carry another identifier are skipped until
// the budget runs out.
package ping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/postalsys/metroo-ping/internal/logging"
	"github.com/postalsys/metroo-ping/internal/metrics"
	"github.com/postalsys/metroo-ping/internal/packet"
	"github.com/postalsys/metroo-ping/internal/socket"
)

const receiveBufferSize = 2048

// Ping sends one echo request to addr and waits for the matching reply.
// It uses a raw socket unless opts.SocketKind says otherwise.
func Ping(ctx context.Context, addr netip.Addr, opts Options) (*Result, error) {
	return exchange(ctx, addr, opts, socket.KindRaw)
}

// PingRaw runs the exchange over a raw socket.
func PingRaw(ctx context.Context, addr netip.Addr, opts Options) (*Result, error) {
	opts.SocketKind = socket.KindRaw
	return exchange(ctx, addr, opts, socket.KindRaw)
}

// PingDatagram runs the exchange over an unprivileged datagram socket.
func PingDatagram(ctx context.Context, addr netip.Addr, opts Options) (*Result, error) {
	opts.SocketKind = socket.KindDatagram
	return exchange(ctx, addr, opts, socket.KindDatagram)
}

func exchange(ctx context.Context, addr netip.Addr, opts Options, defaultKind socket.Kind) (*Result, error) {
	req, err := opts.finalize(addr, defaultKind)
	if err != nil {
		return nil, err
	}
	return req.run(ctx)
}

func (r *request) run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, r.fail("open", err, false)
	}

	budget := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < budget {
			budget = d
		}
	}

	log := r.logger.With(
		logging.KeyTarget, r.target.String(),
		logging.KeyVariant, r.variant.String(),
		logging.KeySocketKind, r.kind.String(),
	)

	conn, err := r.dialer.Dial(r.family, r.kind, r.socketOptions())
	if err != nil {
		return nil, r.fail("open", err, false)
	}
	defer conn.Close()

	if err := conn.SetTTL(r.ttl); err != nil {
		return nil, r.fail("set ttl", err, false)
	}

	echo := r.echo
	if binder, ok := conn.(socket.IdentifierBinder); ok {
		if id, ok := binder.BoundIdentifier(); ok && id != echo.ID {
			log.Debug("socket rewrote echo identifier",
				logging.KeyIdentifier, id,
				"requested", echo.ID)
			echo.ID = id
		}
	}
	log = log.With(logging.KeyIdentifier, echo.ID, logging.KeySequence, echo.Seq)

	out := make([]byte, echo.Len())
	if err := echo.Encode(r.variant, out); err != nil {
		if !errors.Is(err, ErrInternal) {
			err = fmt.Errorf("%w: %w", ErrInternal, err)
		}
		r.recordError("internal", false)
		return nil, err
	}

	start := r.now()

	if err := conn.SetWriteTimeout(budget); err != nil {
		return nil, r.fail("set write timeout", err, false)
	}
	if err := conn.Send(out, r.target); err != nil {
		return nil, r.fail("send", err, false)
	}
	if r.metrics != nil {
		r.metrics.RecordSent(r.variant.String(), len(out))
	}
	log.Debug("echo request sent", logging.KeyTTL, r.ttl, logging.KeyBytes, len(out))

	framed := r.variant == packet.ICMPv4 && conn.IncludesIPv4Header()
	buf := make([]byte, receiveBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, r.fail("receive", err, true)
		}

		remaining := budget - r.now().Sub(start)
		if remaining <= 0 {
			return nil, r.timedOut(log, budget)
		}
		if err := conn.SetReadTimeout(remaining); err != nil {
			return nil, r.fail("set read timeout", err, true)
		}

		n, err := conn.Receive(buf)
		if err != nil {
			if isTimeout(err) {
				return nil, r.timedOut(log, budget)
			}
			return nil, r.fail("receive", err, true)
		}
		if r.metrics != nil {
			r.metrics.RecordReceived(n)
		}

		data := buf[:n]
		ttl := 0
		if framed {
			pkt, err := packet.DecodeIPv4(data)
			if err != nil {
				r.recordError("decode_ipv4", true)
				return nil, err
			}
			if !pkt.Protocol.IsICMP() {
				r.discard(log, metrics.DiscardNotICMP, remaining)
				continue
			}
			data = pkt.Data
			ttl = pkt.TTL
		}

		reply, err := packet.DecodeEchoReply(data, r.variant)
		if err != nil {
			r.discard(log, metrics.DiscardNotEchoReply, remaining)
			continue
		}

		elapsed := r.now().Sub(start)
		if reply.ID == echo.ID {
			if elapsed > budget {
				elapsed = budget
			}
			if r.metrics != nil {
				r.metrics.RecordReply(r.variant.String(), elapsed.Seconds())
			}
			log.Debug("echo reply received", logging.KeyRTT, elapsed)

			return &Result{
				Elapsed: elapsed,
				ID:      reply.ID,
				Seq:     reply.Seq,
				Payload: reply.Payload,
				Target:  r.target,
				TTL:     ttl,
				Size:    len(data),
			}, nil
		}

		r.discard(log, metrics.DiscardIdentifierMismatch, budget-elapsed)
		if elapsed >= budget {
			return nil, r.timedOut(log, budget)
		}
	}
}

func (r *request) fail(op string, err error, sent bool) error {
	r.recordError(op, sent)
	return &IOError{Op: op, Err: err}
}

func (r *request) timedOut(log *slog.Logger, budget time.Duration) error {
	if r.metrics != nil {
		r.metrics.RecordTimeout()
	}
	log.Debug("no echo reply within timeout", "timeout", budget)
	return &IOError{Op: "receive", Err: ErrTimeout}
}

func (r *request) discard(log *slog.Logger, reason string, remaining time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordDiscard(reason)
	}
	log.Debug("discarded datagram", logging.KeyReason, reason, logging.KeyRemaining, remaining)
}

func (r *request) recordError(errorType string, sent bool) {
	if r.metrics != nil {
		r.metrics.RecordError(errorType, sent)
	}
}

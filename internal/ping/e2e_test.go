package ping

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/postalsys/metroo-ping/internal/socket"
)

// pingLive tries a datagram socket, then a raw one, and skips the test when
// the host allows neither.
func pingLive(t *testing.T, addr netip.Addr, opts Options) (*Result, error) {
	t.Helper()

	var lastErr error
	for _, kind := range []socket.Kind{socket.KindDatagram, socket.KindRaw} {
		opts.SocketKind = kind
		res, err := Ping(context.Background(), addr, opts)

		var ioErr *IOError
		if errors.As(err, &ioErr) && (ioErr.Op == "open" || ioErr.Op == "set ttl") {
			lastErr = err
			continue
		}
		return res, err
	}
	t.Skipf("ICMP sockets unavailable: %v", lastErr)
	return nil, nil
}

func TestLive_IPv4Defaults(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live ICMP test in short mode")
	}

	payload := make([]byte, DefaultPayloadSize)
	src := fixedSource{id: 0x3c3c, fill: 0xa5}
	_, _ = src.Read(payload)

	res, err := pingLive(t, loopback4, Options{Source: src})
	if err != nil {
		t.Fatalf("Ping(127.0.0.1) error = %v", err)
	}
	if !bytes.HasPrefix(res.Payload, payload) {
		t.Errorf("Payload = %x, want prefix %x", res.Payload, payload)
	}
	if res.Elapsed > DefaultTimeout {
		t.Errorf("Elapsed = %v, exceeds %v", res.Elapsed, DefaultTimeout)
	}
}

func TestLive_IPv6Loopback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live ICMP test in short mode")
	}

	res, err := pingLive(t, loopback6, Options{Timeout: ptr(time.Second)})
	var ioErr *IOError
	if errors.As(err, &ioErr) && ioErr.Op == "send" {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Ping(::1) error = %v", err)
	}
	if res.Target != loopback6 {
		t.Errorf("Target = %v, want %v", res.Target, loopback6)
	}
}

func TestLive_ExplicitParameters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live ICMP test in short mode")
	}

	payload := []byte("metroo-ping-fixed-token!")
	res, err := pingLive(t, loopback4, Options{
		Timeout:    ptr(time.Second),
		TTL:        ptr(166),
		Identifier: ptr(uint16(12345)),
		Sequence:   ptr(uint16(42)),
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("Ping(127.0.0.1) error = %v", err)
	}
	if res.Seq != 42 {
		t.Errorf("Seq = %d, want 42", res.Seq)
	}
	if !bytes.HasPrefix(res.Payload, payload) {
		t.Errorf("Payload = %q, want prefix %q", res.Payload, payload)
	}
}

func TestLive_UnreachableTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live ICMP test in short mode")
	}

	// TEST-NET-1 is reserved for documentation. Some networks answer it anyway.
	target := netip.MustParseAddr("192.0.2.1")
	timeout := 200 * time.Millisecond

	start := time.Now()
	_, err := pingLive(t, target, Options{Timeout: &timeout})
	took := time.Since(start)

	if err == nil {
		t.Skipf("%v answered echo requests on this network", target)
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) && ioErr.Op == "send" {
		t.Skipf("no route to %v: %v", target, err)
	}
	if !IsTimeout(err) {
		t.Fatalf("Ping(%v) error = %v, want timeout", target, err)
	}
	if took < timeout || took > timeout+100*time.Millisecond {
		t.Errorf("took %v, want about %v", took, timeout)
	}
}

package ping

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/postalsys/metroo-ping/internal/packet"
	"github.com/postalsys/metroo-ping/internal/socket"
)

// fakeClock advances only when a scripted read says so.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// read is one scripted Receive result.
type read struct {
	data  []byte
	err   error
	after time.Duration // clock advance before the read returns
}

type fakeConn struct {
	clock    *fakeClock
	reads    []read
	framed   bool
	boundID  uint16
	hasBound bool

	sendErr error
	ttlErr  error

	sent          [][]byte
	sentTo        []netip.Addr
	ttl           int
	readTimeouts  []time.Duration
	writeTimeouts []time.Duration
	closed        bool
}

func (c *fakeConn) Send(b []byte, dst netip.Addr) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), b...))
	c.sentTo = append(c.sentTo, dst)
	return nil
}

func (c *fakeConn) Receive(b []byte) (int, error) {
	if len(c.reads) == 0 {
		// Behave like a socket whose read timeout expired.
		if len(c.readTimeouts) > 0 {
			c.clock.Advance(c.readTimeouts[len(c.readTimeouts)-1])
		}
		return 0, errTimeoutRead
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	c.clock.Advance(r.after)
	if r.err != nil {
		return 0, r.err
	}
	return copy(b, r.data), nil
}

func (c *fakeConn) SetReadTimeout(d time.Duration) error {
	c.readTimeouts = append(c.readTimeouts, d)
	return nil
}

func (c *fakeConn) SetWriteTimeout(d time.Duration) error {
	c.writeTimeouts = append(c.writeTimeouts, d)
	return nil
}

func (c *fakeConn) SetTTL(ttl int) error {
	if c.ttlErr != nil {
		return c.ttlErr
	}
	c.ttl = ttl
	return nil
}

func (c *fakeConn) IncludesIPv4Header() bool { return c.framed }

func (c *fakeConn) BoundIdentifier() (uint16, bool) { return c.boundID, c.hasBound }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "resource temporarily unavailable" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errTimeoutRead error = timeoutError{}

// fakeDialer hands out a single fakeConn and records how it was asked for.
type fakeDialer struct {
	conn    *fakeConn
	err     error
	calls   int
	family  socket.Family
	kind    socket.Kind
	options socket.Options
}

func (d *fakeDialer) Dial(family socket.Family, kind socket.Kind, opts socket.Options) (socket.Conn, error) {
	d.calls++
	d.family = family
	d.kind = kind
	d.options = opts
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// fixedSource returns the same identifier and a repeating byte payload.
type fixedSource struct {
	id   uint16
	fill byte
}

func (s fixedSource) Uint16() uint16 { return s.id }

func (s fixedSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = s.fill
	}
	return len(p), nil
}

type failingSource struct{}

func (failingSource) Uint16() uint16 { return 1 }

func (failingSource) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

// echoReply encodes a reply of variant v.
func echoReply(v packet.Variant, id, seq uint16, payload []byte) []byte {
	req := packet.EchoRequest{ID: id, Seq: seq, Payload: payload}
	b, err := req.Marshal(v)
	if err != nil {
		panic(err)
	}
	b[0] = v.ReplyType()
	return b
}

// echoRequestBytes encodes a request, as a raw socket sees its own traffic on
// loopback.
func echoRequestBytes(v packet.Variant, id, seq uint16, payload []byte) []byte {
	req := packet.EchoRequest{ID: id, Seq: seq, Payload: payload}
	b, err := req.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// ipv4Frame prepends a minimal IPv4 header to data.
func ipv4Frame(proto uint8, ttl uint8, src netip.Addr, data []byte) []byte {
	b := make([]byte, 20+len(data))
	b[0] = 0x45
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
	b[8] = ttl
	b[9] = proto
	s := src.As4()
	copy(b[12:16], s[:])
	copy(b[16:20], []byte{127, 0, 0, 1})
	copy(b[20:], data)
	return b
}

func ptr[T any](v T) *T {
	return &v
}

// testOptions wires opts to conn and clock.
func testOptions(conn *fakeConn, clock *fakeClock, opts Options) (Options, *fakeDialer) {
	d := &fakeDialer{conn: conn}
	opts.Dialer = d
	opts.now = clock.Now
	return opts, d
}

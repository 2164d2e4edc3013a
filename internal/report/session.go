// Package report tracks a run of echo exchanges and prints ping-style
// output for it.
package report

import (
	"math"
	"net/netip"
	"sync"
	"time"

	"github.com/postalsys/metroo-ping/internal/health"
	"github.com/postalsys/metroo-ping/internal/ping"
)

// Summary aggregates the outcome of a session.
type Summary struct {
	Host          string
	Target        netip.Addr
	Transmitted   int
	Received      int
	Errors        int
	BytesReceived int64
	Min           time.Duration
	Avg           time.Duration
	Max           time.Duration
	StdDev        time.Duration
	Duration      time.Duration
}

// LossPercent returns the share of exchanges that got no reply.
func (s Summary) LossPercent() float64 {
	if s.Transmitted == 0 {
		return 0
	}
	return float64(s.Transmitted-s.Received) * 100 / float64(s.Transmitted)
}

// Session records exchange outcomes. It is safe for concurrent use so the
// health endpoint can read it while the CLI loop writes.
type Session struct {
	mu       sync.Mutex
	host     string
	target   netip.Addr
	started  time.Time
	finished time.Time
	running  bool
	sent     int
	errors   int
	bytes    int64
	rtts     []time.Duration
}

// NewSession starts a session against target.
func NewSession(host string, target netip.Addr) *Session {
	return &Session{
		host:    host,
		target:  target,
		started: time.Now(),
		running: true,
	}
}

// Record adds one exchange outcome. Timeouts count as loss; other failures
// also count as errors.
func (s *Session) Record(res *ping.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent++
	if err != nil {
		if !ping.IsTimeout(err) {
			s.errors++
		}
		return
	}
	s.rtts = append(s.rtts, res.Elapsed)
	s.bytes += int64(res.Size)
}

// Finish marks the session as complete.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		s.finished = time.Now()
	}
}

// IsRunning implements health.StatsProvider.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats implements health.StatsProvider.
func (s *Session) Stats() health.Stats {
	sum := s.Summary()
	return health.Stats{
		Target:      sum.Target.String(),
		Transmitted: sum.Transmitted,
		Received:    sum.Received,
		LossPercent: sum.LossPercent(),
	}
}

// Summary returns the aggregate statistics so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.finished
	if s.running {
		end = time.Now()
	}

	sum := Summary{
		Host:          s.host,
		Target:        s.target,
		Transmitted:   s.sent,
		Received:      len(s.rtts),
		Errors:        s.errors,
		BytesReceived: s.bytes,
		Duration:      end.Sub(s.started),
	}
	if len(s.rtts) == 0 {
		return sum
	}

	var total float64
	sum.Min, sum.Max = s.rtts[0], s.rtts[0]
	for _, rtt := range s.rtts {
		sum.Min = min(sum.Min, rtt)
		sum.Max = max(sum.Max, rtt)
		total += float64(rtt)
	}
	mean := total / float64(len(s.rtts))

	var sq float64
	for _, rtt := range s.rtts {
		d := float64(rtt) - mean
		sq += d * d
	}
	sum.Avg = time.Duration(mean)
	sum.StdDev = time.Duration(math.Sqrt(sq / float64(len(s.rtts))))

	return sum
}

package report

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/postalsys/metroo-ping/internal/ping"
)

// ColorEnabled reports whether output to f should be styled.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Printer writes ping-style lines.
type Printer struct {
	w     io.Writer
	color bool

	ok    lipgloss.Style
	fail  lipgloss.Style
	title lipgloss.Style
	dim   lipgloss.Style
}

// NewPrinter returns a printer writing to w, styled when color is set.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{
		w:     w,
		color: color,
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		title: lipgloss.NewStyle().Bold(true),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

// Header prints the line announcing the session.
func (p *Printer) Header(host string, target netip.Addr, payloadSize int) {
	line := fmt.Sprintf("PING %s (%s): %d data bytes", host, target, payloadSize)
	fmt.Fprintln(p.w, p.render(p.title, line))
}

// Reply prints one successful exchange.
func (p *Printer) Reply(res *ping.Result) {
	line := fmt.Sprintf("%d bytes from %s: icmp_seq=%d", res.Size, res.Target, res.Seq)
	if res.TTL > 0 {
		line += fmt.Sprintf(" ttl=%d", res.TTL)
	}
	line += " time=" + FormatRTT(res.Elapsed)
	fmt.Fprintln(p.w, p.render(p.ok, line))
}

// Failure prints one failed exchange.
func (p *Printer) Failure(seq uint16, err error) {
	var line string
	if ping.IsTimeout(err) {
		line = fmt.Sprintf("Request timeout for icmp_seq %d", seq)
	} else {
		line = fmt.Sprintf("icmp_seq %d failed: %v", seq, err)
	}
	fmt.Fprintln(p.w, p.render(p.fail, line))
}

// Summary prints the closing statistics block.
func (p *Printer) Summary(s Summary) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.render(p.title, fmt.Sprintf("--- %s ping statistics ---", s.Host)))

	line := fmt.Sprintf("%s packets transmitted, %s received, %s%% packet loss, %s received, time %s",
		humanize.Comma(int64(s.Transmitted)),
		humanize.Comma(int64(s.Received)),
		humanize.FtoaWithDigits(s.LossPercent(), 1),
		humanize.Bytes(uint64(s.BytesReceived)),
		s.Duration.Round(time.Millisecond),
	)
	if s.Errors > 0 {
		line += fmt.Sprintf(", %s errors", humanize.Comma(int64(s.Errors)))
	}
	fmt.Fprintln(p.w, line)

	if s.Received > 0 {
		fmt.Fprintln(p.w, p.render(p.dim, fmt.Sprintf("rtt min/avg/max/stddev = %s/%s/%s/%s ms",
			millis(s.Min), millis(s.Avg), millis(s.Max), millis(s.StdDev))))
	}
}

// FormatRTT formats a round-trip time in milliseconds.
func FormatRTT(d time.Duration) string {
	return millis(d) + " ms"
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d)/float64(time.Millisecond))
}

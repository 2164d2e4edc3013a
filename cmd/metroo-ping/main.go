// Package main provides the CLI entry point for metroo-ping.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/postalsys/metroo-ping/internal/config"
	"github.com/postalsys/metroo-ping/internal/health"
	"github.com/postalsys/metroo-ping/internal/logging"
	"github.com/postalsys/metroo-ping/internal/metrics"
	"github.com/postalsys/metroo-ping/internal/ping"
	"github.com/postalsys/metroo-ping/internal/report"
	"github.com/postalsys/metroo-ping/internal/socket"
)

var (
	// Version is set at build time
	Version = "dev"
)

// Exit codes.
const (
	exitOK      = 0
	exitNoReply = 1
	exitUsage   = 2
)

// exitError carries a process exit code. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	r := &runner{stdout: os.Stdout, color: report.ColorEnabled(os.Stdout)}
	code := execute(ctx, r, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, r *runner, args []string, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	cmd := rootCmd(r)
	cmd.SetArgs(args)
	cmd.SetOut(r.stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "metroo-ping:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "metroo-ping:", err)
	return exitUsage
}

// flags holds command-line values; only flags the user set override the
// configuration file.
type flags struct {
	configPath  string
	count       int
	interval    time.Duration
	timeout     time.Duration
	ttl         int
	size        int
	socketKind  string
	backend     string
	iface       string
	identifier  uint16
	hasID       bool
	sequence    uint16
	ipv4        bool
	ipv6        bool
	metricsAddr string
	logLevel    string
	logFormat   string
}

// runner executes a ping session. dialer is nil outside tests.
type runner struct {
	stdout io.Writer
	dialer ping.Dialer
	color  bool
}

func rootCmd(r *runner) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "metroo-ping [flags] <host>",
		Short: "metroo-ping - ICMP echo over raw or unprivileged sockets",
		Long: `metroo-ping sends ICMP echo requests to a single host and reports
the round-trip time of each matching reply.

On Linux it runs without privileges over datagram ICMP sockets when the
net.ipv4.ping_group_range sysctl admits the caller's group. Raw sockets
need root or CAP_NET_RAW.`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			return r.run(cmd.Context(), cfg, &f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "C", "", "Path to YAML configuration file")
	fl.IntVarP(&f.count, "count", "c", 4, "Number of echo requests to send (0 runs until interrupted)")
	fl.DurationVarP(&f.interval, "interval", "i", time.Second, "Wait between echo requests")
	fl.DurationVarP(&f.timeout, "timeout", "W", ping.DefaultTimeout, "Time to wait for each reply")
	fl.IntVarP(&f.ttl, "ttl", "t", ping.DefaultTTL, "IPv4 TTL or IPv6 hop limit")
	fl.IntVarP(&f.size, "size", "s", ping.DefaultPayloadSize, "Payload size in bytes")
	fl.StringVar(&f.socketKind, "socket", "auto", "Socket kind: raw, dgram, or auto")
	fl.StringVar(&f.backend, "backend", "auto", "Socket backend: system, xnet, or auto")
	fl.StringVarP(&f.iface, "interface", "I", "", "Bind to network interface (Linux only)")
	fl.Uint16Var(&f.identifier, "identifier", 0, "Echo identifier (random when unset; the xnet backend on Linux uses a kernel-chosen value)")
	fl.Uint16Var(&f.sequence, "sequence", ping.DefaultSequence, "First echo sequence number")
	fl.BoolVarP(&f.ipv4, "ipv4", "4", false, "Resolve the host to IPv4 only")
	fl.BoolVarP(&f.ipv6, "ipv6", "6", false, "Resolve the host to IPv6 only")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics and /healthz on this address")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	cmd.MarkFlagsMutuallyExclusive("ipv4", "ipv6")

	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "metroo-ping %s (%s/%s, %s)\n",
				Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}

// loadConfig reads the optional config file and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fl := cmd.Flags()
	f.hasID = fl.Changed("identifier")
	if fl.Changed("count") {
		cfg.Ping.Count = f.count
	}
	if fl.Changed("interval") {
		cfg.Ping.Interval = f.interval
	}
	if fl.Changed("timeout") {
		cfg.Ping.Timeout = f.timeout
	}
	if fl.Changed("ttl") {
		cfg.Ping.TTL = f.ttl
	}
	if fl.Changed("size") {
		cfg.Ping.PayloadSize = f.size
	}
	if fl.Changed("socket") {
		cfg.Ping.SocketKind = f.socketKind
	}
	if fl.Changed("backend") {
		cfg.Ping.Backend = f.backend
	}
	if fl.Changed("interface") {
		cfg.Ping.Interface = f.iface
	}
	if fl.Changed("metrics-addr") {
		cfg.Metrics.Enabled = f.metricsAddr != ""
		cfg.Metrics.Address = f.metricsAddr
	}
	if fl.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fl.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve picks the address to ping. IPv4 is preferred unless v6 is set.
func resolve(ctx context.Context, host string, v4, v6 bool) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		switch {
		case v4 && !addr.Unmap().Is4():
			return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", host)
		case v6 && addr.Unmap().Is4():
			return netip.Addr{}, fmt.Errorf("%s is not an IPv6 address", host)
		}
		return addr, nil
	}

	network := "ip"
	switch {
	case v4:
		network = "ip4"
	case v6:
		network = "ip6"
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, network, host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	return addrs[0], nil
}

func (r *runner) run(ctx context.Context, cfg *config.Config, f *flags, host string) error {
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	addr, err := resolve(ctx, host, f.ipv4, f.ipv6)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	id := f.identifier
	if !f.hasID {
		id = ping.CryptoSource{}.Uint16()
	}
	payload := make([]byte, cfg.Ping.PayloadSize)
	if _, err := (ping.CryptoSource{}).Read(payload); err != nil {
		return &exitError{code: exitUsage, err: fmt.Errorf("generate payload: %w", err)}
	}

	m := metrics.Default()
	session := report.NewSession(host, addr)
	defer session.Finish()

	if cfg.Metrics.Enabled {
		srv := health.NewServer(health.ServerConfig{
			Address:      cfg.Metrics.Address,
			ReadTimeout:  cfg.Metrics.ReadTimeout,
			WriteTimeout: cfg.Metrics.WriteTimeout,
		}, session)
		if err := srv.Start(); err != nil {
			return &exitError{code: exitUsage, err: fmt.Errorf("start metrics server: %w", err)}
		}
		defer srv.Stop()
		logger.Info("metrics server listening", "address", srv.Address().String())
	}

	printer := report.NewPrinter(r.stdout, r.color)
	printer.Header(host, addr, len(payload))

	logger.Debug("starting session",
		logging.KeyTarget, addr.String(),
		logging.KeyIdentifier, id,
		logging.KeySocketKind, cfg.Ping.Kind().String(),
		"count", cfg.Ping.Count)

	fatal := r.loop(ctx, cfg, addr, id, f.sequence, payload, logger, m, session, printer)

	session.Finish()
	sum := session.Summary()
	printer.Summary(sum)

	if fatal != nil {
		return &exitError{code: exitNoReply, err: fatal}
	}
	if sum.Transmitted == 0 || sum.Received < sum.Transmitted {
		return &exitError{code: exitNoReply}
	}
	return nil
}

// loop runs the exchanges. It returns a non-nil error only when the socket
// cannot be opened, since every later exchange would fail the same way.
func (r *runner) loop(ctx context.Context, cfg *config.Config, addr netip.Addr, id, firstSeq uint16,
	payload []byte, logger *slog.Logger, m *metrics.Metrics, session *report.Session, printer *report.Printer) error {
	limit := rate.Inf
	if cfg.Ping.Interval > 0 {
		limit = rate.Every(cfg.Ping.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	kind := cfg.Ping.Kind()
	auto := cfg.Ping.AutoKind()

	send := func(seq uint16, kind socket.Kind) (*ping.Result, error) {
		b := ping.New(addr).
			Timeout(cfg.Ping.Timeout).
			TTL(cfg.Ping.TTL).
			Identifier(id).
			Sequence(seq).
			Payload(payload).
			SocketKind(kind).
			Backend(cfg.Ping.SocketBackend()).
			Interface(cfg.Ping.Interface).
			Logger(logger).
			Metrics(m)
		if r.dialer != nil {
			b.Dialer(r.dialer)
		}
		return b.Send(ctx)
	}

	for i := 0; cfg.Ping.Count == 0 || i < cfg.Ping.Count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		seq := firstSeq + uint16(i)
		res, err := send(seq, kind)
		if auto && kind == socket.KindDatagram && openDenied(err) {
			logger.Debug("datagram ICMP socket refused, falling back to raw",
				logging.KeySocketKind, socket.KindRaw.String(),
				logging.KeyError, err)
			kind = socket.KindRaw
			res, err = send(seq, kind)
		}
		auto = false

		if err != nil && ctx.Err() != nil {
			return nil
		}
		if err != nil {
			printer.Failure(seq, err)
			var ioErr *ping.IOError
			if errors.As(err, &ioErr) && ioErr.Op == "open" {
				return fmt.Errorf("%w (raw sockets need CAP_NET_RAW; datagram sockets need net.ipv4.ping_group_range)", err)
			}
			session.Record(res, err)
			continue
		}
		session.Record(res, nil)
		printer.Reply(res)
	}
	return nil
}

// openDenied reports whether err is a permission failure opening the socket.
func openDenied(err error) bool {
	var ioErr *ping.IOError
	return errors.As(err, &ioErr) && ioErr.Op == "open" && errors.Is(err, os.ErrPermission)
}

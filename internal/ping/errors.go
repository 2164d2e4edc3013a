package ping

import (
	"errors"
	"os"

	"github.com/postalsys/metroo-ping/internal/packet"
)

// Sentinel errors. Callers test for them with errors.Is.
var (
	// ErrInvalidProtocol is returned when the target is neither IPv4 nor IPv6.
	ErrInvalidProtocol = packet.ErrInvalidProtocol

	// ErrInternal is returned for invalid options and encode failures.
	ErrInternal = packet.ErrInternal

	// ErrDecodeV4 is returned when a received IPv4 header is malformed.
	ErrDecodeV4 = packet.ErrDecodeV4

	// ErrDecodeEchoReply marks an undecodable reply. The exchange engine skips
	// such datagrams and never returns this error.
	ErrDecodeEchoReply = packet.ErrDecodeEchoReply

	// ErrTimeout is wrapped in an *IOError when the time budget runs out.
	ErrTimeout = errors.New("timed out waiting for echo reply")
)

// IOError reports a transport failure during an exchange.
type IOError struct {
	// Op is the failed step: open, set ttl, send, or receive.
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "ping " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was the time budget running out.
func (e *IOError) Timeout() bool {
	return isTimeout(e.Err)
}

// IsTimeout reports whether err is an *IOError caused by a timeout.
func IsTimeout(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr) && ioErr.Timeout()
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

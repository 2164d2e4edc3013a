//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package socket

import "fmt"

const systemSupported = false

func openSystem(family Family, kind Kind, opts Options) (Conn, error) {
	return nil, fmt.Errorf("system socket backend: %w", ErrUnsupported)
}

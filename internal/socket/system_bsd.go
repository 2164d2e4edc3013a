//go:build darwin || freebsd || netbsd || openbsd

package socket

import "runtime"

// Darwin datagram ICMP sockets keep the IPv4 header unless IP_STRIPHDR is set.
var datagramIncludesIPv4Header = runtime.GOOS == "darwin"

func bindToDevice(fd int, iface string) error {
	return ErrUnsupported
}

func bindIdentifier(fd int, family Family, id uint16) (uint16, bool, error) {
	return 0, false, nil
}

package socket

import (
	"os"

	"golang.org/x/sys/unix"
)

const datagramIncludesIPv4Header = false

func bindToDevice(fd int, iface string) error {
	return os.NewSyscallError("setsockopt", unix.BindToDevice(fd, iface))
}

// bindIdentifier binds the datagram socket's local port, which Linux uses as
// the echo identifier. Port 0 lets the kernel choose; the chosen value is
// read back so callers can match replies against it.
func bindIdentifier(fd int, family Family, id uint16) (uint16, bool, error) {
	var sa unix.Sockaddr = &unix.SockaddrInet4{Port: int(id)}
	if family == FamilyIPv6 {
		sa = &unix.SockaddrInet6{Port: int(id)}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return 0, false, os.NewSyscallError("bind", err)
	}

	local, err := unix.Getsockname(fd)
	if err != nil {
		return 0, false, os.NewSyscallError("getsockname", err)
	}
	switch a := local.(type) {
	case *unix.SockaddrInet4:
		return uint16(a.Port), true, nil
	case *unix.SockaddrInet6:
		return uint16(a.Port), true, nil
	}
	return id, true, nil
}

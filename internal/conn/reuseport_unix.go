//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package conn

import "golang.org/x/sys/unix"

// ReusePortSupported reports whether ListenTCP can set SO_REUSEPORT.
const ReusePortSupported = true

func setReusePort(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}

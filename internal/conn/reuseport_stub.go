//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package conn

import "errors"

// ReusePortSupported reports whether ListenTCP can set SO_REUSEPORT.
const ReusePortSupported = false

func setReusePort(_ uintptr) error {
	return errors.New("SO_REUSEPORT unsupported")
}

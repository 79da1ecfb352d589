package conn

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// ListenTCP listens on the given network/address and returns a net.Listener
// that applies keepAliveConfig to accepted TCP connections.
//
// If reusePort is set, SO_REUSEPORT is enabled on the listening socket so
// several processes can share addr.
func ListenTCP(network, addr string, keepAliveConfig net.KeepAliveConfig, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		if !ReusePortSupported {
			return nil, fmt.Errorf("listen %s %s: SO_REUSEPORT is not supported on this platform", network, addr)
		}
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = setReusePort(fd)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		}
	}

	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	return &KeepAliveListener{Listener: ln, KeepAliveConfig: keepAliveConfig}, nil
}

// KeepAliveListener wraps a net.Listener and applies KeepAliveConfig to any
// accepted *net.TCPConn.
type KeepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

// Accept accepts the next connection and applies KeepAliveConfig if the
// connection is a *net.TCPConn.
func (l *KeepAliveListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	ApplyKeepAlive(c, l.KeepAliveConfig)
	return c, nil
}

// ApplyKeepAlive sets ka on c if it is a TCP connection.
func ApplyKeepAlive(c net.Conn, ka net.KeepAliveConfig) {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(ka)
	}
}

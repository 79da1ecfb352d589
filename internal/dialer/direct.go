package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/handflip/internal/proxyerr"
)

type directDialer struct {
	cfg Config
}

// NewDirectDialer returns a Dialer that connects straight to the target.
func NewDirectDialer(cfg Config) Dialer {
	return &directDialer{cfg: cfg}
}

func (f *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dd := net.Dialer{Timeout: f.cfg.DialTimeout, KeepAliveConfig: f.cfg.KeepAlive}

	conn, err := dd.DialContext(ctx, network, address)
	if err != nil {
		return nil, proxyerr.IO(fmt.Sprintf("dial %s %s", network, address), err)
	}

	return conn, nil
}

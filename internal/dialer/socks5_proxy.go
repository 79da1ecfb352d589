package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/handflip/internal/socks5"
)

// SOCKS5ProxyDialer dials outbound TCP connections through a SOCKS5 server
// using the CONNECT command without authentication.
type SOCKS5ProxyDialer struct {
	client *socks5.Client
}

// NewSOCKS5ProxyDialer constructs a dialer for the SOCKS5 server at proxyAddr.
func NewSOCKS5ProxyDialer(cfg Config, proxyAddr string) *SOCKS5ProxyDialer {
	direct := NewDirectDialer(cfg)
	return &SOCKS5ProxyDialer{
		client: socks5.NewClient(socks5.Config{NegotiationTimeout: cfg.NegotiationTimeout}, proxyAddr, direct, nil),
	}
}

// ProxyAddr returns the SOCKS5 server host:port.
func (f *SOCKS5ProxyDialer) ProxyAddr() string {
	return f.client.ProxyAddr()
}

// DialContext establishes a TCP connection to address via the SOCKS5 server.
// Errors keep their kind from the SOCKS5 client.
func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c, err := f.client.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, err)
	}
	return c, nil
}

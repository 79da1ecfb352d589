package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// New parses upstream and constructs the appropriate outbound Dialer.
//
// Supported forms:
//   - "" or direct://
//   - host:port (a SOCKS5 server)
//   - socks5://host[:port]
//
// A socks5 URL missing a port gets 1080.
func New(cfg Config, upstream string) (Dialer, error) {
	if upstream == "" {
		return NewDirectDialer(cfg), nil
	}
	if !strings.Contains(upstream, "://") {
		if _, _, err := net.SplitHostPort(upstream); err != nil {
			return nil, fmt.Errorf("invalid socks5 address: %w", err)
		}
		return NewSOCKS5ProxyDialer(cfg, upstream), nil
	}

	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("invalid URL: path should be empty")
	}

	switch u.Scheme {
	case "direct":
		return NewDirectDialer(cfg), nil
	case "socks5":
		if u.User != nil {
			return nil, errors.New("socks5 authentication is not supported")
		}
		host := u.Hostname()
		if host == "" {
			return nil, errors.New("invalid url: missing host")
		}
		port := u.Port()
		if port == "" {
			port = "1080"
		}
		return NewSOCKS5ProxyDialer(cfg, net.JoinHostPort(host, port)), nil
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
}

// Describe names the transport d uses, for logging and metric labels.
func Describe(d Dialer) string {
	switch d := d.(type) {
	case *directDialer:
		return "direct"
	case *SOCKS5ProxyDialer:
		return "socks5://" + d.ProxyAddr()
	default:
		return fmt.Sprintf("%T", d)
	}
}

package socks5

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/handflip/internal/proxyerr"
)

// ContextDialer opens the TCP connection to the SOCKS5 server.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config tunes a Client. Zero values leave the handshake unbounded.
type Config struct {
	NegotiationTimeout time.Duration
}

// Client connects to targets through a single SOCKS5 server.
//
// A Client holds no per-connection state and is safe for concurrent use.
type Client struct {
	cfg       Config
	proxyAddr string
	direct    ContextDialer
	resolver  *Resolver
}

// NewClient returns a Client for the SOCKS5 server at proxyAddr. direct is
// used to reach the server; resolver maps target hosts to IPv4 and may be nil.
func NewClient(cfg Config, proxyAddr string, direct ContextDialer, resolver *Resolver) *Client {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Client{cfg: cfg, proxyAddr: proxyAddr, direct: direct, resolver: resolver}
}

// ProxyAddr returns the SOCKS5 server address.
func (c *Client) ProxyAddr() string {
	return c.proxyAddr
}

// DialContext resolves address to IPv4, connects to the SOCKS5 server and
// performs the CONNECT handshake. The returned conn carries target traffic.
//
// Any failure closes the server connection; nothing is reused.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, proxyerr.BadRequest("socks5 dial "+address, "unsupported network "+network)
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, proxyerr.BadRequest("socks5 dial", err.Error())
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, proxyerr.Parse("socks5 target port", err)
	}

	logger := zerolog.Ctx(ctx)

	ip, err := c.resolver.LookupIPv4(ctx, host)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("host", host).Stringer("ip", ip).Msg("socks5: resolved target")

	conn, err := c.direct.DialContext(ctx, "tcp", c.proxyAddr)
	if err != nil {
		return nil, proxyerr.IO("socks5 connect "+c.proxyAddr, err)
	}
	logger.Debug().Str("proxy", c.proxyAddr).Msg("socks5: connected to proxy")

	// Close conn if ctx is canceled during the handshake.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	if c.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.NegotiationTimeout))
	}

	rep, err := Handshake(ctx, conn, netip.AddrPortFrom(ip, uint16(port)))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !stop() {
		// ctx was canceled after the handshake and conn is already closed.
		return nil, proxyerr.IO("socks5 handshake", ctx.Err())
	}

	if c.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	logger.Debug().Str("bind", rep.Bind()).Msg("socks5: connect succeeded")
	return conn, nil
}

// Handshake runs method negotiation, the CONNECT request and reply parsing
// on rw, which must already be connected to the SOCKS5 server.
func Handshake(ctx context.Context, rw io.ReadWriter, target netip.AddrPort) (*Reply, error) {
	logger := zerolog.Ctx(ctx)

	method, err := Negotiate(rw)
	if err != nil {
		return nil, err
	}
	// The server's choice is not enforced; only "no authentication" is ever
	// offered.
	if method != txsocks5.MethodNone {
		logger.Debug().Uint8("method", method).Msg("socks5: server selected unexpected method")
	}

	if err := WriteConnectRequest(rw, target); err != nil {
		return nil, err
	}

	rep, err := ReadReply(rw)
	if rep != nil && rep.Version != txsocks5.Ver {
		logger.Debug().Uint8("version", rep.Version).Msg("socks5: unexpected reply version")
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// Negotiate offers the "no authentication" method and returns the method
// byte selected by the server.
func Negotiate(rw io.ReadWriter) (byte, error) {
	if _, err := txsocks5.NewNegotiationRequest([]byte{txsocks5.MethodNone}).WriteTo(rw); err != nil {
		return 0, proxyerr.IO("write negotiation", err)
	}

	var buf [2]byte
	if _, err := io.ReadFull(rw, buf[:]); err != nil {
		return 0, proxyerr.IO("read negotiation", err)
	}
	return buf[1], nil
}

// WriteConnectRequest writes a CONNECT request for an IPv4 target.
func WriteConnectRequest(w io.Writer, target netip.AddrPort) error {
	ip := target.Addr().Unmap()
	if !ip.Is4() {
		return proxyerr.BadRequest("write request", "unknown host")
	}

	ip4 := ip.As4()
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], target.Port())

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, txsocks5.ATYPIPv4, ip4[:], port[:]).WriteTo(w); err != nil {
		return proxyerr.IO("write request", err)
	}
	return nil
}

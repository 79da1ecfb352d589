package testutil

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/txthinking/socks5"
)

// StartSOCKS5Server starts a minimal no-auth SOCKS5 server on loopback that
// serves CONNECT requests until ctx is done. Requests handled are sent on the
// returned channel, which is buffered and never closed.
func StartSOCKS5Server(ctx context.Context, t *testing.T) (net.Listener, <-chan *socks5.Request) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	context.AfterFunc(ctx, func() { _ = ln.Close() })

	reqs := make(chan *socks5.Request, 16)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_ = ServeSOCKS5Connect(ctx, c, reqs)
			}()
		}
	}()

	return ln, reqs
}

// ServeSOCKS5Connect handles one no-auth CONNECT on c and relays until either
// side closes.
func ServeSOCKS5Connect(ctx context.Context, c net.Conn, seen chan<- *socks5.Request) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
		return err
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return err
	}
	if seen != nil {
		select {
		case seen <- req:
		default:
		}
	}
	if req.Cmd != socks5.CmdConnect {
		_, _ = socks5.NewReply(socks5.RepCommandNotSupported, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = socks5.NewReply(socks5.RepConnectionRefused, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}
	defer dst.Close()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	go func() {
		_, _ = io.Copy(dst, c)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)

	return nil
}

package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/handflip/internal/proxyerr"
)

var statusText = map[byte]string{
	txsocks5.RepServerFailure:       "general socks server failure",
	txsocks5.RepNotAllowed:          "connection not allowed by ruleset",
	txsocks5.RepNetworkUnreachable:  "network unreachable",
	txsocks5.RepHostUnreachable:     "host unreachable",
	txsocks5.RepConnectionRefused:   "connection refused",
	txsocks5.RepTTLExpired:          "ttl expired",
	txsocks5.RepCommandNotSupported: "command not supported",
	txsocks5.RepAddressNotSupported: "address type not supported",
}

// StatusText returns the message for a reply status. Unknown codes are named
// by value.
func StatusText(status byte) string {
	if status == txsocks5.RepSuccess {
		return "succeeded"
	}
	if s, ok := statusText[status]; ok {
		return s
	}
	return fmt.Sprintf("unknown socks server error type %d", status)
}

// Addr is a bound address from a server reply.
type Addr struct {
	Type byte
	Raw  []byte
}

func (a Addr) String() string {
	switch a.Type {
	case txsocks5.ATYPIPv4, txsocks5.ATYPIPv6:
		return net.IP(a.Raw).String()
	case txsocks5.ATYPDomain:
		return string(a.Raw)
	default:
		return ""
	}
}

// Reply is a parsed CONNECT reply. Only Status decides success; the bound
// address is informational.
type Reply struct {
	Version  byte
	Status   byte
	BindAddr Addr
	BindPort uint16
}

// Bind returns the bound address as host:port.
func (r *Reply) Bind() string {
	return net.JoinHostPort(r.BindAddr.String(), strconv.Itoa(int(r.BindPort)))
}

// ReadReply reads a CONNECT reply from r.
//
// A non-success status is returned as a server error before the bound address
// is read; the connection is unusable at that point. On success the bound
// address and port are drained so the stream is positioned at the first byte
// of relayed data.
func ReadReply(r io.Reader) (*Reply, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, proxyerr.IO("read reply", err)
	}
	rep := &Reply{Version: hdr[0], Status: hdr[1]}
	if rep.Status != txsocks5.RepSuccess {
		return rep, proxyerr.Server("reply", StatusText(rep.Status))
	}

	// RSV, ATYP
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return rep, proxyerr.IO("read reply address type", err)
	}
	rep.BindAddr.Type = hdr[1]

	var n int
	switch rep.BindAddr.Type {
	case txsocks5.ATYPIPv4:
		n = net.IPv4len
	case txsocks5.ATYPIPv6:
		n = net.IPv6len
	case txsocks5.ATYPDomain:
		var l [1]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return rep, proxyerr.IO("read reply domain length", err)
		}
		n = int(l[0])
	default:
		return rep, proxyerr.Server("reply", "unsupported address type")
	}

	rep.BindAddr.Raw = make([]byte, n)
	if _, err := io.ReadFull(r, rep.BindAddr.Raw); err != nil {
		return rep, proxyerr.IO("read reply address", err)
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return rep, proxyerr.IO("read reply port", err)
	}
	rep.BindPort = binary.BigEndian.Uint16(port[:])

	return rep, nil
}

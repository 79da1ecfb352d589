// Package socks5 implements the client side of the SOCKS5 CONNECT handshake
// used by handflip to reach upstream targets through a SOCKS5 proxy.
//
// The handshake is deliberately narrow: a single "no authentication" method
// is offered, the CONNECT request always carries an IPv4 destination, and the
// server reply is parsed field by field so each failure status maps to a
// fixed message. Protocol constants and request encoding come from
// github.com/txthinking/socks5.
package socks5

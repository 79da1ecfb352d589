// Package proxy implements the HTTP forward proxy.
//
// Each accepted connection carries one decoded request. CONNECT requests are
// answered with a tunnel acknowledgement and relayed byte for byte. Other
// requests are forwarded upstream, either as a single exchange or, when the
// client asks for Proxy-Connection: Keep-Alive, by relaying the rest of the
// connection after the first request.
package proxy

// Package dialer provides the outbound transports used by handflip.
//
// A Dialer is chosen once at startup and shared by every proxied connection.
// There are exactly two: a direct TCP dialer and a dialer that reaches
// targets through a single SOCKS5 server.
package dialer

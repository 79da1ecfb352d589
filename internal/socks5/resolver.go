package socks5

import (
	"context"
	"net"
	"net/netip"

	"golang.org/x/sync/singleflight"

	"github.com/die-net/handflip/internal/proxyerr"
)

// LookupFunc resolves host to a set of addresses.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver maps a target host to the IPv4 address placed in a CONNECT
// request. Concurrent lookups of the same host share one query.
type Resolver struct {
	lookup LookupFunc
	sf     singleflight.Group
}

// NewResolver returns a Resolver using lookup, or net.DefaultResolver if
// lookup is nil.
func NewResolver(lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupNetIP
	}
	return &Resolver{lookup: lookup}
}

// LookupIPv4 returns the first IPv4 address for host.
//
// Lookup failures are I/O errors. A host with no IPv4 address, including an
// IPv6 literal, is a bad request: the CONNECT request only encodes IPv4.
func (r *Resolver) LookupIPv4(ctx context.Context, host string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		if ip = ip.Unmap(); ip.Is4() {
			return ip, nil
		}
		return netip.Addr{}, proxyerr.BadRequest("resolve "+host, "unknown host")
	}

	// The shared lookup outlives any single caller so other waiters still
	// get its result.
	ch := r.sf.DoChan(host, func() (any, error) {
		return r.lookup(context.WithoutCancel(ctx), "ip", host)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return netip.Addr{}, proxyerr.IO("resolve "+host, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return netip.Addr{}, proxyerr.IO("resolve "+host, res.Err)
	}

	for _, ip := range res.Val.([]netip.Addr) {
		if ip = ip.Unmap(); ip.Is4() {
			return ip, nil
		}
	}
	return netip.Addr{}, proxyerr.BadRequest("resolve "+host, "unknown host")
}

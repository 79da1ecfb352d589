package proxy

import (
	"github.com/die-net/handflip/internal/dialer"
	"github.com/die-net/handflip/internal/metrics"
)

type Config struct {
	// Dialer opens upstream connections, directly or through SOCKS5.
	Dialer dialer.Dialer

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

package dialer

import (
	"net"
	"time"
)

// Config tunes outbound dialing. Zero durations mean no timeout.
type Config struct {
	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig
}

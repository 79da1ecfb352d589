package conn

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ParseTCPKeepAlive parses on|off|keepidle:keepintvl:keepcnt into a
// net.KeepAliveConfig. Idle and interval are in seconds.
func ParseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	var fields [3]int
	parts := strings.Split(s, ":")
	if len(parts) != len(fields) {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	for i, name := range []string{"keepidle", "keepintvl", "keepcnt"} {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return net.KeepAliveConfig{}, fmt.Errorf("%s: %w", name, err)
		}
		if n <= 0 {
			return net.KeepAliveConfig{}, fmt.Errorf("%s: must be > 0, got %d", name, n)
		}
		fields[i] = n
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(fields[0]) * time.Second,
		Interval: time.Duration(fields[1]) * time.Second,
		Count:    fields[2],
	}, nil
}

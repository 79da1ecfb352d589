package proxy

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/die-net/handflip/internal/proxyerr"
)

// Target is the upstream host and port a request is addressed to.
type Target struct {
	Host string
	Port uint16
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// TargetFromRequest derives the upstream target of req following RFC 7230
// section 5.3.
//
// The authority comes from the request URL, or from the Host header when the
// request-target is origin-form. An explicit port wins; otherwise the port is
// 443 for https URLs and 80 for everything else, including CONNECT
// authorities without a port.
func TargetFromRequest(req *http.Request) (Target, error) {
	authority := req.URL.Host
	if authority == "" {
		authority = req.Host
	}

	host, port, err := net.SplitHostPort(authority)
	if err != nil {
		host = strings.TrimSuffix(strings.TrimPrefix(authority, "["), "]")
		port = ""
	}
	if host == "" {
		return Target{}, proxyerr.BadRequest("target", "missing host in url")
	}

	if port != "" {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return Target{}, proxyerr.Parse("target port", err)
		}
		return Target{Host: host, Port: uint16(p)}, nil
	}

	if strings.EqualFold(req.URL.Scheme, "https") {
		return Target{Host: host, Port: 443}, nil
	}
	return Target{Host: host, Port: 80}, nil
}

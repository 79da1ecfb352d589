package proxy

import (
	"bufio"
	"net/http"
	"strings"
	"testing"

	"github.com/die-net/handflip/internal/proxyerr"
)

func readRequest(t *testing.T, raw string) *http.Request {
	t.Helper()

	req, err := http.ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("ReadRequest(%q): %v", raw, err)
	}
	return req
}

func TestTargetFromRequest(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "absolute http", raw: "GET http://example.com/a HTTP/1.1\r\nHost: example.com\r\n\r\n", want: "example.com:80"},
		{name: "absolute https", raw: "GET https://example.com/a HTTP/1.1\r\nHost: example.com\r\n\r\n", want: "example.com:443"},
		{name: "explicit port", raw: "GET http://example.com:8080/ HTTP/1.1\r\nHost: example.com:8080\r\n\r\n", want: "example.com:8080"},
		{name: "url wins over host header", raw: "GET http://a.test:81/ HTTP/1.1\r\nHost: b.test:82\r\n\r\n", want: "a.test:81"},
		{name: "connect", raw: "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n", want: "example.com:443"},
		{name: "connect without port", raw: "CONNECT example.com HTTP/1.1\r\nHost: example.com\r\n\r\n", want: "example.com:80"},
		{name: "origin form", raw: "GET /x HTTP/1.1\r\nHost: origin.test:81\r\n\r\n", want: "origin.test:81"},
		{name: "origin form default port", raw: "GET /x HTTP/1.1\r\nHost: origin.test\r\n\r\n", want: "origin.test:80"},
		{name: "ipv6 literal", raw: "GET http://[::1]:8080/ HTTP/1.1\r\nHost: [::1]:8080\r\n\r\n", want: "[::1]:8080"},
		{name: "ipv6 literal default port", raw: "GET http://[::1]/ HTTP/1.1\r\nHost: [::1]\r\n\r\n", want: "[::1]:80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := TargetFromRequest(readRequest(t, tt.raw))
			if err != nil {
				t.Fatalf("TargetFromRequest() error = %v", err)
			}
			if got := target.String(); got != tt.want {
				t.Fatalf("target=%q want %q", got, tt.want)
			}
		})
	}
}

func TestTargetFromRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind proxyerr.Kind
	}{
		{name: "no host", raw: "GET / HTTP/1.0\r\n\r\n", kind: proxyerr.KindBadRequest},
		{name: "empty host", raw: "GET / HTTP/1.0\r\nHost: :80\r\n\r\n", kind: proxyerr.KindBadRequest},
		{name: "port not a number", raw: "GET / HTTP/1.1\r\nHost: origin.test:abc\r\n\r\n", kind: proxyerr.KindParse},
		{name: "port out of range", raw: "GET / HTTP/1.1\r\nHost: origin.test:99999\r\n\r\n", kind: proxyerr.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TargetFromRequest(readRequest(t, tt.raw))
			if !proxyerr.Is(err, tt.kind) {
				t.Fatalf("err=%v kind=%v want %v", err, proxyerr.KindOf(err), tt.kind)
			}
		})
	}
}

package conn

import (
	"net"
	"testing"
	"time"
)

func TestParseTCPKeepAlive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    net.KeepAliveConfig
		wantErr bool
	}{
		{in: "on", want: net.KeepAliveConfig{Enable: true}},
		{in: " OFF ", want: net.KeepAliveConfig{}},
		{in: "45:15:3", want: net.KeepAliveConfig{Enable: true, Idle: 45 * time.Second, Interval: 15 * time.Second, Count: 3}},
		{in: "", wantErr: true},
		{in: "1:2", wantErr: true},
		{in: "0:1:1", wantErr: true},
		{in: "1:x:1", wantErr: true},
		{in: "1:1:-2", wantErr: true},
		{in: "-1:1:1", wantErr: true},
		{in: "1:0:1", wantErr: true},
		{in: "1:1:0", wantErr: true},
		{in: "1:1:x", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
		{in: " 30 : 10 : 5 ", want: net.KeepAliveConfig{Enable: true, Idle: 30 * time.Second, Interval: 10 * time.Second, Count: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTCPKeepAlive(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestListenTCPAccept(t *testing.T) {
	ln, err := ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: true}, false)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, ok := ln.(*KeepAliveListener); !ok {
		t.Fatalf("got %T want *KeepAliveListener", ln)
	}

	done := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
		done <- err
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestListenTCPReusePort(t *testing.T) {
	if !ReusePortSupported {
		t.Skip("SO_REUSEPORT not supported")
	}

	ln1, err := ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{}, true)
	if err != nil {
		t.Fatal(err)
	}
	defer ln1.Close()

	ln2, err := ListenTCP("tcp", ln1.Addr().String(), net.KeepAliveConfig{}, true)
	if err != nil {
		t.Fatalf("second listener on %s: %v", ln1.Addr(), err)
	}
	_ = ln2.Close()
}

func TestListenTCPBindFailure(t *testing.T) {
	ln, err := ListenTCP("tcp", "127.0.0.1:0", net.KeepAliveConfig{}, false)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, err := ListenTCP("tcp", ln.Addr().String(), net.KeepAliveConfig{}, false); err == nil {
		t.Fatal("expected bind failure on an address already in use")
	}
}

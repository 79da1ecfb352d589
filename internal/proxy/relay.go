package proxy

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"

	"github.com/die-net/handflip/internal/metrics"
	"github.com/die-net/handflip/internal/proxyerr"
)

const relayBufferSize = 32 * 1024

// relayBuffers holds *[]byte so Put does not allocate.
var relayBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, relayBufferSize)
		return &b
	},
}

// Direction names one half of a relay.
type Direction uint8

const (
	ClientToUpstream Direction = iota
	UpstreamToClient
)

func (d Direction) String() string {
	if d == ClientToUpstream {
		return metrics.DirectionClientToUpstream
	}
	return metrics.DirectionUpstreamToClient
}

// RelayResult reports the copy that ended a relay.
type RelayResult struct {
	Direction Direction
	Bytes     int64
}

// Relay copies bytes between client and upstream in both directions until
// either copy ends, then closes both conns. The other copy is not waited for;
// closing its conns unblocks it.
//
// The returned error is non-nil only if the first copy to end failed with an
// I/O error, or if ctx was canceled.
func Relay(ctx context.Context, client, upstream net.Conn) (RelayResult, error) {
	type copyResult struct {
		dir Direction
		n   int64
		err error
	}
	done := make(chan copyResult, 2)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}

	// If the context is canceled, close both sides to unblock the copies.
	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	go func() {
		n, err := copyBuffer(upstream, client)
		done <- copyResult{dir: ClientToUpstream, n: n, err: err}
	}()
	go func() {
		n, err := copyBuffer(client, upstream)
		done <- copyResult{dir: UpstreamToClient, n: n, err: err}
	}()

	first := <-done
	closeBoth()

	res := RelayResult{Direction: first.dir, Bytes: first.n}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if first.err != nil {
		return res, proxyerr.IO("relay "+first.dir.String(), first.err)
	}
	return res, nil
}

func copyBuffer(dst io.Writer, src io.Reader) (int64, error) {
	buf := relayBuffers.Get().(*[]byte)
	defer relayBuffers.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// bufferedConn reads through r so bytes buffered while decoding a request
// are relayed before anything else read from the conn.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

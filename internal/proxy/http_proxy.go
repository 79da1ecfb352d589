package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/handflip/internal/dialer"
	"github.com/die-net/handflip/internal/metrics"
	"github.com/die-net/handflip/internal/proxyerr"
)

const connectEstablished = "HTTP/1.1 200 Connection established\r\n\r\n"

// HTTPProxyServer serves an HTTP forward proxy.
//
// It supports:
// - HTTP CONNECT tunneling (acknowledge, then bidirectional relay)
// - non-CONNECT forwarding, as one exchange or as a relay on keep-alive
type HTTPProxyServer struct {
	ctx     context.Context
	cancel  context.CancelFunc
	dialer  dialer.Dialer
	metrics *metrics.Metrics

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
}

// NewHTTPProxyServer constructs an HTTP proxy server with the given config.
//
// Connection loggers derive from zerolog.Ctx(ctx). Canceling ctx, or calling
// Close, aborts every connection in flight.
func NewHTTPProxyServer(ctx context.Context, cfg Config) *HTTPProxyServer {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &HTTPProxyServer{
		ctx:       ctx,
		cancel:    cancel,
		dialer:    cfg.Dialer,
		metrics:   cfg.Metrics,
		listeners: make(map[net.Listener]struct{}),
	}
}

// Serve accepts connections on ln and handles each one in its own goroutine.
//
// Accept errors are logged and retried with backoff. Serve returns nil once
// ln is closed or the server is shut down.
func (s *HTTPProxyServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.listeners, ln)
		s.mu.Unlock()
	}()

	logger := zerolog.Ctx(s.ctx)

	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, time.Second)
			}
			logger.Error().Err(err).Dur("retry_in", delay).Msg("accept failed")
			s.metrics.Error(proxyerr.KindIO.String())

			select {
			case <-s.ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		go s.serveConn(c)
	}
}

// Close closes every listener passed to Serve and aborts connections in
// flight.
func (s *HTTPProxyServer) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for ln := range s.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *HTTPProxyServer) serveConn(c net.Conn) {
	logger := zerolog.Ctx(s.ctx).With().
		Str("conn", uuid.NewString()).
		Stringer("peer", c.RemoteAddr()).
		Logger()
	ctx := logger.WithContext(s.ctx)

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()
	defer c.Close()

	logger.Debug().Msg("accepted connection")

	if err := s.handle(ctx, c); err != nil {
		kind := proxyerr.KindOf(err)
		s.metrics.Error(kind.String())
		logger.Debug().Err(err).Stringer("kind", kind).Msg("connection failed")
	}
}

// handle reads one request from c and dispatches it.
func (s *HTTPProxyServer) handle(ctx context.Context, c net.Conn) error {
	logger := zerolog.Ctx(ctx)

	br := bufio.NewReader(c)
	req, err := http.ReadRequest(br)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			logger.Debug().Msg("client closed before sending a request")
			return nil
		}
		return readError("read request", err)
	}

	logger.Debug().
		Str("method", req.Method).
		Str("url", req.RequestURI).
		Str("proto", req.Proto).
		Msg("request")

	target, err := TargetFromRequest(req)
	if err != nil {
		return err
	}

	client := &bufferedConn{Conn: c, r: br}
	if req.Method == http.MethodConnect {
		return s.handleConnect(ctx, client, req, target)
	}
	return s.handleForward(ctx, client, req, target)
}

func (s *HTTPProxyServer) handleConnect(ctx context.Context, client net.Conn, req *http.Request, target Target) error {
	s.metrics.Request(metrics.ModeTunnel)

	upstream, ok, err := s.dialUpstream(ctx, client, req, target)
	if !ok {
		return err
	}
	defer upstream.Close()

	if _, err := io.WriteString(client, connectEstablished); err != nil {
		return proxyerr.IO("write tunnel acknowledgement", err)
	}

	return s.relay(ctx, client, upstream)
}

func (s *HTTPProxyServer) handleForward(ctx context.Context, client net.Conn, req *http.Request, target Target) error {
	keepAlive := req.Header.Get("Proxy-Connection") == "Keep-Alive"
	if keepAlive {
		s.metrics.Request(metrics.ModeKeepAlive)
	} else {
		s.metrics.Request(metrics.ModeForward)
	}

	upstream, ok, err := s.dialUpstream(ctx, client, req, target)
	if !ok {
		return err
	}
	defer upstream.Close()

	prepareForward(req, keepAlive)
	if err := req.Write(upstream); err != nil {
		return proxyerr.IO("write request upstream", err)
	}

	if keepAlive {
		// Later requests on the connection are never decoded.
		return s.relay(ctx, client, upstream)
	}

	resp, err := http.ReadResponse(bufio.NewReader(upstream), req)
	if err != nil {
		return readError("read response", err)
	}
	defer resp.Body.Close()

	resp.Header.Set("Connection", "close")
	resp.Close = true

	if err := resp.Write(client); err != nil {
		return proxyerr.IO("write response", err)
	}
	zerolog.Ctx(ctx).Debug().Int("status", resp.StatusCode).Msg("response relayed")
	return nil
}

// dialUpstream connects to target. If the dial fails it answers the client
// with 503 Service Unavailable and reports ok=false; err is then non-nil only
// if that response could not be written.
func (s *HTTPProxyServer) dialUpstream(ctx context.Context, client net.Conn, req *http.Request, target Target) (upstream net.Conn, ok bool, err error) {
	logger := zerolog.Ctx(ctx)

	upstream, err = s.dialer.DialContext(ctx, "tcp", target.String())
	if err != nil {
		kind := proxyerr.KindOf(err)
		s.metrics.DialFailed(kind.String())
		logger.Debug().Err(err).Stringer("target", target).Stringer("kind", kind).Msg("error connecting to upstream")

		if err := writeServiceUnavailable(client, req); err != nil {
			return nil, false, proxyerr.IO("write 503", err)
		}
		return nil, false, nil
	}

	logger.Debug().Stringer("target", target).Msg("connected to upstream")
	return upstream, true, nil
}

func (s *HTTPProxyServer) relay(ctx context.Context, client, upstream net.Conn) error {
	res, err := Relay(ctx, client, upstream)
	s.metrics.Relayed(res.Direction.String(), res.Bytes)
	zerolog.Ctx(ctx).Debug().
		Stringer("direction", res.Direction).
		Int64("bytes", res.Bytes).
		Msg("relay finished")
	if errors.Is(err, context.Canceled) {
		// Shutdown.
		return nil
	}
	return err
}

// prepareForward rewrites the hop-by-hop proxy headers of a decoded request
// before it is re-encoded in origin-form.
func prepareForward(req *http.Request, keepAlive bool) {
	req.Header.Del("Proxy-Connection")
	if keepAlive {
		req.Header.Set("Connection", "Keep-Alive")
	} else {
		req.Header.Set("Connection", "close")
	}
	req.Close = !keepAlive

	// Keep Request.Write from adding a User-Agent the client did not send.
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header["User-Agent"] = nil
	}
	req.RequestURI = ""
}

func writeServiceUnavailable(w io.Writer, req *http.Request) error {
	resp := &http.Response{
		StatusCode:    http.StatusServiceUnavailable,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Request:       req,
		Header:        make(http.Header),
		Body:          http.NoBody,
		ContentLength: 0,
		Close:         true,
	}
	return resp.Write(w)
}

// readError classifies a decode failure: transport errors are I/O errors,
// everything else is malformed HTTP.
func readError(op string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) {
		return proxyerr.IO(op, err)
	}
	return proxyerr.HTTP(op, err)
}

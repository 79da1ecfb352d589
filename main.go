package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/handflip/internal/config"
	"github.com/die-net/handflip/internal/conn"
	"github.com/die-net/handflip/internal/dialer"
	"github.com/die-net/handflip/internal/logging"
	"github.com/die-net/handflip/internal/metrics"
	"github.com/die-net/handflip/internal/proxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cli := config.RegisterFlags(pflag.CommandLine)
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	cfg, err := cli.Load()
	if err != nil {
		return err
	}

	if err := logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	ka := cfg.Listen.KeepAlive()
	dialCfg := dialer.Config{
		DialTimeout:        time.Duration(cfg.Upstream.DialTimeout),
		NegotiationTimeout: time.Duration(cfg.Upstream.NegotiationTimeout),
		KeepAlive:          ka,
	}

	d, err := dialer.New(dialCfg, cfg.Upstream.SOCKS5)
	if err != nil {
		return fmt.Errorf("invalid --socks5: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.Logger.WithContext(ctx)

	m := metrics.New()

	if cfg.Debug.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/debug/", http.DefaultServeMux)
		mux.Handle("/metrics", m.Handler())

		debugSrv := &http.Server{Handler: mux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", cfg.Debug.Listen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Info().Str("addr", cfg.Debug.Listen).Msg("debug listening")
	}

	ln, err := conn.ListenTCP("tcp", cfg.Listen.Addr(), ka, cfg.Listen.ReusePort)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	srv := proxy.NewHTTPProxyServer(ctx, proxy.Config{Dialer: d, Metrics: m})
	context.AfterFunc(ctx, func() {
		_ = srv.Close()
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("http proxy serve: %w", err)
		}
		return nil
	})
	log.Info().
		Stringer("addr", ln.Addr()).
		Str("upstream", dialer.Describe(d)).
		Msg("http proxy listening")

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Info().Msg("shutting down")
	return err
}

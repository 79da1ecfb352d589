// Package config handles TOML configuration loading, command-line overrides
// and validation.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"github.com/die-net/handflip/internal/conn"
	"github.com/die-net/handflip/internal/logging"
)

// Config is the top-level application configuration.
type Config struct {
	Listen   ListenConfig   `toml:"listen"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Debug    DebugConfig    `toml:"debug"`
}

// ListenConfig holds the proxy listener settings.
type ListenConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReusePort    bool   `toml:"reuse_port"`
	TCPKeepAlive string `toml:"tcp_keepalive"`
}

// UpstreamConfig selects the outbound transport. An empty SOCKS5 address
// means direct connections.
type UpstreamConfig struct {
	SOCKS5             string   `toml:"socks5"`
	DialTimeout        Duration `toml:"dial_timeout"`
	NegotiationTimeout Duration `toml:"negotiation_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DebugConfig holds the optional metrics/pprof listener.
type DebugConfig struct {
	Listen string `toml:"listen"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file or flags are given.
// No timeouts are set.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Host:         "127.0.0.1",
			Port:         1081,
			TCPKeepAlive: "on",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port must be 0–65535; got %d", c.Listen.Port)
	}
	if c.Listen.ReusePort && !conn.ReusePortSupported {
		return fmt.Errorf("listen.reuse_port is not supported on this platform")
	}
	if _, err := conn.ParseTCPKeepAlive(c.Listen.TCPKeepAlive); err != nil {
		return fmt.Errorf("listen.tcp_keepalive: %w", err)
	}
	if c.Upstream.DialTimeout < 0 {
		return fmt.Errorf("upstream.dial_timeout must be non-negative; got %s", time.Duration(c.Upstream.DialTimeout))
	}
	if c.Upstream.NegotiationTimeout < 0 {
		return fmt.Errorf("upstream.negotiation_timeout must be non-negative; got %s", time.Duration(c.Upstream.NegotiationTimeout))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json", "":
	default:
		return fmt.Errorf("log.format must be one of: console, json; got %q", c.Log.Format)
	}
	if c.Debug.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Debug.Listen); err != nil {
			return fmt.Errorf("debug.listen: %w", err)
		}
	}
	return nil
}

// Addr returns the listen address as host:port.
func (c *ListenConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// KeepAlive returns the parsed TCP keepalive setting. Call Validate first.
func (c *ListenConfig) KeepAlive() net.KeepAliveConfig {
	ka, _ := conn.ParseTCPKeepAlive(c.TCPKeepAlive)
	return ka
}

// CLI holds command-line flags registered on a pflag.FlagSet. Flags override
// the config file only when explicitly set.
type CLI struct {
	fs *pflag.FlagSet

	Config             *string
	Host               *string
	Port               *uint16
	SOCKS5             *string
	LogLevel           *string
	LogFormat          *string
	Verbose            *bool
	DebugListen        *string
	DialTimeout        *time.Duration
	NegotiationTimeout *time.Duration
	TCPKeepAlive       *string
	ReusePort          *bool
}

// RegisterFlags defines handflip's flags on fs.
func RegisterFlags(fs *pflag.FlagSet) *CLI {
	def := Default()
	return &CLI{
		fs: fs,

		Config:             fs.StringP("config", "c", "", "Path to TOML config file. Empty uses built-in defaults."),
		Host:               fs.String("host", def.Listen.Host, "Listen host"),
		Port:               fs.Uint16P("port", "p", uint16(def.Listen.Port), "Listen port"),
		SOCKS5:             fs.StringP("socks5", "s", "", "SOCKS5 proxy address for outbound connections, e.g. 127.0.0.1:1080. Empty connects directly."),
		LogLevel:           fs.String("log-level", def.Log.Level, "Log level: debug|info|warn|error"),
		LogFormat:          fs.String("log-format", def.Log.Format, "Log format: console|json"),
		Verbose:            fs.BoolP("verbose", "v", false, "Enable per-connection debug logging (same as --log-level=debug)"),
		DebugListen:        fs.String("debug-listen", "", "Debug HTTP listen address exposing /metrics and /debug/pprof (e.g. 127.0.0.1:6060). Empty disables."),
		DialTimeout:        fs.Duration("dial-timeout", 0, "Timeout for outbound DNS lookup and TCP connect. 0 waits indefinitely."),
		NegotiationTimeout: fs.Duration("negotiation-timeout", 0, "Timeout for the SOCKS5 handshake. 0 waits indefinitely."),
		TCPKeepAlive:       fs.String("tcp-keepalive", def.Listen.TCPKeepAlive, "TCP keepalive: on|off|keepidle:keepintvl:keepcnt"),
		ReusePort:          fs.Bool("reuse-port", false, "Set SO_REUSEPORT on the listening socket"),
	}
}

// Apply overrides c with every flag set on the command line.
func (cli *CLI) Apply(c *Config) {
	changed := cli.fs.Changed

	if changed("host") {
		c.Listen.Host = *cli.Host
	}
	if changed("port") {
		c.Listen.Port = int(*cli.Port)
	}
	if changed("socks5") {
		c.Upstream.SOCKS5 = *cli.SOCKS5
	}
	if changed("log-level") {
		c.Log.Level = *cli.LogLevel
	}
	if changed("log-format") {
		c.Log.Format = *cli.LogFormat
	}
	if *cli.Verbose {
		c.Log.Level = "debug"
	}
	if changed("debug-listen") {
		c.Debug.Listen = *cli.DebugListen
	}
	if changed("dial-timeout") {
		c.Upstream.DialTimeout = Duration(*cli.DialTimeout)
	}
	if changed("negotiation-timeout") {
		c.Upstream.NegotiationTimeout = Duration(*cli.NegotiationTimeout)
	}
	if changed("tcp-keepalive") {
		c.Listen.TCPKeepAlive = *cli.TCPKeepAlive
	}
	if changed("reuse-port") {
		c.Listen.ReusePort = *cli.ReusePort
	}
}

// Load reads the file named by --config, applies the flags and validates.
func (cli *CLI) Load() (*Config, error) {
	cfg, err := Load(*cli.Config)
	if err != nil {
		return nil, err
	}
	cli.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

package gateway

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/accord-dev/accord/pkg/protocol"
)

// Config holds configuration shared by every shard in a set.
type Config struct {
	// Token authenticates the identify handshake. Required.
	Token string

	// GatewayURL is the base WebSocket URL to connect to, as returned by
	// the REST gateway endpoint. Required.
	GatewayURL string

	// Capabilities are the capability flags sent on identify, selecting
	// which event classes the platform delivers.
	Capabilities int64

	// Properties describes the connecting client on identify.
	// Default: os/browser/device all "accord".
	Properties protocol.IdentifyProperties

	// LargeThreshold is the member-list threshold sent on identify.
	// Default: protocol.DefaultLargeThreshold (250).
	LargeThreshold int

	// Compress requests transport compression (one zlib stream per
	// connection). Default: true.
	Compress bool

	// HandshakeTimeout bounds the WebSocket dial and upgrade.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound message write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HelloTimeout bounds the wait for the server's Hello after connect.
	// Default: 15 seconds.
	HelloTimeout time.Duration

	// IdentifySpacing is the platform's minimum interval between identify
	// handshakes across the whole shard set. Default: 5 seconds.
	IdentifySpacing time.Duration

	// StabilityThreshold is how long a connection must stay Connected for
	// the reconnect backoff to reset. Default: 1 minute.
	StabilityThreshold time.Duration

	// MaxResumeAttempts is the number of consecutive failed resumes before
	// the next attempt is a fresh identify. Default: 3.
	MaxResumeAttempts int

	// BackoffBase is the initial reconnect delay. Default: 1 second.
	BackoffBase time.Duration

	// BackoffMax caps the reconnect delay. Default: 64 seconds.
	BackoffMax time.Duration

	// Dialer establishes connections. Default: gorilla/websocket dialer.
	Dialer Dialer

	// Logger receives structured logs. Default: slog.Default().
	Logger *slog.Logger

	// Metrics receives gateway metrics. Nil disables collection.
	Metrics *Metrics

	// OnStatusChange, if set, observes every shard status transition.
	// Called synchronously from the shard's run goroutine; keep it fast.
	OnStatusChange func(ShardID, Status)
}

// DefaultConfig returns a Config with sensible defaults. Token and
// GatewayURL must still be set.
func DefaultConfig() *Config {
	return &Config{
		Properties:         protocol.IdentifyProperties{OS: "linux", Browser: "accord", Device: "accord"},
		LargeThreshold:     protocol.DefaultLargeThreshold,
		Compress:           true,
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       10 * time.Second,
		HelloTimeout:       15 * time.Second,
		IdentifySpacing:    5 * time.Second,
		StabilityThreshold: time.Minute,
		MaxResumeAttempts:  3,
		BackoffBase:        time.Second,
		BackoffMax:         64 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	out := c.Clone()
	if out == nil {
		out = &Config{}
	}
	def := DefaultConfig()
	if out.Properties == (protocol.IdentifyProperties{}) {
		out.Properties = def.Properties
	}
	if out.LargeThreshold == 0 {
		out.LargeThreshold = def.LargeThreshold
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = def.HandshakeTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.HelloTimeout <= 0 {
		out.HelloTimeout = def.HelloTimeout
	}
	if out.IdentifySpacing <= 0 {
		out.IdentifySpacing = def.IdentifySpacing
	}
	if out.StabilityThreshold <= 0 {
		out.StabilityThreshold = def.StabilityThreshold
	}
	if out.MaxResumeAttempts <= 0 {
		out.MaxResumeAttempts = def.MaxResumeAttempts
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = def.BackoffBase
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = def.BackoffMax
	}
	if out.Dialer == nil {
		out.Dialer = &wsDialer{
			handshakeTimeout: out.HandshakeTimeout,
			writeTimeout:     out.WriteTimeout,
		}
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// policy builds the reconnect policy from the config's knobs.
func (c *Config) policy() *ReconnectPolicy {
	return &ReconnectPolicy{
		MaxResumeAttempts: c.MaxResumeAttempts,
		BackoffBase:       c.BackoffBase,
		BackoffMax:        c.BackoffMax,
	}
}

// dialURL appends the protocol version, encoding and compression query
// parameters to a gateway base URL.
func (c *Config) dialURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("v", fmt.Sprintf("%d", protocol.GatewayVersion))
	q.Set("encoding", "json")
	if c.Compress {
		q.Set("compress", "zlib-stream")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

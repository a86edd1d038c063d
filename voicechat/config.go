package voicechat

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls how the SDK connects.
type Config struct {
	// URL is the websocket endpoint of the signaling server, e.g. "ws://host/ws".
	URL string `env:"VOICECHAT_URL"`

	HandshakeTimeout time.Duration `env:"VOICECHAT_HANDSHAKE_TIMEOUT"`
	ReadTimeout      time.Duration `env:"VOICECHAT_READ_TIMEOUT"`
	WriteTimeout     time.Duration `env:"VOICECHAT_WRITE_TIMEOUT"`

	// HeartbeatInterval is how often a ping frame is sent while connected.
	HeartbeatInterval time.Duration `env:"VOICECHAT_HEARTBEAT_INTERVAL"`

	// AutoReconnect enables the backoff reconnect loop after an unexpected
	// transport close. Explicit Disconnect always suppresses it.
	AutoReconnect     bool          `env:"VOICECHAT_AUTO_RECONNECT"`
	ReconnectInterval time.Duration `env:"VOICECHAT_RECONNECT_INTERVAL"`
	MaxReconnectDelay time.Duration `env:"VOICECHAT_MAX_RECONNECT_DELAY"`
	MaxReconnectTries int           `env:"VOICECHAT_MAX_RECONNECT_TRIES"`

	// MediaConnectTimeout bounds a single media session connect attempt.
	MediaConnectTimeout time.Duration `env:"VOICECHAT_MEDIA_CONNECT_TIMEOUT"`

	// MediaTeardownGrace is observed between tearing down a superseded media
	// session and constructing its replacement, so teardown events drain.
	MediaTeardownGrace time.Duration `env:"VOICECHAT_MEDIA_TEARDOWN_GRACE"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:    10 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        10 * time.Second,
		HeartbeatInterval:   20 * time.Second,
		AutoReconnect:       true,
		ReconnectInterval:   time.Second,
		MaxReconnectDelay:   5 * time.Second,
		MaxReconnectTries:   5,
		MediaConnectTimeout: 10 * time.Second,
		MediaTeardownGrace:  500 * time.Millisecond,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by VOICECHAT_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

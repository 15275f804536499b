package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bhandras/relaychat/pkg/logger"
)

// DefaultServerURL is the relay endpoint used when none is configured.
const DefaultServerURL = "http://localhost:5000"

// Config holds the client settings read from RELAYCHAT_* environment
// variables.
type Config struct {
	// ServerURL is the base URL of the relay.
	ServerURL string `env:"RELAYCHAT_SERVER_URL" envDefault:"http://localhost:5000"`
	// SocketPath overrides the socket.io request path. Empty keeps the
	// transport default.
	SocketPath string `env:"RELAYCHAT_SOCKET_PATH"`
	// TypingDebounce is how long after the last keystroke the client keeps
	// signaling that the local user is typing.
	TypingDebounce time.Duration `env:"RELAYCHAT_TYPING_DEBOUNCE" envDefault:"800ms"`

	// LogLevel is the logger threshold (trace|debug|info|warn|error).
	LogLevel string `env:"RELAYCHAT_LOG_LEVEL" envDefault:"info"`
	// LogFile receives log output while the terminal UI owns the screen.
	// Empty discards logs.
	LogFile string `env:"RELAYCHAT_LOG_FILE"`
	// Debug enables verbose transport logging.
	Debug bool `env:"RELAYCHAT_DEBUG"`
}

// Load loads configuration from environment and defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be repaired with a default.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid RELAYCHAT_SERVER_URL %q: %w", c.ServerURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid RELAYCHAT_SERVER_URL %q: missing scheme or host", c.ServerURL)
	}
	if c.TypingDebounce <= 0 {
		return fmt.Errorf("invalid RELAYCHAT_TYPING_DEBOUNCE %s: must be positive", c.TypingDebounce)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid RELAYCHAT_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the parsed log level; Validate guarantees it parses.
func (c *Config) Level() logger.Level {
	lvl, _ := logger.ParseLevel(c.LogLevel)
	if c.Debug && lvl > logger.LevelDebug {
		lvl = logger.LevelDebug
	}
	return lvl
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// DefaultJWTSecret is only good for local development.
const DefaultJWTSecret = "dev-secret-change-in-production"

// ErrInsecureDevTokens rejects minting tokens against the well-known
// default secret.
var ErrInsecureDevTokens = errors.New("DEV_TOKENS requires JWT_SECRET to be set")

// Client configures a drawing session.
type Client struct {
	APIBase  string `envconfig:"API_BASE" default:"http://localhost:8080"`
	WSURL    string `envconfig:"WS_URL" default:"ws://localhost:8080/ws"`
	RoomID   string `envconfig:"ROOM_ID"`
	Token    string `envconfig:"TOKEN"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Relay configures the development relay.
type Relay struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	DevTokens      bool   `envconfig:"DEV_TOKENS" default:"false"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

func LoadClient() (*Client, error) {
	var cfg Client
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	return &cfg, nil
}

func LoadRelay() (*Relay, error) {
	var cfg Relay
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load relay config: %w", err)
	}
	if cfg.DevTokens && cfg.JWTSecret == DefaultJWTSecret {
		return nil, fmt.Errorf("load relay config: %w", ErrInsecureDevTokens)
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (r *Relay) Origins() []string {
	var out []string
	for _, o := range strings.Split(r.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Level maps a LOG_LEVEL value onto slog. Unknown values mean info.
func Level(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Package config loads orchestrator settings. Values are layered: built-in
// defaults, then the YAML file, then ORCH_* environment variables, then
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ORCH_"

type Config struct {
	Broker  BrokerConfig  `yaml:"broker" envPrefix:"BROKER_"`
	Topics  TopicsConfig  `yaml:"topics" envPrefix:"TOPIC_"`
	Input   InputConfig   `yaml:"input" envPrefix:"INPUT_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Mirror  MirrorConfig  `yaml:"mirror" envPrefix:"MIRROR_"`
}

type BrokerConfig struct {
	Primary        string          `yaml:"primary" env:"PRIMARY"`
	Fallback       string          `yaml:"fallback" env:"FALLBACK"`
	Port           int             `yaml:"port" env:"PORT"`
	SecurePort     int             `yaml:"secure_port" env:"SECURE_PORT"`
	UseTLS         bool            `yaml:"use_tls" env:"USE_TLS"`
	Path           string          `yaml:"path" env:"PATH"`
	ClientIDPrefix string          `yaml:"client_id_prefix" env:"CLIENT_ID_PREFIX"`
	Username       string          `yaml:"username" env:"USERNAME"`
	Password       string          `yaml:"password" env:"PASSWORD"`
	KeepAlive      time.Duration   `yaml:"keep_alive" env:"KEEP_ALIVE"`
	ConnectTimeout time.Duration   `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	CleanSession   bool            `yaml:"clean_session" env:"CLEAN_SESSION"`
	Reconnect      ReconnectConfig `yaml:"reconnect" envPrefix:"RECONNECT_"`
}

type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

type TopicsConfig struct {
	Subscribe string `yaml:"subscribe" env:"SUBSCRIBE"`
	Publish   string `yaml:"publish" env:"PUBLISH"`
}

type InputConfig struct {
	Debounce     time.Duration `yaml:"debounce" env:"DEBOUNCE"`
	RepeatDelay  time.Duration `yaml:"repeat_delay" env:"REPEAT_DELAY"`
	ReleaseAfter time.Duration `yaml:"release_after" env:"RELEASE_AFTER"`
}

type SessionConfig struct {
	MinIntentInterval  time.Duration  `yaml:"min_intent_interval" env:"MIN_INTENT_INTERVAL"`
	RequirePeerReady   bool           `yaml:"require_peer_ready" env:"REQUIRE_PEER_READY"`
	StatusRequestDelay time.Duration  `yaml:"status_request_delay" env:"STATUS_REQUEST_DELAY"`
	ConnectResyncDelay time.Duration  `yaml:"connect_resync_delay" env:"CONNECT_RESYNC_DELAY"`
	DefaultPlayerState map[string]any `yaml:"default_player_state"`
}

type LogConfig struct {
	MaxEntries int    `yaml:"max_entries" env:"MAX_ENTRIES"`
	File       string `yaml:"file" env:"FILE"`
	Level      string `yaml:"level" env:"LEVEL"`
	ExportDir  string `yaml:"export_dir" env:"EXPORT_DIR"`
}

type MirrorConfig struct {
	Enabled        bool     `yaml:"enabled" env:"ENABLED"`
	Addr           string   `yaml:"addr" env:"ADDR"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxConns       int      `yaml:"max_conns" env:"MAX_CONNS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Primary:        "broker.emqx.io",
			Fallback:       "broker.emqx.io",
			Port:           8083,
			SecurePort:     8084,
			Path:           "/mqtt",
			ClientIDPrefix: "WhiskersOrchestrator",
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 15 * time.Second,
			CleanSession:   true,
			Reconnect: ReconnectConfig{
				BaseDelay:   time.Second,
				MaxDelay:    30 * time.Second,
				MaxAttempts: 10,
			},
		},
		Topics: TopicsConfig{
			Subscribe: "catstory/presenter/to/orchestrator",
			Publish:   "catstory/orchestrator/to/presenter",
		},
		Input: InputConfig{
			Debounce:     50 * time.Millisecond,
			RepeatDelay:  200 * time.Millisecond,
			ReleaseAfter: 150 * time.Millisecond,
		},
		Session: SessionConfig{
			MinIntentInterval:  100 * time.Millisecond,
			RequirePeerReady:   true,
			StatusRequestDelay: 500 * time.Millisecond,
			ConnectResyncDelay: time.Second,
			DefaultPlayerState: DefaultPlayerState(),
		},
		Log: LogConfig{
			MaxEntries: 100,
			File:       "orchestrator.log",
			Level:      "info",
			ExportDir:  ".",
		},
		Mirror: MirrorConfig{
			Addr:     "127.0.0.1:8090",
			MaxConns: 16,
		},
	}
}

// DefaultPlayerState is the player state a fresh or reset story starts with.
func DefaultPlayerState() map[string]any {
	return map[string]any{
		"health":   100,
		"courage":  "Normal",
		"location": "Home",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies ORCH_* overrides to cfg. Unset variables leave fields
// untouched.
func ParseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Mirror.AllowedOrigins = append([]string(nil), c.Mirror.AllowedOrigins...)
	out.Session.DefaultPlayerState = CopyPlayerState(c.Session.DefaultPlayerState)
	return &out
}

// CopyPlayerState copies the top level of a player state map.
func CopyPlayerState(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

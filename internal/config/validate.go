package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks types and ranges only. It reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			fail("%s must be positive, got %s", name, d)
		}
	}

	if strings.TrimSpace(c.Broker.Primary) == "" {
		fail("broker.primary is required")
	}
	if !validPort(c.Broker.Port) {
		fail("broker.port %d out of range 1-65535", c.Broker.Port)
	}
	if !validPort(c.Broker.SecurePort) {
		fail("broker.secure_port %d out of range 1-65535", c.Broker.SecurePort)
	}
	if c.Broker.ClientIDPrefix == "" {
		fail("broker.client_id_prefix is required")
	}
	positive("broker.keep_alive", c.Broker.KeepAlive)
	positive("broker.connect_timeout", c.Broker.ConnectTimeout)
	positive("broker.reconnect.base_delay", c.Broker.Reconnect.BaseDelay)
	if c.Broker.Reconnect.MaxDelay < c.Broker.Reconnect.BaseDelay {
		fail("broker.reconnect.max_delay %s below base_delay %s", c.Broker.Reconnect.MaxDelay, c.Broker.Reconnect.BaseDelay)
	}
	if c.Broker.Reconnect.MaxAttempts < 0 {
		fail("broker.reconnect.max_attempts must not be negative")
	}

	if c.Topics.Subscribe == "" || c.Topics.Publish == "" {
		fail("topics.subscribe and topics.publish are required")
	} else if c.Topics.Subscribe == c.Topics.Publish {
		fail("topics.subscribe and topics.publish must differ")
	}

	positive("input.debounce", c.Input.Debounce)
	positive("input.repeat_delay", c.Input.RepeatDelay)
	positive("input.release_after", c.Input.ReleaseAfter)

	if c.Session.MinIntentInterval < 0 {
		fail("session.min_intent_interval must not be negative")
	}
	positive("session.status_request_delay", c.Session.StatusRequestDelay)
	positive("session.connect_resync_delay", c.Session.ConnectResyncDelay)

	if c.Log.MaxEntries <= 0 {
		fail("log.max_entries must be positive, got %d", c.Log.MaxEntries)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		fail("log.level %q is not a known level", c.Log.Level)
	}

	if c.Mirror.Enabled && c.Mirror.Addr == "" {
		fail("mirror.addr is required when the mirror is enabled")
	}
	if c.Mirror.MaxConns < 0 {
		fail("mirror.max_conns must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

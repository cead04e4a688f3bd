// Package transport owns the MQTT connection to the broker: dialling with a
// fallback endpoint, the subscription, a FIFO queue for messages published
// while offline, and bounded exponential reconnection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/google/uuid"
)

var (
	ErrClosed       = errors.New("transport closed")
	ErrNotConnected = errors.New("not connected to broker")
	ErrMaxAttempts  = errors.New("max reconnection attempts reached")
	ErrReplaced     = errors.New("connection replaced by manual reconnect")
)

// Conn is one live broker session. Implementations must be safe to call from
// the loop thread while their callbacks run on other goroutines.
type Conn interface {
	// Subscribe registers handler for topic and blocks until the broker
	// acknowledges.
	Subscribe(topic string, handler func(payload []byte)) error
	// Publish hands payload to the broker without waiting for delivery.
	// Asynchronous failures are reported through ConnEvents.PublishFailed.
	Publish(topic string, payload []byte) error
	Close()
}

// ConnEvents are the callbacks a Conn invokes from its own goroutines.
type ConnEvents struct {
	Lost          func(err error)
	PublishFailed func(err error)
}

// Dialer opens connections. Dial must respect ctx for its whole handshake.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, events ConnEvents) (Conn, error)
}

// BrokerURL turns a configured broker value into a dialable URL. Values that
// already carry a scheme are used verbatim.
func BrokerURL(broker string, cfg config.BrokerConfig) string {
	broker = strings.TrimSpace(broker)
	if strings.Contains(broker, "://") {
		return broker
	}
	scheme, port := "ws", cfg.Port
	if cfg.UseTLS {
		scheme, port = "wss", cfg.SecurePort
	}
	path := cfg.Path
	if path == "" {
		path = "/mqtt"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(broker, strconv.Itoa(port)), path)
}

// Endpoints returns the primary URL followed by the fallback, which is
// skipped when empty or identical to the primary.
func Endpoints(cfg config.BrokerConfig) []string {
	primary := BrokerURL(cfg.Primary, cfg)
	out := []string{primary}
	if strings.TrimSpace(cfg.Fallback) == "" {
		return out
	}
	if fallback := BrokerURL(cfg.Fallback, cfg); fallback != primary {
		out = append(out, fallback)
	}
	return out
}

// NewClientID builds "<prefix>_<unix-millis>_<8 hex chars>".
func NewClientID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}

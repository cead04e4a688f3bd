package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/loop"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Listener receives connection and message events on the loop thread.
type Listener interface {
	TransportConnected(endpoint string)
	TransportDisconnected(err error)
	// TransportFailed reports that the reconnect budget is exhausted. Only
	// Reconnect starts a new cycle afterwards.
	TransportFailed(err error)
	MessageReceived(msg protocol.Message)
	MessageDropped(err error)
	PublishFailed(err error)
}

type Options struct {
	Endpoints      []string
	SubscribeTopic string
	PublishTopic   string
	ClientID       string
	ConnectTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	// MaxAttempts bounds consecutive reconnects; zero means unlimited.
	MaxAttempts int
}

// Stats is a point-in-time view of the adapter for status displays.
type Stats struct {
	Connected   bool     `json:"connected"`
	Connecting  bool     `json:"connecting"`
	ClientID    string   `json:"clientId"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Endpoints   []string `json:"endpoints"`
	Attempts    int      `json:"reconnectAttempts"`
	MaxAttempts int      `json:"maxReconnectAttempts"`
	Queued      int      `json:"queuedMessages"`
	Failed      bool     `json:"failed"`
}

// Client is the transport adapter. Every method must be called on the loop
// thread; dials and broker callbacks are marshalled back onto it. Each dial
// starts a new epoch and callbacks tagged with an older epoch are ignored.
type Client struct {
	sched    loop.Scheduler
	dialer   Dialer
	listener Listener
	opts     Options
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	epoch      uint64
	conn       Conn
	endpoint   string
	connected  bool
	connecting bool
	closed     bool
	failed     bool

	queue [][]byte
	early [][]byte
	// lostEarly holds losses reported, per endpoint, before the dial
	// result reached the loop.
	lostEarly map[string]error

	retry          backoff.BackOff
	attempts       int
	reconnectTimer *loop.Timer
}

func New(sched loop.Scheduler, dialer Dialer, listener Listener, opts Options, logger zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		sched:    sched,
		dialer:   dialer,
		listener: listener,
		opts:     opts,
		logger:   logger.With().Str("component", "transport").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		retry:    newRetry(opts),
	}
}

// newRetry yields min(base*2^n, max) for n = 0, 1, ... and stops after
// MaxAttempts values.
func newRetry(opts Options) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.BaseDelay
	eb.MaxInterval = opts.MaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	if opts.MaxAttempts <= 0 {
		return eb
	}
	return backoff.WithMaxRetries(eb, uint64(opts.MaxAttempts))
}

// Connect starts a connection attempt unless one is live or in flight.
func (c *Client) Connect() {
	if c.closed || c.connected || c.connecting {
		return
	}
	c.dial()
}

// Reconnect is the user's request-connect: it cancels a pending retry,
// restores the full attempt budget and dials afresh, replacing any live
// connection.
func (c *Client) Reconnect() {
	if c.closed {
		return
	}
	c.cancelReconnect()
	c.retry.Reset()
	c.attempts = 0
	c.failed = false
	if c.conn != nil {
		c.retire()
		c.listener.TransportDisconnected(ErrReplaced)
	}
	c.dial()
}

// Publish sends payload when connected and queues it otherwise. Queued
// payloads are flushed in order on the next successful connect, before
// anything published after it. While earlier payloads are still queued a
// new one goes behind them, so the broker sees publish order.
func (c *Client) Publish(payload []byte) error {
	if c.closed {
		return ErrClosed
	}
	c.queue = append(c.queue, payload)
	if !c.connected {
		c.logger.Debug().Int("queued", len(c.queue)).Msg("not connected, message queued")
		return nil
	}
	c.flush()
	return nil
}

// Connected reports whether a broker session is live.
func (c *Client) Connected() bool { return c.connected }

// Close cancels any pending reconnect and closes the connection. It is
// idempotent.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancelReconnect()
	c.cancel()
	c.retire()
	c.connecting = false
}

func (c *Client) Stats() Stats {
	return Stats{
		Connected:   c.connected,
		Connecting:  c.connecting,
		ClientID:    c.opts.ClientID,
		Endpoint:    c.endpoint,
		Endpoints:   append([]string(nil), c.opts.Endpoints...),
		Attempts:    c.attempts,
		MaxAttempts: c.opts.MaxAttempts,
		Queued:      len(c.queue),
		Failed:      c.failed,
	}
}

// retire drops the current connection and moves to a new epoch so its
// late callbacks are ignored.
func (c *Client) retire() {
	c.epoch++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.endpoint = ""
	c.early = nil
	c.lostEarly = nil
}

func (c *Client) dial() {
	c.retire()
	c.connecting = true
	epoch := c.epoch
	endpoints := append([]string(nil), c.opts.Endpoints...)

	c.sched.Go(func() func() {
		conn, endpoint, err := c.dialAny(epoch, endpoints)
		return func() { c.dialed(epoch, conn, endpoint, err) }
	})
}

// dialAny runs off the loop thread. It tries each endpoint in order and
// subscribes on the first that accepts.
func (c *Client) dialAny(epoch uint64, endpoints []string) (Conn, string, error) {
	if len(endpoints) == 0 {
		return nil, "", errors.New("no broker endpoints configured")
	}
	var errs []error
	for _, endpoint := range endpoints {
		conn, err := c.dialOne(epoch, endpoint)
		if err == nil {
			return conn, endpoint, nil
		}
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("broker connect failed")
		errs = append(errs, err)
		if c.ctx.Err() != nil {
			break
		}
	}
	return nil, "", errors.Join(errs...)
}

func (c *Client) dialOne(epoch uint64, endpoint string) (Conn, error) {
	ctx := c.ctx
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}
	conn, err := c.dialer.Dial(ctx, endpoint, ConnEvents{
		Lost: func(err error) {
			c.sched.Run(func() { c.lost(epoch, endpoint, err) })
		},
		PublishFailed: func(err error) {
			c.sched.Run(func() {
				if epoch == c.epoch {
					c.listener.PublishFailed(err)
				}
			})
		},
	})
	if err != nil {
		return nil, err
	}
	err = conn.Subscribe(c.opts.SubscribeTopic, func(payload []byte) {
		data := append([]byte(nil), payload...)
		c.sched.Run(func() { c.received(epoch, data) })
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) dialed(epoch uint64, conn Conn, endpoint string, err error) {
	if epoch != c.epoch || c.closed {
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.connecting = false
	if err != nil {
		c.listener.TransportDisconnected(fmt.Errorf("connect: %w", err))
		c.scheduleReconnect()
		return
	}

	if lostErr, ok := c.lostEarly[endpoint]; ok {
		c.logger.Warn().Err(lostErr).Str("endpoint", endpoint).Msg("connection lost while subscribing")
		conn.Close()
		c.retire()
		c.listener.TransportDisconnected(lostErr)
		c.scheduleReconnect()
		return
	}

	c.conn = conn
	c.endpoint = endpoint
	c.connected = true
	c.retry.Reset()
	c.attempts = 0
	c.failed = false
	c.logger.Info().Str("endpoint", endpoint).Str("topic", c.opts.SubscribeTopic).Msg("connected and subscribed")

	c.flush()
	c.listener.TransportConnected(endpoint)

	early := c.early
	c.early = nil
	for _, data := range early {
		c.deliver(data)
	}
}

// flush sends queued payloads from the head. On a failure the rest stay
// queued, in order, for the next Publish or connect.
func (c *Client) flush() {
	for len(c.queue) > 0 {
		if err := c.conn.Publish(c.opts.PublishTopic, c.queue[0]); err != nil {
			c.logger.Warn().Err(err).Int("queued", len(c.queue)).Msg("publish failed, message kept queued")
			return
		}
		c.queue = c.queue[1:]
	}
	c.queue = nil
}

func (c *Client) received(epoch uint64, data []byte) {
	if epoch != c.epoch {
		return
	}
	if !c.connected {
		// Arrived between subscribe and the dial result reaching the loop.
		c.early = append(c.early, data)
		return
	}
	c.deliver(data)
}

func (c *Client) deliver(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping inbound payload")
		c.listener.MessageDropped(err)
		return
	}
	c.listener.MessageReceived(msg)
}

func (c *Client) lost(epoch uint64, endpoint string, err error) {
	if epoch != c.epoch {
		return
	}
	if c.connecting {
		if c.lostEarly == nil {
			c.lostEarly = make(map[string]error)
		}
		c.lostEarly[endpoint] = err
		return
	}
	if !c.connected || endpoint != c.endpoint {
		return
	}
	c.logger.Warn().Err(err).Msg("connection lost")
	c.retire()
	c.listener.TransportDisconnected(err)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	if c.closed || c.reconnectTimer.Active() {
		return
	}
	delay := c.retry.NextBackOff()
	if delay == backoff.Stop {
		c.failed = true
		c.logger.Error().Int("attempts", c.attempts).Msg("giving up on broker")
		c.listener.TransportFailed(ErrMaxAttempts)
		return
	}
	c.attempts++
	c.logger.Info().Dur("delay", delay).Int("attempt", c.attempts).Msg("scheduling reconnect")
	c.reconnectTimer = c.sched.After(delay, func() {
		c.reconnectTimer = nil
		c.dial()
	})
}

func (c *Client) cancelReconnect() {
	c.reconnectTimer.Cancel()
	c.reconnectTimer = nil
}

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	qos             = 0
	subscribeWait   = 10 * time.Second
	disconnectQuiet = 250 // milliseconds
)

// PahoDialer dials brokers with the Eclipse Paho client. Paho's own
// reconnect logic is disabled; Client owns retries.
type PahoDialer struct {
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	CleanSession   bool
	Logger         zerolog.Logger
}

func (d PahoDialer) Dial(ctx context.Context, endpoint string, events ConnEvents) (Conn, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(endpoint).
		SetClientID(d.ClientID).
		SetKeepAlive(d.KeepAlive).
		SetConnectTimeout(d.ConnectTimeout).
		SetCleanSession(d.CleanSession).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	if d.Username != "" {
		opts.SetUsername(d.Username).SetPassword(d.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if events.Lost != nil {
			events.Lost(err)
		}
	})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, fmt.Errorf("connect %s: %w", endpoint, ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	d.Logger.Debug().Str("endpoint", endpoint).Str("client_id", d.ClientID).Msg("mqtt connected")
	return &pahoConn{client: client, events: events, logger: d.Logger}, nil
}

type pahoConn struct {
	client mqtt.Client
	events ConnEvents
	logger zerolog.Logger
}

func (c *pahoConn) Subscribe(topic string, handler func([]byte)) error {
	tok := c.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Payload())
	})
	if !tok.WaitTimeout(subscribeWait) {
		return fmt.Errorf("subscribe %s: timed out", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (c *pahoConn) Publish(topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	tok := c.client.Publish(topic, qos, false, payload)
	go func() {
		<-tok.Done()
		if err := tok.Error(); err != nil {
			c.logger.Warn().Err(err).Str("topic", topic).Msg("publish failed")
			if c.events.PublishFailed != nil {
				c.events.PublishFailed(err)
			}
		}
	}()
	return nil
}

func (c *pahoConn) Close() {
	c.client.Disconnect(disconnectQuiet)
}

package transport

import (
	"github.com/TylerJayP/Orchestrator/internal/config"
	"github.com/rs/zerolog"
)

// OptionsFrom builds adapter options from the broker config. The topics are
// passed explicitly so a peer can use the mirrored pair.
func OptionsFrom(cfg config.BrokerConfig, subscribe, publish, clientID string) Options {
	return Options{
		Endpoints:      Endpoints(cfg),
		SubscribeTopic: subscribe,
		PublishTopic:   publish,
		ClientID:       clientID,
		ConnectTimeout: cfg.ConnectTimeout,
		BaseDelay:      cfg.Reconnect.BaseDelay,
		MaxDelay:       cfg.Reconnect.MaxDelay,
		MaxAttempts:    cfg.Reconnect.MaxAttempts,
	}
}

// NewPahoDialer configures a Paho dialer from the broker config.
func NewPahoDialer(cfg config.BrokerConfig, clientID string, logger zerolog.Logger) PahoDialer {
	return PahoDialer{
		ClientID:       clientID,
		Username:       cfg.Username,
		Password:       cfg.Password,
		KeepAlive:      cfg.KeepAlive,
		ConnectTimeout: cfg.ConnectTimeout,
		CleanSession:   cfg.CleanSession,
		Logger:         logger,
	}
}

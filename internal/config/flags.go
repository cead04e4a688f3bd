package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so an unset flag never masks a file or environment value.
type Flags struct {
	set *pflag.FlagSet

	configPath string
	broker     string
	fallback   string
	port       int
	useTLS     bool
	subscribe  string
	publish    string
	logFile    string
	logLevel   string
	exportDir  string
	mirror     bool
	mirrorAddr string
	debounce   time.Duration
	minIntent  time.Duration
}

// NewFlags registers the shared override flags on a new flag set.
func NewFlags(name, defaultConfig string) *Flags {
	f := &Flags{set: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	fs := f.set
	fs.StringVarP(&f.configPath, "config", "c", defaultConfig, "path to the YAML config file")
	fs.StringVar(&f.broker, "broker", "", "primary broker host or URL")
	fs.StringVar(&f.fallback, "fallback", "", "fallback broker host or URL")
	fs.IntVar(&f.port, "port", 0, "broker websocket port")
	fs.BoolVar(&f.useTLS, "tls", false, "connect with wss on the secure port")
	fs.StringVar(&f.subscribe, "subscribe-topic", "", "inbound topic")
	fs.StringVar(&f.publish, "publish-topic", "", "outbound topic")
	fs.StringVar(&f.logFile, "log-file", "", "diagnostic log file")
	fs.StringVar(&f.logLevel, "log-level", "", "diagnostic log level")
	fs.StringVar(&f.exportDir, "export-dir", "", "directory for exported activity logs")
	fs.BoolVar(&f.mirror, "mirror", false, "serve the websocket state mirror")
	fs.StringVar(&f.mirrorAddr, "mirror-addr", "", "state mirror listen address")
	fs.DurationVar(&f.debounce, "debounce", 0, "keyboard debounce window")
	fs.DurationVar(&f.minIntent, "min-intent-interval", 0, "minimum interval between accepted intents")
	return f
}

// FlagSet exposes the underlying set so commands can add their own flags.
func (f *Flags) FlagSet() *pflag.FlagSet { return f.set }

// Parse parses args. It returns pflag.ErrHelp when help was requested.
func (f *Flags) Parse(args []string) error {
	return f.set.Parse(args)
}

// ConfigPath returns the --config value.
func (f *Flags) ConfigPath() string { return f.configPath }

// Apply copies every flag the user set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	changed := f.set.Changed
	if changed("broker") {
		cfg.Broker.Primary = f.broker
	}
	if changed("fallback") {
		cfg.Broker.Fallback = f.fallback
	}
	if changed("port") {
		cfg.Broker.Port = f.port
	}
	if changed("tls") {
		cfg.Broker.UseTLS = f.useTLS
	}
	if changed("subscribe-topic") {
		cfg.Topics.Subscribe = f.subscribe
	}
	if changed("publish-topic") {
		cfg.Topics.Publish = f.publish
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("export-dir") {
		cfg.Log.ExportDir = f.exportDir
	}
	if changed("mirror") {
		cfg.Mirror.Enabled = f.mirror
	}
	if changed("mirror-addr") {
		cfg.Mirror.Addr = f.mirrorAddr
	}
	if changed("debounce") {
		cfg.Input.Debounce = f.debounce
	}
	if changed("min-intent-interval") {
		cfg.Session.MinIntentInterval = f.minIntent
	}
}

// Loader ties a config path to the flags that override it, so a reload
// produces the same layering as the initial load.
type Loader struct {
	Path  string
	Flags *Flags
}

// Load runs the full layering and validates the result.
func (l Loader) Load() (*Config, error) {
	cfg, err := Load(l.Path)
	if err != nil {
		return nil, err
	}
	if l.Flags != nil {
		l.Flags.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

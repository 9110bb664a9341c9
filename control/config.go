// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server configuration: defaults, file/env loading via viper, validation and
// hot reload propagation through fsnotify.

package control

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. HIOLOAD_LISTEN_ADDR.
const EnvPrefix = "HIOLOAD"

// Config holds all tunables of the reactor, the protocol layer and the
// ambient services around them.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"` // TCP bind address, e.g. ":9000"
	Backlog    int    `mapstructure:"backlog"`     // listen(2) backlog

	Workers           int  `mapstructure:"workers"`             // reactor workers, <=0 = NumCPU
	OneShot           bool `mapstructure:"one_shot"`            // EPOLLONESHOT re-arming
	MaxEvents         int  `mapstructure:"max_events"`          // events per wait
	ReceiveBufferSize int  `mapstructure:"receive_buffer_size"` // per-worker scratch buffer
	WriteChunkSize    int  `mapstructure:"write_chunk_size"`    // outbound flush threshold
	ExitWhenIdle      bool `mapstructure:"exit_when_idle"`      // stop once no socket is registered
	PinWorkers        bool `mapstructure:"pin_workers"`         // pin each worker thread to one CPU

	MaxPayloadLength int    `mapstructure:"max_payload_length"` // outbound frame payload before fragmenting
	MaxMessageSize   uint64 `mapstructure:"max_message_size"`   // inbound reassembled message bound
	MaxHandshakeSize int    `mapstructure:"max_handshake_size"` // bytes buffered before a header is complete

	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"` // empty disables the metrics endpoint
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":9000",
		Backlog:           1024,
		Workers:           0,
		OneShot:           true,
		MaxEvents:         1024,
		ReceiveBufferSize: 512 * 1024,
		WriteChunkSize:    512 * 1024,
		MaxPayloadLength:  64 * 1024,
		MaxMessageSize:    16 << 20,
		MaxHandshakeSize:  8192,
		LogLevel:          "info",
		MetricsAddr:       ":9100",
	}
}

// Validate checks knob ranges.
func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("config: listen_addr is empty")
	case c.ReceiveBufferSize <= 0:
		return fmt.Errorf("config: receive_buffer_size must be positive, got %d", c.ReceiveBufferSize)
	case c.WriteChunkSize <= 0:
		return fmt.Errorf("config: write_chunk_size must be positive, got %d", c.WriteChunkSize)
	case c.MaxPayloadLength < 125:
		return fmt.Errorf("config: max_payload_length must be at least 125, got %d", c.MaxPayloadLength)
	case c.MaxEvents <= 0:
		return fmt.Errorf("config: max_events must be positive, got %d", c.MaxEvents)
	case !c.OneShot && c.Workers != 1:
		return fmt.Errorf("config: one_shot=false requires workers=1, got %d", c.Workers)
	}
	return nil
}

// newViper prepares a viper instance with defaults and env binding.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("backlog", def.Backlog)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("one_shot", def.OneShot)
	v.SetDefault("max_events", def.MaxEvents)
	v.SetDefault("receive_buffer_size", def.ReceiveBufferSize)
	v.SetDefault("write_chunk_size", def.WriteChunkSize)
	v.SetDefault("exit_when_idle", def.ExitWhenIdle)
	v.SetDefault("pin_workers", def.PinWorkers)
	v.SetDefault("max_payload_length", def.MaxPayloadLength)
	v.SetDefault("max_message_size", def.MaxMessageSize)
	v.SetDefault("max_handshake_size", def.MaxHandshakeSize)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	return v
}

// Load reads configuration from file (optional) and HIOLOAD_* environment
// variables on top of the defaults. It returns the viper instance so the
// caller can Watch it.
func Load(file string) (Config, *viper.Viper, error) {
	v := newViper()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

// ConfigStore is a thread-safe holder of the current Config with reload
// listeners.
type ConfigStore struct {
	mu    sync.RWMutex
	cfg   Config
	hooks *ReloadHooks
}

// NewConfigStore wraps cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{cfg: cfg, hooks: NewReloadHooks()}
}

// Get returns a copy of the current configuration.
func (cs *ConfigStore) Get() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.cfg
}

// Set replaces the configuration and runs reload hooks synchronously.
func (cs *ConfigStore) Set(cfg Config) {
	cs.mu.Lock()
	cs.cfg = cfg
	cs.mu.Unlock()
	cs.hooks.TriggerSync(cfg)
}

// OnReload registers a listener called after every Set.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.hooks.Register(fn)
}

// Watch re-reads the config file on change and publishes valid results to
// the store. Invalid updates are logged and ignored. Settings that size the
// reactor (workers, buffers) only take effect on restart.
func Watch(v *viper.Viper, store *ConfigStore, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", "file", e.Name, "op", e.Op.String())
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Error("failed to unmarshal updated config", "error", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Error("rejected updated config", "error", err)
			return
		}
		store.Set(cfg)
		logger.Info("config reloaded")
	})
	v.WatchConfig()
}

// ParseLogLevel parses a string log level to slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

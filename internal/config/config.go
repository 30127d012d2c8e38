package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds every tunable of the server. It is built once at startup
// and passed by value, nothing mutates it afterwards.
type Config struct {
	Root   string `mapstructure:"root"`
	Addr   string `mapstructure:"addr"`
	Port   int    `mapstructure:"port"`
	Secure bool   `mapstructure:"secure"`

	// CertFile and KeyFile select the TLS key pair. When both are empty a
	// self-signed certificate is generated at startup.
	CertFile string `mapstructure:"cert"`
	KeyFile  string `mapstructure:"key"`

	KeepAlive        bool          `mapstructure:"keepalive"`
	KeepAliveTimeout time.Duration `mapstructure:"keepalive-timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	InputBufferSize  int `mapstructure:"input-buffer-size"`
	OutputBufferSize int `mapstructure:"output-buffer-size"`
	MaxPathSize      int `mapstructure:"max-path-size"`

	LogLevel zapcore.Level `mapstructure:"log-level"`
}

const (
	DefaultRoot             = "."
	DefaultAddr             = "127.0.0.1"
	DefaultPort             = 80
	DefaultKeepAliveTimeout = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultInputBufferSize  = 1024
	DefaultOutputBufferSize = 1024
	DefaultMaxPathSize      = 128
	DefaultLogLevel         = zapcore.InfoLevel
)

var (
	ErrInvalidPort       = errors.New("config: port out of range")
	ErrInvalidBufferSize = errors.New("config: buffer size must be positive")
	ErrInvalidPathSize   = errors.New("config: max path size must be positive")
	ErrIncompleteKeyPair = errors.New("config: cert and key must be set together")
	ErrInvalidHandshake  = errors.New("config: handshake timeout must be positive")
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Root:             DefaultRoot,
		Addr:             DefaultAddr,
		Port:             DefaultPort,
		KeepAlive:        false,
		KeepAliveTimeout: DefaultKeepAliveTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		InputBufferSize:  DefaultInputBufferSize,
		OutputBufferSize: DefaultOutputBufferSize,
		MaxPathSize:      DefaultMaxPathSize,
		LogLevel:         DefaultLogLevel,
	}
}

// SetDefaults registers Default() on v so that unset keys fall back to it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root", d.Root)
	v.SetDefault("addr", d.Addr)
	v.SetDefault("port", d.Port)
	v.SetDefault("secure", d.Secure)
	v.SetDefault("cert", d.CertFile)
	v.SetDefault("key", d.KeyFile)
	v.SetDefault("keepalive", d.KeepAlive)
	v.SetDefault("keepalive-timeout", d.KeepAliveTimeout)
	v.SetDefault("handshake-timeout", d.HandshakeTimeout)
	v.SetDefault("input-buffer-size", d.InputBufferSize)
	v.SetDefault("output-buffer-size", d.OutputBufferSize)
	v.SetDefault("max-path-size", d.MaxPathSize)
	v.SetDefault("log-level", d.LogLevel.String())
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.InputBufferSize <= 0 || c.OutputBufferSize <= 0 {
		return ErrInvalidBufferSize
	}
	if c.MaxPathSize <= 0 {
		return ErrInvalidPathSize
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return ErrIncompleteKeyPair
	}
	if c.Secure && c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHandshake, c.HandshakeTimeout)
	}
	return nil
}

// ListenAddr joins Addr and Port in host:port form.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

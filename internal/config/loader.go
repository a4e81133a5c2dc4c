package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"notiontimer/internal/core/model"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NOTIONTIMER_"

// Config holds runtime parameters for the application.
// Zero values in a file mean "unspecified" and keep the defaults.
type Config struct {
	LogLevel       string    `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string    `json:"log_format" yaml:"log_format" toml:"log_format"`
	TickIntervalMS int       `json:"tick_interval_ms" yaml:"tick_interval_ms" toml:"tick_interval_ms"`
	RemoteControl  bool      `json:"remote_control" yaml:"remote_control" toml:"remote_control"`
	Headless       bool      `json:"headless" yaml:"headless" toml:"headless"`
	Broadcast      Broadcast `json:"broadcast" yaml:"broadcast" toml:"broadcast"`
	Relay          Relay     `json:"relay" yaml:"relay" toml:"relay"`
}

// Broadcast configures the WebSocket endpoint.
type Broadcast struct {
	Disabled       bool     `json:"disabled" yaml:"disabled" toml:"disabled"`
	Host           string   `json:"host" yaml:"host" toml:"host"`
	Port           int      `json:"port" yaml:"port" toml:"port"`
	Path           string   `json:"path" yaml:"path" toml:"path"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	WriteTimeoutMS int      `json:"write_timeout_ms" yaml:"write_timeout_ms" toml:"write_timeout_ms"`
	ReadTimeoutMS  int      `json:"read_timeout_ms" yaml:"read_timeout_ms" toml:"read_timeout_ms"`
	PingIntervalMS int      `json:"ping_interval_ms" yaml:"ping_interval_ms" toml:"ping_interval_ms"`
	MaxMessageSize int64    `json:"max_message_size" yaml:"max_message_size" toml:"max_message_size"`
	SendBuffer     int      `json:"send_buffer" yaml:"send_buffer" toml:"send_buffer"`
}

// Relay configures the optional NATS relay.
type Relay struct {
	URL     string `json:"url" yaml:"url" toml:"url"`
	Subject string `json:"subject" yaml:"subject" toml:"subject"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:       "info",
		LogFormat:      "console",
		TickIntervalMS: 500,
		Broadcast: Broadcast{
			Host:           "127.0.0.1",
			Port:           8080,
			Path:           "/",
			AllowedOrigins: []string{"*"},
			WriteTimeoutMS: 10000,
			ReadTimeoutMS:  60000,
			PingIntervalMS: 30000,
			MaxMessageSize: 4096,
			SendBuffer:     16,
		},
		Relay: Relay{Subject: "notiontimer.elapsed"},
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the file at
// path when given, then environment overrides.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = Merge(cfg, fileCfg)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Merge overlays the non-zero fields of override onto base.
func Merge(base, override Config) Config {
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		base.LogFormat = override.LogFormat
	}
	if override.TickIntervalMS > 0 {
		base.TickIntervalMS = override.TickIntervalMS
	}
	base.RemoteControl = base.RemoteControl || override.RemoteControl
	base.Headless = base.Headless || override.Headless

	b, o := &base.Broadcast, override.Broadcast
	b.Disabled = b.Disabled || o.Disabled
	if o.Host != "" {
		b.Host = o.Host
	}
	if o.Port > 0 {
		b.Port = o.Port
	}
	if o.Path != "" {
		b.Path = o.Path
	}
	if len(o.AllowedOrigins) > 0 {
		b.AllowedOrigins = o.AllowedOrigins
	}
	if o.WriteTimeoutMS > 0 {
		b.WriteTimeoutMS = o.WriteTimeoutMS
	}
	if o.ReadTimeoutMS > 0 {
		b.ReadTimeoutMS = o.ReadTimeoutMS
	}
	if o.PingIntervalMS > 0 {
		b.PingIntervalMS = o.PingIntervalMS
	}
	if o.MaxMessageSize > 0 {
		b.MaxMessageSize = o.MaxMessageSize
	}
	if o.SendBuffer > 0 {
		b.SendBuffer = o.SendBuffer
	}

	if override.Relay.URL != "" {
		base.Relay.URL = override.Relay.URL
	}
	if override.Relay.Subject != "" {
		base.Relay.Subject = override.Relay.Subject
	}
	return base
}

// ApplyEnv applies NOTIONTIMER_* overrides from the environment.
func ApplyEnv(cfg *Config) error {
	if v := getEnv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getEnv("HOST"); v != "" {
		cfg.Broadcast.Host = v
	}
	if v := getEnv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sPORT: %w", EnvPrefix, err)
		}
		cfg.Broadcast.Port = port
	}
	if v := getEnv("NATS_URL"); v != "" {
		cfg.Relay.URL = v
	}
	for name, target := range map[string]*bool{
		"REMOTE_CONTROL":     &cfg.RemoteControl,
		"HEADLESS":           &cfg.Headless,
		"BROADCAST_DISABLED": &cfg.Broadcast.Disabled,
	} {
		v := getEnv(name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		}
		*target = parsed
	}
	return nil
}

func getEnv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	if cfg.TickIntervalMS <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if cfg.Broadcast.Port < 0 || cfg.Broadcast.Port > 65535 {
		return fmt.Errorf("invalid broadcast port %d", cfg.Broadcast.Port)
	}
	if !strings.HasPrefix(cfg.Broadcast.Path, "/") {
		return fmt.Errorf("broadcast path must start with /: %q", cfg.Broadcast.Path)
	}
	return nil
}

// StopwatchConfig returns the engine settings.
func (cfg Config) StopwatchConfig() model.StopwatchConfig {
	return model.StopwatchConfig{TickInterval: millis(cfg.TickIntervalMS)}
}

// BroadcastConfig returns the WebSocket endpoint settings.
func (cfg Config) BroadcastConfig() model.BroadcastConfig {
	b := cfg.Broadcast
	return model.BroadcastConfig{
		Enabled:        !b.Disabled,
		Host:           b.Host,
		Port:           b.Port,
		Path:           b.Path,
		WriteTimeout:   millis(b.WriteTimeoutMS),
		ReadTimeout:    millis(b.ReadTimeoutMS),
		PingInterval:   millis(b.PingIntervalMS),
		MaxMessageSize: b.MaxMessageSize,
		SendBuffer:     b.SendBuffer,
		AllowedOrigins: b.AllowedOrigins,
	}
}

// RelayConfig returns the NATS relay settings.
func (cfg Config) RelayConfig() model.RelayConfig {
	return model.RelayConfig{URL: cfg.Relay.URL, Subject: cfg.Relay.Subject}
}

// HostConfig returns the host behavior switches.
func (cfg Config) HostConfig() model.HostConfig {
	return model.HostConfig{RemoteControl: cfg.RemoteControl, ShowOverlay: !cfg.Headless}
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

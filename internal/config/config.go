// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Healing() HealingConfig
	Resolver() ResolverConfig
	Network() NetworkConfig
	Evidence() EvidenceConfig
	AI() AIConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	HealingCfg  HealingConfig  `mapstructure:"healing" yaml:"healing"`
	ResolverCfg ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	NetworkCfg  NetworkConfig  `mapstructure:"network" yaml:"network"`
	EvidenceCfg EvidenceConfig `mapstructure:"evidence" yaml:"evidence"`
	AICfg       AIConfig       `mapstructure:"ai" yaml:"ai"`
}

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Healing() HealingConfig   { return c.HealingCfg }
func (c *Config) Resolver() ResolverConfig { return c.ResolverCfg }
func (c *Config) Network() NetworkConfig   { return c.NetworkCfg }
func (c *Config) Evidence() EvidenceConfig { return c.EvidenceCfg }
func (c *Config) AI() AIConfig             { return c.AICfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// HealingConfig tunes the self-healing engine.
type HealingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// ConfidenceThreshold is the minimum score a candidate must clear.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	// NearbyRadiusPx bounds the positional search of the nearby-element strategy.
	NearbyRadiusPx float64 `mapstructure:"nearby_radius_px" yaml:"nearby_radius_px"`
	// AIEnabled controls whether the AI identification fallback runs at all.
	AIEnabled bool `mapstructure:"ai_enabled" yaml:"ai_enabled"`
}

// ResolverConfig tunes the element resolver retry behavior.
type ResolverConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// NetworkConfig tunes the interception and recording pipeline.
type NetworkConfig struct {
	// RecordBufferSize caps per-pattern recording ring buffers.
	RecordBufferSize int `mapstructure:"record_buffer_size" yaml:"record_buffer_size"`
	// CaptureResponseBodies enables response body capture in the HAR recorder.
	CaptureResponseBodies bool `mapstructure:"capture_response_bodies" yaml:"capture_response_bodies"`
	// MaxReconnectAttempts bounds simulated websocket reconnects.
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	// ReconnectBackoff is the fixed wait between websocket reconnect attempts.
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff" yaml:"reconnect_backoff"`
}

// EvidenceConfig controls where JSON artifacts are written.
type EvidenceConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AIConfig configures the LLM-backed element identifier.
type AIConfig struct {
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// SetConfigDefaults seeds viper with the documented defaults. Called before
// reading any config file so that a missing file yields a usable config.
func SetConfigDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "remedy")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})

	v.SetDefault("healing.enabled", true)
	v.SetDefault("healing.confidence_threshold", 0.7)
	v.SetDefault("healing.nearby_radius_px", 100.0)
	v.SetDefault("healing.ai_enabled", false)

	v.SetDefault("resolver.max_attempts", 3)
	v.SetDefault("resolver.retry_delay", time.Second)

	v.SetDefault("network.record_buffer_size", 100)
	v.SetDefault("network.capture_response_bodies", true)
	v.SetDefault("network.max_reconnect_attempts", 3)
	v.SetDefault("network.reconnect_backoff", time.Second)

	v.SetDefault("evidence.dir", "evidence")

	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.api_timeout", 60*time.Second)
}

// Load reads configuration from the given file (or the default search path
// when empty), environment variables prefixed REMEDY_, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetConfigDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home + "/.remedy")
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REMEDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns a Config populated purely from defaults. Handy for tests
// and for embedding the framework as a library.
func Default() *Config {
	v := viper.New()
	SetConfigDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

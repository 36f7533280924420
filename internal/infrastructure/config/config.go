package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Beeper Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// There is no command-line surface: every tunable has a compiled-in default
// that mirrors the device constants, and the YAML file is optional.
type Config struct {
	Hardware HardwareConfig `yaml:"hardware"`
	AP       APConfig       `yaml:"ap"`
	WiFi     WiFiConfig     `yaml:"wifi"`
	Broker   BrokerConfig   `yaml:"broker"`
	Portal   PortalConfig   `yaml:"portal"`
	Idle     IdleConfig     `yaml:"idle"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HardwareConfig contains GPIO wiring for the buzzer, LED and reset button.
type HardwareConfig struct {
	// Chip is the GPIO character device name (e.g. "gpiochip0").
	Chip string `yaml:"chip"`

	// BuzzerPin drives the active buzzer.
	BuzzerPin int `yaml:"buzzer_pin"`

	// LEDPin gives boot-sequence visual feedback.
	LEDPin int `yaml:"led_pin"`

	// ResetButtonPin is a pulled-up input that triggers a factory reset.
	ResetButtonPin int `yaml:"reset_button_pin"`
}

// APConfig contains the self-hosted access point used during provisioning.
type APConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// WiFiConfig contains station-mode join settings.
type WiFiConfig struct {
	// Interface is the wireless interface name (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// JoinTimeout is the wall-clock bound on a single join attempt.
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// PollInterval is how often join status is checked while waiting.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// BrokerConfig contains the cloud MQTT broker connection settings.
// The username, key and feed key are not configured here: they come from
// the credential store, written by the provisioning portal.
type BrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// MaxConnectAttempts bounds broker connection attempts at boot before
	// falling back to the provisioning portal.
	MaxConnectAttempts int `yaml:"max_connect_attempts"`

	// RetryDelay is the fixed delay between connection attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// PortalConfig contains the provisioning HTTP server settings.
type PortalConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RestartDelay is how long to wait after a successful save before
	// restarting, so the confirmation response is flushed to the client.
	RestartDelay time.Duration `yaml:"restart_delay"`
}

// IdleConfig contains the optional idle deep-power-down settings.
type IdleConfig struct {
	// DeepSleepAfter enters a timed-wake low-power state once this much
	// time has passed without broker activity. Zero disables the feature.
	DeepSleepAfter time.Duration `yaml:"deep_sleep_after"`

	// DeepSleepFor is how long the device sleeps before the timed wake.
	DeepSleepFor time.Duration `yaml:"deep_sleep_for"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains optional event telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// minAPPasswordLength is the shortest AP password most phones will accept.
const minAPPasswordLength = 8

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded, mirroring the device constants)
//  2. YAML file values (override defaults; a missing file is not an error)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BEEPER_SECTION_KEY
// For example: BEEPER_DATABASE_PATH, BEEPER_BROKER_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Run entirely on compiled-in defaults.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the compiled-in device defaults.
func defaultConfig() *Config {
	return &Config{
		Hardware: HardwareConfig{
			Chip:           "gpiochip0",
			BuzzerPin:      25,
			LEDPin:         26,
			ResetButtonPin: 27,
		},
		AP: APConfig{
			SSID:     "BEEPER-SETUP",
			Password: "beeper1234",
		},
		WiFi: WiFiConfig{
			Interface:    "wlan0",
			JoinTimeout:  20 * time.Second,
			PollInterval: 250 * time.Millisecond,
		},
		Broker: BrokerConfig{
			Host:               "io.adafruit.com",
			Port:               8883,
			TLS:                true,
			MaxConnectAttempts: 6,
			RetryDelay:         2 * time.Second,
		},
		Portal: PortalConfig{
			Host:         "0.0.0.0",
			Port:         80,
			RestartDelay: 1500 * time.Millisecond,
		},
		Idle: IdleConfig{
			DeepSleepAfter: 0, // disabled
			DeepSleepFor:   5 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:        "./data/beeper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BEEPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("BEEPER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Broker
	if v := os.Getenv("BEEPER_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}

	// WiFi
	if v := os.Getenv("BEEPER_WIFI_INTERFACE"); v != "" {
		cfg.WiFi.Interface = v
	}

	// Access point
	if v := os.Getenv("BEEPER_AP_SSID"); v != "" {
		cfg.AP.SSID = v
	}
	if v := os.Getenv("BEEPER_AP_PASSWORD"); v != "" {
		cfg.AP.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BEEPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hardware validation
	if c.Hardware.Chip == "" {
		errs = append(errs, "hardware.chip is required")
	}
	if c.Hardware.BuzzerPin < 0 || c.Hardware.LEDPin < 0 || c.Hardware.ResetButtonPin < 0 {
		errs = append(errs, "hardware pins must be non-negative")
	}

	// Access point validation
	if c.AP.SSID == "" {
		errs = append(errs, "ap.ssid is required")
	}
	if c.AP.Password != "" && len(c.AP.Password) < minAPPasswordLength {
		errs = append(errs, "ap.password must be at least 8 characters (or empty for an open AP)")
	}

	// WiFi validation
	if c.WiFi.JoinTimeout <= 0 {
		errs = append(errs, "wifi.join_timeout must be positive")
	}
	if c.WiFi.PollInterval <= 0 {
		errs = append(errs, "wifi.poll_interval must be positive")
	}

	// Broker validation
	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.Broker.MaxConnectAttempts < 1 {
		errs = append(errs, "broker.max_connect_attempts must be at least 1")
	}

	// Portal validation
	if c.Portal.Port < 1 || c.Portal.Port > 65535 {
		errs = append(errs, "portal.port must be between 1 and 65535")
	}

	// Idle validation
	if c.Idle.DeepSleepAfter > 0 && c.Idle.DeepSleepFor <= 0 {
		errs = append(errs, "idle.deep_sleep_for must be positive when idle.deep_sleep_after is set")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HomeLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Home     HomeConfig     `yaml:"home"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HomeConfig identifies the home this instance controls.
// The ID is the first segment after the base namespace in every device topic.
type HomeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Timeouts  MQTTTimeoutConfig   `yaml:"timeouts"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
// ClientID must be unique per running instance; the broker disconnects
// the older session when two clients share an ID.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTimeoutConfig contains connection timing settings (seconds).
type MQTTTimeoutConfig struct {
	Connect   int `yaml:"connect"`
	KeepAlive int `yaml:"keep_alive"`
}

// MQTTReconnectConfig contains reconnection backoff settings (seconds).
// Reconnection is attempted indefinitely; there is no attempt cutoff.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// GatewayConfig contains device gateway settings.
type GatewayConfig struct {
	// EventBuffer is the per-observer buffer capacity for inbound
	// device events. When full, new events for that observer are dropped.
	EventBuffer int `yaml:"event_buffer"`
}

// InfluxDBConfig contains settings for the optional state-history recorder.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMELINK_SECTION_KEY
// For example: HOMELINK_DATABASE_PATH, HOMELINK_MQTT_HOST
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Home: HomeConfig{
			ID:   "home-001",
			Name: "HomeLink",
		},
		Database: DatabaseConfig{
			Path:        "./data/homelink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homelink-core",
			},
			QoS: 1,
			Timeouts: MQTTTimeoutConfig{
				Connect:   30,
				KeepAlive: 60,
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Gateway: GatewayConfig{
			EventBuffer: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMELINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Home
	if v := os.Getenv("HOMELINK_HOME_ID"); v != "" {
		cfg.Home.ID = v
	}

	// Database
	if v := os.Getenv("HOMELINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HOMELINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMELINK_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HOMELINK_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("HOMELINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMELINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HOMELINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Home validation
	if c.Home.ID == "" {
		errs = append(errs, "home.id is required")
	}
	if strings.Contains(c.Home.ID, "/") {
		errs = append(errs, "home.id must not contain '/'")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay")
	}

	// Gateway validation
	if c.Gateway.EventBuffer < 1 {
		errs = append(errs, "gateway.event_buffer must be at least 1")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set HOMELINK_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *MQTTConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Timeouts.Connect) * time.Second
}

// KeepAlive returns the MQTT keepalive interval as a Duration.
func (c *MQTTConfig) KeepAlive() time.Duration {
	return time.Duration(c.Timeouts.KeepAlive) * time.Second
}

// InitialReconnectDelay returns the initial reconnect backoff as a Duration.
func (c *MQTTConfig) InitialReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.InitialDelay) * time.Second
}

// MaxReconnectDelay returns the reconnect backoff cap as a Duration.
func (c *MQTTConfig) MaxReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelay) * time.Second
}

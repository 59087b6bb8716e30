package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names for the Lumiere coordination channel.
const (
	TransportSocketIO = "socketio"
	TransportMQTT     = "mqtt"
)

// Inventory policies across transport-level reconnects.
const (
	InventoryRefetch = "refetch"
	InventoryCache   = "cache"
)

// Config is the root configuration structure for the Lumiere LIFX bridge.
// Configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Lumiere  LumiereConfig  `yaml:"lumiere"`
	LIFX     LIFXConfig     `yaml:"lifx"`
	Session  SessionConfig  `yaml:"session"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID                  string        `yaml:"id" env:"LUMIERE_BRIDGE_ID"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// LumiereConfig describes how to reach the Lumiere coordination channel.
type LumiereConfig struct {
	URL       string         `yaml:"url" env:"LUMIERE_API_DOMAIN"`
	Transport string         `yaml:"transport" env:"LUMIERE_TRANSPORT"`
	SocketIO  SocketIOConfig `yaml:"socketio"`
	Topics    LumiereTopics  `yaml:"topics"`
	Buffer    int            `yaml:"buffer"`
}

// SocketIOConfig contains Socket.IO transport settings.
type SocketIOConfig struct {
	Path             string          `yaml:"path"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig controls transport-level reconnection.
type ReconnectConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// LumiereTopics are the MQTT topics used when the coordination channel runs over MQTT.
type LumiereTopics struct {
	Palette string `yaml:"palette"`
	Request string `yaml:"request"`
}

// LIFXConfig contains LIFX HTTP API settings and per-update parameters.
type LIFXConfig struct {
	APIURL     string        `yaml:"api_url" env:"LUMIERE_LIFX_API_URL"`
	Token      string        `yaml:"token" env:"LUMIERE_LIFX_API_KEY"`
	Selector   string        `yaml:"selector" env:"LUMIERE_LIFX_LIGHTS"`
	Brightness float64       `yaml:"brightness" env:"LUMIERE_LIFX_BRIGHTNESS"`
	Duration   float64       `yaml:"duration" env:"LUMIERE_LIFX_DURATION"`
	Shuffle    bool          `yaml:"shuffle" env:"LUMIERE_LIFX_SHUFFLE"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SessionConfig contains the retry budget of the session supervisor.
type SessionConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" env:"LUMIERE_SESSION_MAX_ATTEMPTS"`
	RetryDelay      time.Duration `yaml:"retry_delay" env:"LUMIERE_SESSION_RETRY_DELAY"`
	InventoryPolicy string        `yaml:"inventory_policy" env:"LUMIERE_INVENTORY_POLICY"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"LUMIERE_MQTT_ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"LUMIERE_MQTT_HOST"`
	Port     int    `yaml:"port" env:"LUMIERE_MQTT_PORT"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"LUMIERE_MQTT_USERNAME"`
	Password string `yaml:"password" env:"LUMIERE_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"LUMIERE_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"LUMIERE_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"LUMIERE_INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled" env:"LUMIERE_API_ENABLED"`
	Host      string           `yaml:"host" env:"LUMIERE_API_HOST"`
	Port      int              `yaml:"port" env:"LUMIERE_API_PORT"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// WebSocketConfig contains the /ws event stream settings. Durations are in seconds.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LUMIERE_LOG_LEVEL"`
	Format string `yaml:"format" env:"LUMIERE_LOG_FORMAT"`
	Output string `yaml:"output"`
}

// Load builds the configuration.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, if path is non-empty
//  3. A .env file in the working directory, if present
//  4. Environment variables (override file values)
//
// LOG_LEVEL is honoured when LUMIERE_LOG_LEVEL is unset.
//
// Environment variable names match the other Lumiere clients,
// e.g. LUMIERE_API_DOMAIN, LUMIERE_LIFX_API_KEY, LUMIERE_LIFX_LIGHTS.
//
// Parameters:
//   - path: Path to the YAML configuration file; empty means defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads variables from a dotenv file without overriding
// variables already present in the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                  "lumiere-lifx",
			HealthCheckInterval: 30 * time.Second,
		},
		Lumiere: LumiereConfig{
			URL:       "https://api.lumiere.lighting",
			Transport: TransportSocketIO,
			SocketIO: SocketIOConfig{
				Path:             "/socket.io/",
				HandshakeTimeout: 10 * time.Second,
				Reconnect: ReconnectConfig{
					Enabled:      true,
					MaxAttempts:  10,
					InitialDelay: time.Second,
					MaxDelay:     5 * time.Second,
				},
			},
			Topics: LumiereTopics{
				Palette: "lumiere/lights",
				Request: "lumiere/lights/get",
			},
			Buffer: 16,
		},
		LIFX: LIFXConfig{
			APIURL:     "https://api.lifx.com/v1",
			Selector:   "all",
			Brightness: 0.85,
			Duration:   1,
			Timeout:    10 * time.Second,
		},
		Session: SessionConfig{
			MaxAttempts:     5,
			RetryDelay:      5 * time.Second,
			InventoryPolicy: InventoryRefetch,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumiere-lifx",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:           "lumiere",
			Bucket:        "lumiere",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 9090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides overlays LUMIERE_* environment variables onto cfg.
// Fields whose variable is unset keep their current value.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	if _, set := os.LookupEnv("LUMIERE_LOG_LEVEL"); !set {
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			cfg.Logging.Level = normalizeLogLevel(v)
		}
	}
	return nil
}

// normalizeLogLevel accepts the LOG_LEVEL values the other Lumiere clients
// use, numeric (10, 20, 30, 40, 50) or named, and returns a logging level name.
func normalizeLogLevel(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "10", "debug":
		return "debug"
	case "20", "info":
		return "info"
	case "30", "warn", "warning":
		return "warn"
	case "40", "50", "error", "critical", "fatal":
		return "error"
	default:
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.Lumiere.URL == "" {
		errs = append(errs, "lumiere.url is required")
	}
	switch c.Lumiere.Transport {
	case TransportSocketIO:
	case TransportMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "lumiere.transport mqtt requires mqtt.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("lumiere.transport must be %q or %q", TransportSocketIO, TransportMQTT))
	}
	if c.Lumiere.Buffer < 1 {
		errs = append(errs, "lumiere.buffer must be at least 1")
	}

	if c.LIFX.APIURL == "" {
		errs = append(errs, "lifx.api_url is required")
	}
	if c.LIFX.Token == "" {
		errs = append(errs, "lifx.token is required (set LUMIERE_LIFX_API_KEY environment variable)")
	}
	if c.LIFX.Selector == "" {
		errs = append(errs, "lifx.selector is required")
	}
	if c.LIFX.Brightness < 0 || c.LIFX.Brightness > 1 {
		errs = append(errs, "lifx.brightness must be between 0 and 1")
	}
	if c.LIFX.Duration < 0 {
		errs = append(errs, "lifx.duration must not be negative")
	}

	if c.Session.MaxAttempts < 1 {
		errs = append(errs, "session.max_attempts must be at least 1")
	}
	if c.Session.RetryDelay < 0 {
		errs = append(errs, "session.retry_delay must not be negative")
	}
	if c.Session.InventoryPolicy != InventoryRefetch && c.Session.InventoryPolicy != InventoryCache {
		errs = append(errs, fmt.Sprintf("session.inventory_policy must be %q or %q", InventoryRefetch, InventoryCache))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

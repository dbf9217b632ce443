package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic device catalog.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Update    UpdateConfig    `yaml:"update"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Fusion    FusionConfig    `yaml:"fusion"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The catalog only publishes, so the broker is optional.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// FetchConfig controls how raw source material is downloaded.
type FetchConfig struct {
	// Timeout is the hard per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	UserAgent    string `yaml:"user_agent"`
	MaxRedirects int    `yaml:"max_redirects"`

	// HostDelay is the minimum spacing between two requests to the same host.
	HostDelay time.Duration `yaml:"host_delay"`

	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// UpdateConfig controls update cycles.
type UpdateConfig struct {
	ForceUpdate  bool     `yaml:"force_update"`
	SourceFilter []string `yaml:"source_filter"`

	// AutoSchedule arms one refresh timer per source after the initial cycle.
	AutoSchedule bool `yaml:"auto_schedule"`

	// Concurrency bounds how many sources are fetched at once.
	Concurrency int `yaml:"concurrency"`

	// SnapshotPath is where the canonical database JSON is written after
	// each cycle. Empty disables the snapshot.
	SnapshotPath string `yaml:"snapshot_path"`

	// HistoryKeep is how many update reports are retained. 0 keeps all.
	HistoryKeep int `yaml:"history_keep"`
}

// CorpusConfig points at the local corpus of existing device entries.
type CorpusConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// FusionConfig tunes duplicate detection.
type FusionConfig struct {
	// MinSharedTokens requires grouped entries to share at least this many
	// name tokens. Zero disables the check.
	MinSharedTokens int `yaml:"min_shared_tokens"`
}

// SourceConfig overrides or adds an external catalog source.
// Entries whose ID matches a built-in source only replace the fields they set.
type SourceConfig struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Endpoints       map[string]string `yaml:"endpoints"`
	License         string            `yaml:"license"`
	Maintainer      string            `yaml:"maintainer"`
	RefreshInterval time.Duration     `yaml:"refresh_interval"`
	RuleSet         string            `yaml:"rule_set"`
	Pages           int               `yaml:"pages"`
	PageParam       string            `yaml:"page_param"`
	Disabled        bool              `yaml:"disabled"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_CATALOG_SECTION_KEY
// For example: GRAYLOGIC_CATALOG_DATABASE_PATH, GRAYLOGIC_CATALOG_FORCE_UPDATE
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/catalog.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-catalog",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "GrayLogic-Catalog/1.0 (+https://github.com/nerrad567/gray-logic-catalog)",
			MaxRedirects: 10,
			HostDelay:    time.Second,
			MaxBodyBytes: 32 << 20,
		},
		Update: UpdateConfig{
			AutoSchedule: true,
			Concurrency:  4,
			SnapshotPath: "./data/canonical.json",
			HistoryKeep:  500,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_CATALOG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_CATALOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_CATALOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_CATALOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_CATALOG_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYLOGIC_CATALOG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Update cycle options
	if v := os.Getenv("GRAYLOGIC_CATALOG_FORCE_UPDATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Update.ForceUpdate = b
		}
	}
	if v := os.Getenv("GRAYLOGIC_CATALOG_SOURCES"); v != "" {
		cfg.Update.SourceFilter = splitList(v)
	}
	if v := os.Getenv("GRAYLOGIC_CATALOG_SEED_FILE"); v != "" {
		cfg.Corpus.SeedFile = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch.timeout must be positive")
	}
	if c.Fetch.MaxRedirects < 0 {
		errs = append(errs, "fetch.max_redirects must not be negative")
	}
	if c.Fetch.HostDelay < 0 {
		errs = append(errs, "fetch.host_delay must not be negative")
	}

	if c.Update.Concurrency < 1 {
		errs = append(errs, "update.concurrency must be at least 1")
	}

	if c.Update.HistoryKeep < 0 {
		errs = append(errs, "update.history_keep must not be negative")
	}

	if c.Fusion.MinSharedTokens < 0 {
		errs = append(errs, "fusion.min_shared_tokens must not be negative")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("sources[%d].id %q is duplicated", i, s.ID))
		}
		seen[s.ID] = true
		if s.RefreshInterval < 0 {
			errs = append(errs, fmt.Sprintf("sources[%d].refresh_interval must not be negative", i))
		}
		if s.Pages < 0 {
			errs = append(errs, fmt.Sprintf("sources[%d].pages must not be negative", i))
		}
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

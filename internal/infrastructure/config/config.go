package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic assistant link.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	LocalAPI  LocalAPIConfig  `yaml:"local_api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
// The database only holds login accounts; tokens live in the token store file.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// APIConfig contains the cloud-facing HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// LocalAPIConfig contains the on-premises fulfillment listener settings.
// When Port is zero the local routes are served from the main API listener only.
type LocalAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
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

// AssistantConfig contains the voice-assistant account linking and
// fulfillment settings.
type AssistantConfig struct {
	// ProjectID is the assistant platform project the redirect templates are
	// parameterised with.
	ProjectID string `yaml:"project_id"`

	// ClientID and ClientSecret are the credentials the platform presents on
	// the authorization and token endpoints.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// SelfURL is this service's externally visible base URL. Redirect URIs
	// starting with it are accepted when VerifySelfURL is set.
	SelfURL       string `yaml:"self_url"`
	VerifySelfURL bool   `yaml:"verify_self_url"`

	// RedirectTemplates are the well-known callback URIs. "{project}" is
	// replaced with ProjectID.
	RedirectTemplates []string `yaml:"redirect_templates"`

	// AccessTokenTTL is the access token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`

	// TokenStorePath is the JSON file the token store snapshots to.
	TokenStorePath string `yaml:"token_store_path"`

	// LoginUser and LoginPassword seed the first login account when the
	// account table is empty.
	LoginUser     string `yaml:"login_user"`
	LoginPassword string `yaml:"login_password"`

	// ServiceAccountFile is the platform-issued JSON key used to sign
	// state reports and sync requests.
	ServiceAccountFile string `yaml:"service_account_file"`
	HomeGraphURL       string `yaml:"home_graph_url"`

	// RequestSyncDebounce is the sync request debounce window in seconds.
	RequestSyncDebounce int `yaml:"request_sync_debounce"`

	// ReportStateInterval is the periodic full state report interval in minutes.
	ReportStateInterval int `yaml:"report_state_interval"`

	// MinLocalAgentVersion is the oldest local execution agent considered
	// compatible (semantic version, e.g. "1.2.0").
	MinLocalAgentVersion string `yaml:"min_local_agent_version"`
}

// Default assistant settings.
const (
	DefaultAccessTokenTTL      = 60
	DefaultRequestSyncDebounce = 10
	DefaultReportStateInterval = 30
)

// DefaultRedirectTemplates are the production and sandbox account-linking
// callbacks of the assistant platform.
var DefaultRedirectTemplates = []string{
	"https://oauth-redirect.googleusercontent.com/r/{project}",
	"https://oauth-redirect-sandbox.googleusercontent.com/r/{project}",
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_ASSISTANT_CLIENT_SECRET
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
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/assistant.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-assistant",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		LocalAPI: LocalAPIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Assistant: AssistantConfig{
			RedirectTemplates:   append([]string(nil), DefaultRedirectTemplates...),
			AccessTokenTTL:      DefaultAccessTokenTTL,
			TokenStorePath:      "./data/assistant-tokens.json",
			LoginUser:           "owner",
			HomeGraphURL:        "https://homegraph.googleapis.com/v1",
			RequestSyncDebounce: DefaultRequestSyncDebounce,
			ReportStateInterval: DefaultReportStateInterval,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Assistant credentials should never live in the config file in production.
	if v := os.Getenv("GRAYLOGIC_ASSISTANT_CLIENT_ID"); v != "" {
		cfg.Assistant.ClientID = v
	}
	if v := os.Getenv("GRAYLOGIC_ASSISTANT_CLIENT_SECRET"); v != "" {
		cfg.Assistant.ClientSecret = v
	}
	if v := os.Getenv("GRAYLOGIC_ASSISTANT_LOGIN_PASSWORD"); v != "" {
		cfg.Assistant.LoginPassword = v
	}
	if v := os.Getenv("GRAYLOGIC_ASSISTANT_SERVICE_ACCOUNT"); v != "" {
		cfg.Assistant.ServiceAccountFile = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.LocalAPI.Enabled && (c.LocalAPI.Port < 0 || c.LocalAPI.Port > 65535) {
		errs = append(errs, "local_api.port must be between 0 and 65535")
	}

	a := c.Assistant
	if a.ClientID == "" {
		errs = append(errs, "assistant.client_id is required (set GRAYLOGIC_ASSISTANT_CLIENT_ID)")
	}
	if a.ClientSecret == "" {
		errs = append(errs, "assistant.client_secret is required (set GRAYLOGIC_ASSISTANT_CLIENT_SECRET)")
	}
	if a.ProjectID == "" && !a.VerifySelfURL {
		errs = append(errs, "assistant.project_id is required unless verify_self_url is enabled")
	}
	if a.VerifySelfURL && a.SelfURL == "" {
		errs = append(errs, "assistant.self_url is required when verify_self_url is enabled")
	}
	if a.AccessTokenTTL <= 0 {
		errs = append(errs, "assistant.access_token_ttl must be positive")
	}
	if a.TokenStorePath == "" {
		errs = append(errs, "assistant.token_store_path is required")
	}
	if a.RequestSyncDebounce <= 0 {
		errs = append(errs, "assistant.request_sync_debounce must be positive")
	}
	if a.ReportStateInterval <= 0 {
		errs = append(errs, "assistant.report_state_interval must be positive")
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

// AccessTokenLifetime returns the access token TTL as a Duration.
func (a AssistantConfig) AccessTokenLifetime() time.Duration {
	ttl := a.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return time.Duration(ttl) * time.Minute
}

// SyncDebounce returns the request-sync debounce window as a Duration.
func (a AssistantConfig) SyncDebounce() time.Duration {
	d := a.RequestSyncDebounce
	if d <= 0 {
		d = DefaultRequestSyncDebounce
	}
	return time.Duration(d) * time.Second
}

// ReportInterval returns the periodic full report interval as a Duration.
func (a AssistantConfig) ReportInterval() time.Duration {
	m := a.ReportStateInterval
	if m <= 0 {
		m = DefaultReportStateInterval
	}
	return time.Duration(m) * time.Minute
}

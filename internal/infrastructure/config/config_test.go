package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Assistant.ProjectID = "graylogic-home"
	cfg.Assistant.ClientID = "assistant-client"
	cfg.Assistant.ClientSecret = "assistant-secret"
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8090
assistant:
  project_id: "graylogic-home"
  client_id: "assistant-client"
  client_secret: "assistant-secret"
  access_token_ttl: 30
  token_store_path: "/tmp/tokens.json"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Assistant.ProjectID != "graylogic-home" {
		t.Errorf("Assistant.ProjectID = %q, want %q", cfg.Assistant.ProjectID, "graylogic-home")
	}
	if got := cfg.Assistant.AccessTokenLifetime(); got != 30*time.Minute {
		t.Errorf("AccessTokenLifetime() = %v, want 30m", got)
	}
	// Unset keys keep their defaults
	if len(cfg.Assistant.RedirectTemplates) != len(DefaultRedirectTemplates) {
		t.Errorf("RedirectTemplates = %v, want defaults", cfg.Assistant.RedirectTemplates)
	}
	if cfg.Assistant.RequestSyncDebounce != DefaultRequestSyncDebounce {
		t.Errorf("RequestSyncDebounce = %d, want %d", cfg.Assistant.RequestSyncDebounce, DefaultRequestSyncDebounce)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: "site"
assistant:
  project_id: "p"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected validation error for missing client credentials, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing client id", mutate: func(c *Config) { c.Assistant.ClientID = "" }, wantErr: true},
		{name: "missing client secret", mutate: func(c *Config) { c.Assistant.ClientSecret = "" }, wantErr: true},
		{name: "missing project id", mutate: func(c *Config) { c.Assistant.ProjectID = "" }, wantErr: true},
		{
			name: "self url verification replaces project id",
			mutate: func(c *Config) {
				c.Assistant.ProjectID = ""
				c.Assistant.VerifySelfURL = true
				c.Assistant.SelfURL = "https://home.example.net"
			},
		},
		{
			name:    "verify self url without self url",
			mutate:  func(c *Config) { c.Assistant.VerifySelfURL = true },
			wantErr: true,
		},
		{name: "zero access token ttl", mutate: func(c *Config) { c.Assistant.AccessTokenTTL = 0 }, wantErr: true},
		{name: "missing token store", mutate: func(c *Config) { c.Assistant.TokenStorePath = "" }, wantErr: true},
		{name: "zero debounce", mutate: func(c *Config) { c.Assistant.RequestSyncDebounce = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestAssistantConfig_DurationDefaults(t *testing.T) {
	var a AssistantConfig

	if got := a.AccessTokenLifetime(); got != 60*time.Minute {
		t.Errorf("AccessTokenLifetime() = %v, want 60m", got)
	}
	if got := a.SyncDebounce(); got != 10*time.Second {
		t.Errorf("SyncDebounce() = %v, want 10s", got)
	}
	if got := a.ReportInterval(); got != 30*time.Minute {
		t.Errorf("ReportInterval() = %v, want 30m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_ASSISTANT_CLIENT_ID", "env-client")
	t.Setenv("GRAYLOGIC_ASSISTANT_CLIENT_SECRET", "env-secret")
	t.Setenv("GRAYLOGIC_ASSISTANT_LOGIN_PASSWORD", "env-password")
	t.Setenv("GRAYLOGIC_ASSISTANT_SERVICE_ACCOUNT", "/etc/graylogic/sa.json")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Assistant.ClientID", cfg.Assistant.ClientID, "env-client"},
		{"Assistant.ClientSecret", cfg.Assistant.ClientSecret, "env-secret"},
		{"Assistant.LoginPassword", cfg.Assistant.LoginPassword, "env-password"},
		{"Assistant.ServiceAccountFile", cfg.Assistant.ServiceAccountFile, "/etc/graylogic/sa.json"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
	if cfg.Assistant.AccessTokenTTL != DefaultAccessTokenTTL {
		t.Errorf("defaultConfig AccessTokenTTL = %d, want %d", cfg.Assistant.AccessTokenTTL, DefaultAccessTokenTTL)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
backend:
  base_url: "http://router.local:8099"
  api_key: "secret"
  poll_interval: 10
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  enabled: true
  host: "127.0.0.1"
  port: 8098
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

	if cfg.Backend.BaseURL != "http://router.local:8099" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive a file that does not mention them.
	if cfg.Backend.RequestTimeout != 15 {
		t.Errorf("Backend.RequestTimeout = %d, want default 15", cfg.Backend.RequestTimeout)
	}
	if !cfg.Discovery.Enabled {
		t.Error("Discovery.Enabled = false, want default true")
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
backend:
  base_url: ""
discovery:
  enabled: false
database:
  path: "/tmp/test.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for missing base_url without discovery, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend: BackendConfig{
				BaseURL:        "http://router.local:8099",
				PollInterval:   10,
				RequestTimeout: 15,
			},
			Database: DatabaseConfig{Path: "/data/presenced.db"},
			MQTT:     MQTTConfig{QoS: 1},
			API:      APIConfig{Enabled: true, Port: 8098},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{
			name:    "empty base url without discovery",
			mutate:  func(c *Config) { c.Backend.BaseURL = "" },
			wantErr: true,
		},
		{
			name: "empty base url with discovery enabled",
			mutate: func(c *Config) {
				c.Backend.BaseURL = ""
				c.Discovery.Enabled = true
			},
			wantErr: false,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Backend.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "api disabled skips port check",
			mutate:  func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
			wantErr: false,
		},
		{
			name:    "influx enabled without token",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "http://influx:8086" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
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
		Backend: BackendConfig{PollInterval: 10, RequestTimeout: 15},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetPollInterval().Seconds(); got != 10 {
		t.Errorf("GetPollInterval() = %v, want 10", got)
	}

	if got := cfg.GetRequestTimeout().Seconds(); got != 15 {
		t.Errorf("GetRequestTimeout() = %v, want 15", got)
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

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PRESENCE_BACKEND_BASE_URL", "http://10.0.0.1:8099")
	t.Setenv("PRESENCE_BACKEND_API_KEY", "env-key")
	t.Setenv("PRESENCE_BACKEND_POLL_INTERVAL", "30")
	t.Setenv("PRESENCE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("PRESENCE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PRESENCE_MQTT_USERNAME", "testuser")
	t.Setenv("PRESENCE_MQTT_PASSWORD", "testpass")
	t.Setenv("PRESENCE_API_HOST", "192.168.1.1")
	t.Setenv("PRESENCE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Backend.BaseURL != "http://10.0.0.1:8099" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}

	if cfg.Backend.APIKey != "env-key" {
		t.Errorf("Backend.APIKey = %q", cfg.Backend.APIKey)
	}

	if cfg.Backend.PollInterval != 30 {
		t.Errorf("Backend.PollInterval = %d, want 30", cfg.Backend.PollInterval)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_InvalidInterval(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("PRESENCE_BACKEND_POLL_INTERVAL", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.Backend.PollInterval != 10 {
		t.Errorf("Backend.PollInterval = %d, want default 10 for invalid override", cfg.Backend.PollInterval)
	}
}

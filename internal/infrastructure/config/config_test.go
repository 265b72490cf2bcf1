package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-gw"
scheduler:
  workers: 8
harvest:
  endpoints:
    - "https://mainnet.srcful.dev/gw/data/"
    - "mqtt://broker.local:1883/harvest"
devices:
  connections:
    - connection: TCP
      ip: 192.168.1.20
      port: 502
      sn: INV-1
database:
  path: "/tmp/test.db"
api:
  port: 5001
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-gw" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-gw")
	}
	if cfg.Scheduler.Workers != 8 {
		t.Errorf("Scheduler.Workers = %d, want 8", cfg.Scheduler.Workers)
	}
	if len(cfg.Harvest.Endpoints) != 2 {
		t.Errorf("Harvest.Endpoints = %v, want 2 entries", cfg.Harvest.Endpoints)
	}
	if len(cfg.Devices.Connections) != 1 || cfg.Devices.Connections[0]["sn"] != "INV-1" {
		t.Errorf("Devices.Connections = %v", cfg.Devices.Connections)
	}
	if cfg.Devices.Connections[0]["port"] != 502 {
		t.Errorf("port = %#v, want int 502", cfg.Devices.Connections[0]["port"])
	}
	// Defaults survive for sections the file does not mention.
	if cfg.Harvest.Transport.MaxRetries != 3 || cfg.Backend.GQLTimeout != 5 {
		t.Errorf("defaults lost: transport %+v backend %+v", cfg.Harvest.Transport, cfg.Backend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
site:
  id: ""
`))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_BadEnvOverride(t *testing.T) {
	t.Setenv("GATEWAY_API_PORT", "not-a-port")

	_, err := Load(writeConfig(t, "site:\n  id: gw\n"))
	if err == nil || !strings.Contains(err.Error(), "GATEWAY_API_PORT") {
		t.Errorf("Load() error = %v, want GATEWAY_API_PORT error", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Scheduler.Workers = 0 },
			wantErr: "scheduler.workers",
		},
		{
			name:    "relative endpoint",
			mutate:  func(c *Config) { c.Harvest.Endpoints = []string{"gw/data"} },
			wantErr: "harvest.endpoints[0]",
		},
		{
			name:    "connection without type",
			mutate:  func(c *Config) { c.Devices.Connections = []map[string]any{{"sn": "X"}} },
			wantErr: "devices.connections[0].connection",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Org = "o"; c.InfluxDB.Bucket = "b" },
			wantErr: "influxdb.url",
		},
		{
			name:    "redis enabled without addr",
			mutate:  func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" },
			wantErr: "redis.addr",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:   "api disabled ignores port",
			mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
		},
		{
			name:    "unknown log output",
			mutate:  func(c *Config) { c.Logging.Output = "syslog" },
			wantErr: "logging.output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAll(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"site.id", "database.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Scheduler: SchedulerConfig{ShutdownTimeout: 15},
		Harvest:   HarvestConfig{Transport: TransportConfig{Timeout: 7}},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetShutdownTimeout().Seconds(); got != 15 {
		t.Errorf("GetShutdownTimeout() = %v, want 15", got)
	}
	if got := cfg.GetTransportTimeout().Seconds(); got != 7 {
		t.Errorf("GetTransportTimeout() = %v, want 7", got)
	}
	if got := cfg.API.Timeouts.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.API.Timeouts.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.API.Timeouts.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GATEWAY_SITE_ID", "gw-env")
	t.Setenv("GATEWAY_SCHEDULER_WORKERS", "2")
	t.Setenv("GATEWAY_HARVEST_ENDPOINTS", "https://a.example/in, mqtt://b:1883/t ,")
	t.Setenv("GATEWAY_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GATEWAY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GATEWAY_MQTT_USERNAME", "testuser")
	t.Setenv("GATEWAY_MQTT_PASSWORD", "testpass")
	t.Setenv("GATEWAY_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GATEWAY_REDIS_ADDR", "redis:6379")
	t.Setenv("GATEWAY_API_HOST", "192.168.1.1")
	t.Setenv("GATEWAY_API_PORT", "9000")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Site.ID", cfg.Site.ID, "gw-env"},
		{"Scheduler.Workers", cfg.Scheduler.Workers, 2},
		{"len(Harvest.Endpoints)", len(cfg.Harvest.Endpoints), 2},
		{"Harvest.Endpoints[1]", cfg.Harvest.Endpoints[1], "mqtt://b:1883/t"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Redis.Addr", cfg.Redis.Addr, "redis:6379"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9000},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Errorf("PathFromEnv() = %q, want %q", got, DefaultPath)
	}

	t.Setenv("GATEWAY_CONFIG", "/etc/gateway.yaml")
	if got := PathFromEnv(); got != "/etc/gateway.yaml" {
		t.Errorf("PathFromEnv() = %q, want /etc/gateway.yaml", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Scheduler.Workers != 4 {
		t.Errorf("defaultConfig Scheduler.Workers = %d, want 4", cfg.Scheduler.Workers)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 5000 {
		t.Errorf("defaultConfig API.Port = %d, want 5000", cfg.API.Port)
	}
}

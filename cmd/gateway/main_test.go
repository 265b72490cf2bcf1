package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

// TestRun_InvalidConfigValues verifies validation errors stop start-up.
func TestRun_InvalidConfigValues(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG", writeConfig(t, `
site:
  id: test-site
harvest:
  endpoints: ["not a url"]
`))

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "harvest.endpoints[0]") {
		t.Fatalf("run() error = %v, want endpoint validation error", err)
	}
}

// TestRun_StartsAndStops runs the whole gateway with a simulated device
// and stops it through context cancellation.
func TestRun_StartsAndStops(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GATEWAY_CONFIG", writeConfig(t, `
site:
  id: test-site

scheduler:
  workers: 2
  shutdown_timeout: 5

devices:
  connections:
    - connection: SIM
      sn: sim-001

database:
  path: "`+filepath.Join(dir, "gateway.db")+`"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

redis:
  enabled: false

api:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after context cancellation")
	}

	if _, err := os.Stat(filepath.Join(dir, "gateway.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefault tests that the default configuration is valid
func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.DCI.NumCompIndices != 2 || cfg.DCI.NumSimpIndices != 7 {
		t.Errorf("unexpected default index parameters: %+v", cfg.DCI)
	}
}

// TestLoadFromEnv tests environment variable overrides
func TestLoadFromEnv(t *testing.T) {
	vars := map[string]string{
		"DCI_HOST":             "127.0.0.1",
		"DCI_PORT":             "9090",
		"DCI_DIMENSIONS":       "128",
		"DCI_NUM_COMP_INDICES": "3",
		"DCI_NUM_SIMP_INDICES": "10",
		"DCI_NUM_LEVELS":       "3",
		"DCI_PROP_TO_RETRIEVE": "0.5",
		"DCI_CACHE_ENABLED":    "false",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}

	cfg := LoadFromEnv()

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server env overrides not applied: %+v", cfg.Server)
	}
	if cfg.DCI.Dimensions != 128 || cfg.DCI.NumCompIndices != 3 ||
		cfg.DCI.NumSimpIndices != 10 || cfg.DCI.NumLevels != 3 {
		t.Errorf("index env overrides not applied: %+v", cfg.DCI)
	}
	if cfg.DCI.PropToRetrieve != 0.5 {
		t.Errorf("expected prop to retrieve 0.5, got %f", cfg.DCI.PropToRetrieve)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("env configuration invalid: %v", err)
	}
}

// TestLoadFile tests YAML config file loading
func TestLoadFile(t *testing.T) {
	content := `
server:
  host: 10.0.0.1
  port: 7070
  shutdown_timeout: 20s
dci:
  dimensions: 512
  num_comp_indices: 3
  num_levels: 1
cache:
  enabled: true
  capacity: 50
  ttl: 1m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Host != "10.0.0.1" || cfg.Server.Port != 7070 {
		t.Errorf("server section not loaded: %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != 20*time.Second {
		t.Errorf("expected shutdown timeout 20s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.DCI.Dimensions != 512 || cfg.DCI.NumCompIndices != 3 || cfg.DCI.NumLevels != 1 {
		t.Errorf("dci section not loaded: %+v", cfg.DCI)
	}
	// Unset fields keep their defaults
	if cfg.DCI.NumSimpIndices != 7 {
		t.Errorf("expected default num simple indices 7, got %d", cfg.DCI.NumSimpIndices)
	}
	if cfg.Cache.Capacity != 50 || cfg.Cache.TTL != time.Minute {
		t.Errorf("cache section not loaded: %+v", cfg.Cache)
	}
}

// TestLoadFileMissing tests the error path for a missing file
func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

// TestValidate tests rejection of invalid configurations
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"tls without cert", func(c *Config) { c.Server.EnableTLS = true }},
		{"auth without secret", func(c *Config) { c.Server.AuthEnabled = true }},
		{"zero dimensions", func(c *Config) { c.DCI.Dimensions = 0 }},
		{"too many levels", func(c *Config) { c.DCI.NumLevels = 9 }},
		{"visit budget above one", func(c *Config) { c.DCI.PropToVisit = 1.5 }},
		{"retrieve above visit", func(c *Config) { c.DCI.PropToVisit = 0.3; c.DCI.PropToRetrieve = 0.5 }},
		{"zero field of view", func(c *Config) { c.DCI.FieldOfView = 0 }},
		{"zero cache capacity", func(c *Config) { c.Cache.Capacity = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestAddress tests address formatting
func TestAddress(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 1234

	if got := cfg.Server.Address(); got != "localhost:1234" {
		t.Errorf("Address() = %q, want localhost:1234", got)
	}
}

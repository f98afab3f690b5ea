package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds all server configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	DCI    DCIConfig    `yaml:"dci"`
	Cache  CacheConfig  `yaml:"cache"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`             // Server host (default: "0.0.0.0")
	Port            int           `yaml:"port"`             // Server port (default: 8080)
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // Request read timeout
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // Response write timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown timeout
	EnableTLS       bool          `yaml:"enable_tls"`       // Enable TLS
	CertFile        string        `yaml:"cert_file"`        // TLS certificate file
	KeyFile         string        `yaml:"key_file"`         // TLS key file

	CORSEnabled bool     `yaml:"cors_enabled"` // Enable CORS headers
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins

	AuthEnabled bool     `yaml:"auth_enabled"` // Enable JWT authentication
	JWTSecret   string   `yaml:"jwt_secret"`   // HMAC secret for JWT validation
	PublicPaths []string `yaml:"public_paths"` // Paths served without auth
	AdminPaths  []string `yaml:"admin_paths"`  // Paths requiring the admin role

	RateLimitEnabled bool    `yaml:"rate_limit_enabled"` // Enable rate limiting
	RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"` // Requests per second per client
	RateLimitBurst   int     `yaml:"rate_limit_burst"`   // Maximum burst size

	MaxNamespaces int `yaml:"max_namespaces"` // Max number of namespaces
}

// DCIConfig holds the server's default index parameters: the composite and
// simple index counts of new namespaces, the levels and field of view of
// adds, and the field of view and budgets of queries. Dimensions is
// validated but not applied; a namespace takes its dimensionality from the
// rows of its first add.
type DCIConfig struct {
	Dimensions     int     `yaml:"dimensions"`       // Vector dimensions (default: 768)
	NumCompIndices int     `yaml:"num_comp_indices"` // Composite indices (default: 2)
	NumSimpIndices int     `yaml:"num_simp_indices"` // Simple indices per composite (default: 7)
	NumLevels      int     `yaml:"num_levels"`       // Hierarchy levels (default: 2)
	FieldOfView    int     `yaml:"field_of_view"`    // Probes between levels (default: 100)
	PropToVisit    float64 `yaml:"prop_to_visit"`    // Visit budget proportion (default: 1.0)
	PropToRetrieve float64 `yaml:"prop_to_retrieve"` // Retrieve budget proportion (default: 0.8)
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`  // Enable query caching
	Capacity int           `yaml:"capacity"` // Max cache entries
	TTL      time.Duration `yaml:"ttl"`      // Time to live for cache entries
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PublicPaths:     []string{"/v1/health", "/metrics"},
			RateLimitPerSec: 100,
			RateLimitBurst:  200,
			MaxNamespaces:   100,
		},
		DCI: DCIConfig{
			Dimensions:     768,
			NumCompIndices: 2,
			NumSimpIndices: 7,
			NumLevels:      2,
			FieldOfView:    100,
			PropToVisit:    1.0,
			PropToRetrieve: 0.8,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
	}
}

// LoadFile loads configuration from a YAML file on top of the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overlays environment variables onto the configuration
func (c *Config) ApplyEnv() {
	// Server configuration
	if host := os.Getenv("DCI_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("DCI_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if timeout := os.Getenv("DCI_SHUTDOWN_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			c.Server.ShutdownTimeout = t
		}
	}
	if enableTLS := os.Getenv("DCI_ENABLE_TLS"); enableTLS == "true" {
		c.Server.EnableTLS = true
		c.Server.CertFile = os.Getenv("DCI_TLS_CERT")
		c.Server.KeyFile = os.Getenv("DCI_TLS_KEY")
	}
	if auth := os.Getenv("DCI_AUTH_ENABLED"); auth == "true" {
		c.Server.AuthEnabled = true
		c.Server.JWTSecret = os.Getenv("DCI_JWT_SECRET")
	}
	if rl := os.Getenv("DCI_RATE_LIMIT_ENABLED"); rl == "true" {
		c.Server.RateLimitEnabled = true
	}
	if rps := os.Getenv("DCI_RATE_LIMIT_PER_SEC"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			c.Server.RateLimitPerSec = v
		}
	}
	if burst := os.Getenv("DCI_RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			c.Server.RateLimitBurst = v
		}
	}

	// Index configuration
	if dims := os.Getenv("DCI_DIMENSIONS"); dims != "" {
		if d, err := strconv.Atoi(dims); err == nil {
			c.DCI.Dimensions = d
		}
	}
	if v := os.Getenv("DCI_NUM_COMP_INDICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DCI.NumCompIndices = n
		}
	}
	if v := os.Getenv("DCI_NUM_SIMP_INDICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DCI.NumSimpIndices = n
		}
	}
	if v := os.Getenv("DCI_NUM_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DCI.NumLevels = n
		}
	}
	if v := os.Getenv("DCI_FIELD_OF_VIEW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DCI.FieldOfView = n
		}
	}
	if v := os.Getenv("DCI_PROP_TO_VISIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DCI.PropToVisit = f
		}
	}
	if v := os.Getenv("DCI_PROP_TO_RETRIEVE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DCI.PropToRetrieve = f
		}
	}

	// Cache configuration
	if cacheEnabled := os.Getenv("DCI_CACHE_ENABLED"); cacheEnabled == "false" {
		c.Cache.Enabled = false
	}
	if capacity := os.Getenv("DCI_CACHE_CAPACITY"); capacity != "" {
		if v, err := strconv.Atoi(capacity); err == nil {
			c.Cache.Capacity = v
		}
	}
	if ttl := os.Getenv("DCI_CACHE_TTL"); ttl != "" {
		if t, err := time.ParseDuration(ttl); err == nil {
			c.Cache.TTL = t
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}
	if c.Server.AuthEnabled && c.Server.JWTSecret == "" {
		return fmt.Errorf("auth enabled but JWT secret not specified")
	}
	if c.Server.RateLimitEnabled && c.Server.RateLimitPerSec <= 0 {
		return fmt.Errorf("invalid rate limit: %f (must be > 0)", c.Server.RateLimitPerSec)
	}
	if c.Server.MaxNamespaces < 1 {
		return fmt.Errorf("invalid max namespaces: %d (must be > 0)", c.Server.MaxNamespaces)
	}

	// Index validation
	if c.DCI.Dimensions < 1 {
		return fmt.Errorf("invalid dimensions: %d (must be > 0)", c.DCI.Dimensions)
	}
	if c.DCI.NumCompIndices < 1 || c.DCI.NumCompIndices > 64 {
		return fmt.Errorf("invalid num composite indices: %d (recommended: 2-3)", c.DCI.NumCompIndices)
	}
	if c.DCI.NumSimpIndices < 1 || c.DCI.NumSimpIndices > 128 {
		return fmt.Errorf("invalid num simple indices: %d (recommended: 7-10)", c.DCI.NumSimpIndices)
	}
	if c.DCI.NumLevels < 1 || c.DCI.NumLevels > 8 {
		return fmt.Errorf("invalid num levels: %d (must be 1-8)", c.DCI.NumLevels)
	}
	if c.DCI.FieldOfView < 1 {
		return fmt.Errorf("invalid field of view: %d (must be > 0)", c.DCI.FieldOfView)
	}
	if c.DCI.PropToVisit <= 0 || c.DCI.PropToVisit > 1 {
		return fmt.Errorf("invalid prop to visit: %f (must be in (0, 1])", c.DCI.PropToVisit)
	}
	if c.DCI.PropToRetrieve <= 0 || c.DCI.PropToRetrieve > c.DCI.PropToVisit {
		return fmt.Errorf("invalid prop to retrieve: %f (must be in (0, prop_to_visit])", c.DCI.PropToRetrieve)
	}

	// Cache validation
	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	return nil
}

// Address returns the server address (host:port)
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

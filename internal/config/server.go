package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the settings of one squat-server environment.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
	GRPCAddr   string `toml:"grpc_addr"`
	DBPath     string `toml:"db_path"`
	TuningPath string `toml:"tuning_path"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`

	SessionTTL  string `toml:"session_ttl"` // duration string like "10m"
	AdminRoutes bool   `toml:"admin_routes"`
}

// ServerToml is the on-disk layout: one section per environment.
type ServerToml struct {
	Development *ServerConfig
	Production  *ServerConfig
}

// Get returns the section for env.
func (t *ServerToml) Get(env string) (*ServerConfig, error) {
	var c *ServerConfig
	switch strings.ToLower(env) {
	case "dev", "development":
		c = t.Development
	case "prod", "production":
		c = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if c == nil {
		return nil, fmt.Errorf("no %s section in server config", env)
	}
	return c, nil
}

// LoadServerConfig reads the TOML file at path and returns the env section.
func LoadServerConfig(path, env string) (*ServerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return nil, fmt.Errorf("server config must have .toml extension, got %q", ext)
	}
	data, err := readLimited(cleanPath)
	if err != nil {
		return nil, err
	}

	var t ServerToml
	if _, err := toml.Decode(string(data), &t); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}
	c, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s server config: %w", env, err)
	}
	return c, nil
}

// Validate checks required fields.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.SessionTTL != "" {
		if _, err := time.ParseDuration(c.SessionTTL); err != nil {
			return fmt.Errorf("invalid session_ttl '%s': %w", c.SessionTTL, err)
		}
	}
	return nil
}

// GetSessionTTL parses and returns the SessionTTL as a time.Duration.
func (c *ServerConfig) GetSessionTTL() time.Duration {
	if c.SessionTTL == "" {
		return 10 * time.Minute // default
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 10 * time.Minute // default on parse error
	}
	return d
}

// GetDBPath returns the sqlite path or the default.
func (c *ServerConfig) GetDBPath() string {
	if c.DBPath == "" {
		return "squat.db"
	}
	return c.DBPath
}

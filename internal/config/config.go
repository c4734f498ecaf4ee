package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModelFilename is the artifact looked up when no model path is configured
const DefaultModelFilename = "topology_model.json"

// maxConfigSize bounds the YAML file we are willing to parse
const maxConfigSize = 1 * 1024 * 1024

// Config holds the application configuration
type Config struct {
	Port      int            `yaml:"port"`
	DataDir   string         `yaml:"data_dir"`
	ModelPath string         `yaml:"model_path"`
	ModelsDir string         `yaml:"models_dir"`
	LogLevel  string         `yaml:"log_level"`
	Grid      GridConfig     `yaml:"grid"`
	Sessions  SessionsConfig `yaml:"sessions"`
	Version   string         `yaml:"-"`
}

// GridConfig describes the shape the model output is reshaped into
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SessionsConfig bounds the number of concurrently cached sessions
type SessionsConfig struct {
	MaxSessions int    `yaml:"max_sessions"`
	IdleTimeout string `yaml:"idle_timeout"`
}

// Default returns the configuration used when nothing else is specified
func Default() Config {
	return Config{
		Port:      8080,
		DataDir:   "./data",
		ModelPath: DefaultModelFilename,
		ModelsDir: "./models",
		LogLevel:  "info",
		Grid: GridConfig{
			Width:  200,
			Height: 50,
		},
		Sessions: SessionsConfig{
			MaxSessions: 16,
			IdleTimeout: "30m",
		},
	}
}

// Load reads a YAML config file on top of the defaults.
// Fields omitted from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml":
	default:
		return cfg, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", c.Grid.Height, c.Grid.Width)
	}
	if c.Sessions.MaxSessions <= 0 {
		return fmt.Errorf("sessions.max_sessions must be positive, got %d", c.Sessions.MaxSessions)
	}
	if c.Sessions.IdleTimeout != "" {
		if _, err := time.ParseDuration(c.Sessions.IdleTimeout); err != nil {
			return fmt.Errorf("invalid sessions.idle_timeout '%s': %w", c.Sessions.IdleTimeout, err)
		}
	}
	return nil
}

// SessionIdleTimeout parses the idle timeout, falling back to 30 minutes
func (c Config) SessionIdleTimeout() time.Duration {
	if c.Sessions.IdleTimeout == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(c.Sessions.IdleTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

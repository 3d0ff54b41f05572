package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Merge    MergeConfig    `toml:"merge"`
	Database DatabaseConfig `toml:"database"`
}

// LibraryConfig locates the per-user store files.
type LibraryConfig struct {
	Path       string `toml:"path"`        // Directory containing <username>.db files
	ActiveUser string `toml:"active_user"` // Owner of the destination store
}

// MergeConfig contains merge engine settings.
type MergeConfig struct {
	Policy          string `toml:"policy"`           // current-user, source, newest or oldest
	IntervalMinutes int    `toml:"interval_minutes"` // 0 disables the scheduler
}

// DatabaseConfig contains connection pool settings for the destination store.
type DatabaseConfig struct {
	MaxOpenConns int `toml:"max_open_conns"`
	MaxIdleConns int `toml:"max_idle_conns"`
}

// ActiveStorePath returns the path of the destination store for the active user.
func (c *Config) ActiveStorePath() string {
	name := strings.ToLower(c.Library.ActiveUser) + ".db"
	return filepath.Join(c.Library.Path, name)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidInput)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

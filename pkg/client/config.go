package client

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/gofugue/pkg/world"
)

// Config holds client-level configuration parameters, loaded from YAML.
type Config struct {
	// --- Worlds ---
	Worlds       []world.Info `yaml:"worlds"`
	DefaultWorld string       `yaml:"default_world"` // foreground world at startup

	// --- Scripts ---
	Scripts      []string `yaml:"scripts"`       // loaded in order at startup
	WatchScripts bool     `yaml:"watch_scripts"` // reload scripts when they change on disk

	// --- Scrollback ---
	ScrollbackPath      string `yaml:"scrollback_path"`
	ScrollbackRetention int    `yaml:"scrollback_retention"` // seconds, 0 = keep forever

	// --- Session persistence ---
	StorePath string `yaml:"store_path"`

	// --- Input ---
	HistorySize int `yaml:"history_size"`

	// --- Web/observability ---
	WebEnabled bool   `yaml:"web_enabled"`
	WebPort    int    `yaml:"web_port"`
	WebHost    string `yaml:"web_host"` // bind address (default loopback)

	// --- Debug ---
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a Config with working defaults for a local
// session under ~/.gofugue.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".gofugue")
	return &Config{
		ScrollbackPath:      filepath.Join(base, "scrollback.db"),
		ScrollbackRetention: 7 * 86400,
		StorePath:           filepath.Join(base, "session.db"),
		HistorySize:         500,
		WebEnabled:          false,
		WebPort:             8889,
		WebHost:             "127.0.0.1",
	}
}

// LoadConfig reads a YAML config file over the defaults. Script paths
// are resolved relative to the config file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing YAML %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for i, sc := range cfg.Scripts {
		if !filepath.IsAbs(sc) {
			cfg.Scripts[i] = filepath.Join(baseDir, sc)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, w := range c.Worlds {
		if w.Name == "" {
			return fmt.Errorf("world with empty name")
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate world %q", w.Name)
		}
		seen[w.Name] = true
		if w.Host == "" || w.Port <= 0 || w.Port > 65535 {
			return fmt.Errorf("world %q: bad address %s:%d", w.Name, w.Host, w.Port)
		}
	}
	if c.DefaultWorld != "" && !seen[c.DefaultWorld] {
		return fmt.Errorf("default_world %q not defined", c.DefaultWorld)
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 500
	}
	return nil
}

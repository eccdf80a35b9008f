package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the content of the optional nextiond.toml
type Config struct {
	Link    string            `toml:"link"`
	Baud    int               `toml:"baud"`
	Timeout string            `toml:"timeout"`
	Listen  string            `toml:"listen"`
	Table   string            `toml:"table"`
	Events  bool              `toml:"events"`
	Widgets []ComponentConfig `toml:"component"`
}

// ComponentConfig binds one widget of the display
type ComponentConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	Page uint8  `toml:"page"`
	ID   uint8  `toml:"id"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.Baud < 0 {
		return fmt.Errorf("baud must not be negative")
	}
	if _, err := cfg.timeout(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, c := range cfg.Widgets {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("component[%d] missing name", i)
		}
		if strings.TrimSpace(c.Kind) == "" {
			return fmt.Errorf("component[%d] %s missing kind", i, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("component[%d] %s defined twice", i, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

func (cfg Config) timeout() (time.Duration, error) {
	if cfg.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	return d, nil
}

package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultAPIURL is used when the config file has no api_url.
const DefaultAPIURL = "http://localhost:8080"

// Config is the shopper CLI configuration file.
type Config struct {
	APIURL   string `toml:"api_url"`
	Token    string `toml:"token"`
	CartPath string `toml:"cart_path"`
}

// DefaultConfigPath returns ~/.config/marketplace/shopper.toml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "shopper.toml")
}

// LoadConfig reads the TOML file at path. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.CartPath == "" {
		cfg.CartPath = filepath.Join(configDir(), "cart.json")
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as TOML.
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "marketplace")
	}
	return ".marketplace"
}

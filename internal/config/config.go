// Package config resolves the backend endpoint for the heyrag client.
//
// Precedence, highest first:
//   - HEYRAG_API_URL environment variable
//   - ~/.config/heyrag/config.toml
//   - built-in default (http://localhost:8000)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultAPIURL = "http://localhost:8000"

type Config struct {
	// APIURL is the backend base URL, http or https.
	APIURL string `toml:"api_url"`
}

func defaults() *Config {
	return &Config{APIURL: defaultAPIURL}
}

// Load reads the config file if present and applies the env override.
func Load() (*Config, error) {
	cfg := defaults()

	if path, err := configPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("HEYRAG_API_URL"); v != "" {
		cfg.APIURL = v
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported api_url scheme %q", u.Scheme)
	}
	return nil
}

// WSURL derives the WebSocket base URL by swapping the scheme.
func (c *Config) WSURL() string {
	if strings.HasPrefix(c.APIURL, "https") {
		return "wss" + strings.TrimPrefix(c.APIURL, "https")
	}
	return "ws" + strings.TrimPrefix(c.APIURL, "http")
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "heyrag", "config.toml"), nil
}

// DataDir returns the directory for local state, creating it if needed.
func DataDir() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

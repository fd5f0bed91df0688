package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/zapcrm/internal/home"
)

// Config represents ~/.zapcrm/config.toml.
type Config struct {
	Listen  string   `toml:"listen"`
	DataDir string   `toml:"data_dir"`
	Tenants []Tenant `toml:"tenants"`
}

// Tenant configures one store account served by the daemon.
type Tenant struct {
	ID        string          `toml:"id"`
	Name      string          `toml:"name"`
	AutoReply []AutoReplyRule `toml:"auto_reply"`
}

// AutoReplyRule maps a keyword to a canned automated response.
type AutoReplyRule struct {
	Keyword string `toml:"keyword"`
	Reply   string `toml:"reply"`
}

// DefaultListen is used when the config omits a listen address.
const DefaultListen = "127.0.0.1:8440"

// Load reads config from the given path. Returns error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	return &cfg, nil
}

// Validate checks tenant ids and rejects duplicates.
func (c *Config) Validate() error {
	if len(c.Tenants) == 0 {
		return fmt.Errorf("config: at least one [[tenants]] entry is required")
	}
	seen := make(map[string]bool, len(c.Tenants))
	for _, t := range c.Tenants {
		if err := home.ValidateTenantID(t.ID); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("config: duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// TenantIDs returns the configured tenant ids in declaration order.
func (c *Config) TenantIDs() []string {
	ids := make([]string, 0, len(c.Tenants))
	for _, t := range c.Tenants {
		ids = append(ids, t.ID)
	}
	return ids
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Package config loads server configuration from an optional yaml file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Drafts DraftsConfig `mapstructure:"drafts"`
	Tenant TenantConfig `mapstructure:"tenant"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" runs without a file.
	Path string `mapstructure:"path"`
}

type DraftsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type TenantConfig struct {
	ID string `mapstructure:"id"`
}

// Load reads the config file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.path", "cashbook.db")
	v.SetDefault("drafts.ttl", 30*time.Minute)
	v.SetDefault("tenant.id", "default")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

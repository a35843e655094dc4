package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" toml:"port"`
	} `yaml:"server" toml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" toml:"addr"`
		Password string `yaml:"password" toml:"password"`
		DB       int    `yaml:"db" toml:"db"`
		TTL      string `yaml:"ttl" toml:"ttl"`
	} `yaml:"redis" toml:"redis"`
	Postgres struct {
		URL string `yaml:"url" toml:"url"`
	} `yaml:"postgres" toml:"postgres"`
	Catalog struct {
		TTL string `yaml:"ttl" toml:"ttl"`
	} `yaml:"catalog" toml:"catalog"`
	Scoring struct {
		BatchSize int `yaml:"batch_size" toml:"batch_size"`
	} `yaml:"scoring" toml:"scoring"`
	Log struct {
		Debug bool `yaml:"debug" toml:"debug"`
	} `yaml:"log" toml:"log"`
	Seed struct {
		// Path is an optional YAML roster of subjects and students loaded at startup.
		Path string `yaml:"path" toml:"path"`
	} `yaml:"seed" toml:"seed"`
}

// Load reads config from path. Files ending in .toml are parsed as TOML,
// everything else as YAML.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Scoring.BatchSize < 0 {
		return cfg, fmt.Errorf("scoring.batch_size must not be negative, got %d", cfg.Scoring.BatchSize)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// BatchSize returns scoring.batch_size, or 50 when unset.
func (c Config) BatchSize() int {
	if c.Scoring.BatchSize <= 0 {
		return 50
	}
	return c.Scoring.BatchSize
}

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerAddress = "0.0.0.0"
	defaultServerPort    = "1205"
	defaultRedirAddress  = "127.0.0.1"
	defaultRedirPort     = "1081"
	defaultPoolSize      = 64
	defaultTimeout       = 10 * time.Second

	maxKeyLen = 256
)

// ServerConfig is one upstream relay entry.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
	Key     string `yaml:"key"`
}

// RedirConfig is the transparent-redirect listener endpoint.
type RedirConfig struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

// Config is the top-level configuration consumed by the forwarding core.
type Config struct {
	Server         []ServerConfig `yaml:"server"`
	Redir          RedirConfig    `yaml:"redir"`
	PoolSize       int            `yaml:"pool_size"`
	TimeoutSeconds int            `yaml:"timeout"`

	// Timeout is derived from TimeoutSeconds; not part of the YAML shape.
	Timeout time.Duration `yaml:"-"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Server) == 0 {
		return nil, fmt.Errorf("config: at least one 'server' entry is required")
	}

	for i := range cfg.Server {
		s := &cfg.Server[i]
		if s.Address == "" {
			s.Address = defaultServerAddress
		}
		if s.Port == "" {
			s.Port = defaultServerPort
		}
		if s.Key == "" {
			return nil, fmt.Errorf("config: server[%d]: 'key' is required", i)
		}
		// Keep at most maxKeyLen bytes; re-slicing leaves the bytes of
		// the original (immutable) string untouched.
		if len(s.Key) > maxKeyLen {
			s.Key = s.Key[:maxKeyLen]
		}
	}

	if cfg.Redir.Address == "" {
		cfg.Redir.Address = defaultRedirAddress
	}
	if cfg.Redir.Port == "" {
		cfg.Redir.Port = defaultRedirPort
	}

	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.PoolSize < 0 {
		return nil, fmt.Errorf("config: pool_size must be positive, got %d", cfg.PoolSize)
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.Timeout = defaultTimeout
	} else {
		cfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &cfg, nil
}

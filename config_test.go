package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  - key: secret
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server[0].Address != defaultServerAddress {
		t.Errorf("server address = %q, want %q", cfg.Server[0].Address, defaultServerAddress)
	}
	if cfg.Server[0].Port != defaultServerPort {
		t.Errorf("server port = %q, want %q", cfg.Server[0].Port, defaultServerPort)
	}
	if cfg.Redir.Address != defaultRedirAddress {
		t.Errorf("redir address = %q, want %q", cfg.Redir.Address, defaultRedirAddress)
	}
	if cfg.Redir.Port != defaultRedirPort {
		t.Errorf("redir port = %q, want %q", cfg.Redir.Port, defaultRedirPort)
	}
	if cfg.PoolSize != defaultPoolSize {
		t.Errorf("pool size = %d, want %d", cfg.PoolSize, defaultPoolSize)
	}
	if cfg.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, defaultTimeout)
	}
}

func TestLoadConfigMissingServers(t *testing.T) {
	path := writeConfig(t, `
redir:
  address: 127.0.0.1
  port: "1081"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for missing server list")
	}
}

func TestLoadConfigMissingKey(t *testing.T) {
	path := writeConfig(t, `
server:
  - address: 10.0.0.1
    port: "1205"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestLoadConfigTruncatesLongKey(t *testing.T) {
	longKey := strings.Repeat("k", maxKeyLen+100)
	path := writeConfig(t, "server:\n  - key: \""+longKey+"\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Server[0].Key) != maxKeyLen {
		t.Fatalf("key length = %d, want %d", len(cfg.Server[0].Key), maxKeyLen)
	}
	if longKey[:maxKeyLen] != cfg.Server[0].Key {
		t.Fatalf("truncation kept the wrong prefix")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadConfigRejectsNegativePoolSize(t *testing.T) {
	path := writeConfig(t, `
server:
  - key: secret
pool_size: -1
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for negative pool_size")
	}
}

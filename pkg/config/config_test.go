package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
storage:
  db_path: "/var/lib/chatrelay"
security:
  signing_keys: ["k1", "k2"]
live:
  send_buffer: 128
maintenance:
  enabled: true
  cron: "*/10 * * * *"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr mismatch: %q", cfg.Addr())
	}
	if cfg.Storage.DBPath != "/var/lib/chatrelay" {
		t.Fatalf("db path mismatch: %q", cfg.Storage.DBPath)
	}
	if len(cfg.Security.SigningKeys) != 2 {
		t.Fatalf("signing keys mismatch: %v", cfg.Security.SigningKeys)
	}
	if cfg.Live.SendBufferOrDefault() != 128 {
		t.Fatalf("send buffer mismatch: %d", cfg.Live.SendBufferOrDefault())
	}
	if !cfg.Maintenance.Enabled || cfg.Maintenance.Cron != "*/10 * * * *" {
		t.Fatalf("maintenance mismatch: %+v", cfg.Maintenance)
	}
}

func TestLiveDefaults(t *testing.T) {
	var lc LiveConfig
	if lc.SendBufferOrDefault() != 64 {
		t.Fatalf("default send buffer: %d", lc.SendBufferOrDefault())
	}
	if lc.PingIntervalOrDefault() != 30 {
		t.Fatalf("default ping interval: %d", lc.PingIntervalOrDefault())
	}
	if lc.ReadLimitOrDefault() != 4096 {
		t.Fatalf("default read limit: %d", lc.ReadLimitOrDefault())
	}
}

func TestLoadEffectiveEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "0.0.0.0"
  port: 8080
storage:
  db_path: "/from/file"
`)
	t.Setenv("CHATRELAY_DB_PATH", "/from/env")
	t.Setenv("CHATRELAY_SIGNING_KEYS", "s1, s2")

	eff, err := LoadEffective(Flags{Config: path, Set: map[string]bool{"config": true}})
	if err != nil {
		t.Fatalf("load effective failed: %v", err)
	}
	if eff.DBPath != "/from/env" {
		t.Fatalf("env override lost: %q", eff.DBPath)
	}
	if len(eff.Config.Security.SigningKeys) != 2 || eff.Config.Security.SigningKeys[1] != "s2" {
		t.Fatalf("signing keys env parse: %v", eff.Config.Security.SigningKeys)
	}
	if eff.Source != "config" {
		t.Fatalf("source mismatch: %q", eff.Source)
	}
}

func TestLoadEffectiveFlagsWin(t *testing.T) {
	path := writeConfig(t, `
storage:
  db_path: "/from/file"
`)
	eff, err := LoadEffective(Flags{
		Addr:   ":9999",
		DB:     "/from/flag",
		Config: path,
		Set:    map[string]bool{"config": true, "addr": true, "db": true},
	})
	if err != nil {
		t.Fatalf("load effective failed: %v", err)
	}
	if eff.Addr != ":9999" || eff.DBPath != "/from/flag" {
		t.Fatalf("flags did not win: %+v", eff)
	}
	if eff.Source != "flags" {
		t.Fatalf("source mismatch: %q", eff.Source)
	}
}

func TestLoadEffectiveMissingExplicitConfigFails(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := LoadEffective(Flags{Config: missing, Set: map[string]bool{"config": true}}); err == nil {
		t.Fatalf("explicitly named missing config must fail")
	}
	// Default path absence is tolerated.
	if _, err := LoadEffective(Flags{Config: missing, DB: "./db", Addr: ":8080", Set: map[string]bool{}}); err != nil {
		t.Fatalf("default missing config must not fail: %v", err)
	}
}

func TestSigningKeysRuntime(t *testing.T) {
	SetRuntime(&RuntimeConfig{SigningKeys: map[string]struct{}{"k1": {}}})
	t.Cleanup(func() { SetRuntime(&RuntimeConfig{}) })

	keys := GetSigningKeys()
	if _, ok := keys["k1"]; !ok || len(keys) != 1 {
		t.Fatalf("runtime keys mismatch: %v", keys)
	}
	// Returned map is a copy.
	delete(keys, "k1")
	if len(GetSigningKeys()) != 1 {
		t.Fatalf("runtime keys mutated through copy")
	}
}

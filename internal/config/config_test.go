package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Store.Driver != "memory" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savequest.yml")
	yml := `server:
  port: "9090"
store:
  driver: sqlite
  path: /tmp/sq/test.db
gamify:
  revoke_xp_on_cancel: true
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/tmp/sq/test.db" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if !cfg.Gamify.RevokeXPOnCancel {
		t.Fatal("revoke flag not read")
	}
	// Unset sections keep their defaults.
	if cfg.Auth.TokenTTLHours != 7*24 {
		t.Fatalf("ttl = %d", cfg.Auth.TokenTTLHours)
	}
}

func TestLoad_RejectsBadDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savequest.yml")
	if err := os.WriteFile(path, []byte("store:\n  driver: postgres\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_PATH", "data/env.db")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("TOKEN_TTL_HOURS", "12")
	t.Setenv("REVOKE_XP_ON_CANCEL", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Server.Port != "7000" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "data/env.db" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Auth.Secret != "env-secret" || cfg.Auth.TokenTTLHours != 12 {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	if !cfg.Gamify.RevokeXPOnCancel {
		t.Fatal("revoke flag not applied")
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 3 {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
}

func TestApplyEnv_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("TOKEN_TTL_HOURS", "not-a-number")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Auth.TokenTTLHours != 7*24 {
		t.Fatalf("ttl = %d", cfg.Auth.TokenTTLHours)
	}
}

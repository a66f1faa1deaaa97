package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.App.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", cfg.App.Port)
	}
	if cfg.Database.Path != "contract_review.db" {
		t.Errorf("Unexpected default DB path: %q", cfg.Database.Path)
	}
	if cfg.Auth.Bootstrap.Username != "admin" || cfg.Auth.Bootstrap.Password != "admin" {
		t.Error("Bootstrap credentials should default to admin/admin")
	}
	if cfg.Auth.SessionHours != 24 {
		t.Errorf("Expected 24h sessions, got %d", cfg.Auth.SessionHours)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("A missing config file should not error: %v", err)
	}
	if cfg.App.Port != 5000 {
		t.Errorf("Expected defaults, got port %d", cfg.App.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  port: 8080
database:
  path: /tmp/other.db
auth:
  session_hours: 8
  bootstrap:
    username: boss
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Errorf("Expected port override, got %d", cfg.App.Port)
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("Expected path override, got %q", cfg.Database.Path)
	}
	if cfg.Auth.SessionHours != 8 {
		t.Errorf("Expected session hours override, got %d", cfg.Auth.SessionHours)
	}
	if cfg.Auth.Bootstrap.Username != "boss" {
		t.Errorf("Expected bootstrap username override, got %q", cfg.Auth.Bootstrap.Username)
	}
	// Untouched fields keep their defaults.
	if cfg.Auth.Bootstrap.Password != "admin" {
		t.Errorf("Unset bootstrap password should stay default, got %q", cfg.Auth.Bootstrap.Password)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("app: [not a map"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("Malformed YAML should error")
	}
}

func TestLoadClampsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("app:\n  port: -1\nauth:\n  session_hours: 0\n"), 0644)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Port != 5000 || cfg.Auth.SessionHours != 24 {
		t.Errorf("Bad values should fall back to defaults, got %d/%d", cfg.App.Port, cfg.Auth.SessionHours)
	}
}

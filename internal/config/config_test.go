package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/choreboard/choreboard/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Scheduler.GenerateInterval != time.Hour {
		t.Errorf("generate interval = %v, want 1h", cfg.Scheduler.GenerateInterval)
	}
	if cfg.Scheduler.ExpireAssignments {
		t.Error("expire assignments should default to off")
	}
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHOREBOARD_ADDR", ":9999")
	t.Setenv("CHOREBOARD_GENERATE_INTERVAL", "15m")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Addr)
	}
	if cfg.Scheduler.GenerateInterval != 15*time.Minute {
		t.Errorf("generate interval = %v, want 15m", cfg.Scheduler.GenerateInterval)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "choreboard.yaml")
	body := `
addr: ":7000"
timezone: America/Chicago
database:
  driver: mysql
  dsn: "chores:secret@tcp(localhost:3306)/chores"
scheduler:
  expire_assignments: true
  generate_interval: 30m
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("addr = %q, want :7000", cfg.Addr)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver = %q, want mysql", cfg.Database.Driver)
	}
	if !cfg.Scheduler.ExpireAssignments {
		t.Error("expire_assignments not applied")
	}
	if cfg.Scheduler.GenerateInterval != 30*time.Minute {
		t.Errorf("generate interval = %v, want 30m", cfg.Scheduler.GenerateInterval)
	}
	if cfg.Location().String() != "America/Chicago" {
		t.Errorf("location = %v", cfg.Location())
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("nope: 1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := &config.Config{
		Environment: "production",
		Database:    config.DatabaseConfig{Driver: "sqlite", DSN: "x.db"},
		Auth:        config.AuthConfig{JWTSecret: "short", TokenDuration: time.Hour},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short secret to fail in production")
	}

	cfg.Environment = "development"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("development should allow short secret: %v", err)
	}
}

func TestValidate_Driver(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "postgres", DSN: "x"},
		Auth:     config.AuthConfig{TokenDuration: time.Hour},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CHOREBOARD_BACKUP_RETENTION_DAYS=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("CHOREBOARD_BACKUP_RETENTION_DAYS") })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backup.RetentionDays != 7 {
		t.Errorf("retention days = %d, want 7 from .env", cfg.Backup.RetentionDays)
	}
}

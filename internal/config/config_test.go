package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsWithMinimalFile(t *testing.T) {
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.RequestCeiling != 100 {
		t.Errorf("RequestCeiling = %d, want default 100", cfg.RequestCeiling)
	}
	if cfg.BudgetWarnPct != 80 {
		t.Errorf("BudgetWarnPct = %d, want default 80", cfg.BudgetWarnPct)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.StorageBackend != "file" {
		t.Errorf("StorageBackend = %q, want file", cfg.StorageBackend)
	}
	if !cfg.CoalesceEnabled {
		t.Error("CoalesceEnabled = false, want true by default")
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	savedEnv := os.Getenv("ENV_NAME")
	os.Setenv("ENV_NAME", "nonexistent")
	defer os.Setenv("ENV_NAME", savedEnv)

	origWd, _ := os.Getwd()
	os.Chdir(t.TempDir())
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, "not: valid: yaml: [[[")
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for invalid config YAML, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load() error = %v, want message about parse failure", err)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	invalidDurationYAML := minimalEnvYAML + `
cache:
  ttl: "invalid"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, invalidDurationYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want default 5m for invalid duration", cfg.CacheTTL)
	}
}

func TestLoad_BudgetSection(t *testing.T) {
	budgetYAML := minimalEnvYAML + `
budget:
  request_ceiling: 50
  warn_pct: 90
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, budgetYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestCeiling != 50 {
		t.Errorf("RequestCeiling = %d, want 50", cfg.RequestCeiling)
	}
	if cfg.BudgetWarnPct != 90 {
		t.Errorf("BudgetWarnPct = %d, want 90", cfg.BudgetWarnPct)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	badBackendYAML := minimalEnvYAML + `
cache:
  backend: "redis"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, badBackendYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for unsupported cache backend, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "cache.backend") {
		t.Errorf("Load() error = %v, want message about cache.backend", err)
	}
}

func TestLoad_InvalidStorageBackend(t *testing.T) {
	badBackendYAML := minimalEnvYAML + `
storage:
  backend: "postgres"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, badBackendYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for unsupported storage backend, got nil")
	}
	if !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("Load() error = %v, want message about storage.backend", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	saved := os.Getenv("STORAGE_BACKEND")
	os.Setenv("STORAGE_BACKEND", "redis")
	defer func() {
		if saved == "" {
			os.Unsetenv("STORAGE_BACKEND")
		} else {
			os.Setenv("STORAGE_BACKEND", saved)
		}
	}()

	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML+"\nstorage:\n  backend: \"file\"\n")
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageBackend != "redis" {
		t.Errorf("StorageBackend = %q, want env override redis", cfg.StorageBackend)
	}
}

func TestLoad_HTTPTimeoutExceedsRemoteTimeout(t *testing.T) {
	tightYAML := `
server:
  port: "8080"
remote:
  base_url: "http://localhost:3000/api"
  timeout: "30s"
request:
  timeout: "5s"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, tightYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPRequestTimeout <= cfg.RequestTimeout {
		t.Errorf("HTTPRequestTimeout = %v, want greater than remote timeout %v",
			cfg.HTTPRequestTimeout, cfg.RequestTimeout)
	}
}

func TestLoad_CoalesceDisabled(t *testing.T) {
	coalesceYAML := minimalEnvYAML + `
coalesce:
  enabled: false
  timeout: "3s"
`
	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, coalesceYAML)
	os.Chdir(dir)
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CoalesceEnabled {
		t.Error("CoalesceEnabled = true, want false")
	}
	if cfg.CoalesceTimeout != 3*time.Second {
		t.Errorf("CoalesceTimeout = %v, want 3s", cfg.CoalesceTimeout)
	}
}

const minimalEnvYAML = `
server:
  port: "8080"
remote:
  base_url: "http://localhost:3000/api"
  timeout: "30s"
reliability:
  retry_max_attempts: 3
  retry_base_delay: "100ms"
  retry_max_delay: "2s"
  rate_limit_rps: 5
  rate_limit_burst: 10
shutdown:
  timeout: "10s"
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

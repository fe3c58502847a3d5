package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvAndApplyEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("missing .env: %v", err)
	}

	path := filepath.Join(dir, ".env")
	data := "ADMCAL_BASIC_AUTH_USERNAME=admin\nADMCAL_BASIC_AUTH_PASSWORD=from-file\nADMCAL_LOG_LEVEL=DEBUG\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	// t.Setenv restores the variables; godotenv never overrides set ones.
	t.Setenv(EnvBasicAuthUsername, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvBasicAuthPassword, "from-env")
	t.Setenv(EnvListen, "0.0.0.0:9090")
	os.Unsetenv(EnvBasicAuthUsername)
	os.Unsetenv(EnvLogLevel)

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Listen != "0.0.0.0:9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want normalized debug", cfg.LogLevel)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" || cfg.BasicAuth.Password != "from-env" {
		t.Errorf("BasicAuth = %+v", cfg.BasicAuth)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

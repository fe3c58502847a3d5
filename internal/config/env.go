package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides, applied after the YAML file. They keep secrets such
// as the basic auth password out of config.yaml.
const (
	EnvListen            = "ADMCAL_LISTEN"
	EnvLogLevel          = "ADMCAL_LOG_LEVEL"
	EnvBackendURL        = "ADMCAL_BACKEND_URL"
	EnvBasicAuthUsername = "ADMCAL_BASIC_AUTH_USERNAME"
	EnvBasicAuthPassword = "ADMCAL_BASIC_AUTH_PASSWORD"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are not replaced.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from ADMCAL_* variables and re-normalizes.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		if c.Backend == nil {
			c.Backend = &BackendConfig{}
		}
		c.Backend.URL = v
	}
	user, pass := os.Getenv(EnvBasicAuthUsername), os.Getenv(EnvBasicAuthPassword)
	if user != "" || pass != "" {
		if c.BasicAuth == nil {
			c.BasicAuth = &BasicAuthConfig{}
		}
		if user != "" {
			c.BasicAuth.Username = user
		}
		if pass != "" {
			c.BasicAuth.Password = pass
		}
	}
	c.Normalize()
}

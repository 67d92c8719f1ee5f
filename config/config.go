// Package config loads container settings from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvDebug            = "IOC_DEBUG"
	EnvLogLevel         = "IOC_LOG_LEVEL"
	EnvLogFormat        = "IOC_LOG_FORMAT"
	EnvMetricsNamespace = "IOC_METRICS_NAMESPACE"
	EnvValidateOnBoot   = "IOC_VALIDATE_ON_BOOT"
)

// Config holds container settings.
type Config struct {
	Debug            bool
	LogLevel         string // debug | info | warn | error
	LogFormat        string // console | json
	MetricsNamespace string
	ValidateOnBoot   bool
}

// Load reads .env (if present) and populates a Config from environment variables.
// Variables already set in the process environment take precedence over the files.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	return &Config{
		Debug:            envBool(EnvDebug, false),
		LogLevel:         env(EnvLogLevel, "info"),
		LogFormat:        env(EnvLogFormat, "console"),
		MetricsNamespace: env(EnvMetricsNamespace, "ioc"),
		ValidateOnBoot:   envBool(EnvValidateOnBoot, false),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

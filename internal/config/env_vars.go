package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	baseURLVar     = "API_BASE_URL"
	frontendURLVar = "FRONTEND_URL"
	logLevelVar    = "LOG_LEVEL"

	EnvDevelopment = "DEV"
	EnvProduction  = "production"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "5000")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Collab Server")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, EnvDevelopment)
}

func (e EnvVars) IsProduction() bool {
	return strings.EqualFold(e.GetEnv(), EnvProduction)
}

// GetBaseURL returns the public URL of the API (e.g., "https://api.example.com/api").
// The identity provider redirects back to it.
func (EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(GetEnv(baseURLVar, "http://localhost:5000/api"), "/")
}

func (EnvVars) GetFrontendURL() string {
	return GetEnv(frontendURLVar, "http://localhost:5173")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration ("15m", "720h"). Unparseable values fall back to the default.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetEnvList splits a comma separated variable, dropping empty entries.
func GetEnvList(envVar string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(envVar), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package config

import (
	"errors"
	"time"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetBaseURL() string
	GetFrontendURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURL() string
	GetGoogleScopes() []string
	GetAuthFlowTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
}

func New() Config {
	return mainConfig{}
}

// Validate reports configuration that would make the server unsafe to run.
func Validate(c Config) error {
	access, renewal := c.GetAccessTokenSecret(), c.GetRenewalTokenSecret()
	if access == "" || renewal == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must both be set")
	}
	if access == renewal {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.GetAccessTokenExpiry() <= 0 || c.GetRenewalTokenExpiry() <= 0 {
		return errors.New("token expiries must be positive durations")
	}
	switch c.GetSessionStore() {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return errors.New("SESSION_STORE must be memory or redis")
	}
	return nil
}

package config

import "time"

type SecurityConfig interface {
	GetAccessTokenSecret() string
	GetRenewalTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRenewalTokenExpiry() time.Duration
	GetRotateRenewalTokens() bool
	GetRelayRequireAuth() bool
	GetAdminEmails() []string
	GetDefaultRole() string
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetAccessTokenSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Security) GetRenewalTokenSecret() string {
	return GetEnv("JWT_REFRESH_SECRET", "")
}

func (Security) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_EXPIRED_IN", 15*time.Minute)
}

func (Security) GetRenewalTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_REFRESH_EXPIRED_IN", 30*24*time.Hour)
}

func (Security) GetRotateRenewalTokens() bool {
	return GetEnvBool("ROTATE_REFRESH_TOKENS", true)
}

func (Security) GetRelayRequireAuth() bool {
	return GetEnvBool("RELAY_REQUIRE_AUTH", true)
}

func (Security) GetAdminEmails() []string {
	return GetEnvList("ADMIN_EMAILS")
}

func (Security) GetDefaultRole() string {
	return GetEnv("DEFAULT_ROLE", "user")
}

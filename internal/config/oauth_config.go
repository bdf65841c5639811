package config

import "time"

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

// GetGoogleRedirectURL defaults to the callback route under API_BASE_URL.
func (OAuth) GetGoogleRedirectURL() string {
	return GetEnv("GOOGLE_REDIRECT_URL", EnvVars{}.GetBaseURL()+"/auth/google/callback")
}

func (OAuth) GetGoogleScopes() []string {
	return []string{"profile", "email", "https://www.googleapis.com/auth/drive.file"}
}

func (OAuth) GetAuthFlowTimeout() time.Duration {
	return 10 * time.Minute
}

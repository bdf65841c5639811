package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	// accessTokenCookie carries the short lived access credential
	accessTokenCookie = "accessToken"
	// renewalTokenCookie carries the long lived renewal credential
	renewalTokenCookie = "refreshToken"
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *Server) credentialCookie(name, value string, maxAge time.Duration) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.config.IsProduction() {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: sameSite,
		MaxAge:   int(maxAge.Seconds()),
	}
}

func (s *Server) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.credentialCookie(accessTokenCookie, token, s.auth.AccessTokenExpiry()))
}

// setRenewalCookie is only called with a freshly minted renewal credential,
// so the cookie lives exactly as long as the credential.
func (s *Server) setRenewalCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.credentialCookie(renewalTokenCookie, token, s.auth.RenewalTokenExpiry()))
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, renewalTokenCookie} {
		c := s.credentialCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// statusFor maps an error onto the status code the client sees.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrInvalidState), apperrors.Is(err, apperrors.ErrInvalidNonce):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends message with the status for err. Server side failures
// are logged and never echo err to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Msg(message)
		writeMessage(w, status, message)
		return
	}
	log.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg(message)
	writeMessage(w, status, message)
}

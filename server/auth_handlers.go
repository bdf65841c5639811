package server

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-collab-server/server/authflowrepo"
	"github.com/jrsteele09/go-collab-server/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// popupPage closes the login popup and tells the opener the session is ready.
var popupPage = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
  <head>
    <title>Authentication Successful</title>
  </head>
  <body>
    <p>Authentication successful. You can close this tab.</p>
    <script>
      if (window.opener) {
        window.opener.postMessage({ tokenData: "success" }, {{.TargetOrigin}});
      }
      setTimeout(() => { window.close(); }, 100);
    </script>
  </body>
</html>
`))

// GoogleLoginHandler starts the identity handshake. The optional return_url
// query parameter is honoured on the callback when it points at an allowed
// origin.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := generateRandomString(32)
		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: oauth2.GenerateVerifier(),
			Nonce:        generateRandomString(16),
			ReturnURL:    r.URL.Query().Get("return_url"),
		}
		if err := s.authFlows.Upsert(state, flow); err != nil {
			writeError(w, r, err, "Failed to start login")
			return
		}
		http.Redirect(w, r, s.provider.AuthCodeURL(state, flow.CodeVerifier, flow.Nonce), http.StatusFound)
	}
}

// GoogleCallbackHandler completes the handshake and issues the credential
// pair as httpOnly cookies.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")

		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("authorization failed")
			writeMessage(w, http.StatusBadRequest, "Authorization failed")
			return
		}
		if code == "" || state == "" {
			writeMessage(w, http.StatusBadRequest, "Missing code or state parameter")
			return
		}

		flow, err := s.authFlows.Take(state)
		if err != nil {
			writeError(w, r, err, "Invalid state parameter")
			return
		}

		handshake, err := s.provider.Exchange(r.Context(), code, flow.CodeVerifier, flow.Nonce)
		if err != nil {
			writeError(w, r, err, "Authentication failed")
			return
		}

		identity := users.Identity{
			SubjectID: handshake.SubjectID,
			Email:     handshake.Email,
			Role:      s.roles.RoleFor(handshake.Email),
		}
		pair, err := s.auth.Issue(r.Context(), identity, handshake.UpstreamAccessToken)
		if err != nil {
			writeError(w, r, err, "Failed to issue credentials")
			return
		}
		log.Info().Str("email", identity.Email).Str("role", string(identity.Role)).Msg("user signed in")

		s.setAccessCookie(w, pair.AccessToken)
		s.setRenewalCookie(w, pair.RenewalToken)

		if returnURL := flow.ReturnURL; returnURL != "" && s.allowedReturnURL(returnURL) {
			http.Redirect(w, r, returnURL, http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := popupPage.Execute(w, struct{ TargetOrigin string }{s.popupTargetOrigin()}); err != nil {
			log.Err(err).Msg("render popup page")
		}
	}
}

func (s *Server) CheckAuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "Authenticated")
	}
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// RefreshTokenHandler rotates a renewal credential taken from the cookie or,
// for clients without cookies, from the JSON body.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renewal := cookieValue(r, renewalTokenCookie)
		if renewal == "" && r.Body != nil {
			var body refreshTokenRequest
			if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&body); err == nil {
				renewal = body.RefreshToken
			}
		}
		if renewal == "" {
			writeMessage(w, http.StatusUnauthorized, "Refresh token is required")
			return
		}

		pair, err := s.auth.Rotate(r.Context(), renewal)
		if err != nil {
			writeError(w, r, err, "Invalid or expired refresh token")
			return
		}

		s.setAccessCookie(w, pair.AccessToken)
		if pair.RenewalToken != renewal {
			s.setRenewalCookie(w, pair.RenewalToken)
		}
		writeJSON(w, http.StatusOK, refreshTokenResponse{
			AccessToken: pair.AccessToken,
			ExpiresIn:   int(s.auth.AccessTokenExpiry() / time.Second),
		})
	}
}

// LogoutHandler always succeeds; an unknown or superseded renewal
// credential simply has nothing to remove.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if renewal := cookieValue(r, renewalTokenCookie); renewal != "" {
			removed, err := s.auth.Logout(r.Context(), renewal)
			if err != nil {
				log.Err(err).Msg("logout: remove session")
			} else if removed {
				log.Debug().Msg("session removed")
			}
		}
		s.clearAuthCookies(w)
		writeMessage(w, http.StatusOK, "Logged out successfully")
	}
}

func (s *Server) allowedReturnURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return s.config.GetAllowedOrigins().IsAllowedOrigin(u.Scheme + "://" + u.Host)
}

func (s *Server) popupTargetOrigin() string {
	if u, err := url.Parse(s.config.GetFrontendURL()); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return "*"
}

package server

import (
	"net/http"

	"github.com/jrsteele09/go-collab-server/users"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.APIMiddleware()...))

	// AUTH
	s.RegisterRouteHandler("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCheck, ChainMiddleware(s.CheckAuthHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteAuthRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// ADMIN
	s.RegisterRouteHandler("GET "+RouteAdminRelay, ChainMiddleware(s.RelayStatsHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireRole(users.RoleAdmin))...))

	// STORAGE
	s.RegisterRouteHandler("POST "+RouteStorageSaveLetter, ChainMiddleware(s.SaveLetterHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteStorageListLetters, ChainMiddleware(s.ListLettersHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteStorageGetLetter, ChainMiddleware(s.GetLetterHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("PUT "+RouteStorageUpdateLetter, ChainMiddleware(s.UpdateLetterHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteStorageDeleteLetter, ChainMiddleware(s.DeleteLetterHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	// RELAY
	relayMiddleware := []func(http.HandlerFunc) http.HandlerFunc{s.LoggingMiddleware, s.RecoverMiddleware}
	if s.config.GetRelayRequireAuth() {
		relayMiddleware = append(relayMiddleware, s.RequireAuth())
	}
	s.RegisterRouteHandler("GET "+RouteRelay, ChainMiddleware(s.RelayHandler(), relayMiddleware...))
}

// IndexHandler reports the API base URL, which doubles as a liveness check
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.config.GetBaseURL())
	}
}

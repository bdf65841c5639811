package server

import (
	"net/http"

	"github.com/jrsteele09/go-collab-server/relay"
)

// RelayHandler upgrades to the realtime relay. Browsers must come from an
// allowed origin; clients that send no Origin are left to the admission gate.
func (s *Server) RelayHandler() http.HandlerFunc {
	allowed := s.config.GetAllowedOrigins()
	h := relay.Handler(s.hub,
		relay.WithOriginCheck(func(origin string) bool {
			return origin == "" || allowed.IsAllowedOrigin(origin)
		}),
		relay.WithPeerLabel(func(r *http.Request) string {
			if p, ok := PrincipalFromContext(r.Context()); ok {
				return p.Email
			}
			return r.RemoteAddr
		}),
	)
	return h.ServeHTTP
}

type relayStatsResponse struct {
	Peers       int               `json:"peers"`
	Connections []relay.PeerStats `json:"connections"`
}

func (s *Server) RelayStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, relayStatsResponse{
			Peers:       s.hub.Count(),
			Connections: s.hub.Stats(),
		})
	}
}

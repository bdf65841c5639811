package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-collab-server/auth"
	"github.com/jrsteele09/go-collab-server/drive"
	"github.com/jrsteele09/go-collab-server/identity"
	"github.com/jrsteele09/go-collab-server/internal/config"
	"github.com/jrsteele09/go-collab-server/relay"
	"github.com/jrsteele09/go-collab-server/server/authflowrepo"
	"github.com/jrsteele09/go-collab-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Storage is the document store reached with a principal's upstream token.
type Storage interface {
	SaveLetter(ctx context.Context, upstreamToken, title, content string) (string, error)
	ListLetters(ctx context.Context, upstreamToken string) ([]drive.Letter, error)
	GetLetter(ctx context.Context, upstreamToken, fileID string) (*drive.LetterContent, error)
	UpdateLetter(ctx context.Context, upstreamToken, fileID, title, content string) error
	DeleteLetter(ctx context.Context, upstreamToken, fileID string) error
}

// Deps are the long lived components the server routes requests to.
type Deps struct {
	Auth      *auth.Service
	Provider  identity.Provider
	AuthFlows authflowrepo.Repo
	Storage   Storage
	Hub       *relay.Hub
	Roles     *users.RoleAssigner
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config

	auth      *auth.Service
	provider  identity.Provider
	authFlows authflowrepo.Repo
	storage   Storage
	hub       *relay.Hub
	roles     *users.RoleAssigner
}

func New(c config.Config, deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("[Server New] identity provider is required")
	}
	if deps.AuthFlows == nil {
		deps.AuthFlows = authflowrepo.NewInMemoryRepo(c.GetAuthFlowTimeout(), nil)
	}
	if deps.Storage == nil {
		deps.Storage = drive.New()
	}
	if deps.Hub == nil {
		deps.Hub = relay.NewHub()
	}
	if deps.Roles == nil {
		defaultRole, err := users.ParseRole(c.GetDefaultRole())
		if err != nil {
			return nil, errors.Wrap(err, "[Server New] DEFAULT_ROLE")
		}
		deps.Roles = users.NewRoleAssigner(c.GetAdminEmails(), defaultRole)
	}

	s := &Server{
		env:       c.GetEnv(),
		mux:       http.NewServeMux(),
		config:    c,
		auth:      deps.Auth,
		provider:  deps.Provider,
		authFlows: deps.AuthFlows,
		storage:   deps.Storage,
		hub:       deps.Hub,
		roles:     deps.Roles,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub exposes the relay hub so the caller can report on it at shutdown.
func (s *Server) Hub() *relay.Hub {
	return s.hub
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDevelopment {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

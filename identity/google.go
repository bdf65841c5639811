package identity

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const GoogleIssuer = "https://accounts.google.com"

var _ Provider = (*GoogleProvider)(nil)

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Issuer defaults to GoogleIssuer.
	Issuer string
}

// GoogleProvider signs users in with Google and keeps the Google access
// token so storage calls can be made on their behalf.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	oidcConfig  *oidc.Config
	provider    *oidc.Provider
}

func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = GoogleIssuer
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init google oidc provider")
	}

	scopes := append([]string{oidc.ScopeOpenID}, cfg.Scopes...)
	oidcConfig := &oidc.Config{ClientID: cfg.ClientID}
	return &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier:   provider.Verifier(oidcConfig),
		oidcConfig: oidcConfig,
		provider:   provider,
	}, nil
}

// AuthCodeURL asks for offline access with forced consent so Google always
// returns a token that can reach Drive.
func (p *GoogleProvider) AuthCodeURL(state, verifier, nonce string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier, nonce string) (*Handshake, error) {
	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "google token exchange failed")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "google id_token verification failed")
	}

	var claims struct {
		Nonce string `json:"nonce"`
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "google id_token claims parse failed")
	}
	if claims.Nonce != nonce {
		return nil, apperrors.ErrInvalidNonce
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, errors.New("google id_token missing required claims")
	}

	return &Handshake{
		SubjectID:           claims.Sub,
		Email:               claims.Email,
		Name:                claims.Name,
		UpstreamAccessToken: token.AccessToken,
	}, nil
}

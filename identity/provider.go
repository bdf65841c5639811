// Package identity is the boundary to the external OAuth identity provider.
// A completed handshake yields a Handshake, which is what triggers issuance.
package identity

import (
	"context"
)

// Handshake is the outcome of a completed external login.
type Handshake struct {
	SubjectID           string
	Email               string
	Name                string
	UpstreamAccessToken string
}

// Provider runs the authorization code flow against an identity provider.
type Provider interface {
	// AuthCodeURL returns the provider URL the browser is sent to. The
	// verifier is the PKCE code verifier kept for Exchange.
	AuthCodeURL(state, verifier, nonce string) string

	// Exchange trades the callback code for a verified Handshake.
	Exchange(ctx context.Context, code, verifier, nonce string) (*Handshake, error)
}

package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-collab-server/users"
)

// Claims is implemented by the credential payloads this package issues.
type Claims interface {
	jwt.Claims
	stamp(issuedAt, expiresAt time.Time, id string)
}

// AccessClaims is the payload of a short-lived access credential.
// Validity is decided by signature and expiry alone.
type AccessClaims struct {
	Email         string         `json:"email"`
	Role          users.RoleType `json:"role"`
	UpstreamToken string         `json:"accessToken,omitempty"` // Opaque identity-provider token for the storage proxy
	jwt.RegisteredClaims
}

// NewAccessClaims builds access claims for an identity.
func NewAccessClaims(identity users.Identity, upstreamToken string) *AccessClaims {
	return &AccessClaims{
		Email:            identity.Email,
		Role:             identity.Role,
		UpstreamToken:    upstreamToken,
		RegisteredClaims: jwt.RegisteredClaims{Subject: identity.SubjectID},
	}
}

// Identity returns the identity the claims were issued for.
func (c *AccessClaims) Identity() users.Identity {
	return users.Identity{
		SubjectID: c.Subject,
		Email:     c.Email,
		Role:      c.Role,
	}
}

func (c *AccessClaims) stamp(issuedAt, expiresAt time.Time, id string) {
	stampRegistered(&c.RegisteredClaims, issuedAt, expiresAt, id)
}

// RenewalClaims is the payload of a long-lived renewal credential. A valid
// signature is not enough to honour one; it must also match the registry.
type RenewalClaims struct {
	jwt.RegisteredClaims
}

func NewRenewalClaims(subjectID string) *RenewalClaims {
	return &RenewalClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subjectID},
	}
}

func (c *RenewalClaims) stamp(issuedAt, expiresAt time.Time, id string) {
	stampRegistered(&c.RegisteredClaims, issuedAt, expiresAt, id)
}

func stampRegistered(rc *jwt.RegisteredClaims, issuedAt, expiresAt time.Time, id string) {
	rc.IssuedAt = jwt.NewNumericDate(issuedAt)
	rc.ExpiresAt = jwt.NewNumericDate(expiresAt)
	rc.ID = id
}

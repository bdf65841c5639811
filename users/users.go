package users

import (
	"fmt"
	"strings"
)

// RoleType represents the access tier carried in an access credential
type RoleType string

const (
	RoleAdmin RoleType = "admin" // Can reach admin-gated routes
	RoleUser  RoleType = "user"  // Default tier
)

// ParseRole accepts the known role names, case-insensitively.
func ParseRole(s string) (RoleType, error) {
	switch RoleType(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity is the authenticated user as seen by the server. It is created
// when the external handshake completes and never changes within a session.
type Identity struct {
	SubjectID string   `json:"sub"`   // Stable identifier issued by the identity provider
	Email     string   `json:"email"` // Registry key
	Role      RoleType `json:"role"`
}

// HasRole reports whether the identity carries the given role
func (i Identity) HasRole(role RoleType) bool {
	return i.Role == role
}

// RoleAssigner decides which role a freshly authenticated email receives.
type RoleAssigner struct {
	admins      map[string]struct{}
	defaultRole RoleType
}

func NewRoleAssigner(adminEmails []string, defaultRole RoleType) *RoleAssigner {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[normaliseEmail(email)] = struct{}{}
	}
	if defaultRole == "" {
		defaultRole = RoleUser
	}
	return &RoleAssigner{
		admins:      admins,
		defaultRole: defaultRole,
	}
}

func (r *RoleAssigner) RoleFor(email string) RoleType {
	if _, ok := r.admins[normaliseEmail(email)]; ok {
		return RoleAdmin
	}
	return r.defaultRole
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

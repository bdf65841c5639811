package auth

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/jrsteele09/go-collab-server/sessions"
	"github.com/jrsteele09/go-collab-server/token"
	"github.com/jrsteele09/go-collab-server/users"
	"github.com/pkg/errors"
)

const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRenewalTokenExpiry = 30 * 24 * time.Hour
)

// TokenPair is what a client holds after issuance or rotation.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RenewalToken     string
	RenewalExpiresAt time.Time
}

// Principal is the identity decoded from an admitted access credential.
type Principal struct {
	users.Identity
	UpstreamToken string
}

// Service is the auth gateway. It turns completed identity handshakes into
// credential pairs and decides admission, role checks, rotation and logout.
type Service struct {
	codec              *token.Codec
	accessSigner       token.Signer
	renewalSigner      token.Signer
	registry           sessions.Repo
	accessTokenExpiry  time.Duration
	renewalTokenExpiry time.Duration
	rotateRenewal      bool
	nowFunc            func() time.Time
}

type ServiceOption func(*Service)

func WithAccessTokenExpiry(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessTokenExpiry = d
	}
}

func WithRenewalTokenExpiry(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.renewalTokenExpiry = d
	}
}

// WithRenewalRotation controls whether rotation also replaces the renewal
// credential. When disabled the presented renewal credential stays live
// until its own expiry.
func WithRenewalRotation(enabled bool) ServiceOption {
	return func(s *Service) {
		s.rotateRenewal = enabled
	}
}

// WithNowFunc sets the clock used for issuing and verifying credentials.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(accessSigner, renewalSigner token.Signer, registry sessions.Repo, options ...ServiceOption) (*Service, error) {
	if accessSigner == nil || renewalSigner == nil {
		return nil, errors.New("[NewService] access and renewal signers are required")
	}
	if registry == nil {
		return nil, errors.New("[NewService] session registry is required")
	}

	s := &Service{
		accessSigner:       accessSigner,
		renewalSigner:      renewalSigner,
		registry:           registry,
		accessTokenExpiry:  DefaultAccessTokenExpiry,
		renewalTokenExpiry: DefaultRenewalTokenExpiry,
		rotateRenewal:      true,
		nowFunc:            time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.accessTokenExpiry <= 0 || s.renewalTokenExpiry <= 0 {
		return nil, errors.New("[NewService] token expiries must be positive")
	}
	s.codec = token.NewCodec(token.WithNowFunc(s.nowFunc))
	return s, nil
}

// Issue mints a credential pair for identity and records it as the only live
// session for that email, superseding any earlier renewal credential.
func (s *Service) Issue(ctx context.Context, identity users.Identity, upstreamToken string) (*TokenPair, error) {
	if identity.Email == "" {
		return nil, errors.New("cannot issue credentials without an email")
	}

	now := s.nowFunc()
	pair, err := s.mint(identity, upstreamToken, now, true)
	if err != nil {
		return nil, err
	}

	rec := sessions.Record{
		SubjectID:     identity.SubjectID,
		Email:         identity.Email,
		Role:          identity.Role,
		UpstreamToken: upstreamToken,
		RenewalToken:  pair.RenewalToken,
		ExpiresAt:     pair.RenewalExpiresAt,
		UpdatedAt:     now,
	}
	if err := s.registry.Put(ctx, rec); err != nil {
		return nil, errors.Wrapf(err, "record session for %s", identity.Email)
	}
	return pair, nil
}

// Admit decodes an access credential. An absent credential, or one that
// carries no upstream token, is ErrUnauthenticated; anything that fails
// verification is ErrForbidden.
func (s *Service) Admit(raw string) (*Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	var claims token.AccessClaims
	if err := s.codec.Verify(raw, s.accessSigner, &claims); err != nil {
		return nil, apperrors.Outcome(apperrors.ErrForbidden, err)
	}
	if claims.UpstreamToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrUnauthenticated, "no upstream token for %s", claims.Email)
	}
	return &Principal{Identity: claims.Identity(), UpstreamToken: claims.UpstreamToken}, nil
}

// Authorize is the role gate layered after Admit.
func (s *Service) Authorize(p *Principal, role users.RoleType) error {
	if p == nil {
		return apperrors.ErrUnauthenticated
	}
	if !p.HasRole(role) {
		return apperrors.Wrapf(apperrors.ErrForbidden, "%s lacks role %s", p.Email, role)
	}
	return nil
}

// Rotate exchanges a live renewal credential for a fresh access credential.
// The presented credential must verify and must still be the one recorded
// for its identity; a credential superseded by a later issuance, rotation
// or logout is ErrForbidden.
func (s *Service) Rotate(ctx context.Context, renewal string) (*TokenPair, error) {
	if strings.TrimSpace(renewal) == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	var claims token.RenewalClaims
	if err := s.codec.Verify(renewal, s.renewalSigner, &claims); err != nil {
		return nil, apperrors.Outcome(apperrors.ErrForbidden, err)
	}

	rec, err := s.registry.LookupByRenewal(ctx, renewal)
	if err != nil {
		return nil, registryOutcome(err)
	}
	if rec.SubjectID != claims.Subject {
		return nil, apperrors.Wrapf(apperrors.ErrForbidden, "renewal subject does not match session for %s", rec.Email)
	}

	now := s.nowFunc()
	identity := users.Identity{SubjectID: rec.SubjectID, Email: rec.Email, Role: rec.Role}
	pair, err := s.mint(identity, rec.UpstreamToken, now, s.rotateRenewal)
	if err != nil {
		return nil, err
	}

	next := *rec
	next.UpdatedAt = now
	if s.rotateRenewal {
		next.RenewalToken = pair.RenewalToken
		next.ExpiresAt = pair.RenewalExpiresAt
	} else {
		pair.RenewalToken = renewal
		pair.RenewalExpiresAt = rec.ExpiresAt
	}

	// The swap only lands if nothing rotated or removed the session since
	// the lookup, so a racing logout and rotation cannot both succeed.
	if err := s.registry.Replace(ctx, renewal, next); err != nil {
		return nil, registryOutcome(err)
	}
	return pair, nil
}

// Logout removes the session holding renewal. Unknown, superseded or empty
// credentials are not an error. It reports whether a session was removed.
func (s *Service) Logout(ctx context.Context, renewal string) (bool, error) {
	if strings.TrimSpace(renewal) == "" {
		return false, nil
	}
	removed, err := s.registry.RemoveByRenewal(ctx, renewal)
	if err != nil {
		return false, errors.Wrap(err, "logout")
	}
	return removed, nil
}

// AccessTokenExpiry is the lifetime of minted access credentials.
func (s *Service) AccessTokenExpiry() time.Duration { return s.accessTokenExpiry }

// RenewalTokenExpiry is the lifetime of minted renewal credentials.
func (s *Service) RenewalTokenExpiry() time.Duration { return s.renewalTokenExpiry }

func (s *Service) mint(identity users.Identity, upstreamToken string, now time.Time, withRenewal bool) (*TokenPair, error) {
	access, err := s.codec.Issue(token.NewAccessClaims(identity, upstreamToken), s.accessSigner, s.accessTokenExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "issue access token")
	}
	pair := &TokenPair{AccessToken: access, AccessExpiresAt: token.ExpiresAt(now, s.accessTokenExpiry)}
	if !withRenewal {
		return pair, nil
	}

	renewal, err := s.codec.Issue(token.NewRenewalClaims(identity.SubjectID), s.renewalSigner, s.renewalTokenExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "issue renewal token")
	}
	pair.RenewalToken = renewal
	pair.RenewalExpiresAt = token.ExpiresAt(now, s.renewalTokenExpiry)
	return pair, nil
}

func registryOutcome(err error) error {
	if apperrors.Is(err, apperrors.ErrSessionNotFound) {
		return apperrors.Outcome(apperrors.ErrForbidden, err)
	}
	return errors.Wrap(err, "session registry")
}

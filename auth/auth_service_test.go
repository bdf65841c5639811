package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-collab-server/auth"
	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/jrsteele09/go-collab-server/sessions"
	"github.com/jrsteele09/go-collab-server/token"
	"github.com/jrsteele09/go-collab-server/users"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret-1234"
	renewalSecret = "renewal-secret-5678"
	upstreamToken = "ya29.upstream-token"
)

var (
	adminIdentity = users.Identity{SubjectID: "google-1", Email: "admin@example.com", Role: users.RoleAdmin}
	userIdentity  = users.Identity{SubjectID: "google-2", Email: "user@example.com", Role: users.RoleUser}
)

// testFixture holds a gateway wired to an in-memory registry and a
// controllable clock.
type testFixture struct {
	now      time.Time
	registry *sessions.InMemoryRepo
	service  *auth.Service
}

func (f *testFixture) Now() time.Time          { return f.now }
func (f *testFixture) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, options ...auth.ServiceOption) *testFixture {
	t.Helper()
	f := &testFixture{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.registry = sessions.NewInMemoryRepo(sessions.WithClock(f.Now))

	opts := append([]auth.ServiceOption{auth.WithNowFunc(f.Now)}, options...)
	service, err := auth.NewService(token.NewHMACSigner(accessSecret), token.NewHMACSigner(renewalSecret), f.registry, opts...)
	require.NoError(t, err)
	f.service = service
	return f
}

func TestNewService_Validation(t *testing.T) {
	_, err := auth.NewService(nil, token.NewHMACSigner(renewalSecret), sessions.NewInMemoryRepo())
	require.Error(t, err)

	_, err = auth.NewService(token.NewHMACSigner(accessSecret), token.NewHMACSigner(renewalSecret), nil)
	require.Error(t, err)

	_, err = auth.NewService(token.NewHMACSigner(accessSecret), token.NewHMACSigner(renewalSecret), sessions.NewInMemoryRepo(),
		auth.WithAccessTokenExpiry(0))
	require.Error(t, err)
}

func TestLoginExpiryAndRenewalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.service.Issue(ctx, adminIdentity, upstreamToken)
	require.NoError(t, err)
	require.Equal(t, f.now.Add(15*time.Minute), pair.AccessExpiresAt)
	require.Equal(t, f.now.Add(30*24*time.Hour), pair.RenewalExpiresAt)

	principal, err := f.service.Admit(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, adminIdentity, principal.Identity)
	require.Equal(t, upstreamToken, principal.UpstreamToken)

	f.Advance(16 * time.Minute)
	_, err = f.service.Admit(pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)

	renewed, err := f.service.Rotate(ctx, pair.RenewalToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, renewed.AccessToken)

	principal, err = f.service.Admit(renewed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, adminIdentity, principal.Identity)
	require.Equal(t, upstreamToken, principal.UpstreamToken)
}

func TestAdmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
	require.NoError(t, err)

	t.Run("absent credential", func(t *testing.T) {
		_, err := f.service.Admit("")
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("tampered credential", func(t *testing.T) {
		tampered := []byte(pair.AccessToken)
		tampered[len(tampered)/2] ^= 0x01
		_, err := f.service.Admit(string(tampered))
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("renewal credential is not an access credential", func(t *testing.T) {
		_, err := f.service.Admit(pair.RenewalToken)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("missing upstream token", func(t *testing.T) {
		noUpstream, err := f.service.Issue(ctx, users.Identity{SubjectID: "google-9", Email: "nobody@example.com", Role: users.RoleUser}, "")
		require.NoError(t, err)

		_, err = f.service.Admit(noUpstream.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)

	admin := &auth.Principal{Identity: adminIdentity, UpstreamToken: upstreamToken}
	user := &auth.Principal{Identity: userIdentity, UpstreamToken: upstreamToken}

	require.NoError(t, f.service.Authorize(admin, users.RoleAdmin))
	require.NoError(t, f.service.Authorize(user, users.RoleUser))
	require.ErrorIs(t, f.service.Authorize(user, users.RoleAdmin), apperrors.ErrForbidden)
	require.ErrorIs(t, f.service.Authorize(nil, users.RoleAdmin), apperrors.ErrUnauthenticated)
}

func TestRotate(t *testing.T) {
	ctx := context.Background()

	t.Run("absent credential", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Rotate(ctx, " ")
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("undecodable credential", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Rotate(ctx, "not-a-token")
		require.ErrorIs(t, err, apperrors.ErrForbidden)
		require.ErrorIs(t, err, apperrors.ErrMalformedToken)
	})

	t.Run("access credential is not a renewal credential", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)

		_, err = f.service.Rotate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
		require.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})

	t.Run("superseded by a later login", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)
		f.Advance(time.Second)
		_, err = f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)

		// Still a valid signature, but no longer the live credential.
		var claims token.RenewalClaims
		require.NoError(t, token.NewCodec(token.WithNowFunc(f.Now)).Verify(first.RenewalToken, token.NewHMACSigner(renewalSecret), &claims))

		_, err = f.service.Rotate(ctx, first.RenewalToken)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("rotation supersedes the presented credential", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)
		f.Advance(time.Minute)

		renewed, err := f.service.Rotate(ctx, pair.RenewalToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RenewalToken, renewed.RenewalToken)
		require.Equal(t, f.now.Add(30*24*time.Hour), renewed.RenewalExpiresAt)

		_, err = f.service.Rotate(ctx, pair.RenewalToken)
		require.ErrorIs(t, err, apperrors.ErrForbidden)

		_, err = f.service.Rotate(ctx, renewed.RenewalToken)
		require.NoError(t, err)
	})

	t.Run("without rotation the credential is reused", func(t *testing.T) {
		f := newFixture(t, auth.WithRenewalRotation(false))
		pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			f.Advance(20 * time.Minute)
			renewed, err := f.service.Rotate(ctx, pair.RenewalToken)
			require.NoError(t, err)
			require.Equal(t, pair.RenewalToken, renewed.RenewalToken)
			require.Equal(t, pair.RenewalExpiresAt, renewed.RenewalExpiresAt)

			_, err = f.service.Admit(renewed.AccessToken)
			require.NoError(t, err)
		}
	})

	t.Run("expired renewal credential", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)
		f.Advance(30 * 24 * time.Hour)

		_, err = f.service.Rotate(ctx, pair.RenewalToken)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("after logout", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
		require.NoError(t, err)

		removed, err := f.service.Logout(ctx, pair.RenewalToken)
		require.NoError(t, err)
		require.True(t, removed)

		_, err = f.service.Rotate(ctx, pair.RenewalToken)
		require.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.service.Issue(ctx, userIdentity, upstreamToken)
	require.NoError(t, err)
	require.Equal(t, 1, f.registry.Len())

	removed, err := f.service.Logout(ctx, pair.RenewalToken)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 0, f.registry.Len())

	removed, err = f.service.Logout(ctx, pair.RenewalToken)
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, 0, f.registry.Len())

	removed, err = f.service.Logout(ctx, "")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestRotateRacingLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		identity := users.Identity{SubjectID: fmt.Sprintf("google-%d", i), Email: fmt.Sprintf("race-%d@example.com", i), Role: users.RoleUser}
		pair, err := f.service.Issue(ctx, identity, upstreamToken)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			rotated   *auth.TokenPair
			rotateErr error
			removed   bool
			logoutErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			rotated, rotateErr = f.service.Rotate(ctx, pair.RenewalToken)
		}()
		go func() {
			defer wg.Done()
			removed, logoutErr = f.service.Logout(ctx, pair.RenewalToken)
		}()
		wg.Wait()

		require.NoError(t, logoutErr)
		if rotateErr == nil {
			require.False(t, removed, "iteration %d: rotation and logout both won", i)
			_, err := f.service.Rotate(ctx, rotated.RenewalToken)
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, rotateErr, apperrors.ErrForbidden)
			require.True(t, removed, "iteration %d: neither rotation nor logout won", i)
		}
	}
}

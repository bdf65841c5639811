package sessions_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/jrsteele09/go-collab-server/sessions"
	"github.com/jrsteele09/go-collab-server/sessions/sessionstest"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	sessionstest.RunRepoTests(t, func(t *testing.T) sessions.Repo {
		return sessions.NewInMemoryRepo()
	})
}

func TestInMemoryRepo_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := sessions.NewInMemoryRepo(sessions.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, sessions.Record{
		Email:        "jane@example.com",
		RenewalToken: "renewal-1",
		ExpiresAt:    now.Add(time.Hour),
	}))
	require.Equal(t, 1, repo.Len())

	now = now.Add(time.Hour)
	_, err := repo.LookupByRenewal(ctx, "renewal-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	require.Equal(t, 0, repo.Len())
}

func TestFingerprint(t *testing.T) {
	a := sessions.Fingerprint("renewal-1")
	require.Len(t, a, 64)
	require.Equal(t, a, sessions.Fingerprint("renewal-1"))
	require.NotEqual(t, a, sessions.Fingerprint("renewal-2"))
}

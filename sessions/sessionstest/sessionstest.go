// Package sessionstest holds the behaviour every sessions.Repo must share.
package sessionstest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/jrsteele09/go-collab-server/sessions"
	"github.com/jrsteele09/go-collab-server/users"
	"github.com/stretchr/testify/require"
)

// RepoFactory creates an empty Repo for one subtest.
type RepoFactory func(t *testing.T) sessions.Repo

// RunRepoTests runs the complete Repo suite against the provided factory.
func RunRepoTests(t *testing.T, factory RepoFactory) {
	t.Run("PutAndLookup", func(t *testing.T) { testPutAndLookup(t, factory) })
	t.Run("LookupUnknown", func(t *testing.T) { testLookupUnknown(t, factory) })
	t.Run("PutSupersedesPreviousRenewal", func(t *testing.T) { testPutSupersedes(t, factory) })
	t.Run("IdentitiesAreIsolated", func(t *testing.T) { testIsolation(t, factory) })
	t.Run("ReplaceSwapsCredential", func(t *testing.T) { testReplaceSwaps(t, factory) })
	t.Run("ReplaceWithStaleCredentialFails", func(t *testing.T) { testReplaceStale(t, factory) })
	t.Run("ReplaceAfterRemoveFails", func(t *testing.T) { testReplaceAfterRemove(t, factory) })
	t.Run("RemoveByRenewal", func(t *testing.T) { testRemoveByRenewal(t, factory) })
	t.Run("RemoveIsIdempotent", func(t *testing.T) { testRemoveIdempotent(t, factory) })
	t.Run("RejectsInvalidRecords", func(t *testing.T) { testRejectsInvalid(t, factory) })
	t.Run("ReplaceRacingRemoveHasOneWinner", func(t *testing.T) { testReplaceRacingRemove(t, factory) })
}

func record(email, renewal string) sessions.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return sessions.Record{
		SubjectID:     "sub-" + email,
		Email:         email,
		Role:          users.RoleUser,
		UpstreamToken: "upstream-" + email,
		RenewalToken:  renewal,
		ExpiresAt:     now.Add(time.Hour),
		UpdatedAt:     now,
	}
}

func testPutAndLookup(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	rec := record("jane@example.com", "renewal-1")
	require.NoError(t, repo.Put(ctx, rec))

	got, err := repo.LookupByRenewal(ctx, "renewal-1")
	require.NoError(t, err)
	require.Equal(t, rec.Email, got.Email)
	require.Equal(t, rec.SubjectID, got.SubjectID)
	require.Equal(t, rec.Role, got.Role)
	require.Equal(t, rec.UpstreamToken, got.UpstreamToken)
	require.Equal(t, "renewal-1", got.RenewalToken)
	require.WithinDuration(t, rec.ExpiresAt, got.ExpiresAt, time.Second)
}

func testLookupUnknown(t *testing.T, factory RepoFactory) {
	repo := factory(t)

	_, err := repo.LookupByRenewal(context.Background(), "never-issued")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func testPutSupersedes(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-1")))
	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-2")))

	_, err := repo.LookupByRenewal(ctx, "renewal-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	got, err := repo.LookupByRenewal(ctx, "renewal-2")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", got.Email)
}

func testIsolation(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, record("a@example.com", "renewal-a")))
	require.NoError(t, repo.Put(ctx, record("b@example.com", "renewal-b")))
	require.NoError(t, repo.Remove(ctx, "a@example.com"))

	got, err := repo.LookupByRenewal(ctx, "renewal-b")
	require.NoError(t, err)
	require.Equal(t, "b@example.com", got.Email)

	// A credential from one identity cannot replace another identity's record.
	err = repo.Replace(ctx, "renewal-b", record("a@example.com", "renewal-x"))
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func testReplaceSwaps(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-1")))
	require.NoError(t, repo.Replace(ctx, "renewal-1", record("jane@example.com", "renewal-2")))

	_, err := repo.LookupByRenewal(ctx, "renewal-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	got, err := repo.LookupByRenewal(ctx, "renewal-2")
	require.NoError(t, err)
	require.Equal(t, "renewal-2", got.RenewalToken)
}

func testReplaceStale(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-1")))
	require.NoError(t, repo.Replace(ctx, "renewal-1", record("jane@example.com", "renewal-2")))

	err := repo.Replace(ctx, "renewal-1", record("jane@example.com", "renewal-3"))
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = repo.LookupByRenewal(ctx, "renewal-2")
	require.NoError(t, err)
}

func testReplaceAfterRemove(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-1")))
	removed, err := repo.RemoveByRenewal(ctx, "renewal-1")
	require.NoError(t, err)
	require.True(t, removed)

	err = repo.Replace(ctx, "renewal-1", record("jane@example.com", "renewal-2"))
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = repo.LookupByRenewal(ctx, "renewal-2")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func testRemoveByRenewal(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-1")))
	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-2")))

	removed, err := repo.RemoveByRenewal(ctx, "renewal-1")
	require.NoError(t, err)
	require.False(t, removed, "superseded credential must not remove the current record")

	_, err = repo.LookupByRenewal(ctx, "renewal-2")
	require.NoError(t, err)

	removed, err = repo.RemoveByRenewal(ctx, "renewal-2")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = repo.RemoveByRenewal(ctx, "renewal-2")
	require.NoError(t, err)
	require.False(t, removed)
}

func testRemoveIdempotent(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	require.NoError(t, repo.Remove(ctx, "nobody@example.com"))
	require.NoError(t, repo.Put(ctx, record("jane@example.com", "renewal-1")))
	require.NoError(t, repo.Remove(ctx, "jane@example.com"))
	require.NoError(t, repo.Remove(ctx, "jane@example.com"))

	_, err := repo.LookupByRenewal(ctx, "renewal-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func testRejectsInvalid(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	noEmail := record("", "renewal-1")
	require.Error(t, repo.Put(ctx, noEmail))

	noRenewal := record("jane@example.com", "")
	require.Error(t, repo.Put(ctx, noRenewal))

	expired := record("jane@example.com", "renewal-1")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.Error(t, repo.Put(ctx, expired))
}

func testReplaceRacingRemove(t *testing.T, factory RepoFactory) {
	repo := factory(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		email := fmt.Sprintf("race-%d@example.com", i)
		old := fmt.Sprintf("renewal-%d-old", i)
		next := fmt.Sprintf("renewal-%d-new", i)
		require.NoError(t, repo.Put(ctx, record(email, old)))

		var (
			wg         sync.WaitGroup
			replaceErr error
			removed    bool
			removeErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			replaceErr = repo.Replace(ctx, old, record(email, next))
		}()
		go func() {
			defer wg.Done()
			removed, removeErr = repo.RemoveByRenewal(ctx, old)
		}()
		wg.Wait()

		require.NoError(t, removeErr)
		if replaceErr == nil {
			require.False(t, removed, "iteration %d: both rotation and logout won", i)
			_, err := repo.LookupByRenewal(ctx, next)
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, replaceErr, apperrors.ErrSessionNotFound)
			require.True(t, removed, "iteration %d: neither rotation nor logout won", i)
			_, err := repo.LookupByRenewal(ctx, next)
			require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
		}
	}
}

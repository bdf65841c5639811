package authflowrepo

import (
	"errors"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]AuthFlowState
	timeout time.Duration
	nowFunc func() time.Time
}

// NewInMemoryRepo creates a repository whose flows expire after timeout
func NewInMemoryRepo(timeout time.Duration, nowFunc func() time.Time) *InMemoryRepo {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &InMemoryRepo{
		states:  make(map[string]AuthFlowState),
		timeout: timeout,
		nowFunc: nowFunc,
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *authState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowFunc()
	}
	r.states[state] = stored
	return nil
}

// Take retrieves an auth flow state and deletes it
func (r *InMemoryRepo) Take(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, apperrors.ErrInvalidState
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, apperrors.ErrInvalidState
	}
	delete(r.states, state)

	if r.expired(authState) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidState, "login flow started at %s expired", authState.CreatedAt.Format(time.RFC3339))
	}
	return &authState, nil
}

// DeleteExpired removes flows older than the timeout and returns how many went
func (r *InMemoryRepo) DeleteExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for state, authState := range r.states {
		if r.expired(authState) {
			delete(r.states, state)
			n++
		}
	}
	return n
}

func (r *InMemoryRepo) expired(s AuthFlowState) bool {
	return r.timeout > 0 && !r.nowFunc().Before(s.CreatedAt.Add(r.timeout))
}

package authflowrepo

import "time"

// AuthFlowState is what the login redirect remembers until the provider
// calls back with the same state parameter.
type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	// Take returns the state and removes it, so a callback can only be
	// replayed once.
	Take(state string) (*AuthFlowState, error)
	// DeleteExpired drops flows that were started but never completed.
	DeleteExpired() int
}

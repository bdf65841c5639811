package sessions

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

type memoryEntry struct {
	record      Record
	fingerprint string
}

// InMemoryRepo keeps records in process memory. Everything is lost on restart.
type InMemoryRepo struct {
	mu        sync.Mutex
	byEmail   map[string]*memoryEntry
	byRenewal map[string]string // fingerprint -> email
	nowFunc   func() time.Time
}

type InMemoryOption func(*InMemoryRepo)

// WithClock overrides the clock used to expire records.
func WithClock(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.nowFunc = now
	}
}

func NewInMemoryRepo(options ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		byEmail:   make(map[string]*memoryEntry),
		byRenewal: make(map[string]string),
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Put(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateRecord(rec, r.nowFunc()); err != nil {
		return err
	}
	r.store(rec)
	return nil
}

func (r *InMemoryRepo) LookupByRenewal(_ context.Context, token string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.current(Fingerprint(token))
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	rec := entry.record
	return &rec, nil
}

func (r *InMemoryRepo) Replace(_ context.Context, previousToken string, next Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateRecord(next, r.nowFunc()); err != nil {
		return err
	}
	entry, ok := r.current(Fingerprint(previousToken))
	if !ok || entry.record.Email != next.Email {
		return apperrors.ErrSessionNotFound
	}
	r.store(next)
	return nil
}

func (r *InMemoryRepo) RemoveByRenewal(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.current(Fingerprint(token))
	if !ok {
		return false, nil
	}
	r.drop(entry.record.Email)
	return true, nil
}

func (r *InMemoryRepo) Remove(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drop(email)
	return nil
}

// Len returns the number of live records.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	n := 0
	for _, entry := range r.byEmail {
		if entry.record.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

// current resolves a fingerprint to its live entry, dropping it when expired.
// Callers must hold r.mu.
func (r *InMemoryRepo) current(fingerprint string) (*memoryEntry, bool) {
	email, ok := r.byRenewal[fingerprint]
	if !ok {
		return nil, false
	}
	entry, ok := r.byEmail[email]
	if !ok || entry.fingerprint != fingerprint {
		delete(r.byRenewal, fingerprint)
		return nil, false
	}
	if !entry.record.ExpiresAt.After(r.nowFunc()) {
		r.drop(email)
		return nil, false
	}
	return entry, true
}

func (r *InMemoryRepo) store(rec Record) {
	r.drop(rec.Email)
	fp := Fingerprint(rec.RenewalToken)
	r.byEmail[rec.Email] = &memoryEntry{record: rec, fingerprint: fp}
	r.byRenewal[fp] = rec.Email
}

func (r *InMemoryRepo) drop(email string) {
	if entry, ok := r.byEmail[email]; ok {
		delete(r.byRenewal, entry.fingerprint)
		delete(r.byEmail, email)
	}
}

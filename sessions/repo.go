package sessions

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/jrsteele09/go-collab-server/users"
	"github.com/zeebo/blake3"
)

// Record is the server-side state of one logged-in identity. There is at
// most one record per email, and so at most one live renewal credential.
type Record struct {
	SubjectID     string         `json:"sub"`
	Email         string         `json:"email"`
	Role          users.RoleType `json:"role"`
	UpstreamToken string         `json:"upstream_token,omitempty"`
	RenewalToken  string         `json:"-"`
	ExpiresAt     time.Time      `json:"expires_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Repo stores session records. Every operation is atomic with respect to
// the others, so a rotation racing a logout resolves to exactly one winner.
type Repo interface {
	// Put stores rec, replacing any record for the same email. The previous
	// renewal credential of that identity stops resolving.
	Put(ctx context.Context, rec Record) error

	// LookupByRenewal returns the record whose current renewal credential is
	// exactly token, or ErrSessionNotFound.
	LookupByRenewal(ctx context.Context, token string) (*Record, error)

	// Replace swaps in next only if the record for next.Email still holds
	// previousToken. Otherwise it returns ErrSessionNotFound.
	Replace(ctx context.Context, previousToken string, next Record) error

	// RemoveByRenewal deletes the record holding token. It reports whether a
	// record was removed; unknown or superseded tokens are not an error.
	RemoveByRenewal(ctx context.Context, token string) (bool, error)

	// Remove deletes the record for email, if any.
	Remove(ctx context.Context, email string) error
}

// fingerprintKey keys the BLAKE3 hash so renewal fingerprints cannot be
// matched against hashes computed for any other purpose.
var fingerprintKey = [32]byte{
	'c', 'o', 'l', 'l', 'a', 'b', '.', 's', 'e', 's', 's', 'i', 'o', 'n', 's', '.',
	'r', 'e', 'n', 'e', 'w', 'a', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns the hex encoded keyed BLAKE3 digest used to index a
// renewal credential. Stores never index the raw credential.
func Fingerprint(token string) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic(err)
	}
	_, _ = hasher.Write([]byte(token))
	return hex.EncodeToString(hasher.Sum(nil))
}

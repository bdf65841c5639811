package sessions

import (
	"time"

	"github.com/pkg/errors"
)

func validateRecord(rec Record, now time.Time) error {
	if rec.Email == "" {
		return errors.New("session record has no email")
	}
	if rec.RenewalToken == "" {
		return errors.New("session record has no renewal token")
	}
	if !rec.ExpiresAt.After(now) {
		return errors.Errorf("session record for %s already expired at %s", rec.Email, rec.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

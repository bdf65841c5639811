package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
)

// Codec issues and verifies self-contained signed credentials. It holds no
// state besides its clock, so it is safe for concurrent use.
type Codec struct {
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(options ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// ExpiresAt is the exp a credential issued at now with ttl carries. The
// claim only holds whole seconds, so it rounds up and the credential never
// expires before ttl has elapsed.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// Issue stamps claims with iat=now, exp=ExpiresAt(now, ttl) and a fresh jti,
// then signs them.
func (c *Codec) Issue(claims Claims, signer Signer, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", apperrors.Wrapf(apperrors.ErrInternal, "token ttl must be positive, got %s", ttl)
	}
	now := c.nowFunc()
	claims.stamp(now, ExpiresAt(now, ttl), uuid.New().String())
	return signer.Sign(claims)
}

// Verify parses raw into claims. Failures are one of ErrMalformedToken,
// ErrInvalidSignature or ErrTokenExpired; the token is expired once now >= exp.
func (c *Codec) Verify(raw string, signer Signer, claims Claims) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.nowFunc),
	)

	token, err := parser.ParseWithClaims(raw, claims, signer.GetVerificationKey)
	if err != nil {
		return classify(err)
	}
	if !token.Valid {
		return apperrors.ErrInvalidSignature
	}
	return nil
}

// classify maps jwt parse failures onto the codec's error kinds. Signature
// checks run before claim validation, so a tampered token never reports Expired.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperrors.Wrapf(apperrors.ErrMalformedToken, "%v", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrapf(apperrors.ErrInvalidSignature, "%v", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.ErrTokenExpired
	default:
		return apperrors.Wrapf(apperrors.ErrMalformedToken, "%v", err)
	}
}

package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-collab-server/internal/config"
	apperrors "github.com/jrsteele09/go-collab-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

// RedisRepo shares session records between server instances. Each identity
// is a hash {record, renewal} at <prefix>identity:<email>, and each live
// renewal fingerprint points back at its email from <prefix>renewal:<fp>.
// Both keys expire with the record.
type RedisRepo struct {
	client    *redis.Client
	keyPrefix string
	nowFunc   func() time.Time
}

type RedisOption func(*RedisRepo)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisRepo) {
		r.nowFunc = now
	}
}

func NewRedisRepo(client *redis.Client, keyPrefix string, options ...RedisOption) *RedisRepo {
	if keyPrefix == "" {
		keyPrefix = "collab:sessions:"
	}
	r := &RedisRepo{client: client, keyPrefix: keyPrefix, nowFunc: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// DialRedis connects to Redis and checks it is reachable.
func DialRedis(ctx context.Context, cfg config.Redis, options ...RedisOption) (*RedisRepo, error) {
	cl := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	return NewRedisRepo(cl, cfg.KeyPrefix, options...), nil
}

func (r *RedisRepo) Close() error { return r.client.Close() }

func (r *RedisRepo) identityKey(email string) string { return r.keyPrefix + "identity:" + email }
func (r *RedisRepo) renewalKey(fp string) string     { return r.keyPrefix + "renewal:" + fp }

var putScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], 'renewal')
if old and old ~= ARGV[2] then
  redis.call('DEL', ARGV[4] .. old)
end
redis.call('HSET', KEYS[1], 'record', ARGV[1], 'renewal', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('SET', KEYS[2], ARGV[5], 'PX', ARGV[3])
return 1
`)

var replaceScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'renewal') ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[2])
redis.call('HSET', KEYS[1], 'record', ARGV[2], 'renewal', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('SET', KEYS[3], ARGV[5], 'PX', ARGV[4])
return 1
`)

var removeByRenewalScript = redis.NewScript(`
local email = redis.call('GET', KEYS[1])
if not email then
  return 0
end
redis.call('DEL', KEYS[1])
local identity = ARGV[2] .. email
if redis.call('HGET', identity, 'renewal') ~= ARGV[1] then
  return 0
end
redis.call('DEL', identity)
return 1
`)

var removeScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], 'renewal')
if old then
  redis.call('DEL', ARGV[1] .. old)
end
return redis.call('DEL', KEYS[1])
`)

func (r *RedisRepo) Put(ctx context.Context, rec Record) error {
	now := r.nowFunc()
	if err := validateRecord(rec, now); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode session record")
	}
	fp := Fingerprint(rec.RenewalToken)
	keys := []string{r.identityKey(rec.Email), r.renewalKey(fp)}
	ttl := rec.ExpiresAt.Sub(now).Milliseconds()
	if err := putScript.Run(ctx, r.client, keys, payload, fp, ttl, r.renewalKey(""), rec.Email).Err(); err != nil {
		return errors.Wrapf(err, "put session for %s", rec.Email)
	}
	return nil
}

func (r *RedisRepo) LookupByRenewal(ctx context.Context, token string) (*Record, error) {
	fp := Fingerprint(token)
	email, err := r.client.Get(ctx, r.renewalKey(fp)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "lookup renewal fingerprint")
	}

	vals, err := r.client.HMGet(ctx, r.identityKey(email), "record", "renewal").Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load session for %s", email)
	}
	payload, _ := vals[0].(string)
	current, _ := vals[1].(string)
	if payload == "" || current != fp {
		return nil, apperrors.ErrSessionNotFound
	}

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, errors.Wrapf(err, "decode session for %s", email)
	}
	rec.RenewalToken = token
	return &rec, nil
}

func (r *RedisRepo) Replace(ctx context.Context, previousToken string, next Record) error {
	now := r.nowFunc()
	if err := validateRecord(next, now); err != nil {
		return err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return errors.Wrap(err, "encode session record")
	}
	prevFP := Fingerprint(previousToken)
	nextFP := Fingerprint(next.RenewalToken)
	keys := []string{r.identityKey(next.Email), r.renewalKey(prevFP), r.renewalKey(nextFP)}
	ttl := next.ExpiresAt.Sub(now).Milliseconds()

	swapped, err := replaceScript.Run(ctx, r.client, keys, prevFP, payload, nextFP, ttl, next.Email).Int()
	if err != nil {
		return errors.Wrapf(err, "replace session for %s", next.Email)
	}
	if swapped == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *RedisRepo) RemoveByRenewal(ctx context.Context, token string) (bool, error) {
	fp := Fingerprint(token)
	removed, err := removeByRenewalScript.Run(ctx, r.client, []string{r.renewalKey(fp)}, fp, r.identityKey("")).Int()
	if err != nil {
		return false, errors.Wrap(err, "remove session by renewal")
	}
	return removed == 1, nil
}

func (r *RedisRepo) Remove(ctx context.Context, email string) error {
	if err := removeScript.Run(ctx, r.client, []string{r.identityKey(email)}, r.renewalKey("")).Err(); err != nil {
		return errors.Wrapf(err, "remove session for %s", email)
	}
	return nil
}

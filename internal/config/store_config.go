package config

import (
	"github.com/joeshaw/envdecode"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type StoreConfig interface {
	GetSessionStore() string
	GetRedis() Redis
}

// Redis settings for the shared session registry.
type Redis struct {
	// ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// ENV: REDIS_PASSWORD
	Password string `env:"REDIS_PASSWORD"`
	// ENV: REDIS_DB
	DB int `env:"REDIS_DB,default=0"`
	// ENV: SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=collab:sessions:"`
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetSessionStore() string {
	return GetEnv("SESSION_STORE", SessionStoreMemory)
}

// GetRedis decodes the Redis settings; defaults come from the struct tags.
func (Store) GetRedis() Redis {
	var r Redis
	_ = envdecode.Decode(&r)
	if r.Addr == "" {
		r.Addr = "localhost:6379"
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = "collab:sessions:"
	}
	return r
}

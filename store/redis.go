package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/scalper/ledger"
)

const defaultRedisKey = "scalper:ledger"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TLS      bool
}

// Redis keeps the snapshot under a single string key.
type Redis struct {
	rdb *redis.Client
	key string
}

// NewRedis connects and pings the server before returning.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	ropts := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		ropts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping %s: %w", opts.Addr, err)
	}
	return newRedis(rdb, opts.Key), nil
}

func newRedis(rdb *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultRedisKey
	}
	return &Redis{rdb: rdb, key: key}
}

func (r *Redis) Key() string { return r.key }

// Client exposes the connection so a RedisLocker can share it.
func (r *Redis) Client() *redis.Client { return r.rdb }

func (r *Redis) Load(ctx context.Context) (*ledger.GlobalState, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get %s: %w", r.key, err)
	}

	g, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("store: redis %s: %w", r.key, err)
	}
	return g, nil
}

// Save replaces the key in one SET, which redis applies atomically.
func (r *Redis) Save(ctx context.Context, g *ledger.GlobalState) error {
	data, err := Encode(g)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

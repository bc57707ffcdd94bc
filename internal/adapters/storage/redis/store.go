// Package redis implements the session store on Redis. Every key is
// namespaced per session and expires after the session TTL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// Name identifies the store in health checks and errors.
const Name = "redis"

// cmdable is the subset of redis.Cmdable the store uses.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Config holds connection and session settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Session scopes every key, so two sessions never see each other's values.
	Session string

	// TTL applied on every write. Zero means no expiry.
	TTL time.Duration

	DialTimeout time.Duration
}

// Store is a ports.SessionStore backed by Redis.
type Store struct {
	client cmdable
	closer func() error
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dial,
		ReadTimeout:  dial,
		WriteTimeout: dial,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	s := newStore(client, cfg)
	s.closer = client.Close

	return s, nil
}

func newStore(client cmdable, cfg Config) *Store {
	session := cfg.Session
	if session == "" {
		session = "default"
	}

	return &Store{
		client: client,
		closer: func() error { return nil },
		prefix: "quote-sync:session:" + session + ":",
		ttl:    cfg.TTL,
	}
}

// Get returns the value stored under key for this session.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.NewNotFoundError("key", key)
	}

	if err != nil {
		return "", domain.NewUnavailableError(Name, err.Error())
	}

	return v, nil
}

// Set stores value under key and refreshes its TTL.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return domain.NewUnavailableError(Name, err.Error())
	}

	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return domain.NewUnavailableError(Name, err.Error())
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return Name
}

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.closer()
}

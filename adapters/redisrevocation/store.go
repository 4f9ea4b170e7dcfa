// Package redisrevocation keeps invalidated session token ids in Redis so
// that logout is honoured by every process sharing the store.
package redisrevocation

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "accounts:revoked:"

// Store implements accounts.RevocationStore on Redis keys that expire
// together with the token they revoke
type Store struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

var _ accounts.RevocationStore = (*Store)(nil)

// New wraps an existing client
func New(client redis.Cmdable) *Store {
	return &Store{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
}

// NewFromOptions creates the client from connection settings
func NewFromOptions(addr, password string, db int) (*Store, *redis.Client) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return New(rdb), rdb
}

// WithPrefix sets the key prefix
func (s *Store) WithPrefix(prefix string) *Store {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *Store) key(tokenID string) string {
	return s.prefix + tokenID
}

// Revoke stores the token id until the given time. Tokens already past
// their expiry are ignored.
func (s *Store) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	var ttl time.Duration
	if !until.IsZero() {
		ttl = until.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}
	return s.client.Set(ctx, s.key(tokenID), until.Unix(), ttl).Err()
}

// IsRevoked reports whether the token id is on the list
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, s.key(tokenID)).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, err
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

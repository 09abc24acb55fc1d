// Package cache implements the read-through cache used in front of the
// authoritative stores, plus the counters behind gateway rate limiting.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Key addresses a cache entry. A key with a Field is stored inside the hash
// Name, so deleting Name drops every field at once.
type Key struct {
	Name  string
	Field string
}

func (k Key) String() string {
	if k.Field == "" {
		return k.Name
	}
	return k.Name + "#" + k.Field
}

// Whole returns the key without its field.
func (k Key) Whole() Key {
	return Key{Name: k.Name}
}

type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	// Delete removes whole entries; a key with a Field removes only that field.
	Delete(ctx context.Context, keys ...Key) error
	// IncrWithTTL increments a counter, starting its ttl on first increment.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

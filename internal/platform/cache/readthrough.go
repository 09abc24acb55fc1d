package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// DefaultTTL bounds every entry written through ReadThrough.
const DefaultTTL = 60 * time.Second

// ReadThrough serves values from a Store and falls back to a loader on miss.
// Store failures never fail a read; they are logged and the loader answers.
type ReadThrough struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewReadThrough(store Store, ttl time.Duration, logger *slog.Logger) *ReadThrough {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadThrough{
		store:  store,
		ttl:    ttl,
		logger: logger.With("module", "cache.read_through", "layer", "platform"),
	}
}

// Read returns the cached value for key, or calls load, caches its result
// and returns it. Loader errors are returned as-is and nothing is cached.
func Read[T any](ctx context.Context, rc *ReadThrough, key Key, load func(context.Context) (T, error)) (T, error) {
	raw, err := rc.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			return cached, nil
		}
		rc.warn(ctx, "decode", key, decodeErr)
		_ = rc.store.Delete(ctx, key)
	case !errors.Is(err, ErrMiss):
		rc.warn(ctx, "get", key, err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		rc.warn(ctx, "encode", key, err)
		return value, nil
	}
	if err := rc.store.Set(ctx, key, encoded, rc.ttl); err != nil {
		rc.warn(ctx, "set", key, err)
	}
	return value, nil
}

// Invalidate deletes keys. It never refreshes them; the next Read reloads.
// A failed delete is logged and left to expire with its TTL.
func (rc *ReadThrough) Invalidate(ctx context.Context, keys ...Key) {
	if len(keys) == 0 {
		return
	}
	if err := rc.store.Delete(ctx, keys...); err != nil {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		rc.logger.ErrorContext(ctx, "cache invalidation failed",
			"operation", "invalidate",
			"outcome", "failure",
			"keys", names,
			"error", err,
		)
	}
}

func (rc *ReadThrough) warn(ctx context.Context, op string, key Key, err error) {
	rc.logger.WarnContext(ctx, "cache degraded to loader",
		"operation", op,
		"outcome", "degraded",
		"key", key.String(),
		"error", err,
	)
}

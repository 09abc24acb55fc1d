package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestReadHitSkipsLoader(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	rc := NewReadThrough(store, time.Minute, quietLogger())
	key := Key{Name: "catalog:product:p-1"}
	loads := 0
	load := func(context.Context) (product, error) {
		loads++
		return product{ID: "p-1", Name: "Mug"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Read(context.Background(), rc, key, load)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got.Name != "Mug" {
			t.Fatalf("unexpected value: %+v", got)
		}
	}
	if loads != 1 {
		t.Fatalf("expected loader once, got %d", loads)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	rc := NewReadThrough(store, time.Minute, quietLogger())
	key := Key{Name: "catalog:product:p-1"}
	name := "Mug"
	load := func(context.Context) (product, error) { return product{ID: "p-1", Name: name}, nil }

	if _, err := Read(context.Background(), rc, key, load); err != nil {
		t.Fatalf("read: %v", err)
	}
	name = "Cup"
	rc.Invalidate(context.Background(), key)
	got, err := Read(context.Background(), rc, key, load)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != "Cup" {
		t.Fatalf("expected fresh value after invalidate, got %+v", got)
	}
}

func TestDeletingHashNameDropsEveryPage(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := context.Background()
	for _, field := range []string{"1:10", "2:10"} {
		if err := store.Set(ctx, Key{Name: "catalog:products:list", Field: field}, []byte(`[]`), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if !mr.Exists("catalog:products:list") {
		t.Fatalf("expected hash to exist")
	}
	if err := store.Delete(ctx, Key{Name: "catalog:products:list"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, Key{Name: "catalog:products:list", Field: "2:10"}); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after invalidation, got %v", err)
	}
}

func TestEntriesExpire(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := context.Background()
	key := Key{Name: "search:query", Field: "mug:1:10"}
	if err := store.Set(ctx, key, []byte(`{}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(61 * time.Second)
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}
}

func TestStoreFailureDegradesToLoader(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	rc := NewReadThrough(NewRedisStore(client), time.Minute, quietLogger())
	got, err := Read(context.Background(), rc, Key{Name: "catalog:product:p-2"}, func(context.Context) (product, error) {
		return product{ID: "p-2"}, nil
	})
	if err != nil {
		t.Fatalf("expected loader result despite store failure, got %v", err)
	}
	if got.ID != "p-2" {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestLoaderErrorIsNotCached(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	rc := NewReadThrough(store, time.Minute, quietLogger())
	key := Key{Name: "catalog:product:missing"}
	wantErr := errors.New("not found")
	if _, err := Read(context.Background(), rc, key, func(context.Context) (product, error) {
		return product{}, wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, err := store.Get(context.Background(), key); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected nothing cached, got %v", err)
	}
}

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		n, err := store.IncrWithTTL(ctx, "gateway:ratelimit:1.2.3.4", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != int64(i) {
			t.Fatalf("expected %d, got %d", i, n)
		}
	}
	if ttl := mr.TTL("gateway:ratelimit:1.2.3.4"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestMemoryStoreMatchesRedisSemantics(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.nowFn = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, Key{Name: "list", Field: "1:10"}, []byte("a"), time.Minute)
	_ = store.Set(ctx, Key{Name: "list", Field: "2:10"}, []byte("b"), time.Minute)
	_ = store.Delete(ctx, Key{Name: "list", Field: "1:10"})
	if _, err := store.Get(ctx, Key{Name: "list", Field: "1:10"}); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected field delete")
	}
	if v, err := store.Get(ctx, Key{Name: "list", Field: "2:10"}); err != nil || string(v) != "b" {
		t.Fatalf("sibling field lost: %q %v", v, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, Key{Name: "list", Field: "2:10"}); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry")
	}
	if n, _ := store.IncrWithTTL(ctx, "rl", time.Minute); n != 1 {
		t.Fatalf("expected fresh counter, got %d", n)
	}
}

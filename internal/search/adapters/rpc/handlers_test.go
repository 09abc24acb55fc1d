package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
	platformrpc "github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/search/adapters/memory"
	"github.com/teajhaney/shopstack-microservices/internal/search/application"
	"github.com/teajhaney/shopstack-microservices/internal/search/domain"
)

type fixture struct {
	reg   *registry.Registry
	repo  *memory.ProjectionRepository
	store *cache.MemoryStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewProjectionRepository()
	store := cache.NewMemoryStore()
	svc := application.NewService(application.Dependencies{
		Projections: repo,
		Cache:       cache.NewReadThrough(store, time.Minute, logger),
		Logger:      logger,
	})
	reg := registry.New(contracts.ServiceSearch, logger)
	Register(reg, svc)
	return fixture{reg: reg, repo: repo, store: store}
}

func (f fixture) deliver(t *testing.T, topic string, payload any) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return f.reg.HandleEvent(context.Background(), platformrpc.Event{
		ID: "ev-1", Topic: topic, Source: contracts.ServiceCatalog, Time: time.Now(), Payload: raw,
	})
}

func (f fixture) query(t *testing.T, payload map[string]any) (domain.ResultPage, error) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := f.reg.HandleRequest(context.Background(), platformrpc.Request{
		Pattern: contracts.PatternSearchQuery, Payload: raw,
	}).Result()
	if err != nil {
		return domain.ResultPage{}, err
	}
	var page domain.ResultPage
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return page, nil
}

func snapshot(id, name, description string) contracts.ProductSnapshot {
	return contracts.ProductSnapshot{
		ProductID: id, Name: name, Description: description, Status: "ACTIVE", Price: 9, OwnerID: "user_1",
	}
}

func TestCreatedEventMakesProductSearchable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if err := f.deliver(t, contracts.TopicProductCreated, snapshot("p1", "Blue Mug", "Holds tea")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	page, err := f.query(t, map[string]any{"query": "  HOLDS  "})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ProductID != "p1" || page.Pagination.Total != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestShortQueryReturnsEmptyWithoutLookup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.deliver(t, contracts.TopicProductCreated, snapshot("p1", "ab mug", "")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	page, err := f.query(t, map[string]any{"query": " ab "})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 0 || page.Pagination.Total != 0 || page.Pagination.Page != 1 || page.Pagination.Limit != domain.DefaultLimit {
		t.Fatalf("unexpected page: %+v", page)
	}
	if f.repo.Searches != 0 {
		t.Fatalf("short query hit storage %d times", f.repo.Searches)
	}
}

func TestQueryIsCachedUntilProjectionChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.deliver(t, contracts.TopicProductCreated, snapshot("p1", "Blue Mug", "")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.query(t, map[string]any{"query": "mug", "page": 1, "limit": 5}); err != nil {
			t.Fatalf("query: %v", err)
		}
	}
	if f.repo.Searches != 1 {
		t.Fatalf("expected one storage lookup, got %d", f.repo.Searches)
	}

	if err := f.deliver(t, contracts.TopicProductUpdated, snapshot("p1", "Red Mug", "")); err != nil {
		t.Fatalf("deliver update: %v", err)
	}
	page, err := f.query(t, map[string]any{"query": "mug", "page": 1, "limit": 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if f.repo.Searches != 2 || page.Items[0].Name != "Red Mug" {
		t.Fatalf("update did not invalidate: searches=%d page=%+v", f.repo.Searches, page)
	}
}

func TestDeletedEventIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.deliver(t, contracts.TopicProductCreated, snapshot("p1", "Blue Mug", "")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := f.deliver(t, contracts.TopicProductDeleted, contracts.ProductDeleted{ProductID: "p1"}); err != nil {
			t.Fatalf("delete delivery %d: %v", i, err)
		}
	}
	if _, ok := f.repo.Get("p1"); ok {
		t.Fatalf("projection still present")
	}
	page, err := f.query(t, map[string]any{"query": "mug"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("deleted product still returned: %+v", page)
	}
}

func TestQueryMatchesLiterally(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.deliver(t, contracts.TopicProductCreated, snapshot("p1", "Cup (large)", "")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := f.deliver(t, contracts.TopicProductCreated, snapshot("p2", "Cupboard", "")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	page, err := f.query(t, map[string]any{"query": "p (l"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ProductID != "p1" {
		t.Fatalf("expected literal match on p1, got %+v", page.Items)
	}
}

func TestQueryLimitIsClamped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	page, err := f.query(t, map[string]any{"query": "mug", "limit": 500})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if page.Pagination.Limit != domain.MaxLimit {
		t.Fatalf("expected limit %d, got %d", domain.MaxLimit, page.Pagination.Limit)
	}
}

func TestMalformedEventIsRejectedWithoutSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if err := f.deliver(t, contracts.TopicProductCreated, map[string]any{"name": "no id"}); err == nil {
		t.Fatalf("expected validation failure")
	}
	page, err := f.query(t, map[string]any{"query": "no id"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("malformed event stored a projection: %+v", page.Items)
	}
}

func TestUnknownQueryFieldIsValidationError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.query(t, map[string]any{"query": "mug", "sort": "asc"})
	if !platformrpc.IsCode(err, platformrpc.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

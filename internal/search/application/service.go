package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
	"github.com/teajhaney/shopstack-microservices/internal/search/domain"
	"github.com/teajhaney/shopstack-microservices/internal/search/ports"
)

const queryKeyName = "search:query"

func queryKey(q domain.Query) cache.Key {
	return cache.Key{Name: queryKeyName, Field: fmt.Sprintf("%s:%d:%d", q.Term, q.Page, q.Limit)}
}

type Service struct {
	projections ports.ProjectionRepository
	cache       *cache.ReadThrough
	logger      *slog.Logger
	nowFn       func() time.Time
}

type Dependencies struct {
	Projections ports.ProjectionRepository
	Cache       *cache.ReadThrough
	Logger      *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		projections: deps.Projections,
		cache:       deps.Cache,
		logger:      logger.With("module", "search", "layer", "application"),
		nowFn:       time.Now,
	}
}

// Query answers a search. Terms shorter than the minimum return an empty
// page without touching storage or cache.
func (s *Service) Query(ctx context.Context, term string, page, limit int) (domain.ResultPage, error) {
	q := domain.NewQuery(term, page, limit)
	if !q.Searchable() {
		return domain.EmptyPage(q), nil
	}
	return cache.Read(ctx, s.cache, queryKey(q), func(ctx context.Context) (domain.ResultPage, error) {
		items, total, err := s.projections.Search(ctx, q.Term, q.Offset(), q.Limit)
		if err != nil {
			return domain.ResultPage{}, err
		}
		if items == nil {
			items = []domain.Projection{}
		}
		return domain.ResultPage{Items: items, Pagination: domain.NewPagination(q.Page, q.Limit, total)}, nil
	})
}

// UpsertProduct applies a product.created or product.updated snapshot.
func (s *Service) UpsertProduct(ctx context.Context, in contracts.ProductSnapshot) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("%w: missing product id", domain.ErrInvalidInput)
	}
	now := s.nowFn().UTC()
	err := s.projections.Upsert(ctx, domain.Projection{
		ProductID:      in.ProductID,
		Name:           in.Name,
		Description:    in.Description,
		NormalisedText: domain.NormaliseText(in.Name, in.Description),
		Status:         in.Status,
		Price:          in.Price,
		ImageURL:       in.ImageURL,
		OwnerID:        in.OwnerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.Key{Name: queryKeyName})
	s.logger.InfoContext(ctx, "projection upserted",
		"operation", "upsert_projection",
		"outcome", "success",
		"product_id", in.ProductID,
	)
	return nil
}

// RemoveProduct drops the projection. Repeated deliveries are no-ops.
func (s *Service) RemoveProduct(ctx context.Context, productID string) error {
	if err := s.projections.Remove(ctx, productID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.Key{Name: queryKeyName})
	s.logger.InfoContext(ctx, "projection removed",
		"operation", "remove_projection",
		"outcome", "success",
		"product_id", productID,
	)
	return nil
}

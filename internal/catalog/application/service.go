package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/domain"
	"github.com/teajhaney/shopstack-microservices/internal/catalog/ports"
	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/platform/cache"
)

const (
	productKeyPrefix = "catalog:product:"
	listKeyName      = "catalog:products:list"
)

func productKey(id string) cache.Key {
	return cache.Key{Name: productKeyPrefix + id}
}

func listKey() cache.Key {
	return cache.Key{Name: listKeyName}
}

func listPageKey(page, limit int) cache.Key {
	return cache.Key{Name: listKeyName, Field: fmt.Sprintf("%d:%d", page, limit)}
}

type Service struct {
	cfg       Config
	products  ports.ProductRepository
	cache     *cache.ReadThrough
	publisher ports.EventPublisher
	logger    *slog.Logger
	nowFn     clock
}

type Dependencies struct {
	Config    Config
	Products  ports.ProductRepository
	Cache     *cache.ReadThrough
	Publisher ports.EventPublisher
	Logger    *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       deps.Config.withDefaults(),
		products:  deps.Products,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		logger:    logger.With("module", "catalog", "layer", "application"),
		nowFn:     time.Now,
	}
}

// CreateProduct stores a new product, invalidates the list pages and then
// announces product.created.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || in.Description == "" || strings.TrimSpace(in.OwnerID) == "" {
		return domain.Product{}, fmt.Errorf("%w: missing required fields", domain.ErrInvalidInput)
	}
	if err := validatePrice(in.Price); err != nil {
		return domain.Product{}, err
	}
	if in.Status == "" {
		in.Status = domain.StatusDraft
	}
	if !in.Status.Valid() {
		return domain.Product{}, fmt.Errorf("%w: status must be either DRAFT or ACTIVE", domain.ErrInvalidInput)
	}

	now := s.nowFn().UTC()
	created, err := s.products.Create(ctx, domain.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Status:      in.Status,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		OwnerID:     in.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.cache.Invalidate(ctx, productKey(created.ID), listKey())
	s.publisher.Publish(ctx, contracts.TopicProductCreated, snapshot(created))
	s.logger.InfoContext(ctx, "product created",
		"operation", "create_product",
		"outcome", "success",
		"product_id", created.ID,
	)
	return created, nil
}

func (s *Service) ListProducts(ctx context.Context, page, limit int) (domain.ProductPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return cache.Read(ctx, s.cache, listPageKey(page, limit), func(ctx context.Context) (domain.ProductPage, error) {
		items, total, err := s.products.List(ctx, domain.Offset(page, limit), limit)
		if err != nil {
			return domain.ProductPage{}, err
		}
		if items == nil {
			items = []domain.Product{}
		}
		return domain.ProductPage{Items: items, Pagination: domain.NewPagination(page, limit, total)}, nil
	})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := validateID(id); err != nil {
		return domain.Product{}, err
	}
	return cache.Read(ctx, s.cache, productKey(id), func(ctx context.Context) (domain.Product, error) {
		return s.products.GetByID(ctx, id)
	})
}

// UpdateProduct applies patch. Caches are invalidated as soon as the write
// lands, before the event goes out.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := validateID(id); err != nil {
		return domain.Product{}, err
	}
	if patch.Empty() {
		return domain.Product{}, fmt.Errorf("%w: no fields to update", domain.ErrInvalidInput)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Product{}, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return domain.Product{}, err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Product{}, fmt.Errorf("%w: status must be either DRAFT or ACTIVE", domain.ErrInvalidInput)
	}

	updated, err := s.products.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}
	s.cache.Invalidate(ctx, productKey(id), listKey())
	s.publisher.Publish(ctx, contracts.TopicProductUpdated, snapshot(updated))
	s.logger.InfoContext(ctx, "product updated",
		"operation", "update_product",
		"outcome", "success",
		"product_id", id,
	)
	return updated, nil
}

// DeleteProduct removes the product. It is idempotent: an id that is
// already gone still invalidates, publishes product.deleted and confirms,
// so a retried delete behaves like the first one.
func (s *Service) DeleteProduct(ctx context.Context, id string) (DeleteProductResult, error) {
	if err := validateID(id); err != nil {
		return DeleteProductResult{}, err
	}
	removed, err := s.products.Delete(ctx, id)
	if err != nil {
		return DeleteProductResult{}, err
	}
	s.cache.Invalidate(ctx, productKey(id), listKey())
	s.publisher.Publish(ctx, contracts.TopicProductDeleted, contracts.ProductDeleted{ProductID: id})
	s.logger.InfoContext(ctx, "product deleted",
		"operation", "delete_product",
		"outcome", "success",
		"product_id", id,
		"removed", removed,
	)
	return DeleteProductResult{Message: "Product deleted successfully"}, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid product id", domain.ErrInvalidInput)
	}
	return nil
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: price must be a number greater than 0", domain.ErrInvalidInput)
	}
	return nil
}

func snapshot(p domain.Product) contracts.ProductSnapshot {
	return contracts.ProductSnapshot{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		OwnerID:     p.OwnerID,
	}
}

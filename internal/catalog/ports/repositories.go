package ports

import (
	"context"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	GetByID(ctx context.Context, id string) (domain.Product, error)
	// List returns one page ordered newest first plus the total count.
	List(ctx context.Context, offset, limit int) ([]domain.Product, int, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)
	// Delete reports whether a row was removed; a missing id is not an error.
	Delete(ctx context.Context, id string) (bool, error)
}

// EventPublisher emits catalog events. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

package ports

import (
	"context"

	"github.com/teajhaney/shopstack-microservices/internal/search/domain"
)

type ProjectionRepository interface {
	// Upsert inserts or replaces the projection for p.ProductID.
	Upsert(ctx context.Context, p domain.Projection) error
	// Remove deletes the projection; removing an absent id is not an error.
	Remove(ctx context.Context, productID string) error
	// Search matches term as a literal, case-insensitive substring of the
	// name or normalised text, newest first.
	Search(ctx context.Context, term string, offset, limit int) ([]domain.Projection, int, error)
}

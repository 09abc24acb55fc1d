package ports

import (
	"context"

	"github.com/teajhaney/shopstack-microservices/internal/media/domain"
)

type AssetRepository interface {
	Create(ctx context.Context, a domain.Asset) (domain.Asset, error)
	// Attach sets the asset's product; domain.ErrNotFound when the asset is
	// unknown.
	Attach(ctx context.Context, assetID, productID string) (domain.Asset, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Asset, error)
	// DeleteByIDs removes the given records; unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error
}

// BlobStore holds the uploaded bytes. Delete of a missing key succeeds.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
	Delete(ctx context.Context, key string) error
}

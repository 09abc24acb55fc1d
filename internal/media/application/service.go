package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teajhaney/shopstack-microservices/internal/media/domain"
	"github.com/teajhaney/shopstack-microservices/internal/media/ports"
)

type Config struct {
	MaxUploadBytes int64
}

type UploadInput struct {
	FileName   string
	MimeType   string
	Base64     string
	UploaderID string
}

type UploadResult struct {
	MediaID string `json:"mediaId"`
	URL     string `json:"url"`
}

type AttachResult struct {
	MediaID    string `json:"mediaId"`
	ProductID  string `json:"productId"`
	AttachedBy string `json:"attachedBy,omitempty"`
}

type Service struct {
	cfg    Config
	assets ports.AssetRepository
	blobs  ports.BlobStore
	logger *slog.Logger
	nowFn  func() time.Time
}

type Dependencies struct {
	Config Config
	Assets ports.AssetRepository
	Blobs  ports.BlobStore
	Logger *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = domain.DefaultMaxUploadBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		assets: deps.Assets,
		blobs:  deps.Blobs,
		logger: logger.With("module", "media", "layer", "application"),
		nowFn:  time.Now,
	}
}

// UploadProductImage stores the decoded image and records the asset. The
// blob is removed again if the record cannot be written.
func (s *Service) UploadProductImage(ctx context.Context, in UploadInput) (UploadResult, error) {
	if strings.TrimSpace(in.UploaderID) == "" {
		return UploadResult{}, fmt.Errorf("%w: uploaderId is required", domain.ErrInvalidInput)
	}
	data, err := domain.DecodeImage(in.MimeType, in.Base64, s.cfg.MaxUploadBytes)
	if err != nil {
		return UploadResult{}, err
	}

	id := uuid.NewString()
	key := domain.ObjectKey(id, in.FileName)
	url, err := s.blobs.Put(ctx, key, in.MimeType, data)
	if err != nil {
		return UploadResult{}, err
	}

	now := s.nowFn().UTC()
	asset, err := s.assets.Create(ctx, domain.Asset{
		ID:         id,
		URL:        url,
		ObjectKey:  key,
		MimeType:   in.MimeType,
		UploaderID: in.UploaderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.ErrorContext(ctx, "orphaned blob after failed insert",
				"operation", "upload_product_image",
				"outcome", "failure",
				"object_key", key,
				"error", delErr.Error(),
			)
		}
		return UploadResult{}, err
	}

	s.logger.InfoContext(ctx, "media uploaded",
		"operation", "upload_product_image",
		"outcome", "success",
		"media_id", asset.ID,
		"bytes", len(data),
	)
	return UploadResult{MediaID: asset.ID, URL: asset.URL}, nil
}

func (s *Service) AttachToProduct(ctx context.Context, mediaID, productID, attachedBy string) (AttachResult, error) {
	if strings.TrimSpace(mediaID) == "" || strings.TrimSpace(productID) == "" {
		return AttachResult{}, fmt.Errorf("%w: mediaId and productId are required", domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(mediaID); err != nil {
		return AttachResult{}, domain.ErrNotFound
	}
	asset, err := s.assets.Attach(ctx, mediaID, productID)
	if err != nil {
		return AttachResult{}, err
	}
	s.logger.InfoContext(ctx, "media attached",
		"operation", "attach_to_product",
		"outcome", "success",
		"media_id", asset.ID,
		"product_id", productID,
	)
	return AttachResult{MediaID: asset.ID, ProductID: productID, AttachedBy: attachedBy}, nil
}

// RemoveProductAssets deletes every asset attached to productID with its
// blob. A product with no assets is a no-op, so redelivery is safe.
func (s *Service) RemoveProductAssets(ctx context.Context, productID string) error {
	assets, err := s.assets.ListByProduct(ctx, productID)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		return nil
	}

	var (
		removed []string
		errs    []error
	)
	for _, a := range assets {
		if err := s.blobs.Delete(ctx, a.ObjectKey); err != nil {
			errs = append(errs, fmt.Errorf("delete blob %s: %w", a.ObjectKey, err))
			continue
		}
		removed = append(removed, a.ID)
	}
	if len(removed) > 0 {
		if err := s.assets.DeleteByIDs(ctx, removed); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "product assets removed",
		"operation", "remove_product_assets",
		"outcome", "success",
		"product_id", productID,
		"count", len(removed),
	)
	return nil
}

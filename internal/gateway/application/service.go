// Package application holds the gateway's orchestration of downstream calls.
// The gateway owns no data; replies are passed through as raw JSON.
package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/platform/aggregate"
	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

type Config struct {
	RPCTimeout    time.Duration
	HealthTimeout time.Duration
}

// HealthTargets are pinged by Health.
var HealthTargets = []string{contracts.ServiceCatalog, contracts.ServiceMedia, contracts.ServiceSearch}

type Service struct {
	cfg    Config
	client transport.Caller
	logger *slog.Logger
}

func NewService(cfg Config, client transport.Caller, logger *slog.Logger) *Service {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = transport.DefaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, client: client, logger: logger.With("module", "gateway", "layer", "application")}
}

func (s *Service) call(ctx context.Context, service, pattern string, payload any) (json.RawMessage, error) {
	return s.client.Call(ctx, service, pattern, payload, s.cfg.RPCTimeout)
}

// Health pings every backend concurrently.
func (s *Service) Health(ctx context.Context) aggregate.Result {
	calls := make([]aggregate.Call, 0, len(HealthTargets))
	for _, target := range HealthTargets {
		calls = append(calls, aggregate.Call{
			Name: target,
			Do: func(ctx context.Context) (json.RawMessage, error) {
				return s.client.Call(ctx, target, rpc.PatternPing, struct{}{}, s.cfg.HealthTimeout)
			},
		})
	}
	result := aggregate.Fanout(ctx, s.cfg.HealthTimeout, calls...)
	if !result.OK {
		s.logger.WarnContext(ctx, "downstream health degraded",
			"operation", "health",
			"outcome", "failure",
		)
	}
	return result
}

type PageQuery struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (s *Service) ListProducts(ctx context.Context, q PageQuery) (json.RawMessage, error) {
	return s.call(ctx, contracts.ServiceCatalog, contracts.PatternProductList, q)
}

func (s *Service) GetProduct(ctx context.Context, id string) (json.RawMessage, error) {
	return s.call(ctx, contracts.ServiceCatalog, contracts.PatternProductGet, map[string]string{"id": id})
}

// UpdateProduct forwards the patch body untouched; catalog validates it.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch json.RawMessage) (json.RawMessage, error) {
	return s.call(ctx, contracts.ServiceCatalog, contracts.PatternProductUpdate, map[string]any{"id": id, "data": patch})
}

func (s *Service) DeleteProduct(ctx context.Context, id string) (json.RawMessage, error) {
	return s.call(ctx, contracts.ServiceCatalog, contracts.PatternProductDelete, map[string]string{"id": id})
}

type SearchQuery struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

func (s *Service) Search(ctx context.Context, q SearchQuery) (json.RawMessage, error) {
	return s.call(ctx, contracts.ServiceSearch, contracts.PatternSearchQuery, q)
}

type CreateProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Status      string   `json:"status,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	OwnerID     string   `json:"ownerId"`
	Image       *ImageIn `json:"-"`
}

type ImageIn struct {
	FileName string
	MimeType string
	Data     []byte
}

type uploadReply struct {
	MediaID string `json:"mediaId"`
	URL     string `json:"url"`
}

// CreateProduct uploads the optional image, creates the product with the
// image URL, then attaches the media record to the new product. A failed
// attach is logged; the product already references the image URL.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (json.RawMessage, error) {
	var mediaID string
	if in.Image != nil {
		var up uploadReply
		err := transport.CallInto(ctx, s.client, contracts.ServiceMedia, contracts.PatternMediaUpload, map[string]string{
			"fileName":   in.Image.FileName,
			"mimeType":   in.Image.MimeType,
			"base64":     base64.StdEncoding.EncodeToString(in.Image.Data),
			"uploaderId": in.OwnerID,
		}, s.cfg.RPCTimeout, &up)
		if err != nil {
			return nil, err
		}
		in.ImageURL = up.URL
		mediaID = up.MediaID
	}

	product, err := s.call(ctx, contracts.ServiceCatalog, contracts.PatternProductCreate, in)
	if err != nil {
		if mediaID != "" {
			s.logger.ErrorContext(ctx, "product create failed, uploaded media orphaned",
				"operation", "create_product",
				"outcome", "failure",
				"media_id", mediaID,
				"image_url", in.ImageURL,
				"error", err.Error(),
			)
		}
		return nil, err
	}
	if mediaID == "" {
		return product, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(product, &created); err != nil || created.ID == "" {
		s.logger.ErrorContext(ctx, "created product reply has no id",
			"operation", "create_product",
			"outcome", "failure",
			"media_id", mediaID,
		)
		return product, nil
	}
	_, err = s.call(ctx, contracts.ServiceMedia, contracts.PatternMediaAttach, map[string]string{
		"mediaId":    mediaID,
		"productId":  created.ID,
		"attachedBy": in.OwnerID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "attach media to product failed",
			"operation", "create_product",
			"outcome", "failure",
			"media_id", mediaID,
			"product_id", created.ID,
			"error", err.Error(),
		)
	}
	return product, nil
}

// Package rpc exposes the media application on its queue.
package rpc

import (
	"context"
	"errors"
	"strings"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	"github.com/teajhaney/shopstack-microservices/internal/media/application"
	"github.com/teajhaney/shopstack-microservices/internal/media/domain"
	platformrpc "github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/validate"
)

type uploadPayload struct {
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	Base64     string `json:"base64"`
	UploaderID string `json:"uploaderId"`
}

func (p uploadPayload) Rules() validate.Set {
	return validate.Set{
		validate.Required("fileName", p.FileName),
		validate.MaxLen("fileName", p.FileName, 255),
		validate.Required("mimeType", p.MimeType),
		validate.When(p.MimeType != "", validate.HasPrefix("mimeType", strings.ToLower(p.MimeType), "image/")),
		validate.Required("base64", p.Base64),
		validate.Required("uploaderId", p.UploaderID),
	}
}

type attachPayload struct {
	MediaID    string `json:"mediaId"`
	ProductID  string `json:"productId"`
	AttachedBy string `json:"attachedBy,omitempty"`
}

func (p attachPayload) Rules() validate.Set {
	return validate.Set{
		validate.Required("mediaId", p.MediaID),
		validate.Required("productId", p.ProductID),
	}
}

func Register(r *registry.Registry, service *application.Service) {
	registry.Handle(r, contracts.PatternMediaUpload, func(ctx context.Context, p uploadPayload) (any, error) {
		out, err := service.UploadProductImage(ctx, application.UploadInput{
			FileName:   p.FileName,
			MimeType:   p.MimeType,
			Base64:     p.Base64,
			UploaderID: p.UploaderID,
		})
		return out, mapDomainError(err)
	})
	registry.Handle(r, contracts.PatternMediaAttach, func(ctx context.Context, p attachPayload) (any, error) {
		out, err := service.AttachToProduct(ctx, p.MediaID, p.ProductID, p.AttachedBy)
		return out, mapDomainError(err)
	})
	registry.Subscribe(r, contracts.TopicProductDeleted, "media.remove_product_assets", func(ctx context.Context, p contracts.ProductDeleted) error {
		return service.RemoveProductAssets(ctx, p.ProductID)
	})
}

func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidInput):
		return platformrpc.BadRequest(strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")).WithCause(err)
	case errors.Is(err, domain.ErrTooLarge):
		return platformrpc.BadRequest(err.Error()).WithCause(err)
	case errors.Is(err, domain.ErrNotFound):
		return platformrpc.NotFound("Media not found").WithCause(err)
	default:
		return err
	}
}

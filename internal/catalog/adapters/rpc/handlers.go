// Package rpc exposes the catalog application on the service queue.
package rpc

import (
	"context"
	"errors"
	"strings"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/application"
	"github.com/teajhaney/shopstack-microservices/internal/catalog/domain"
	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	platformrpc "github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/validate"
)

type createProductPayload struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Status      string  `json:"status,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	OwnerID     string  `json:"ownerId"`
}

func (p createProductPayload) Rules() validate.Set {
	return validate.Set{
		validate.Required("name", p.Name),
		validate.Required("description", p.Description),
		validate.Positive("price", p.Price),
		validate.When(p.Status != "", validate.OneOf("status", p.Status, string(domain.StatusDraft), string(domain.StatusActive))),
		validate.Required("ownerId", p.OwnerID),
	}
}

type listProductsPayload struct {
	Page  *int `json:"page,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

func (p listProductsPayload) Rules() validate.Set {
	return validate.Set{
		validate.When(p.Page != nil, validate.Min("page", deref(p.Page), 1)),
		validate.When(p.Limit != nil, validate.Min("limit", deref(p.Limit), 1)),
	}
}

type productIDPayload struct {
	ID string `json:"id"`
}

func (p productIDPayload) Rules() validate.Set {
	return validate.Set{validate.Required("id", p.ID)}
}

type productPatchPayload struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Status      *string  `json:"status,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
}

type updateProductPayload struct {
	ID   string              `json:"id"`
	Data productPatchPayload `json:"data"`
}

func (p updateProductPayload) Rules() validate.Set {
	set := validate.Set{validate.Required("id", p.ID)}
	if p.Data.Name != nil {
		set = append(set, validate.Required("data.name", *p.Data.Name))
	}
	if p.Data.Price != nil {
		set = append(set, validate.Positive("data.price", *p.Data.Price))
	}
	if p.Data.Status != nil {
		set = append(set, validate.OneOf("data.status", *p.Data.Status, string(domain.StatusDraft), string(domain.StatusActive)))
	}
	return set
}

func (p productPatchPayload) toDomain() domain.ProductPatch {
	patch := domain.ProductPatch{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
	}
	if p.Status != nil {
		status := domain.Status(*p.Status)
		patch.Status = &status
	}
	return patch
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Register binds every catalog pattern on r.
func Register(r *registry.Registry, service *application.Service) {
	registry.Handle(r, contracts.PatternProductCreate, func(ctx context.Context, p createProductPayload) (any, error) {
		out, err := service.CreateProduct(ctx, application.CreateProductInput{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Status:      domain.Status(p.Status),
			ImageURL:    p.ImageURL,
			OwnerID:     p.OwnerID,
		})
		return out, mapDomainError(err)
	})
	registry.Handle(r, contracts.PatternProductList, func(ctx context.Context, p listProductsPayload) (any, error) {
		out, err := service.ListProducts(ctx, deref(p.Page), deref(p.Limit))
		return out, mapDomainError(err)
	})
	registry.Handle(r, contracts.PatternProductGet, func(ctx context.Context, p productIDPayload) (any, error) {
		out, err := service.GetProduct(ctx, p.ID)
		return out, mapDomainError(err)
	})
	registry.Handle(r, contracts.PatternProductUpdate, func(ctx context.Context, p updateProductPayload) (any, error) {
		out, err := service.UpdateProduct(ctx, p.ID, p.Data.toDomain())
		return out, mapDomainError(err)
	})
	registry.Handle(r, contracts.PatternProductDelete, func(ctx context.Context, p productIDPayload) (any, error) {
		out, err := service.DeleteProduct(ctx, p.ID)
		return out, mapDomainError(err)
	})
}

func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidInput):
		return platformrpc.BadRequest(trimSentinel(err, domain.ErrInvalidInput)).WithCause(err)
	case errors.Is(err, domain.ErrNotFound):
		return platformrpc.NotFound("Product not found").WithCause(err)
	default:
		return err
	}
}

// trimSentinel drops the "<sentinel>: " prefix added by fmt.Errorf wrapping.
func trimSentinel(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

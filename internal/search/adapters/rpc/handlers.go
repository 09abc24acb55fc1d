// Package rpc binds the search application to its queue: the query pattern
// and the product event subscriptions that maintain projections.
package rpc

import (
	"context"
	"errors"
	"strings"

	"github.com/teajhaney/shopstack-microservices/internal/contracts"
	platformrpc "github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
	"github.com/teajhaney/shopstack-microservices/internal/platform/registry"
	"github.com/teajhaney/shopstack-microservices/internal/platform/validate"
	"github.com/teajhaney/shopstack-microservices/internal/search/application"
	"github.com/teajhaney/shopstack-microservices/internal/search/domain"
)

type queryPayload struct {
	Query string `json:"query"`
	Page  *int   `json:"page,omitempty"`
	Limit *int   `json:"limit,omitempty"`
}

func (p queryPayload) Rules() validate.Set {
	return validate.Set{
		validate.MaxLen("query", p.Query, 200),
		validate.When(p.Page != nil, validate.Min("page", deref(p.Page), 1)),
		validate.When(p.Limit != nil, validate.Min("limit", deref(p.Limit), 1)),
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func Register(r *registry.Registry, service *application.Service) {
	registry.Handle(r, contracts.PatternSearchQuery, func(ctx context.Context, p queryPayload) (any, error) {
		out, err := service.Query(ctx, p.Query, deref(p.Page), deref(p.Limit))
		return out, mapDomainError(err)
	})

	upsert := func(ctx context.Context, p contracts.ProductSnapshot) error {
		return service.UpsertProduct(ctx, p)
	}
	registry.Subscribe(r, contracts.TopicProductCreated, "search.upsert_projection", upsert)
	registry.Subscribe(r, contracts.TopicProductUpdated, "search.upsert_projection", upsert)
	registry.Subscribe(r, contracts.TopicProductDeleted, "search.remove_projection", func(ctx context.Context, p contracts.ProductDeleted) error {
		return service.RemoveProduct(ctx, p.ProductID)
	})
}

func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidInput):
		return platformrpc.BadRequest(strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")).WithCause(err)
	default:
		return err
	}
}

// Package contracts names the patterns and topics exchanged between services
// and the payloads carried on them. Consumers depend on these shapes, not on
// the producing service's domain types.
package contracts

import "github.com/teajhaney/shopstack-microservices/internal/platform/validate"

const (
	ServiceCatalog = "catalog"
	ServiceMedia   = "media"
	ServiceSearch  = "search"
	ServiceGateway = "gateway"
)

// Request patterns.
const (
	PatternProductCreate = "product.create"
	PatternProductList   = "product.list"
	PatternProductGet    = "product.get"
	PatternProductUpdate = "product.update"
	PatternProductDelete = "product.delete"

	PatternMediaUpload = "media.uploadProductImage"
	PatternMediaAttach = "media.attachToProduct"

	PatternSearchQuery = "search.query"
)

// Event topics.
const (
	TopicProductCreated = "product.created"
	TopicProductUpdated = "product.updated"
	TopicProductDeleted = "product.deleted"
)

// ProductSnapshot is the payload of product.created and product.updated.
type ProductSnapshot struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	OwnerID     string  `json:"ownerId"`
}

func (p ProductSnapshot) Rules() validate.Set {
	return validate.Set{
		validate.Required("productId", p.ProductID),
		validate.Required("name", p.Name),
	}
}

func (p ProductSnapshot) PartitionKey() string { return p.ProductID }

type ProductDeleted struct {
	ProductID string `json:"productId"`
}

func (p ProductDeleted) Rules() validate.Set {
	return validate.Set{validate.Required("productId", p.ProductID)}
}

func (p ProductDeleted) PartitionKey() string { return p.ProductID }

// ProductEventRoutes lists the services subscribed to each product topic.
func ProductEventRoutes() map[string][]string {
	return map[string][]string{
		TopicProductCreated: {ServiceSearch},
		TopicProductUpdated: {ServiceSearch},
		TopicProductDeleted: {ServiceSearch, ServiceMedia},
	}
}

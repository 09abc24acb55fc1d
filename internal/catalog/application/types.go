package application

import (
	"time"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/domain"
)

type Config struct {
	ServiceName  string
	DefaultLimit int
	MaxLimit     int
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Status      domain.Status
	ImageURL    string
	OwnerID     string
}

type DeleteProductResult struct {
	Message string `json:"message"`
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = "catalog"
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	return c
}

type clock func() time.Time

package domain

import (
	"math"
	"time"
)

type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusActive Status = "ACTIVE"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusActive
}

// Product is the authoritative catalog record.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Status      Status    `json:"status"`
	ImageURL    string    `json:"imageUrl"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductPatch carries the fields of a partial update; nil means unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Status      *Status
	ImageURL    *string
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Status == nil && p.ImageURL == nil
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination derives the page metadata for total items.
func NewPagination(page, limit, total int) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total, HasPrev: page > 1}
	if limit <= 0 || total <= 0 {
		return p
	}
	p.TotalPages = total / limit
	if total%limit != 0 {
		p.TotalPages++
	}
	// page*limit < total, without the multiplication overflowing.
	p.HasNext = page <= (total-1)/limit
	return p
}

// Offset is the number of rows before page. It saturates at math.MaxInt
// instead of wrapping for very large pages.
func Offset(page, limit int) int {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

type ProductPage struct {
	Items      []Product  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	MinQueryLength = 3
	DefaultLimit   = 10
	MaxLimit       = 20
)

// Projection is search's read model of a catalog product.
type Projection struct {
	ProductID      string    `json:"productId"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	NormalisedText string    `json:"-"`
	Status         string    `json:"status"`
	Price          float64   `json:"price"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	OwnerID        string    `json:"ownerId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NormaliseText builds the lower-cased "name: description" text matched by
// queries.
func NormaliseText(name, description string) string {
	return strings.ToLower(name + ": " + description)
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

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

type ResultPage struct {
	Items      []Projection `json:"items"`
	Pagination Pagination   `json:"pagination"`
}

// Query is a normalised search request.
type Query struct {
	Term  string
	Page  int
	Limit int
}

// NewQuery trims and lower-cases term, defaults page and clamps limit to
// 1..MaxLimit.
func NewQuery(term string, page, limit int) Query {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Query{Term: strings.ToLower(strings.TrimSpace(term)), Page: page, Limit: limit}
}

// Searchable reports whether the term is long enough to hit storage.
func (q Query) Searchable() bool {
	return len([]rune(q.Term)) >= MinQueryLength
}

func (q Query) Offset() int {
	return Offset(q.Page, q.Limit)
}

func EmptyPage(q Query) ResultPage {
	return ResultPage{Items: []Projection{}, Pagination: NewPagination(q.Page, q.Limit, 0)}
}

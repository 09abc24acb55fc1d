// Package memory holds an in-process projection store for tests and local
// runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/teajhaney/shopstack-microservices/internal/search/domain"
)

type ProjectionRepository struct {
	mu          sync.Mutex
	projections map[string]domain.Projection
	// Searches counts storage lookups.
	Searches int
}

func NewProjectionRepository() *ProjectionRepository {
	return &ProjectionRepository{projections: make(map[string]domain.Projection)}
}

func (r *ProjectionRepository) Upsert(_ context.Context, p domain.Projection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.projections[p.ProductID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	r.projections[p.ProductID] = p
	return nil
}

func (r *ProjectionRepository) Remove(_ context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projections, productID)
	return nil
}

func (r *ProjectionRepository) Get(productID string) (domain.Projection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projections[productID]
	return p, ok
}

func (r *ProjectionRepository) Search(_ context.Context, term string, offset, limit int) ([]domain.Projection, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Searches++
	term = strings.ToLower(term)
	var matches []domain.Projection
	for _, p := range r.projections {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(p.NormalisedText, term) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ProductID > matches[j].ProductID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	total := len(matches)
	if offset >= total {
		return []domain.Projection{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

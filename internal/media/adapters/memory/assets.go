// Package memory holds in-process asset and blob stores for tests and local
// runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/teajhaney/shopstack-microservices/internal/media/domain"
)

type AssetRepository struct {
	mu     sync.Mutex
	assets map[string]domain.Asset
	// Err, when set, fails Create.
	Err error
}

func NewAssetRepository() *AssetRepository {
	return &AssetRepository{assets: make(map[string]domain.Asset)}
}

func (r *AssetRepository) Create(_ context.Context, a domain.Asset) (domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return domain.Asset{}, r.Err
	}
	r.assets[a.ID] = a
	return a, nil
}

func (r *AssetRepository) Attach(_ context.Context, assetID, productID string) (domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	a.ProductID = productID
	r.assets[assetID] = a
	return a, nil
}

func (r *AssetRepository) ListByProduct(_ context.Context, productID string) ([]domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Asset
	for _, a := range r.assets {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *AssetRepository) DeleteByIDs(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.assets, id)
	}
	return nil
}

func (r *AssetRepository) Get(id string) (domain.Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	return a, ok
}

func (r *AssetRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assets)
}

type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{objects: make(map[string][]byte), baseURL: baseURL}
}

func (s *BlobStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return s.baseURL + "/" + key, nil
}

func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *BlobStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

package postgres

import (
	"context"
	"embed"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teajhaney/shopstack-microservices/internal/catalog/domain"
	platformpg "github.com/teajhaney/shopstack-microservices/internal/platform/postgres"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return platformpg.RunMigrations(ctx, db, migrationFS, "migrations")
}

type productModel struct {
	ProductID   string    `gorm:"column:product_id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name"`
	Description string    `gorm:"column:description"`
	Price       float64   `gorm:"column:price"`
	Status      string    `gorm:"column:status"`
	ImageURL    string    `gorm:"column:image_url"`
	OwnerID     string    `gorm:"column:owner_id"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (productModel) TableName() string { return "products" }

func toDomainProduct(m productModel) domain.Product {
	return domain.Product{
		ID:          m.ProductID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Status:      domain.Status(m.Status),
		ImageURL:    m.ImageURL,
		OwnerID:     m.OwnerID,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	rec := productModel{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Status:      string(p.Status),
		ImageURL:    p.ImageURL,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(rec), nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	var rec productModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return toDomainProduct(rec), nil
}

func (r *ProductRepository) List(ctx context.Context, offset, limit int) ([]domain.Product, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&productModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []productModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("product_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainProduct(row))
	}
	return out, int(total), nil
}

func (r *ProductRepository) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}

	var rows []productModel
	res := r.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("product_id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return domain.Product{}, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return domain.Product{}, domain.ErrNotFound
	}
	return toDomainProduct(rows[0]), nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("product_id = ?", id).Delete(&productModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

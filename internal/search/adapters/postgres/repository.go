package postgres

import (
	"context"
	"embed"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	platformpg "github.com/teajhaney/shopstack-microservices/internal/platform/postgres"
	"github.com/teajhaney/shopstack-microservices/internal/search/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return platformpg.RunMigrations(ctx, db, migrationFS, "migrations")
}

type projectionModel struct {
	ProductID      string    `gorm:"column:product_id;primaryKey"`
	Name           string    `gorm:"column:name"`
	Description    string    `gorm:"column:description"`
	NormalisedText string    `gorm:"column:normalised_text"`
	Status         string    `gorm:"column:status"`
	Price          float64   `gorm:"column:price"`
	ImageURL       string    `gorm:"column:image_url"`
	OwnerID        string    `gorm:"column:owner_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (projectionModel) TableName() string { return "product_projections" }

func toDomainProjection(m projectionModel) domain.Projection {
	return domain.Projection{
		ProductID:      m.ProductID,
		Name:           m.Name,
		Description:    m.Description,
		NormalisedText: m.NormalisedText,
		Status:         m.Status,
		Price:          m.Price,
		ImageURL:       m.ImageURL,
		OwnerID:        m.OwnerID,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type ProjectionRepository struct {
	db *gorm.DB
}

func NewProjectionRepository(db *gorm.DB) *ProjectionRepository {
	return &ProjectionRepository{db: db}
}

func (r *ProjectionRepository) Upsert(ctx context.Context, p domain.Projection) error {
	rec := projectionModel{
		ProductID:      p.ProductID,
		Name:           p.Name,
		Description:    p.Description,
		NormalisedText: p.NormalisedText,
		Status:         p.Status,
		Price:          p.Price,
		ImageURL:       p.ImageURL,
		OwnerID:        p.OwnerID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "normalised_text", "status", "price", "image_url", "owner_id", "updated_at",
		}),
	}).Create(&rec).Error
}

func (r *ProjectionRepository) Remove(ctx context.Context, productID string) error {
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&projectionModel{}).Error
}

func (r *ProjectionRepository) Search(ctx context.Context, term string, offset, limit int) ([]domain.Projection, int, error) {
	pattern := "%" + platformpg.EscapeLike(term) + "%"
	match := func(db *gorm.DB) *gorm.DB {
		return db.Where("name ILIKE ? OR normalised_text ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&projectionModel{}).Scopes(match).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []projectionModel
	if err := r.db.WithContext(ctx).
		Scopes(match).
		Order("created_at DESC").
		Order("product_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Projection, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainProjection(row))
	}
	return out, int(total), nil
}

package postgres

import (
	"context"
	"embed"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teajhaney/shopstack-microservices/internal/media/domain"
	platformpg "github.com/teajhaney/shopstack-microservices/internal/platform/postgres"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return platformpg.RunMigrations(ctx, db, migrationFS, "migrations")
}

type assetModel struct {
	AssetID    string    `gorm:"column:asset_id;type:uuid;primaryKey"`
	URL        string    `gorm:"column:url"`
	ObjectKey  string    `gorm:"column:object_key"`
	MimeType   string    `gorm:"column:mime_type"`
	UploaderID string    `gorm:"column:uploader_id"`
	ProductID  *string   `gorm:"column:product_id"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (assetModel) TableName() string { return "media_assets" }

func toDomainAsset(m assetModel) domain.Asset {
	a := domain.Asset{
		ID:         m.AssetID,
		URL:        m.URL,
		ObjectKey:  m.ObjectKey,
		MimeType:   m.MimeType,
		UploaderID: m.UploaderID,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
	if m.ProductID != nil {
		a.ProductID = *m.ProductID
	}
	return a
}

type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	rec := assetModel{
		AssetID:    a.ID,
		URL:        a.URL,
		ObjectKey:  a.ObjectKey,
		MimeType:   a.MimeType,
		UploaderID: a.UploaderID,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.ProductID != "" {
		rec.ProductID = &a.ProductID
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Asset{}, err
	}
	return toDomainAsset(rec), nil
}

func (r *AssetRepository) Attach(ctx context.Context, assetID, productID string) (domain.Asset, error) {
	var rows []assetModel
	res := r.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("asset_id = ?", assetID).
		Updates(map[string]any{"product_id": productID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return domain.Asset{}, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return domain.Asset{}, domain.ErrNotFound
	}
	return toDomainAsset(rows[0]), nil
}

func (r *AssetRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Asset, error) {
	var rows []assetModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Asset, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainAsset(row))
	}
	return out, nil
}

func (r *AssetRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("asset_id IN ?", ids).Delete(&assetModel{}).Error
}

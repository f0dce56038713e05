package repository

import (
	"context"

	"courier-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OverrideRepository stores per-seller price overrides.
type OverrideRepository interface {
	FindBySeller(ctx context.Context, sellerID string) ([]models.SellerRateOverride, error)
	Upsert(ctx context.Context, o *models.SellerRateOverride) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormOverrideRepository struct {
	db *gorm.DB
}

func NewGormOverrideRepository(db *gorm.DB) OverrideRepository {
	return &GormOverrideRepository{db: db}
}

func (r *GormOverrideRepository) FindBySeller(ctx context.Context, sellerID string) ([]models.SellerRateOverride, error) {
	var out []models.SellerRateOverride
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("last_updated DESC").
		Find(&out).Error
	return out, err
}

// Upsert replaces the seller's override for a base card; unset fields are
// written as NULL so they inherit again.
func (r *GormOverrideRepository) Upsert(ctx context.Context, o *models.SellerRateOverride) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}, {Name: "base_rate_card_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_rate", "addl_rate", "cod_amount", "cod_percent", "rto_charges",
				"minimum_billable_weight", "last_updated",
			}),
		}).
		Create(o).Error
}

func (r *GormOverrideRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.SellerRateOverride{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

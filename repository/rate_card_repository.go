package repository

import (
	"context"
	"strings"

	"courier-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateCardRepository is the store of base pricing tuples.
type RateCardRepository interface {
	FindActive(ctx context.Context) ([]models.RateCard, error)
	FindActiveByCourier(ctx context.Context, courier string) ([]models.RateCard, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.RateCard, error)
	BulkUpsert(ctx context.Context, cards []models.RateCard) (int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormRateCardRepository struct {
	db *gorm.DB
}

func NewGormRateCardRepository(db *gorm.DB) RateCardRepository {
	return &GormRateCardRepository{db: db}
}

const rateCardOrder = "courier, zone, mode, product_name, rate_band"

func (r *GormRateCardRepository) FindActive(ctx context.Context) ([]models.RateCard, error) {
	var cards []models.RateCard
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(rateCardOrder).
		Find(&cards).Error
	return cards, err
}

func (r *GormRateCardRepository) FindActiveByCourier(ctx context.Context, courier string) ([]models.RateCard, error) {
	var cards []models.RateCard
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND courier = ?", true, strings.ToLower(courier)).
		Order(rateCardOrder).
		Find(&cards).Error
	return cards, err
}

func (r *GormRateCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.RateCard, error) {
	var c models.RateCard
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// BulkUpsert inserts cards or updates prices of existing ones matched on the
// identity tuple. Imported cards are reactivated.
func (r *GormRateCardRepository) BulkUpsert(ctx context.Context, cards []models.RateCard) (int64, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	for i := range cards {
		cards[i].ApplyDefaults()
		cards[i].Courier = strings.ToLower(cards[i].Courier)
		cards[i].IsActive = true
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "courier"}, {Name: "product_name"}, {Name: "mode"}, {Name: "zone"}, {Name: "rate_band"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_rate", "addl_rate", "cod_amount", "cod_percent", "rto_charges",
				"minimum_billable_weight", "is_active", "updated_at",
			}),
		}).
		CreateInBatches(cards, 200)
	return res.RowsAffected, res.Error
}

// Deactivate soft-removes a card from pricing; the row is kept.
func (r *GormRateCardRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.RateCard{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete permanently removes a card. Reserved for privileged callers.
func (r *GormRateCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Unscoped().Delete(&models.RateCard{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

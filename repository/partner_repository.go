package repository

import (
	"context"
	"strings"

	"courier-service/models"

	"gorm.io/gorm"
)

// PartnerRepository is the persistent store behind the partner registry.
type PartnerRepository interface {
	FindByCode(ctx context.Context, code string) (*models.PartnerConfig, error)
	FindActive(ctx context.Context) ([]models.PartnerConfig, error)
	Save(ctx context.Context, p *models.PartnerConfig) error
	UpdateStatus(ctx context.Context, code string, status models.APIStatus) error
	UpdateCredentials(ctx context.Context, code string, creds map[string]string) error
}

type GormPartnerRepository struct {
	db *gorm.DB
}

func NewGormPartnerRepository(db *gorm.DB) PartnerRepository {
	return &GormPartnerRepository{db: db}
}

func (r *GormPartnerRepository) FindByCode(ctx context.Context, code string) (*models.PartnerConfig, error) {
	var p models.PartnerConfig
	if err := r.db.WithContext(ctx).
		Where("courier_code = ?", strings.ToLower(code)).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPartnerRepository) FindActive(ctx context.Context) ([]models.PartnerConfig, error) {
	var out []models.PartnerConfig
	err := r.db.WithContext(ctx).
		Where("api_status = ?", models.APIStatusActive).
		Order("courier_code").
		Find(&out).Error
	return out, err
}

func (r *GormPartnerRepository) Save(ctx context.Context, p *models.PartnerConfig) error {
	p.CourierCode = strings.ToLower(p.CourierCode)
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *GormPartnerRepository) UpdateStatus(ctx context.Context, code string, status models.APIStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.PartnerConfig{}).
		Where("courier_code = ?", strings.ToLower(code)).
		Update("api_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormPartnerRepository) UpdateCredentials(ctx context.Context, code string, creds map[string]string) error {
	res := r.db.WithContext(ctx).
		Model(&models.PartnerConfig{}).
		Where("courier_code = ?", strings.ToLower(code)).
		Select("credentials").
		Updates(&models.PartnerConfig{Credentials: creds})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

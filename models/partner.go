package models

import (
	"time"

	"github.com/google/uuid"
)

type APIStatus string

const (
	APIStatusActive   APIStatus = "active"
	APIStatusInactive APIStatus = "inactive"
)

// RateDefaults price a shipment when neither a card nor a live API quote exists.
type RateDefaults struct {
	BaseRate   float64 `json:"base_rate"`
	WeightRate float64 `json:"weight_rate"`
	CODAmount  float64 `json:"cod_amount"`
	CODPercent float64 `json:"cod_percent"`
}

type WeightLimits struct {
	MinKg float64 `json:"min_kg"`
	MaxKg float64 `json:"max_kg"`
}

type DimensionLimits struct {
	MaxLengthCm float64 `json:"max_length_cm"`
	MaxWidthCm  float64 `json:"max_width_cm"`
	MaxHeightCm float64 `json:"max_height_cm"`
}

// PartnerConfig is the stored configuration of one courier integration.
// Credentials are opaque to everything except the courier's adapter; a
// "secret_id" entry points at an AWS Secrets Manager secret holding the rest.
type PartnerConfig struct {
	ID              uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CourierCode     string            `gorm:"type:varchar(64);not null;uniqueIndex" json:"courier_code"`
	Name            string            `gorm:"type:varchar(128)" json:"name"`
	Credentials     map[string]string `gorm:"type:jsonb;serializer:json" json:"-"`
	RateDefaults    RateDefaults      `gorm:"type:jsonb;serializer:json" json:"rate_defaults"`
	ServiceTypes    []string          `gorm:"type:jsonb;serializer:json" json:"service_types"`
	WeightLimits    WeightLimits      `gorm:"type:jsonb;serializer:json" json:"weight_limits"`
	DimensionLimits DimensionLimits   `gorm:"type:jsonb;serializer:json" json:"dimension_limits"`
	APIStatus       APIStatus         `gorm:"type:varchar(16);not null;default:'active'" json:"api_status"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PartnerConfig) IsActive() bool {
	return p != nil && p.APIStatus == APIStatusActive
}

// Credential returns a credential value, empty when missing.
func (p *PartnerConfig) Credential(key string) string {
	if p == nil || p.Credentials == nil {
		return ""
	}
	return p.Credentials[key]
}

// Accepts reports whether a parcel fits the partner's weight and size limits.
// Zero limits are treated as unlimited.
func (p *PartnerConfig) Accepts(weightKg float64, dims *Dimensions) bool {
	if p.WeightLimits.MinKg > 0 && weightKg < p.WeightLimits.MinKg {
		return false
	}
	if p.WeightLimits.MaxKg > 0 && weightKg > p.WeightLimits.MaxKg {
		return false
	}
	if dims == nil {
		return true
	}
	l := p.DimensionLimits
	if l.MaxLengthCm > 0 && dims.LengthCm > l.MaxLengthCm {
		return false
	}
	if l.MaxWidthCm > 0 && dims.WidthCm > l.MaxWidthCm {
		return false
	}
	if l.MaxHeightCm > 0 && dims.HeightCm > l.MaxHeightCm {
		return false
	}
	return true
}

// PartnerCacheEntry is what the registry stores in the shared cache. It
// carries credentials, which the API-facing PartnerConfig JSON hides.
type PartnerCacheEntry struct {
	Config      PartnerConfig     `json:"config"`
	Credentials map[string]string `json:"credentials"`
}

func NewPartnerCacheEntry(p *PartnerConfig) PartnerCacheEntry {
	return PartnerCacheEntry{Config: *p, Credentials: p.Credentials}
}

func (e PartnerCacheEntry) PartnerConfig() *PartnerConfig {
	cfg := e.Config
	cfg.Credentials = e.Credentials
	return &cfg
}

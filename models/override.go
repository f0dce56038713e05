package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerRateOverride replaces a subset of a base card's prices for one seller.
// A nil field means "inherit from the base card".
type SellerRateOverride struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerID              string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_seller_card" json:"seller_id"`
	BaseRateCardID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_seller_card" json:"base_rate_card_id"`
	BaseRate              *float64  `json:"base_rate,omitempty"`
	AddlRate              *float64  `json:"addl_rate,omitempty"`
	CODAmount             *float64  `json:"cod_amount,omitempty"`
	CODPercent            *float64  `json:"cod_percent,omitempty"`
	RTOCharges            *float64  `json:"rto_charges,omitempty"`
	MinimumBillableWeight *float64  `json:"minimum_billable_weight,omitempty"`
	LastUpdated           time.Time `gorm:"autoUpdateTime" json:"last_updated"`
}

// HasOverrides reports whether any price field is set.
func (o *SellerRateOverride) HasOverrides() bool {
	return o.BaseRate != nil || o.AddlRate != nil || o.CODAmount != nil ||
		o.CODPercent != nil || o.RTOCharges != nil || o.MinimumBillableWeight != nil
}

// ApplyTo returns base with every set field replaced.
func (o *SellerRateOverride) ApplyTo(base RateCard) RateCard {
	if o.BaseRate != nil {
		base.BaseRate = *o.BaseRate
	}
	if o.AddlRate != nil {
		base.AddlRate = *o.AddlRate
	}
	if o.CODAmount != nil {
		base.CODAmount = *o.CODAmount
	}
	if o.CODPercent != nil {
		base.CODPercent = *o.CODPercent
	}
	if o.RTOCharges != nil {
		base.RTOCharges = *o.RTOCharges
	}
	if o.MinimumBillableWeight != nil {
		base.MinimumBillableWeight = *o.MinimumBillableWeight
	}
	return base
}

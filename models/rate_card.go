package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mode is the service mode a rate card prices.
type Mode string

const (
	ModeSurface  Mode = "Surface"
	ModeAir      Mode = "Air"
	ModeExpress  Mode = "Express"
	ModeStandard Mode = "Standard"
	ModePremium  Mode = "Premium"
)

// Zone is the coarse lane classification of an origin/destination pair.
type Zone string

const (
	ZoneWithinCity   Zone = "Within City"
	ZoneWithinState  Zone = "Within State"
	ZoneWithinRegion Zone = "Within Region"
	ZoneMetroToMetro Zone = "Metro to Metro"
	ZoneRestOfIndia  Zone = "Rest of India"
	ZoneSpecial      Zone = "Special Zone"
	// ZoneNorthEastJK is priceable but only reachable through an explicit zone.
	ZoneNorthEastJK Zone = "North East & J&K"
)

// Zones lists every zone in pricing order.
var Zones = []Zone{
	ZoneWithinCity, ZoneWithinState, ZoneWithinRegion, ZoneMetroToMetro,
	ZoneRestOfIndia, ZoneSpecial, ZoneNorthEastJK,
}

const (
	DefaultRateBand              = "RBX1"
	DefaultMinimumBillableWeight = 0.5
)

// RateCard is one priced (courier, product, mode, zone, rate band) tuple.
type RateCard struct {
	ID                    uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Courier               string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_rate_card_identity" json:"courier"`
	ProductName           string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_rate_card_identity" json:"product_name"`
	Mode                  Mode           `gorm:"type:varchar(16);not null;uniqueIndex:idx_rate_card_identity" json:"mode"`
	Zone                  Zone           `gorm:"type:varchar(32);not null;uniqueIndex:idx_rate_card_identity;index" json:"zone"`
	RateBand              string         `gorm:"type:varchar(32);not null;default:'RBX1';uniqueIndex:idx_rate_card_identity" json:"rate_band"`
	BaseRate              float64        `gorm:"not null" json:"base_rate"`
	AddlRate              float64        `gorm:"not null" json:"addl_rate"`
	CODAmount             float64        `gorm:"not null;default:0" json:"cod_amount"`
	CODPercent            float64        `gorm:"not null;default:0" json:"cod_percent"`
	RTOCharges            float64        `gorm:"not null;default:0" json:"rto_charges"`
	MinimumBillableWeight float64        `gorm:"not null;default:0.5" json:"minimum_billable_weight"`
	IsActive              bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

// RateCardKey is the identity tuple of a rate card.
type RateCardKey struct {
	Courier     string
	ProductName string
	Mode        Mode
	Zone        Zone
	RateBand    string
}

func (k RateCardKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.Courier, k.ProductName, k.Mode, k.Zone, k.RateBand)
}

// Key returns the card identity with the default rate band filled in.
func (c RateCard) Key() RateCardKey {
	band := c.RateBand
	if band == "" {
		band = DefaultRateBand
	}
	return RateCardKey{
		Courier:     strings.ToLower(c.Courier),
		ProductName: c.ProductName,
		Mode:        c.Mode,
		Zone:        c.Zone,
		RateBand:    band,
	}
}

// ApplyDefaults fills the documented defaults on a freshly imported card.
func (c *RateCard) ApplyDefaults() {
	if c.RateBand == "" {
		c.RateBand = DefaultRateBand
	}
	if c.MinimumBillableWeight == 0 {
		c.MinimumBillableWeight = DefaultMinimumBillableWeight
	}
}

// EffectiveRateCard is a base card after seller overrides were merged onto it.
type EffectiveRateCard struct {
	RateCard
	IsOverride bool `json:"is_override"`
}

func (z Zone) Valid() bool {
	for _, v := range Zones {
		if v == z {
			return true
		}
	}
	return false
}

func (m Mode) Valid() bool {
	switch m {
	case ModeSurface, ModeAir, ModeExpress, ModeStandard, ModePremium:
		return true
	}
	return false
}

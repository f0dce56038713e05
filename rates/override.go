package rates

import (
	"courier-service/models"

	"github.com/google/uuid"
)

// MergeOverrides applies a seller's overrides to the active base cards. The
// output has exactly one entry per active base card; overrides whose base card
// is inactive or missing are ignored.
func MergeOverrides(base []models.RateCard, overrides []models.SellerRateOverride) []models.EffectiveRateCard {
	byCard := make(map[uuid.UUID]*models.SellerRateOverride, len(overrides))
	for i := range overrides {
		o := &overrides[i]
		if !o.HasOverrides() {
			continue
		}
		if prev, ok := byCard[o.BaseRateCardID]; ok && prev.LastUpdated.After(o.LastUpdated) {
			continue
		}
		byCard[o.BaseRateCardID] = o
	}

	out := make([]models.EffectiveRateCard, 0, len(base))
	for _, card := range base {
		if !card.IsActive {
			continue
		}
		card.ApplyDefaults()
		if o, ok := byCard[card.ID]; ok {
			out = append(out, models.EffectiveRateCard{RateCard: o.ApplyTo(card), IsOverride: true})
			continue
		}
		out = append(out, models.EffectiveRateCard{RateCard: card})
	}
	SortCards(out)
	return out
}

// BaseCards wraps active base cards without any seller context.
func BaseCards(base []models.RateCard) []models.EffectiveRateCard {
	return MergeOverrides(base, nil)
}

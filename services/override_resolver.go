package services

import (
	"context"
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/rates"
	"courier-service/repository"

	"go.uber.org/zap"
)

// OverrideResolver loads the cards a seller is priced with.
type OverrideResolver struct {
	cards     repository.RateCardRepository
	overrides repository.OverrideRepository
	logger    *zap.Logger
}

func NewOverrideResolver(cards repository.RateCardRepository, overrides repository.OverrideRepository, logger *zap.Logger) *OverrideResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideResolver{cards: cards, overrides: overrides, logger: logger}
}

// EffectiveRateCards returns one card per active base card, with the seller's
// overrides merged in. An empty sellerID yields the base cards. No active
// cards is an empty slice, not an error.
func (r *OverrideResolver) EffectiveRateCards(ctx context.Context, sellerID string) ([]models.EffectiveRateCard, error) {
	base, err := r.cards.FindActive(ctx)
	if err != nil {
		r.logger.Error("Failed to load rate cards", zap.Error(err))
		return nil, apperrors.Internal("failed to load rate cards", err)
	}

	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return rates.BaseCards(base), nil
	}

	overrides, err := r.overrides.FindBySeller(ctx, sellerID)
	if err != nil {
		r.logger.Error("Failed to load seller overrides", zap.String("seller_id", sellerID), zap.Error(err))
		return nil, apperrors.Internal("failed to load seller overrides", err)
	}
	return rates.MergeOverrides(base, overrides), nil
}

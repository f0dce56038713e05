package services

import (
	"context"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/rates"

	"go.uber.org/zap"
)

// CardSource supplies the effective rate cards for a seller.
type CardSource interface {
	EffectiveRateCards(ctx context.Context, sellerID string) ([]models.EffectiveRateCard, error)
}

// RateService answers rate-card quotes. All I/O happens here; the engine
// only computes.
type RateService struct {
	engine *rates.Engine
	cards  CardSource
	logger *zap.Logger
}

func NewRateService(engine *rates.Engine, cards CardSource, logger *zap.Logger) *RateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateService{engine: engine, cards: cards, logger: logger}
}

// CalculateShippingRate prices req against the seller's effective cards.
func (s *RateService) CalculateShippingRate(ctx context.Context, req models.CalculationRequest) (*models.CalculationResult, error) {
	cards, err := s.cards.EffectiveRateCards(ctx, req.SellerID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, apperrors.NoRates("no active rate cards are configured")
	}

	res, err := s.engine.Calculate(req, cards)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindValidation) {
			s.logger.Info("No rate for request",
				zap.String("seller_id", req.SellerID),
				zap.String("courier", req.Courier),
				zap.Error(err),
			)
		}
		return nil, err
	}
	if len(res.Skipped) > 0 {
		s.logger.Warn("Rate cards skipped during pricing",
			zap.String("zone", string(res.Zone)),
			zap.Int("skipped", len(res.Skipped)),
		)
	}
	return res, nil
}

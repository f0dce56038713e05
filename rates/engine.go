package rates

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"
)

const GSTRate = 0.18

// Engine prices a request against a candidate card set. It performs no I/O;
// callers load cards before invoking it.
type Engine struct {
	zones   *ZoneClassifier
	weights WeightCalculator
}

func NewEngine(zones *ZoneClassifier, weights WeightCalculator) *Engine {
	return &Engine{zones: zones, weights: weights}
}

// ResolveZone returns the explicit zone when given, else classifies the pincodes.
func (e *Engine) ResolveZone(req models.CalculationRequest) (models.Zone, error) {
	if req.Zone != "" {
		if !req.Zone.Valid() {
			return "", apperrors.Validation("unknown zone %q", req.Zone)
		}
		return req.Zone, nil
	}
	if req.OriginPincode == "" || req.DestinationPincode == "" {
		return "", apperrors.Validation("either zone or both pickup and delivery pincodes are required")
	}
	return e.zones.Classify(req.OriginPincode, req.DestinationPincode)
}

func validateRequest(req models.CalculationRequest) error {
	if err := validateWeight(req.WeightKg); err != nil {
		return err
	}
	if err := validateDimensions(req.Dimensions); err != nil {
		return err
	}
	switch req.PaymentType {
	case models.PaymentPrepaid, models.PaymentCOD:
	default:
		return apperrors.Validation("payment type must be prepaid or cod, got %q", req.PaymentType)
	}
	if !finite(req.CODCollectableAmount) || req.CODCollectableAmount < 0 {
		return apperrors.Validation("cod collectable amount must be a non-negative number")
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return apperrors.Validation("unknown mode %q", req.Mode)
	}
	return nil
}

// Calculate resolves the zone, filters cards to it and returns every priced
// candidate cheapest first.
func (e *Engine) Calculate(req models.CalculationRequest, cards []models.EffectiveRateCard) (*models.CalculationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	zone, err := e.ResolveZone(req)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.EffectiveRateCard, 0, len(cards))
	for _, c := range cards {
		if c.Zone != zone {
			continue
		}
		if req.Courier != "" && !strings.EqualFold(c.Courier, req.Courier) {
			continue
		}
		if req.Mode != "" && c.Mode != req.Mode {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		if req.Mode != "" {
			return nil, apperrors.NoRates("no %s rate cards in zone %s", req.Mode, zone)
		}
		if req.Courier != "" {
			return nil, apperrors.NoRates("no rate cards for courier %s in zone %s", req.Courier, zone)
		}
		return nil, apperrors.NoRates("no rate cards for zone %s", zone)
	}
	SortCards(candidates)

	result := &models.CalculationResult{
		Zone:             zone,
		VolumetricWeight: round2(e.weights.Volumetric(req.Dimensions)),
	}
	for _, card := range candidates {
		line, err := e.price(req, zone, card)
		if err != nil {
			result.Skipped = append(result.Skipped, models.SkippedCandidate{
				Courier:     card.Courier,
				Mode:        card.Mode,
				ProductName: card.ProductName,
				Reason:      err.Error(),
			})
			continue
		}
		result.Calculations = append(result.Calculations, line)
	}
	if len(result.Calculations) == 0 {
		return nil, apperrors.NoRates("none of the %d rate cards for zone %s could be priced", len(candidates), zone)
	}

	sort.SliceStable(result.Calculations, func(i, j int) bool {
		a, b := result.Calculations[i], result.Calculations[j]
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		if a.Courier != b.Courier {
			return a.Courier < b.Courier
		}
		if a.Mode != b.Mode {
			return a.Mode < b.Mode
		}
		return a.ProductName < b.ProductName
	})

	cheapest := result.Calculations[0]
	result.BilledWeight = cheapest.BilledWeight
	result.DeliveryEstimate = cheapest.DeliveryEstimate
	return result, nil
}

func (e *Engine) price(req models.CalculationRequest, zone models.Zone, card models.EffectiveRateCard) (models.Calculation, error) {
	if card.MinimumBillableWeight <= 0 {
		return models.Calculation{}, fmt.Errorf("minimum billable weight %v is not positive", card.MinimumBillableWeight)
	}
	if card.BaseRate < 0 || card.AddlRate < 0 || card.CODAmount < 0 || card.CODPercent < 0 || card.RTOCharges < 0 {
		return models.Calculation{}, fmt.Errorf("card %s has negative prices", card.Key())
	}

	billed, err := e.weights.BilledWeight(req.WeightKg, req.Dimensions, card.MinimumBillableWeight)
	if err != nil {
		return models.Calculation{}, err
	}
	multiplier := steps(billed, card.MinimumBillableWeight)
	if multiplier > math.MaxInt32 {
		return models.Calculation{}, fmt.Errorf("card %s slab %v kg is too small for %v kg", card.Key(), card.MinimumBillableWeight, billed)
	}

	shipping := card.BaseRate + card.AddlRate*(multiplier-1)
	cod := CODCharges(req.PaymentType, card.CODAmount, card.CODPercent, req.CODCollectableAmount)
	rto := 0.0
	if req.IncludeRTO {
		rto = card.RTOCharges
	}
	gst := GSTRate * (shipping + cod)

	band := card.RateBand
	if band == "" {
		band = models.DefaultRateBand
	}
	return models.Calculation{
		Courier:          card.Courier,
		Mode:             card.Mode,
		ProductName:      card.ProductName,
		RateBand:         band,
		BaseRate:         card.BaseRate,
		AddlRate:         card.AddlRate,
		BilledWeight:     billed,
		WeightMultiplier: int(multiplier),
		ShippingCost:     round2(shipping),
		CODCharges:       round2(cod),
		GST:              round2(gst),
		RTOCharges:       round2(rto),
		Total:            round2(shipping + cod + rto + gst),
		IsOverride:       card.IsOverride,
		DeliveryEstimate: DeliveryEstimate(zone, card.Mode),
	}, nil
}

// CODCharges is zero for prepaid orders, otherwise the larger of the flat
// amount and the percentage of the collectable amount.
func CODCharges(payment models.PaymentType, flat, percent, collectable float64) float64 {
	if payment != models.PaymentCOD {
		return 0
	}
	pct := percent / 100 * collectable
	if pct > flat {
		return pct
	}
	return flat
}

// SortCards orders cards by courier, zone, mode, product and rate band.
func SortCards[T interface{ Key() models.RateCardKey }](cards []T) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i].Key(), cards[j].Key()
		if a.Courier != b.Courier {
			return a.Courier < b.Courier
		}
		if a.Zone != b.Zone {
			return a.Zone < b.Zone
		}
		if a.Mode != b.Mode {
			return a.Mode < b.Mode
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.RateBand < b.RateBand
	})
}

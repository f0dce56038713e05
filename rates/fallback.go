package rates

import "courier-service/models"

// FallbackIncrement is the fixed weight step used for fallback estimates.
const FallbackIncrement = 0.5

// FallbackQuote prices a shipment from partner defaults alone. It is used when
// a courier has neither a matching card nor a reachable API, and is always
// flagged as FALLBACK.
func (e *Engine) FallbackQuote(courier string, defaults models.RateDefaults, zone models.Zone, mode models.Mode,
	weightKg float64, dims *models.Dimensions, payment models.PaymentType, collectable float64) (models.RateQuote, error) {
	billed, err := e.weights.BilledWeight(weightKg, dims, FallbackIncrement)
	if err != nil {
		return models.RateQuote{}, err
	}
	shipping := defaults.BaseRate + defaults.WeightRate*(steps(billed, FallbackIncrement)-1)
	cod := CODCharges(payment, defaults.CODAmount, defaults.CODPercent, collectable)
	gst := GSTRate * (shipping + cod)
	if mode == "" {
		mode = models.ModeSurface
	}
	return models.RateQuote{
		Courier:          courier,
		ServiceType:      string(mode),
		Mode:             mode,
		BilledWeight:     billed,
		ShippingCost:     round2(shipping),
		CODCharges:       round2(cod),
		GST:              round2(gst),
		Total:            round2(shipping + cod + gst),
		DeliveryEstimate: DeliveryEstimate(zone, mode),
		RateType:         models.RateTypeFallback,
	}, nil
}

// QuotesFromResult converts engine lines into rate-card quotes.
func QuotesFromResult(res *models.CalculationResult) []models.RateQuote {
	quotes := make([]models.RateQuote, 0, len(res.Calculations))
	for _, c := range res.Calculations {
		quotes = append(quotes, models.RateQuote{
			Courier:          c.Courier,
			ServiceType:      c.ProductName,
			Mode:             c.Mode,
			BilledWeight:     c.BilledWeight,
			ShippingCost:     c.ShippingCost,
			CODCharges:       c.CODCharges,
			GST:              c.GST,
			Total:            c.Total,
			DeliveryEstimate: c.DeliveryEstimate,
			RateType:         models.RateTypeRateCard,
			IsOverride:       c.IsOverride,
		})
	}
	return quotes
}

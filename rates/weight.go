package rates

import (
	"math"

	apperrors "courier-service/common/errors"
	"courier-service/models"
)

const DefaultDimensionalFactor = 5000.0

// epsilon absorbs float noise so 1.0/0.5 is two steps, not three.
const epsilon = 1e-9

// MaxWeightKg caps actual and volumetric weight. No courier in India
// accepts a single parcel anywhere near it.
const MaxWeightKg = 10000.0

// MaxDimensionCm caps each parcel side.
const MaxDimensionCm = 1000.0

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validateWeight rejects non-finite, non-positive and absurdly large weights.
func validateWeight(kg float64) error {
	if !finite(kg) || kg <= 0 {
		return apperrors.Validation("weight must be a positive number, got %v", kg)
	}
	if kg > MaxWeightKg {
		return apperrors.Validation("weight %v kg exceeds the %v kg maximum", kg, MaxWeightKg)
	}
	return nil
}

// WeightCalculator turns actual weight and dimensions into billed weight.
type WeightCalculator struct {
	DimensionalFactor float64
}

func NewWeightCalculator(factor float64) WeightCalculator {
	if factor <= 0 {
		factor = DefaultDimensionalFactor
	}
	return WeightCalculator{DimensionalFactor: factor}
}

// Volumetric returns L×W×H / factor, 0 when dims is nil.
func (w WeightCalculator) Volumetric(dims *models.Dimensions) float64 {
	if dims == nil {
		return 0
	}
	factor := w.DimensionalFactor
	if factor <= 0 {
		factor = DefaultDimensionalFactor
	}
	return dims.LengthCm * dims.WidthCm * dims.HeightCm / factor
}

func validateDimensions(dims *models.Dimensions) error {
	if dims == nil {
		return nil
	}
	for _, side := range []float64{dims.LengthCm, dims.WidthCm, dims.HeightCm} {
		if !finite(side) || side < 0 {
			return apperrors.Validation("dimensions must be non-negative numbers")
		}
		if side > MaxDimensionCm {
			return apperrors.Validation("parcel side %v cm exceeds the %v cm maximum", side, MaxDimensionCm)
		}
	}
	return nil
}

// BilledWeight rounds max(actual, volumetric) up to the next multiple of min.
// The result is never below min.
func (w WeightCalculator) BilledWeight(actualKg float64, dims *models.Dimensions, minKg float64) (float64, error) {
	if err := validateWeight(actualKg); err != nil {
		return 0, err
	}
	if err := validateDimensions(dims); err != nil {
		return 0, err
	}
	if !finite(minKg) || minKg <= 0 {
		return 0, apperrors.Validation("minimum billable weight must be positive, got %v", minKg)
	}

	chargeable := math.Max(actualKg, w.Volumetric(dims))
	if chargeable > MaxWeightKg {
		return 0, apperrors.Validation("volumetric weight %.2f kg exceeds the %v kg maximum", chargeable, MaxWeightKg)
	}
	return math.Round(steps(chargeable, minKg)*minKg*1000) / 1000, nil
}

// steps is ceil(weight/increment), at least 1. It stays in float64 so the
// slab count cannot overflow.
func steps(weight, increment float64) float64 {
	return math.Max(1, math.Ceil(weight/increment-epsilon))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package models

type Dimensions struct {
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// CalculationRequest is the canonical quote input. An explicit Zone wins over
// the pincode pair. A SellerID prices the seller's effective cards instead of
// the base cards. A non-empty Mode restricts candidates to that service mode.
type CalculationRequest struct {
	SellerID             string      `json:"seller_id,omitempty"`
	Zone                 Zone        `json:"zone,omitempty"`
	OriginPincode        string      `json:"origin_pincode,omitempty"`
	DestinationPincode   string      `json:"destination_pincode,omitempty"`
	WeightKg             float64     `json:"weight_kg"`
	Dimensions           *Dimensions `json:"dimensions,omitempty"`
	PaymentType          PaymentType `json:"payment_type"`
	CODCollectableAmount float64     `json:"cod_collectable_amount"`
	Courier              string      `json:"courier,omitempty"`
	Mode                 Mode        `json:"mode,omitempty"`
	IncludeRTO           bool        `json:"include_rto"`
}

// Calculation is one priced candidate.
type Calculation struct {
	Courier          string  `json:"courier"`
	Mode             Mode    `json:"mode"`
	ProductName      string  `json:"product_name"`
	RateBand         string  `json:"rate_band"`
	BaseRate         float64 `json:"base_rate"`
	AddlRate         float64 `json:"addl_rate"`
	BilledWeight     float64 `json:"billed_weight"`
	WeightMultiplier int     `json:"weight_multiplier"`
	ShippingCost     float64 `json:"shipping_cost"`
	CODCharges       float64 `json:"cod_charges"`
	GST              float64 `json:"gst"`
	RTOCharges       float64 `json:"rto_charges"`
	Total            float64 `json:"total"`
	IsOverride       bool    `json:"is_override"`
	DeliveryEstimate string  `json:"delivery_estimate"`
}

// SkippedCandidate is a card that could not be priced.
type SkippedCandidate struct {
	Courier     string `json:"courier"`
	Mode        Mode   `json:"mode"`
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
}

type CalculationResult struct {
	Zone             Zone               `json:"zone"`
	BilledWeight     float64            `json:"billed_weight"`
	VolumetricWeight float64            `json:"volumetric_weight"`
	Calculations     []Calculation      `json:"calculations"`
	DeliveryEstimate string             `json:"delivery_estimate"`
	Skipped          []SkippedCandidate `json:"skipped,omitempty"`
}

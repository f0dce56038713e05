package models

import (
	"time"

	apperrors "courier-service/common/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is a pickup or delivery point.
type Address struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,numeric,len=10"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Line1   string `json:"line1" validate:"required"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"required,numeric,len=6"`
	Country string `json:"country,omitempty"`
}

type Package struct {
	WeightKg      float64     `json:"weight_kg" validate:"gt=0"`
	Dimensions    *Dimensions `json:"dimensions,omitempty"`
	DeclaredValue float64     `json:"declared_value" validate:"gte=0"`
	Description   string      `json:"description,omitempty"`
	Quantity      int         `json:"quantity,omitempty" validate:"gte=0"`
}

// DeliveryDetails is the lane a live rate is requested for.
type DeliveryDetails struct {
	PickupPincode   string      `json:"pickup_pincode"`
	DeliveryPincode string      `json:"delivery_pincode"`
	PaymentType     PaymentType `json:"payment_type"`
	CODAmount       float64     `json:"cod_amount"`
	Mode            Mode        `json:"mode,omitempty"`
}

// ShipmentDetails is the booking payload handed to a courier adapter.
type ShipmentDetails struct {
	OrderID     string      `json:"order_id" validate:"required"`
	SellerID    string      `json:"seller_id" validate:"required"`
	Mode        Mode        `json:"mode,omitempty"`
	PaymentType PaymentType `json:"payment_type" validate:"required,oneof=prepaid cod"`
	CODAmount   float64     `json:"cod_amount" validate:"gte=0"`
	Pickup      Address     `json:"pickup" validate:"required"`
	Delivery    Address     `json:"delivery" validate:"required"`
	Package     Package     `json:"package" validate:"required"`
}

type RateType string

const (
	RateTypeLive     RateType = "LIVE"
	RateTypeRateCard RateType = "RATE_CARD"
	RateTypeFallback RateType = "FALLBACK"
)

// RateQuote is one offer returned by a courier or derived locally.
type RateQuote struct {
	Courier          string   `json:"courier"`
	ServiceType      string   `json:"service_type"`
	Mode             Mode     `json:"mode,omitempty"`
	BilledWeight     float64  `json:"billed_weight"`
	ShippingCost     float64  `json:"shipping_cost"`
	CODCharges       float64  `json:"cod_charges"`
	GST              float64  `json:"gst"`
	Total            float64  `json:"total"`
	DeliveryEstimate string   `json:"delivery_estimate,omitempty"`
	RateType         RateType `json:"rate_type"`
	IsOverride       bool     `json:"is_override,omitempty"`
}

const BookingTypeAPI = "API"

type Booking struct {
	AWB         string `json:"awb"`
	TrackingURL string `json:"tracking_url,omitempty"`
	LabelURL    string `json:"label_url,omitempty"`
	Courier     string `json:"provider"`
	BookingType string `json:"booking_type"`
	ShipmentID  string `json:"shipment_id,omitempty"`
}

type TrackingEvent struct {
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Tracking struct {
	TrackingID        string          `json:"tracking_id"`
	Courier           string          `json:"provider"`
	Status            string          `json:"status"`
	History           []TrackingEvent `json:"history"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
}

type Cancellation struct {
	TrackingID string `json:"tracking_id"`
	Cancelled  bool   `json:"cancelled"`
	Message    string `json:"message"`
}

// ComparisonEntry is one courier's slot in a rate comparison. Degraded
// entries carry locally derived quotes next to the provider error.
type ComparisonEntry struct {
	Courier   string          `json:"courier"`
	Success   bool            `json:"success"`
	Quotes    []RateQuote     `json:"quotes,omitempty"`
	Error     *apperrors.Body `json:"error,omitempty"`
	Degraded  bool            `json:"degraded,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

type RateComparisonRequest struct {
	SellerID             string      `json:"seller_id,omitempty"`
	OriginPincode        string      `json:"origin_pincode"`
	DestinationPincode   string      `json:"destination_pincode"`
	Package              Package     `json:"package"`
	PaymentType          PaymentType `json:"payment_type"`
	CODCollectableAmount float64     `json:"cod_collectable_amount"`
	Mode                 Mode        `json:"mode,omitempty"`
	Couriers             []string    `json:"couriers,omitempty"`
	IncludeRTO           bool        `json:"include_rto"`
}

// RateComparison holds one entry per courier and every quote across entries,
// cheapest first, in Offers.
type RateComparison struct {
	Zone    Zone              `json:"zone"`
	Entries []ComparisonEntry `json:"entries"`
	Offers  []RateQuote       `json:"offers"`
	Partial bool              `json:"partial"`
}

// Envelope is the uniform response of every exposed operation.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      any             `json:"data,omitempty"`
	Error     *apperrors.Body `json:"error,omitempty"`
	Provider  string          `json:"provider,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func OK(provider string, data any) *Envelope {
	return &Envelope{Success: true, Data: data, Provider: provider, Timestamp: time.Now().UTC()}
}

func Fail(provider string, err error) *Envelope {
	body := apperrors.ToBody(apperrors.Normalize(provider, err))
	return &Envelope{Success: false, Error: body, Provider: provider, Timestamp: time.Now().UTC()}
}

// Shipment status constants.
const (
	// ShipmentStatusPending reserves an order while its courier call is in flight.
	ShipmentStatusPending       = "pending"
	ShipmentStatusBookingFailed = "booking_failed"
	ShipmentStatusBooked        = "booked"
	ShipmentStatusInTransit     = "in_transit"
	ShipmentStatusDelivered     = "delivered"
	ShipmentStatusCancelled     = "cancelled"
	ShipmentStatusRTO           = "rto"
	ShipmentStatusFailed        = "failed"
)

// Shipment is the GORM model persisted for every booking attempt. One row
// per order; a rebookable row is reused by the next booking.
type Shipment struct {
	ID          uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     string      `gorm:"type:varchar(128);not null;uniqueIndex" json:"order_id"`
	SellerID    string      `gorm:"type:varchar(128);not null;index" json:"seller_id"`
	Courier     string      `gorm:"type:varchar(64);not null;index" json:"courier"`
	AWB         string      `gorm:"type:varchar(128);index" json:"awb"`
	TrackingURL string      `gorm:"type:varchar(1024)" json:"tracking_url"`
	LabelURL    string      `gorm:"type:varchar(1024)" json:"label_url"`
	Mode        Mode        `gorm:"type:varchar(16)" json:"mode"`
	PaymentType PaymentType `gorm:"type:varchar(16)" json:"payment_type"`
	CODAmount   float64     `json:"cod_amount"`
	Status      string      `gorm:"type:varchar(32);not null;default:'booked'" json:"status"`
	WeightKg    float64     `gorm:"not null" json:"weight_kg"`
	// Pickup/Delivery stored as JSON strings
	PickupJSON   string         `gorm:"type:jsonb" json:"-"`
	DeliveryJSON string         `gorm:"type:jsonb" json:"-"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Rebookable reports whether the order may be booked again: the shipment was
// cancelled or its booking never produced an AWB.
func (s *Shipment) Rebookable() bool {
	return s.Status == ShipmentStatusCancelled || s.Status == ShipmentStatusBookingFailed
}

// ShipmentEvent is published to SNS on booking, cancellation and status change.
type ShipmentEvent struct {
	EventType  string    `json:"event_type"`
	ShipmentID string    `json:"shipment_id"`
	OrderID    string    `json:"order_id"`
	SellerID   string    `json:"seller_id,omitempty"`
	Courier    string    `json:"courier"`
	AWB        string    `json:"awb"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	EventShipmentBooked    = "shipment_booked"
	EventShipmentCancelled = "shipment_cancelled"
	EventShipmentUpdated   = "shipment_updated"
)

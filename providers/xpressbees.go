package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/registry"

	"go.uber.org/zap"
)

const (
	xpressbeesBaseURL  = "https://shipment.xpressbees.com"
	xpressbeesTokenTTL = 12 * time.Hour
)

// XpressBeesAdapter logs in with email and password and sends the returned
// bearer token on every call.
type XpressBeesAdapter struct {
	client *Client
	tokens *registry.TokenCache
	log    *zap.Logger
}

func NewXpressBeesAdapter(client *Client, tokens *registry.TokenCache, log *zap.Logger) *XpressBeesAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &XpressBeesAdapter{client: client, tokens: tokens, log: log}
}

func (x *XpressBeesAdapter) Code() string { return "xpressbees" }

// ---- XpressBees API request/response structs ----

type xbLoginResponse struct {
	Status  bool   `json:"status"`
	Data    string `json:"data"`
	Message string `json:"message"`
}

type xbServiceabilityRequest struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	PaymentType string  `json:"payment_type"`
	OrderAmount float64 `json:"order_amount"`
	Weight      int     `json:"weight"`
	Length      float64 `json:"length,omitempty"`
	Breadth     float64 `json:"breadth,omitempty"`
	Height      float64 `json:"height,omitempty"`
}

type xbServiceabilityResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    []struct {
		ID               string  `json:"id"`
		Name             string  `json:"name"`
		FreightCharges   float64 `json:"freight_charges"`
		CODCharges       float64 `json:"cod_charges"`
		TotalCharges     float64 `json:"total_charges"`
		ChargeableWeight float64 `json:"chargeable_weight"`
	} `json:"data"`
}

type xbAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

type xbShipmentRequest struct {
	OrderNumber     string    `json:"order_number"`
	PaymentType     string    `json:"payment_type"`
	OrderAmount     float64   `json:"order_amount"`
	CollectableAmt  float64   `json:"collectable_amount"`
	PackageWeight   int       `json:"package_weight"`
	PackageLength   float64   `json:"package_length,omitempty"`
	PackageBreadth  float64   `json:"package_breadth,omitempty"`
	PackageHeight   float64   `json:"package_height,omitempty"`
	RequestAutoPick string    `json:"request_auto_pickup"`
	Consignee       xbAddress `json:"consignee"`
	Pickup          xbAddress `json:"pickup"`
	CourierID       string    `json:"courier_id,omitempty"`
}

type xbShipmentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AWBNumber  string `json:"awb_number"`
		ShipmentID string `json:"shipment_id"`
		Label      string `json:"label"`
	} `json:"data"`
}

type xbTrackResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status           string `json:"status"`
		EstimatedDelDate string `json:"edd"`
		History          []struct {
			StatusCode string `json:"status_code"`
			Location   string `json:"location"`
			EventTime  string `json:"event_time"`
			Message    string `json:"message"`
		} `json:"history"`
	} `json:"data"`
}

type xbCancelResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func xbAddr(a models.Address) xbAddress {
	return xbAddress{
		Name:    a.Name,
		Address: strings.TrimSpace(a.Line1 + " " + a.Line2),
		City:    a.City,
		State:   a.State,
		Pincode: a.Pincode,
		Phone:   a.Phone,
	}
}

func (x *XpressBeesAdapter) token(ctx context.Context, cfg *models.PartnerConfig) (string, error) {
	if err := requireCredential(x.Code(), cfg.Credentials, "email", "password"); err != nil {
		return "", err
	}
	base := baseURL(cfg.Credential("base_url"), xpressbeesBaseURL)
	return x.tokens.Token(ctx, x.Code(), func(ctx context.Context) (registry.Token, error) {
		var resp xbLoginResponse
		body := map[string]string{"email": cfg.Credential("email"), "password": cfg.Credential("password")}
		if err := x.client.doJSON(ctx, x.Code(), "login", http.MethodPost, base+"/api/users/login", nil, body, &resp); err != nil {
			return registry.Token{}, err
		}
		if !resp.Status || resp.Data == "" {
			return registry.Token{}, apperrors.Provider(apperrors.KindProviderAuthFailed, x.Code(), "login refused: "+resp.Message, nil)
		}
		return registry.Token{Value: resp.Data, ExpiresAt: time.Now().Add(xpressbeesTokenTTL)}, nil
	})
}

func (x *XpressBeesAdapter) authed(ctx context.Context, cfg *models.PartnerConfig, op, method, path string, reauth bool, in, out any) error {
	base := baseURL(cfg.Credential("base_url"), xpressbeesBaseURL)
	attempt := func() error {
		tok, err := x.token(ctx, cfg)
		if err != nil {
			return err
		}
		return x.client.doJSON(ctx, x.Code(), op, method, base+path, map[string]string{"Authorization": "Bearer " + tok}, in, out)
	}
	err := attempt()
	if reauth && apperrors.Is(err, apperrors.KindProviderAuthFailed) {
		x.tokens.MarkExpired(x.Code())
		err = attempt()
	}
	if apperrors.Is(err, apperrors.KindProviderAuthFailed) {
		x.tokens.MarkExpired(x.Code())
	}
	return err
}

// ---- CourierAdapter implementation ----

func (x *XpressBeesAdapter) CalculateRate(ctx context.Context, pkg models.Package, delivery models.DeliveryDetails, cfg *models.PartnerConfig) ([]models.RateQuote, error) {
	req := xbServiceabilityRequest{
		Origin:      delivery.PickupPincode,
		Destination: delivery.DeliveryPincode,
		PaymentType: string(delivery.PaymentType),
		OrderAmount: delivery.CODAmount,
		Weight:      grams(pkg.WeightKg),
	}
	if d := pkg.Dimensions; d != nil {
		req.Length, req.Breadth, req.Height = d.LengthCm, d.WidthCm, d.HeightCm
	}

	var resp xbServiceabilityResponse
	err := retryOnce(ctx, x.log, x.Code(), func() error {
		return x.authed(ctx, cfg, "rate", http.MethodPost, "/api/courier/serviceability", true, req, &resp)
	})
	if err != nil {
		return nil, err
	}
	if !resp.Status || len(resp.Data) == 0 {
		return nil, rejected(x.Code(), "lane not serviceable: %s", resp.Message)
	}

	quotes := make([]models.RateQuote, 0, len(resp.Data))
	for _, d := range resp.Data {
		mode := models.ModeSurface
		if strings.Contains(strings.ToLower(d.Name), "air") {
			mode = models.ModeAir
		}
		if delivery.Mode != "" && delivery.Mode != mode {
			continue
		}
		shipping := d.FreightCharges
		quotes = append(quotes, models.RateQuote{
			Courier:      x.Code(),
			ServiceType:  d.Name,
			Mode:         mode,
			BilledWeight: d.ChargeableWeight / 1000,
			ShippingCost: shipping,
			CODCharges:   d.CODCharges,
			GST:          d.TotalCharges - shipping - d.CODCharges,
			Total:        d.TotalCharges,
			RateType:     models.RateTypeLive,
		})
	}
	if len(quotes) == 0 {
		return nil, rejected(x.Code(), "no %s service on this lane", delivery.Mode)
	}
	return quotes, nil
}

func (x *XpressBeesAdapter) BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error) {
	req := xbShipmentRequest{
		OrderNumber:     details.OrderID,
		PaymentType:     string(details.PaymentType),
		OrderAmount:     details.Package.DeclaredValue,
		PackageWeight:   grams(details.Package.WeightKg),
		RequestAutoPick: "yes",
		Consignee:       xbAddr(details.Delivery),
		Pickup:          xbAddr(details.Pickup),
		CourierID:       cfg.Credential("courier_id"),
	}
	if details.PaymentType == models.PaymentCOD {
		req.CollectableAmt = details.CODAmount
	}
	if d := details.Package.Dimensions; d != nil {
		req.PackageLength, req.PackageBreadth, req.PackageHeight = d.LengthCm, d.WidthCm, d.HeightCm
	}

	var resp xbShipmentResponse
	if err := x.authed(ctx, cfg, "book", http.MethodPost, "/api/shipments2", false, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Status || resp.Data.AWBNumber == "" {
		return nil, rejected(x.Code(), "%s", resp.Message)
	}
	return &models.Booking{
		AWB:         resp.Data.AWBNumber,
		TrackingURL: "https://www.xpressbees.com/shipment/tracking?awbNo=" + resp.Data.AWBNumber,
		LabelURL:    resp.Data.Label,
		Courier:     x.Code(),
		BookingType: models.BookingTypeAPI,
		ShipmentID:  resp.Data.ShipmentID,
	}, nil
}

func (x *XpressBeesAdapter) TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error) {
	var resp xbTrackResponse
	path := "/api/shipments2/track/" + url.PathEscape(trackingID)
	err := retryOnce(ctx, x.log, x.Code(), func() error {
		return x.authed(ctx, cfg, "track", http.MethodGet, path, true, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, rejected(x.Code(), "%s: %s", trackingID, resp.Message)
	}

	history := make([]models.TrackingEvent, 0, len(resp.Data.History))
	for _, h := range resp.Data.History {
		ts, _ := parseTime(h.EventTime)
		history = append(history, models.TrackingEvent{
			Status:      h.StatusCode,
			Location:    h.Location,
			Description: h.Message,
			Timestamp:   ts,
		})
	}
	sortHistory(history)

	return &models.Tracking{
		TrackingID:        trackingID,
		Courier:           x.Code(),
		Status:            NormalizeStatus(resp.Data.Status),
		History:           history,
		EstimatedDelivery: timePtr(resp.Data.EstimatedDelDate),
	}, nil
}

func (x *XpressBeesAdapter) CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error) {
	var resp xbCancelResponse
	if err := x.authed(ctx, cfg, "cancel", http.MethodPost, "/api/shipments2/cancel", true, map[string]string{"awb": trackingID}, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, rejected(x.Code(), "cancel %s: %s", trackingID, resp.Message)
	}
	return &models.Cancellation{TrackingID: trackingID, Cancelled: true, Message: resp.Message}, nil
}

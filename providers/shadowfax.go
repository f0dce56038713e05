package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"courier-service/models"

	"go.uber.org/zap"
)

const shadowfaxBaseURL = "https://dale.shadowfax.in"

// ShadowfaxAdapter sends a static token header.
type ShadowfaxAdapter struct {
	client *Client
	log    *zap.Logger
}

func NewShadowfaxAdapter(client *Client, log *zap.Logger) *ShadowfaxAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShadowfaxAdapter{client: client, log: log}
}

func (s *ShadowfaxAdapter) Code() string { return "shadowfax" }

// ---- Shadowfax API request/response structs ----

type sfxServiceability struct {
	Serviceable bool   `json:"serviceable"`
	Message     string `json:"message"`
	Rates       []struct {
		Service       string  `json:"service"`
		ChargedWeight float64 `json:"charged_weight"`
		Freight       float64 `json:"freight"`
		COD           float64 `json:"cod"`
		GST           float64 `json:"gst"`
		Total         float64 `json:"total"`
	} `json:"rates"`
}

type sfxContact struct {
	Name          string `json:"name"`
	ContactNumber string `json:"contact"`
	AddressLine1  string `json:"address_line_1"`
	AddressLine2  string `json:"address_line_2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	Pincode       string `json:"pincode"`
}

type sfxOrderRequest struct {
	OrderDetails struct {
		ClientOrderID string  `json:"client_order_id"`
		ActualWeight  int     `json:"actual_weight"`
		ProductValue  float64 `json:"product_value"`
		PaymentMode   string  `json:"payment_mode"`
		CODAmount     float64 `json:"cod_amount"`
		Volumetric    float64 `json:"volumetric_weight,omitempty"`
		OrderType     string  `json:"order_type"`
	} `json:"order_details"`
	CustomerDetails sfxContact   `json:"customer_details"`
	PickupDetails   sfxContact   `json:"pickup_details"`
	ProductDetails  []sfxProduct `json:"product_details"`
}

type sfxProduct struct {
	SKUName string  `json:"sku_name"`
	Price   float64 `json:"price"`
}

type sfxOrderResponse struct {
	Message string `json:"message"`
	Errors  any    `json:"errors"`
	Data    struct {
		AWBNumber string `json:"awb_number"`
	} `json:"data"`
}

type sfxTrackResponse struct {
	Message      string `json:"message"`
	OrderDetails struct {
		Status               string `json:"status"`
		PromisedDeliveryDate string `json:"promised_delivery_date"`
	} `json:"order_details"`
	TrackingDetails []struct {
		Status   string `json:"status"`
		Remarks  string `json:"remarks"`
		Location string `json:"location"`
		Created  string `json:"created"`
	} `json:"tracking_details"`
}

type sfxCancelResponse struct {
	ResponseCode int    `json:"responseCode"`
	ResponseMsg  string `json:"responseMsg"`
}

func (s *ShadowfaxAdapter) auth(cfg *models.PartnerConfig) (map[string]string, string, error) {
	if err := requireCredential(s.Code(), cfg.Credentials, "api_token"); err != nil {
		return nil, "", err
	}
	return map[string]string{"Authorization": "Token " + cfg.Credential("api_token")},
		baseURL(cfg.Credential("base_url"), shadowfaxBaseURL), nil
}

func sfxAddr(a models.Address) sfxContact {
	return sfxContact{
		Name:          a.Name,
		ContactNumber: a.Phone,
		AddressLine1:  a.Line1,
		AddressLine2:  a.Line2,
		City:          a.City,
		State:         a.State,
		Pincode:       a.Pincode,
	}
}

// ---- CourierAdapter implementation ----

func (s *ShadowfaxAdapter) CalculateRate(ctx context.Context, pkg models.Package, delivery models.DeliveryDetails, cfg *models.PartnerConfig) ([]models.RateQuote, error) {
	header, base, err := s.auth(cfg)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("pickup_pincode", delivery.PickupPincode)
	q.Set("drop_pincode", delivery.DeliveryPincode)
	q.Set("weight", fmt.Sprint(grams(pkg.WeightKg)))
	q.Set("payment_mode", string(delivery.PaymentType))
	q.Set("cod_amount", fmt.Sprintf("%.2f", delivery.CODAmount))

	var resp sfxServiceability
	err = retryOnce(ctx, s.log, s.Code(), func() error {
		return s.client.doJSON(ctx, s.Code(), "rate", http.MethodGet, base+"/api/v2/serviceability/?"+q.Encode(), header, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if !resp.Serviceable {
		return nil, rejected(s.Code(), "lane %s to %s not serviceable: %s", delivery.PickupPincode, delivery.DeliveryPincode, resp.Message)
	}

	quotes := make([]models.RateQuote, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		quotes = append(quotes, models.RateQuote{
			Courier:      s.Code(),
			ServiceType:  r.Service,
			Mode:         models.ModeSurface,
			BilledWeight: r.ChargedWeight / 1000,
			ShippingCost: r.Freight,
			CODCharges:   r.COD,
			GST:          r.GST,
			Total:        r.Total,
			RateType:     models.RateTypeLive,
		})
	}
	if len(quotes) == 0 {
		return nil, rejected(s.Code(), "no rates returned")
	}
	return quotes, nil
}

func (s *ShadowfaxAdapter) BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error) {
	header, base, err := s.auth(cfg)
	if err != nil {
		return nil, err
	}
	var req sfxOrderRequest
	req.OrderDetails.ClientOrderID = details.OrderID
	req.OrderDetails.ActualWeight = grams(details.Package.WeightKg)
	req.OrderDetails.ProductValue = details.Package.DeclaredValue
	req.OrderDetails.PaymentMode = paymentLabel(details.PaymentType, "Prepaid", "COD")
	req.OrderDetails.OrderType = "marketplace"
	if details.PaymentType == models.PaymentCOD {
		req.OrderDetails.CODAmount = details.CODAmount
	}
	if d := details.Package.Dimensions; d != nil {
		req.OrderDetails.Volumetric = d.LengthCm * d.WidthCm * d.HeightCm / 5000
	}
	req.CustomerDetails = sfxAddr(details.Delivery)
	req.PickupDetails = sfxAddr(details.Pickup)
	req.ProductDetails = []sfxProduct{{SKUName: details.Package.Description, Price: details.Package.DeclaredValue}}

	var resp sfxOrderResponse
	if err := s.client.doJSON(ctx, s.Code(), "book", http.MethodPost, base+"/api/v3/clients/orders/", header, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data.AWBNumber == "" {
		msg := resp.Message
		if resp.Errors != nil {
			msg = fmt.Sprintf("%s: %v", msg, resp.Errors)
		}
		return nil, rejected(s.Code(), "%s", msg)
	}
	return &models.Booking{
		AWB:         resp.Data.AWBNumber,
		TrackingURL: "https://tracker.shadowfax.in/#/track/" + resp.Data.AWBNumber,
		Courier:     s.Code(),
		BookingType: models.BookingTypeAPI,
	}, nil
}

func (s *ShadowfaxAdapter) TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error) {
	header, base, err := s.auth(cfg)
	if err != nil {
		return nil, err
	}
	var resp sfxTrackResponse
	endpoint := base + "/api/v4/clients/orders/" + url.PathEscape(trackingID) + "/track/"
	err = retryOnce(ctx, s.log, s.Code(), func() error {
		return s.client.doJSON(ctx, s.Code(), "track", http.MethodGet, endpoint, header, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.OrderDetails.Status == "" {
		return nil, rejected(s.Code(), "%s: %s", trackingID, strings.TrimSpace(resp.Message+" order not found"))
	}

	history := make([]models.TrackingEvent, 0, len(resp.TrackingDetails))
	for _, t := range resp.TrackingDetails {
		ts, _ := parseTime(t.Created)
		history = append(history, models.TrackingEvent{Status: t.Status, Location: t.Location, Description: t.Remarks, Timestamp: ts})
	}
	sortHistory(history)

	return &models.Tracking{
		TrackingID:        trackingID,
		Courier:           s.Code(),
		Status:            NormalizeStatus(resp.OrderDetails.Status),
		History:           history,
		EstimatedDelivery: timePtr(resp.OrderDetails.PromisedDeliveryDate),
	}, nil
}

func (s *ShadowfaxAdapter) CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error) {
	header, base, err := s.auth(cfg)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"request_id": trackingID, "cancel_remarks": "Cancelled by seller"}
	var resp sfxCancelResponse
	if err := s.client.doJSON(ctx, s.Code(), "cancel", http.MethodPost, base+"/api/v3/clients/orders/cancel/", header, body, &resp); err != nil {
		return nil, err
	}
	if resp.ResponseCode != http.StatusOK {
		return nil, rejected(s.Code(), "cancel %s: %s", trackingID, resp.ResponseMsg)
	}
	return &models.Cancellation{TrackingID: trackingID, Cancelled: true, Message: resp.ResponseMsg}, nil
}

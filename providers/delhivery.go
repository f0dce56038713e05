package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"

	"go.uber.org/zap"
)

const delhiveryBaseURL = "https://track.delhivery.com"

// DelhiveryAdapter talks to Delhivery's JSON API with a static token header.
type DelhiveryAdapter struct {
	client *Client
	log    *zap.Logger
}

func NewDelhiveryAdapter(client *Client, log *zap.Logger) *DelhiveryAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &DelhiveryAdapter{client: client, log: log}
}

func (d *DelhiveryAdapter) Code() string { return "delhivery" }

// ---- Delhivery API request/response structs ----

type delhiveryCharge struct {
	TotalAmount   float64 `json:"total_amount"`
	GrossAmount   float64 `json:"gross_amount"`
	ChargeCOD     float64 `json:"charge_COD"`
	ChargedWeight float64 `json:"charged_weight"`
}

type delhiveryShipment struct {
	Name          string  `json:"name"`
	Add           string  `json:"add"`
	Pin           string  `json:"pin"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Country       string  `json:"country"`
	Phone         string  `json:"phone"`
	Order         string  `json:"order"`
	PaymentMode   string  `json:"payment_mode"`
	CODAmount     float64 `json:"cod_amount"`
	TotalAmount   float64 `json:"total_amount"`
	ProductsDesc  string  `json:"products_desc"`
	Quantity      int     `json:"quantity"`
	Weight        int     `json:"weight"`
	ShipmentWidth float64 `json:"shipment_width,omitempty"`
	ShipmentLen   float64 `json:"shipment_length,omitempty"`
	ShipmentHt    float64 `json:"shipment_height,omitempty"`
	ShippingMode  string  `json:"shipping_mode"`
}

type delhiveryPickup struct {
	Name    string `json:"name"`
	Add     string `json:"add"`
	City    string `json:"city"`
	Pin     string `json:"pin_code"`
	Phone   string `json:"phone"`
	Country string `json:"country"`
}

type delhiveryCreate struct {
	Shipments      []delhiveryShipment `json:"shipments"`
	PickupLocation delhiveryPickup     `json:"pickup_location"`
}

type delhiveryCreateResponse struct {
	Success  bool   `json:"success"`
	Remark   string `json:"rmk"`
	Packages []struct {
		Waybill string   `json:"waybill"`
		Status  string   `json:"status"`
		Remarks []string `json:"remarks"`
	} `json:"packages"`
}

type delhiveryTrackResponse struct {
	ShipmentData []struct {
		Shipment struct {
			AWB    string `json:"AWB"`
			Status struct {
				Status         string `json:"Status"`
				StatusLocation string `json:"StatusLocation"`
				StatusDateTime string `json:"StatusDateTime"`
				Instructions   string `json:"Instructions"`
			} `json:"Status"`
			ExpectedDeliveryDate string `json:"ExpectedDeliveryDate"`
			Scans                []struct {
				ScanDetail struct {
					Scan            string `json:"Scan"`
					ScannedLocation string `json:"ScannedLocation"`
					ScanDateTime    string `json:"ScanDateTime"`
					Instructions    string `json:"Instructions"`
				} `json:"ScanDetail"`
			} `json:"Scans"`
		} `json:"Shipment"`
	} `json:"ShipmentData"`
	Error string `json:"Error"`
}

type delhiveryCancelResponse struct {
	Status bool   `json:"status"`
	Remark string `json:"remark"`
}

func (d *DelhiveryAdapter) auth(cfg *models.PartnerConfig) (map[string]string, string, error) {
	if err := requireCredential(d.Code(), cfg.Credentials, "api_token"); err != nil {
		return nil, "", err
	}
	return map[string]string{"Authorization": "Token " + cfg.Credential("api_token")},
		baseURL(cfg.Credential("base_url"), delhiveryBaseURL), nil
}

func delhiveryMode(m models.Mode) string {
	switch m {
	case models.ModeAir, models.ModeExpress, models.ModePremium:
		return "E"
	default:
		return "S"
	}
}

// ---- CourierAdapter implementation ----

func (d *DelhiveryAdapter) CalculateRate(ctx context.Context, pkg models.Package, delivery models.DeliveryDetails, cfg *models.PartnerConfig) ([]models.RateQuote, error) {
	header, base, err := d.auth(cfg)
	if err != nil {
		return nil, err
	}
	mode := delivery.Mode
	if mode == "" {
		mode = models.ModeSurface
	}
	q := url.Values{}
	q.Set("md", delhiveryMode(mode))
	q.Set("ss", "Delivered")
	q.Set("o_pin", delivery.PickupPincode)
	q.Set("d_pin", delivery.DeliveryPincode)
	q.Set("cgm", fmt.Sprint(grams(pkg.WeightKg)))
	q.Set("pt", paymentLabel(delivery.PaymentType, "Pre-paid", "COD"))
	q.Set("cod", fmt.Sprintf("%.2f", delivery.CODAmount))

	var charges []delhiveryCharge
	err = retryOnce(ctx, d.log, d.Code(), func() error {
		return d.client.doJSON(ctx, d.Code(), "rate", http.MethodGet, base+"/api/kinko/v1/invoice/charges/.json?"+q.Encode(), header, nil, &charges)
	})
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, rejected(d.Code(), "no charges returned for %s to %s", delivery.PickupPincode, delivery.DeliveryPincode)
	}

	quotes := make([]models.RateQuote, 0, len(charges))
	for _, c := range charges {
		quotes = append(quotes, models.RateQuote{
			Courier:      d.Code(),
			ServiceType:  string(mode),
			Mode:         mode,
			BilledWeight: c.ChargedWeight / 1000,
			ShippingCost: c.GrossAmount - c.ChargeCOD,
			CODCharges:   c.ChargeCOD,
			GST:          c.TotalAmount - c.GrossAmount,
			Total:        c.TotalAmount,
			RateType:     models.RateTypeLive,
		})
	}
	return quotes, nil
}

func (d *DelhiveryAdapter) BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error) {
	header, base, err := d.auth(cfg)
	if err != nil {
		return nil, err
	}
	s := delhiveryShipment{
		Name:         details.Delivery.Name,
		Add:          strings.TrimSpace(details.Delivery.Line1 + " " + details.Delivery.Line2),
		Pin:          details.Delivery.Pincode,
		City:         details.Delivery.City,
		State:        details.Delivery.State,
		Country:      "India",
		Phone:        details.Delivery.Phone,
		Order:        details.OrderID,
		PaymentMode:  paymentLabel(details.PaymentType, "Prepaid", "COD"),
		CODAmount:    details.CODAmount,
		TotalAmount:  details.Package.DeclaredValue,
		ProductsDesc: details.Package.Description,
		Quantity:     details.Package.Quantity,
		Weight:       grams(details.Package.WeightKg),
		ShippingMode: map[string]string{"S": "Surface", "E": "Express"}[delhiveryMode(details.Mode)],
	}
	if dims := details.Package.Dimensions; dims != nil {
		s.ShipmentLen, s.ShipmentWidth, s.ShipmentHt = dims.LengthCm, dims.WidthCm, dims.HeightCm
	}
	payload, err := json.Marshal(delhiveryCreate{
		Shipments: []delhiveryShipment{s},
		PickupLocation: delhiveryPickup{
			Name:    cfg.Credential("pickup_location"),
			Add:     details.Pickup.Line1,
			City:    details.Pickup.City,
			Pin:     details.Pickup.Pincode,
			Phone:   details.Pickup.Phone,
			Country: "India",
		},
	})
	if err != nil {
		return nil, apperrors.Provider(apperrors.KindInternal, d.Code(), "marshal booking", err)
	}

	form := url.Values{}
	form.Set("format", "json")
	form.Set("data", string(payload))

	var resp delhiveryCreateResponse
	if err := d.client.doForm(ctx, d.Code(), "book", base+"/api/cmu/create.json", header, form, &resp, decodeJSON); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Packages) == 0 || resp.Packages[0].Waybill == "" {
		msg := resp.Remark
		if len(resp.Packages) > 0 && len(resp.Packages[0].Remarks) > 0 {
			msg = strings.Join(resp.Packages[0].Remarks, "; ")
		}
		if msg == "" {
			msg = "booking not accepted"
		}
		return nil, rejected(d.Code(), "%s", msg)
	}

	awb := resp.Packages[0].Waybill
	return &models.Booking{
		AWB:         awb,
		TrackingURL: "https://www.delhivery.com/track/package/" + awb,
		Courier:     d.Code(),
		BookingType: models.BookingTypeAPI,
	}, nil
}

func (d *DelhiveryAdapter) TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error) {
	header, base, err := d.auth(cfg)
	if err != nil {
		return nil, err
	}
	var resp delhiveryTrackResponse
	endpoint := base + "/api/v1/packages/json/?waybill=" + url.QueryEscape(trackingID)
	err = retryOnce(ctx, d.log, d.Code(), func() error {
		return d.client.doJSON(ctx, d.Code(), "track", http.MethodGet, endpoint, header, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.ShipmentData) == 0 {
		msg := resp.Error
		if msg == "" {
			msg = "waybill not found"
		}
		return nil, rejected(d.Code(), "%s: %s", trackingID, msg)
	}

	sh := resp.ShipmentData[0].Shipment
	history := make([]models.TrackingEvent, 0, len(sh.Scans))
	for _, s := range sh.Scans {
		ts, _ := parseTime(s.ScanDetail.ScanDateTime)
		history = append(history, models.TrackingEvent{
			Status:      s.ScanDetail.Scan,
			Location:    s.ScanDetail.ScannedLocation,
			Description: s.ScanDetail.Instructions,
			Timestamp:   ts,
		})
	}
	sortHistory(history)

	return &models.Tracking{
		TrackingID:        trackingID,
		Courier:           d.Code(),
		Status:            NormalizeStatus(sh.Status.Status),
		History:           history,
		EstimatedDelivery: timePtr(sh.ExpectedDeliveryDate),
	}, nil
}

func (d *DelhiveryAdapter) CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error) {
	header, base, err := d.auth(cfg)
	if err != nil {
		return nil, err
	}
	var resp delhiveryCancelResponse
	body := map[string]string{"waybill": trackingID, "cancellation": "true"}
	if err := d.client.doJSON(ctx, d.Code(), "cancel", http.MethodPost, base+"/api/p/edit", header, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, rejected(d.Code(), "cancel %s: %s", trackingID, resp.Remark)
	}
	return &models.Cancellation{TrackingID: trackingID, Cancelled: true, Message: resp.Remark}, nil
}

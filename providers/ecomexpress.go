package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apperrors "courier-service/common/errors"
	"courier-service/models"

	"go.uber.org/zap"
)

const (
	ecomBaseURL      = "https://api.ecomexpress.in"
	ecomRateURL      = "https://ratecard.ecomexpress.in"
	ecomTrackingURL  = "https://plapi.ecomexpress.in"
	ecomTrackingPage = "https://ecomexpress.in/tracking/?awb_field="
)

// EcomExpressAdapter posts form-encoded credentials with every call. Tracking
// and cancellation answer in XML.
type EcomExpressAdapter struct {
	client *Client
	log    *zap.Logger
}

func NewEcomExpressAdapter(client *Client, log *zap.Logger) *EcomExpressAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &EcomExpressAdapter{client: client, log: log}
}

func (e *EcomExpressAdapter) Code() string { return "ecomexpress" }

// ---- Ecom Express API request/response structs ----

type ecomRateInput struct {
	OrginPincode       string  `json:"orginPincode"`
	DestinationPincode string  `json:"destinationPincode"`
	ProductType        string  `json:"productType"`
	ChargeableWeight   float64 `json:"chargeableWeight"`
	CODAmount          float64 `json:"codAmount"`
}

type ecomRateResult struct {
	Success          bool     `json:"success"`
	Errors           []string `json:"errors"`
	ChargeableWeight float64  `json:"chargeable_weight"`
	Charges          struct {
		Total       float64 `json:"total_charge"`
		COD         float64 `json:"COD"`
		GST         float64 `json:"gst"`
		Freight     float64 `json:"FRT"`
		FuelCharges float64 `json:"FUEL_SURCHARGE"`
	} `json:"charges"`
}

type ecomFetchAWBResponse struct {
	Success string  `json:"success"`
	AWB     []int64 `json:"awb"`
	Error   string  `json:"error"`
}

type ecomManifestItem struct {
	AWBNumber          string  `json:"AWB_NUMBER"`
	OrderNumber        string  `json:"ORDER_NUMBER"`
	Product            string  `json:"PRODUCT"`
	Consignee          string  `json:"CONSIGNEE"`
	ConsigneeAddress1  string  `json:"CONSIGNEE_ADDRESS1"`
	DestinationCity    string  `json:"DESTINATION_CITY"`
	Pincode            string  `json:"PINCODE"`
	State              string  `json:"STATE"`
	Mobile             string  `json:"MOBILE"`
	ItemDescription    string  `json:"ITEM_DESCRIPTION"`
	Pieces             int     `json:"PIECES"`
	CollectableValue   float64 `json:"COLLECTABLE_VALUE"`
	DeclaredValue      float64 `json:"DECLARED_VALUE"`
	ActualWeight       float64 `json:"ACTUAL_WEIGHT"`
	Length             float64 `json:"LENGTH"`
	Breadth            float64 `json:"BREADTH"`
	Height             float64 `json:"HEIGHT"`
	PickupName         string  `json:"PICKUP_NAME"`
	PickupAddressLine1 string  `json:"PICKUP_ADDRESS_LINE1"`
	PickupPincode      string  `json:"PICKUP_PINCODE"`
	PickupMobile       string  `json:"PICKUP_MOBILE"`
}

type ecomManifestResponse struct {
	Shipments []struct {
		AWB     json.Number `json:"awb"`
		Success bool        `json:"success"`
		Reason  string      `json:"reason"`
	} `json:"shipments"`
}

// ecomField is one <field name="..."> of Ecom Express' generic object XML.
// Nested objects (scan stages) sit inside a field.
type ecomField struct {
	Name    string       `xml:"name,attr"`
	Value   string       `xml:",chardata"`
	Objects []ecomObject `xml:"object"`
}

type ecomObject struct {
	Model  string      `xml:"model,attr"`
	Fields []ecomField `xml:"field"`
}

func (o ecomObject) field(name string) ecomField {
	for _, f := range o.Fields {
		if f.Name == name {
			return f
		}
	}
	return ecomField{}
}

func (o ecomObject) value(name string) string {
	return strings.TrimSpace(o.field(name).Value)
}

type ecomTrackXML struct {
	XMLName xml.Name     `xml:"ecomexpress-objects"`
	Objects []ecomObject `xml:"object"`
}

type ecomCancelXML struct {
	XMLName xml.Name `xml:"response"`
	AWB     string   `xml:"awb"`
	Success string   `xml:"success"`
	Reason  string   `xml:"reason"`
}

func (e *EcomExpressAdapter) credentials(cfg *models.PartnerConfig) (url.Values, error) {
	if err := requireCredential(e.Code(), cfg.Credentials, "username", "password"); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("username", cfg.Credential("username"))
	form.Set("password", cfg.Credential("password"))
	return form, nil
}

func ecomProduct(p models.PaymentType) string {
	return paymentLabel(p, "PPD", "COD")
}

// ---- CourierAdapter implementation ----

func (e *EcomExpressAdapter) CalculateRate(ctx context.Context, pkg models.Package, delivery models.DeliveryDetails, cfg *models.PartnerConfig) ([]models.RateQuote, error) {
	form, err := e.credentials(cfg)
	if err != nil {
		return nil, err
	}
	in, err := json.Marshal([]ecomRateInput{{
		OrginPincode:       delivery.PickupPincode,
		DestinationPincode: delivery.DeliveryPincode,
		ProductType:        ecomProduct(delivery.PaymentType),
		ChargeableWeight:   pkg.WeightKg,
		CODAmount:          delivery.CODAmount,
	}})
	if err != nil {
		return nil, apperrors.Provider(apperrors.KindInternal, e.Code(), "marshal rate input", err)
	}
	form.Set("json_input", string(in))

	var results []ecomRateResult
	endpoint := baseURL(cfg.Credential("rate_url"), ecomRateURL) + "/services/rateCalculatorAPI/"
	err = retryOnce(ctx, e.log, e.Code(), func() error {
		return e.client.doForm(ctx, e.Code(), "rate", endpoint, nil, form, &results, decodeJSON)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, rejected(e.Code(), "empty rate response")
	}
	if !results[0].Success {
		return nil, rejected(e.Code(), "%s", strings.Join(results[0].Errors, "; "))
	}

	mode := delivery.Mode
	if mode == "" {
		mode = models.ModeSurface
	}
	quotes := make([]models.RateQuote, 0, len(results))
	for _, r := range results {
		if !r.Success {
			continue
		}
		c := r.Charges
		quotes = append(quotes, models.RateQuote{
			Courier:      e.Code(),
			ServiceType:  ecomProduct(delivery.PaymentType),
			Mode:         mode,
			BilledWeight: r.ChargeableWeight,
			ShippingCost: c.Freight + c.FuelCharges,
			CODCharges:   c.COD,
			GST:          c.GST,
			Total:        c.Total,
			RateType:     models.RateTypeLive,
		})
	}
	return quotes, nil
}

// BookShipment reserves an AWB and manifests it in two calls. Neither call is
// retried; a reserved but unmanifested AWB is simply never used.
func (e *EcomExpressAdapter) BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error) {
	form, err := e.credentials(cfg)
	if err != nil {
		return nil, err
	}
	base := baseURL(cfg.Credential("base_url"), ecomBaseURL)
	product := ecomProduct(details.PaymentType)

	fetch := url.Values{}
	for k, v := range form {
		fetch[k] = v
	}
	fetch.Set("count", "1")
	fetch.Set("type", product)
	var awbs ecomFetchAWBResponse
	if err := e.client.doForm(ctx, e.Code(), "fetch_awb", base+"/apiv2/fetch_awb/", nil, fetch, &awbs, decodeJSON); err != nil {
		return nil, err
	}
	if !strings.EqualFold(awbs.Success, "yes") || len(awbs.AWB) == 0 {
		return nil, rejected(e.Code(), "awb allocation failed: %s", awbs.Error)
	}
	awb := strconv.FormatInt(awbs.AWB[0], 10)

	item := ecomManifestItem{
		AWBNumber:          awb,
		OrderNumber:        details.OrderID,
		Product:            product,
		Consignee:          details.Delivery.Name,
		ConsigneeAddress1:  strings.TrimSpace(details.Delivery.Line1 + " " + details.Delivery.Line2),
		DestinationCity:    details.Delivery.City,
		Pincode:            details.Delivery.Pincode,
		State:              details.Delivery.State,
		Mobile:             details.Delivery.Phone,
		ItemDescription:    details.Package.Description,
		Pieces:             max(details.Package.Quantity, 1),
		DeclaredValue:      details.Package.DeclaredValue,
		ActualWeight:       details.Package.WeightKg,
		PickupName:         details.Pickup.Name,
		PickupAddressLine1: details.Pickup.Line1,
		PickupPincode:      details.Pickup.Pincode,
		PickupMobile:       details.Pickup.Phone,
	}
	if details.PaymentType == models.PaymentCOD {
		item.CollectableValue = details.CODAmount
	}
	if dims := details.Package.Dimensions; dims != nil {
		item.Length, item.Breadth, item.Height = dims.LengthCm, dims.WidthCm, dims.HeightCm
	}
	in, err := json.Marshal([]ecomManifestItem{item})
	if err != nil {
		return nil, apperrors.Provider(apperrors.KindInternal, e.Code(), "marshal manifest", err)
	}
	manifest := url.Values{}
	for k, v := range form {
		manifest[k] = v
	}
	manifest.Set("json_input", string(in))

	var resp ecomManifestResponse
	if err := e.client.doForm(ctx, e.Code(), "manifest", base+"/apiv2/manifest_awb/", nil, manifest, &resp, decodeJSON); err != nil {
		return nil, err
	}
	if len(resp.Shipments) == 0 || !resp.Shipments[0].Success {
		reason := "manifest rejected"
		if len(resp.Shipments) > 0 && resp.Shipments[0].Reason != "" {
			reason = resp.Shipments[0].Reason
		}
		return nil, rejected(e.Code(), "%s", reason)
	}

	return &models.Booking{
		AWB:         awb,
		TrackingURL: ecomTrackingPage + awb,
		Courier:     e.Code(),
		BookingType: models.BookingTypeAPI,
	}, nil
}

func (e *EcomExpressAdapter) TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error) {
	form, err := e.credentials(cfg)
	if err != nil {
		return nil, err
	}
	form.Set("awb", trackingID)
	endpoint := baseURL(cfg.Credential("tracking_url"), ecomTrackingURL) + "/track_me/api/mawbd/?" + form.Encode()

	var doc ecomTrackXML
	err = retryOnce(ctx, e.log, e.Code(), func() error {
		return e.client.doXML(ctx, e.Code(), "track", endpoint, nil, &doc)
	})
	if err != nil {
		return nil, err
	}
	if len(doc.Objects) == 0 {
		return nil, rejected(e.Code(), "%s: awb not found", trackingID)
	}

	obj := doc.Objects[0]
	scans := obj.field("scans").Objects
	history := make([]models.TrackingEvent, 0, len(scans))
	for _, s := range scans {
		ts, _ := parseTime(s.value("updated_on"))
		history = append(history, models.TrackingEvent{
			Status:      s.value("status"),
			Location:    s.value("location_city"),
			Description: s.value("reason_code"),
			Timestamp:   ts,
		})
	}
	sortHistory(history)

	return &models.Tracking{
		TrackingID:        trackingID,
		Courier:           e.Code(),
		Status:            NormalizeStatus(obj.value("status")),
		History:           history,
		EstimatedDelivery: timePtr(obj.value("expected_date")),
	}, nil
}

func (e *EcomExpressAdapter) CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error) {
	form, err := e.credentials(cfg)
	if err != nil {
		return nil, err
	}
	form.Set("awbs", trackingID)

	var resp ecomCancelXML
	endpoint := baseURL(cfg.Credential("base_url"), ecomBaseURL) + "/apiv2/cancel_awb/"
	if err := e.client.doForm(ctx, e.Code(), "cancel", endpoint, nil, form, &resp, decodeXML); err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Success, "true") {
		return nil, rejected(e.Code(), "cancel %s: %s", trackingID, resp.Reason)
	}
	return &models.Cancellation{
		TrackingID: trackingID,
		Cancelled:  true,
		Message:    fmt.Sprintf("awb %s cancelled", trackingID),
	}, nil
}

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
	dtdcBaseURL     = "https://dtdcapi.shipsy.io"
	dtdcTrackingURL = "https://blktracksvc.dtdc.com"
	dtdcTokenTTL    = 6 * time.Hour

	// tracking tokens live in their own slot so they never collide with
	// another courier's entry
	dtdcTrackingTokenKey = "dtdc:tracking"
)

// DTDCAdapter books through an api-key protected JSON API. Tracking lives on
// a separate service that issues its own access token. DTDC publishes no rate
// API, so its quotes always come from rate cards.
type DTDCAdapter struct {
	client *Client
	tokens *registry.TokenCache
	log    *zap.Logger
}

func NewDTDCAdapter(client *Client, tokens *registry.TokenCache, log *zap.Logger) *DTDCAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &DTDCAdapter{client: client, tokens: tokens, log: log}
}

func (d *DTDCAdapter) Code() string { return "dtdc" }

// ---- DTDC API request/response structs ----

type dtdcAddress struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	Pincode      string `json:"pincode"`
	City         string `json:"city"`
	State        string `json:"state"`
}

type dtdcConsignment struct {
	CustomerCode       string      `json:"customer_code"`
	ServiceTypeID      string      `json:"service_type_id"`
	LoadType           string      `json:"load_type"`
	ConsignmentType    string      `json:"consignment_type"`
	DimensionUnit      string      `json:"dimension_unit"`
	Length             float64     `json:"length,omitempty"`
	Width              float64     `json:"width,omitempty"`
	Height             float64     `json:"height,omitempty"`
	WeightUnit         string      `json:"weight_unit"`
	Weight             float64     `json:"weight"`
	DeclaredValue      float64     `json:"declared_value"`
	NumPieces          int         `json:"num_pieces"`
	CustomerRefNumber  string      `json:"customer_reference_number"`
	CODCollectionMode  string      `json:"cod_collection_mode,omitempty"`
	CODAmount          float64     `json:"cod_amount,omitempty"`
	OriginDetails      dtdcAddress `json:"origin_details"`
	DestinationDetails dtdcAddress `json:"destination_details"`
}

type dtdcSoftdataResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Success         bool   `json:"success"`
		ReferenceNumber string `json:"reference_number"`
		Message         string `json:"message"`
		Reason          string `json:"reason"`
	} `json:"data"`
}

type dtdcTrackResponse struct {
	StatusCode  int    `json:"statusCode"`
	StatusFlag  bool   `json:"statusFlag"`
	ErrorDetail string `json:"errorDetails"`
	TrackHeader struct {
		Status               string `json:"strStatus"`
		ExpectedDeliveryDate string `json:"strExpectedDeliveryDate"`
	} `json:"trackHeader"`
	TrackDetails []struct {
		Action     string `json:"strAction"`
		Origin     string `json:"strOrigin"`
		ActionDate string `json:"strActionDate"`
		ActionTime string `json:"strActionTime"`
		Remarks    string `json:"sTrRemarks"`
	} `json:"trackDetails"`
}

type dtdcCancelResponse struct {
	Status   string `json:"status"`
	Success  []any  `json:"success"`
	Failures []struct {
		Reference string `json:"reference_number"`
		Message   string `json:"message"`
	} `json:"failures"`
}

func (d *DTDCAdapter) header(cfg *models.PartnerConfig) (map[string]string, error) {
	if err := requireCredential(d.Code(), cfg.Credentials, "api_key", "customer_code"); err != nil {
		return nil, err
	}
	return map[string]string{"api-key": cfg.Credential("api_key")}, nil
}

func dtdcAddr(a models.Address) dtdcAddress {
	return dtdcAddress{
		Name:         a.Name,
		Phone:        a.Phone,
		AddressLine1: a.Line1,
		AddressLine2: a.Line2,
		Pincode:      a.Pincode,
		City:         a.City,
		State:        a.State,
	}
}

func dtdcService(m models.Mode) string {
	switch m {
	case models.ModeAir, models.ModePremium:
		return "PRIORITY"
	case models.ModeExpress:
		return "EXPRESS"
	default:
		return "GROUND EXPRESS"
	}
}

// trackingToken authenticates against the tracking service, which answers
// with the bare token as plain text.
func (d *DTDCAdapter) trackingToken(ctx context.Context, cfg *models.PartnerConfig) (string, error) {
	if err := requireCredential(d.Code(), cfg.Credentials, "tracking_username", "tracking_password"); err != nil {
		return "", err
	}
	base := baseURL(cfg.Credential("tracking_url"), dtdcTrackingURL)
	return d.tokens.Token(ctx, dtdcTrackingTokenKey, func(ctx context.Context) (registry.Token, error) {
		q := url.Values{}
		q.Set("username", cfg.Credential("tracking_username"))
		q.Set("password", cfg.Credential("tracking_password"))
		raw, err := d.client.do(ctx, call{
			courier: d.Code(), op: "login", method: http.MethodGet,
			url: base + "/dtdc-api/api/dtdc/authenticate?" + q.Encode(),
		})
		if err != nil {
			return registry.Token{}, err
		}
		tok := strings.TrimSpace(string(raw))
		if tok == "" {
			return registry.Token{}, apperrors.Provider(apperrors.KindProviderAuthFailed, d.Code(), "tracking login returned no token", nil)
		}
		return registry.Token{Value: tok, ExpiresAt: time.Now().Add(dtdcTokenTTL)}, nil
	})
}

// ---- CourierAdapter implementation ----

func (d *DTDCAdapter) CalculateRate(context.Context, models.Package, models.DeliveryDetails, *models.PartnerConfig) ([]models.RateQuote, error) {
	return nil, ErrRateNotSupported
}

func (d *DTDCAdapter) BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error) {
	header, err := d.header(cfg)
	if err != nil {
		return nil, err
	}
	c := dtdcConsignment{
		CustomerCode:       cfg.Credential("customer_code"),
		ServiceTypeID:      dtdcService(details.Mode),
		LoadType:           "NON-DOCUMENT",
		ConsignmentType:    "Forward",
		DimensionUnit:      "cm",
		WeightUnit:         "kg",
		Weight:             details.Package.WeightKg,
		DeclaredValue:      details.Package.DeclaredValue,
		NumPieces:          max(details.Package.Quantity, 1),
		CustomerRefNumber:  details.OrderID,
		OriginDetails:      dtdcAddr(details.Pickup),
		DestinationDetails: dtdcAddr(details.Delivery),
	}
	if details.PaymentType == models.PaymentCOD {
		c.CODCollectionMode = "cash"
		c.CODAmount = details.CODAmount
	}
	if dims := details.Package.Dimensions; dims != nil {
		c.Length, c.Width, c.Height = dims.LengthCm, dims.WidthCm, dims.HeightCm
	}

	base := baseURL(cfg.Credential("base_url"), dtdcBaseURL)
	var resp dtdcSoftdataResponse
	body := map[string][]dtdcConsignment{"consignments": {c}}
	if err := d.client.doJSON(ctx, d.Code(), "book", http.MethodPost, base+"/api/customer/integration/consignment/softdata", header, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || !resp.Data[0].Success || resp.Data[0].ReferenceNumber == "" {
		reason := "consignment not created"
		if len(resp.Data) > 0 {
			reason = strings.TrimSpace(resp.Data[0].Message + " " + resp.Data[0].Reason)
		}
		return nil, rejected(d.Code(), "%s", reason)
	}

	awb := resp.Data[0].ReferenceNumber
	return &models.Booking{
		AWB:         awb,
		TrackingURL: "https://www.dtdc.in/tracking.asp?strCnno=" + awb,
		LabelURL:    base + "/api/customer/integration/consignment/shippinglabel/stream?reference_number=" + awb,
		Courier:     d.Code(),
		BookingType: models.BookingTypeAPI,
	}, nil
}

func (d *DTDCAdapter) TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error) {
	base := baseURL(cfg.Credential("tracking_url"), dtdcTrackingURL)
	body := map[string]string{"trkType": "cnno", "strcnno": trackingID, "addtnlDtl": "Y"}

	var resp dtdcTrackResponse
	attempt := func() error {
		tok, err := d.trackingToken(ctx, cfg)
		if err != nil {
			return err
		}
		err = d.client.doJSON(ctx, d.Code(), "track", http.MethodPost, base+"/dtdc-api/rest/JSONCnTrk/getTrackDetails",
			map[string]string{"X-Access-Token": tok}, body, &resp)
		if apperrors.Is(err, apperrors.KindProviderAuthFailed) {
			d.tokens.MarkExpired(dtdcTrackingTokenKey)
			return apperrors.Provider(apperrors.KindProviderUnavailable, d.Code(), "tracking token rejected", err)
		}
		return err
	}
	if err := retryOnce(ctx, d.log, d.Code(), attempt); err != nil {
		return nil, err
	}
	if !resp.StatusFlag {
		return nil, rejected(d.Code(), "%s: %s", trackingID, resp.ErrorDetail)
	}

	history := make([]models.TrackingEvent, 0, len(resp.TrackDetails))
	for _, t := range resp.TrackDetails {
		ts, _ := parseTime(t.ActionDate + " " + t.ActionTime)
		history = append(history, models.TrackingEvent{Status: t.Action, Location: t.Origin, Description: t.Remarks, Timestamp: ts})
	}
	sortHistory(history)

	return &models.Tracking{
		TrackingID:        trackingID,
		Courier:           d.Code(),
		Status:            NormalizeStatus(resp.TrackHeader.Status),
		History:           history,
		EstimatedDelivery: timePtr(resp.TrackHeader.ExpectedDeliveryDate),
	}, nil
}

func (d *DTDCAdapter) CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error) {
	header, err := d.header(cfg)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"AWBNo": []string{trackingID}, "customerCode": cfg.Credential("customer_code")}
	var resp dtdcCancelResponse
	base := baseURL(cfg.Credential("base_url"), dtdcBaseURL)
	if err := d.client.doJSON(ctx, d.Code(), "cancel", http.MethodPost, base+"/api/customer/integration/consignment/cancel", header, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Failures) > 0 {
		return nil, rejected(d.Code(), "cancel %s: %s", trackingID, resp.Failures[0].Message)
	}
	if !strings.EqualFold(resp.Status, "OK") {
		return nil, rejected(d.Code(), "cancel %s: status %s", trackingID, resp.Status)
	}
	return &models.Cancellation{TrackingID: trackingID, Cancelled: true, Message: "consignment cancelled"}, nil
}

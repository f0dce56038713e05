package providers

import (
	"context"
	"encoding/xml"
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
	bluedartBaseURL     = "https://apigateway.bluedart.com"
	bluedartTrackingURL = "https://api.bluedart.com"
	bluedartTokenTTL    = 23 * time.Hour
)

// BlueDartAdapter uses JWT auth for JSON operations and the legacy XML
// tracking servlet.
type BlueDartAdapter struct {
	client *Client
	tokens *registry.TokenCache
	log    *zap.Logger
}

func NewBlueDartAdapter(client *Client, tokens *registry.TokenCache, log *zap.Logger) *BlueDartAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &BlueDartAdapter{client: client, tokens: tokens, log: log}
}

func (b *BlueDartAdapter) Code() string { return "bluedart" }

// ---- Blue Dart API request/response structs ----

type bluedartLoginResponse struct {
	JWTToken string `json:"JWTToken"`
}

type bluedartProfile struct {
	LoginID    string `json:"LoginID"`
	LicenceKey string `json:"LicenceKey"`
	APIType    string `json:"Api_type"`
}

type bluedartRateRequest struct {
	PinCodeFrom   string          `json:"pPinCodeFrom"`
	PinCodeTo     string          `json:"pPinCodeTo"`
	ProductCode   string          `json:"pProductCode"`
	SubProduct    string          `json:"pSubProductCode"`
	ActualWeight  float64         `json:"pActualWeight"`
	CollectableAm float64         `json:"pCollectableAmount"`
	Profile       bluedartProfile `json:"profile"`
}

type bluedartRateResponse struct {
	Result struct {
		IsError       bool    `json:"IsError"`
		ErrorMessage  string  `json:"ErrorMessage"`
		ChargedWeight float64 `json:"ChargedWeight"`
		FreightCharge float64 `json:"FreightCharge"`
		CODCharge     float64 `json:"CODCharge"`
		Tax           float64 `json:"TaxAmount"`
		TotalAmount   float64 `json:"TotalAmount"`
	} `json:"GetRateResult"`
}

type bluedartParty struct {
	Name    string `json:"CustomerName,omitempty"`
	Address string `json:"CustomerAddress1"`
	Pincode string `json:"CustomerPincode"`
	Mobile  string `json:"CustomerMobile"`
	Email   string `json:"CustomerEmailID,omitempty"`
}

type bluedartServices struct {
	ProductCode       string  `json:"ProductCode"`
	SubProductCode    string  `json:"SubProductCode"`
	ActualWeight      float64 `json:"ActualWeight"`
	CollectableAmount float64 `json:"CollectableAmount"`
	DeclaredValue     float64 `json:"DeclaredValue"`
	CreditReferenceNo string  `json:"CreditReferenceNo"`
	PieceCount        int     `json:"PieceCount"`
	PickupDate        string  `json:"PickupDate"`
}

type bluedartWaybillRequest struct {
	Request struct {
		Shipper   bluedartParty    `json:"Shipper"`
		Consignee bluedartParty    `json:"Consignee"`
		Services  bluedartServices `json:"Services"`
	} `json:"Request"`
	Profile bluedartProfile `json:"Profile"`
}

type bluedartStatus struct {
	StatusCode        string `json:"StatusCode"`
	StatusInformation string `json:"StatusInformation"`
}

type bluedartWaybillResponse struct {
	Result struct {
		AWBNo   string           `json:"AWBNo"`
		IsError bool             `json:"IsError"`
		Status  []bluedartStatus `json:"Status"`
	} `json:"GenerateWayBillResult"`
}

type bluedartCancelResponse struct {
	Result struct {
		IsError bool             `json:"IsError"`
		Status  []bluedartStatus `json:"Status"`
	} `json:"CancelWaybillResult"`
}

type bluedartTrackXML struct {
	XMLName   xml.Name `xml:"ShipmentData"`
	Error     string   `xml:"Error"`
	Shipments []struct {
		WaybillNo            string `xml:"WaybillNo,attr"`
		Status               string `xml:"Status"`
		StatusType           string `xml:"StatusType"`
		ExpectedDeliveryDate string `xml:"ExpectedDeliveryDate"`
		Scans                []struct {
			Scan            string `xml:"Scan"`
			ScanDate        string `xml:"ScanDate"`
			ScanTime        string `xml:"ScanTime"`
			ScannedLocation string `xml:"ScannedLocation"`
		} `xml:"Scans>ScanDetail"`
	} `xml:"Shipment"`
}

func statusMessage(ss []bluedartStatus, fallback string) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		if s.StatusInformation != "" {
			parts = append(parts, s.StatusInformation)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "; ")
}

func (b *BlueDartAdapter) profile(cfg *models.PartnerConfig) bluedartProfile {
	return bluedartProfile{LoginID: cfg.Credential("login_id"), LicenceKey: cfg.Credential("license_key"), APIType: "S"}
}

func bluedartProduct(m models.Mode) (string, string) {
	switch m {
	case models.ModeAir, models.ModeExpress, models.ModePremium:
		return "A", "P"
	default:
		return "E", "P"
	}
}

// token returns a cached JWT, logging in when there is none.
func (b *BlueDartAdapter) token(ctx context.Context, cfg *models.PartnerConfig) (string, error) {
	if err := requireCredential(b.Code(), cfg.Credentials, "client_id", "client_secret", "login_id", "license_key"); err != nil {
		return "", err
	}
	base := baseURL(cfg.Credential("base_url"), bluedartBaseURL)
	return b.tokens.Token(ctx, b.Code(), func(ctx context.Context) (registry.Token, error) {
		var resp bluedartLoginResponse
		header := map[string]string{"ClientID": cfg.Credential("client_id"), "clientSecret": cfg.Credential("client_secret")}
		if err := b.client.doJSON(ctx, b.Code(), "login", http.MethodGet, base+"/in/transportation/token/v1/login", header, nil, &resp); err != nil {
			return registry.Token{}, err
		}
		if resp.JWTToken == "" {
			return registry.Token{}, apperrors.Provider(apperrors.KindProviderAuthFailed, b.Code(), "login returned no token", nil)
		}
		return registry.Token{Value: resp.JWTToken, ExpiresAt: time.Now().Add(bluedartTokenTTL)}, nil
	})
}

// authed runs a JWT-authenticated JSON call. A rejected token is dropped and,
// when reauth is set, the call is made once more with a fresh one.
func (b *BlueDartAdapter) authed(ctx context.Context, cfg *models.PartnerConfig, op, path string, reauth bool, in, out any) error {
	base := baseURL(cfg.Credential("base_url"), bluedartBaseURL)
	attempt := func() error {
		tok, err := b.token(ctx, cfg)
		if err != nil {
			return err
		}
		return b.client.doJSON(ctx, b.Code(), op, http.MethodPost, base+path, map[string]string{"JWTToken": tok}, in, out)
	}
	err := attempt()
	if reauth && apperrors.Is(err, apperrors.KindProviderAuthFailed) {
		b.tokens.MarkExpired(b.Code())
		err = attempt()
	}
	if apperrors.Is(err, apperrors.KindProviderAuthFailed) {
		b.tokens.MarkExpired(b.Code())
	}
	return err
}

// ---- CourierAdapter implementation ----

func (b *BlueDartAdapter) CalculateRate(ctx context.Context, pkg models.Package, delivery models.DeliveryDetails, cfg *models.PartnerConfig) ([]models.RateQuote, error) {
	mode := delivery.Mode
	if mode == "" {
		mode = models.ModeAir
	}
	product, sub := bluedartProduct(mode)
	req := bluedartRateRequest{
		PinCodeFrom:  delivery.PickupPincode,
		PinCodeTo:    delivery.DeliveryPincode,
		ProductCode:  product,
		SubProduct:   sub,
		ActualWeight: pkg.WeightKg,
		Profile:      b.profile(cfg),
	}
	if delivery.PaymentType == models.PaymentCOD {
		req.SubProduct = "C"
		req.CollectableAm = delivery.CODAmount
	}

	var resp bluedartRateResponse
	err := retryOnce(ctx, b.log, b.Code(), func() error {
		return b.authed(ctx, cfg, "rate", "/in/transportation/rate/v1/GetRate", true, req, &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.Result.IsError {
		return nil, rejected(b.Code(), "%s", resp.Result.ErrorMessage)
	}
	r := resp.Result
	return []models.RateQuote{{
		Courier:      b.Code(),
		ServiceType:  "Apex " + string(mode),
		Mode:         mode,
		BilledWeight: r.ChargedWeight,
		ShippingCost: r.FreightCharge,
		CODCharges:   r.CODCharge,
		GST:          r.Tax,
		Total:        r.TotalAmount,
		RateType:     models.RateTypeLive,
	}}, nil
}

func (b *BlueDartAdapter) BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error) {
	var req bluedartWaybillRequest
	req.Profile = b.profile(cfg)
	req.Request.Shipper = bluedartParty{
		Name:    details.Pickup.Name,
		Address: details.Pickup.Line1,
		Pincode: details.Pickup.Pincode,
		Mobile:  details.Pickup.Phone,
	}
	req.Request.Consignee = bluedartParty{
		Name:    details.Delivery.Name,
		Address: strings.TrimSpace(details.Delivery.Line1 + " " + details.Delivery.Line2),
		Pincode: details.Delivery.Pincode,
		Mobile:  details.Delivery.Phone,
		Email:   details.Delivery.Email,
	}
	product, sub := bluedartProduct(details.Mode)
	svc := bluedartServices{
		ProductCode:       product,
		SubProductCode:    sub,
		ActualWeight:      details.Package.WeightKg,
		DeclaredValue:     details.Package.DeclaredValue,
		CreditReferenceNo: details.OrderID,
		PieceCount:        max(details.Package.Quantity, 1),
		PickupDate:        time.Now().In(ist).Format("2006-01-02"),
	}
	if details.PaymentType == models.PaymentCOD {
		svc.SubProductCode = "C"
		svc.CollectableAmount = details.CODAmount
	}
	req.Request.Services = svc

	var resp bluedartWaybillResponse
	if err := b.authed(ctx, cfg, "book", "/in/transportation/waybill/v1/GenerateWayBill", false, req, &resp); err != nil {
		return nil, err
	}
	if resp.Result.IsError || resp.Result.AWBNo == "" {
		return nil, rejected(b.Code(), "%s", statusMessage(resp.Result.Status, "waybill not generated"))
	}
	return &models.Booking{
		AWB:         resp.Result.AWBNo,
		TrackingURL: "https://www.bluedart.com/tracking?awb=" + resp.Result.AWBNo,
		Courier:     b.Code(),
		BookingType: models.BookingTypeAPI,
	}, nil
}

func (b *BlueDartAdapter) TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error) {
	if err := requireCredential(b.Code(), cfg.Credentials, "login_id", "license_key"); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("handler", "tnt")
	q.Set("action", "custawbquery")
	q.Set("loginid", cfg.Credential("login_id"))
	q.Set("awb", "awb")
	q.Set("numbers", trackingID)
	q.Set("format", "xml")
	q.Set("lickey", cfg.Credential("license_key"))
	q.Set("verno", "1.3")
	q.Set("scan", "1")
	endpoint := baseURL(cfg.Credential("tracking_url"), bluedartTrackingURL) + "/servlet/RoutingServlet?" + q.Encode()

	var doc bluedartTrackXML
	err := retryOnce(ctx, b.log, b.Code(), func() error {
		return b.client.doXML(ctx, b.Code(), "track", endpoint, nil, &doc)
	})
	if err != nil {
		return nil, err
	}
	if doc.Error != "" {
		return nil, rejected(b.Code(), "%s: %s", trackingID, doc.Error)
	}
	if len(doc.Shipments) == 0 || doc.Shipments[0].Status == "" {
		return nil, rejected(b.Code(), "%s: waybill not found", trackingID)
	}

	sh := doc.Shipments[0]
	history := make([]models.TrackingEvent, 0, len(sh.Scans))
	for _, s := range sh.Scans {
		ts, _ := parseTime(s.ScanDate + " " + s.ScanTime)
		history = append(history, models.TrackingEvent{Status: s.Scan, Location: s.ScannedLocation, Timestamp: ts})
	}
	sortHistory(history)

	return &models.Tracking{
		TrackingID:        trackingID,
		Courier:           b.Code(),
		Status:            NormalizeStatus(sh.Status),
		History:           history,
		EstimatedDelivery: timePtr(sh.ExpectedDeliveryDate),
	}, nil
}

func (b *BlueDartAdapter) CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error) {
	req := map[string]any{
		"Request": map[string]string{"AWBNo": trackingID},
		"Profile": b.profile(cfg),
	}
	var resp bluedartCancelResponse
	if err := b.authed(ctx, cfg, "cancel", "/in/transportation/waybill/v1/CancelWaybill", true, req, &resp); err != nil {
		return nil, err
	}
	if resp.Result.IsError {
		return nil, rejected(b.Code(), "cancel %s: %s", trackingID, statusMessage(resp.Result.Status, "cancellation refused"))
	}
	return &models.Cancellation{
		TrackingID: trackingID,
		Cancelled:  true,
		Message:    statusMessage(resp.Result.Status, "waybill cancelled"),
	}, nil
}

package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/providers"
	"courier-service/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dtdcCreds = map[string]string{
	"api_key": "dt-key", "customer_code": "GL123",
	"tracking_username": "trk", "tracking_password": "trk-pw",
}

type dtdcServer struct {
	logins int32
	reject int32
}

func (s *dtdcServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dtdc-api/api/dtdc/authenticate":
			assert.Equal(t, "trk", r.URL.Query().Get("username"))
			atomic.AddInt32(&s.logins, 1)
			_, _ = w.Write([]byte("plain-token\n"))
		case "/dtdc-api/rest/JSONCnTrk/getTrackDetails":
			if atomic.AddInt32(&s.reject, -1) >= 0 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "plain-token", r.Header.Get("X-Access-Token"))
			writeJSON(w, map[string]any{
				"statusCode": 200, "statusFlag": true,
				"trackHeader": map[string]string{"strStatus": "In Transit", "strExpectedDeliveryDate": "06052024"},
				"trackDetails": []map[string]string{
					{"strAction": "Booked", "strOrigin": "MUMBAI", "strActionDate": "01052024", "strActionTime": "1015"},
					{"strAction": "In Transit", "strOrigin": "PUNE", "strActionDate": "02052024", "strActionTime": "0730"},
				},
			})
		case "/api/customer/integration/consignment/softdata":
			assert.Equal(t, "dt-key", r.Header.Get("api-key"))
			var body struct {
				Consignments []map[string]any `json:"consignments"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Consignments, 1)
			assert.Equal(t, "GL123", body.Consignments[0]["customer_code"])
			assert.Equal(t, "cash", body.Consignments[0]["cod_collection_mode"])
			writeJSON(w, map[string]any{"status": "OK", "data": []map[string]any{{"success": true, "reference_number": "D1000"}}})
		case "/api/customer/integration/consignment/cancel":
			writeJSON(w, map[string]any{"status": "OK", "failures": []map[string]string{{"reference_number": "D1000", "message": "already manifested"}}})
		default:
			http.NotFound(w, r)
		}
	}
}

func newDTDC(t *testing.T) (*providers.DTDCAdapter, *models.PartnerConfig, *dtdcServer, *registry.TokenCache) {
	s := &dtdcServer{}
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)
	tokens := registry.NewTokenCache(nil)
	return providers.NewDTDCAdapter(providers.NewClient(nil), tokens, nil), partnerFor("dtdc", srv.URL, dtdcCreds), s, tokens
}

func TestDTDC_RateNotSupported(t *testing.T) {
	a, cfg, _, _ := newDTDC(t)
	_, err := a.CalculateRate(context.Background(), models.Package{WeightKg: 1}, lane(models.PaymentPrepaid), cfg)
	assert.True(t, errors.Is(err, providers.ErrRateNotSupported))
}

func TestDTDC_TrackUsesPlainTextToken(t *testing.T) {
	a, cfg, s, tokens := newDTDC(t)

	tr, err := a.TrackShipment(context.Background(), "D1000", cfg)
	require.NoError(t, err)
	assert.Equal(t, models.ShipmentStatusInTransit, tr.Status)
	require.Len(t, tr.History, 2)
	assert.Equal(t, "PUNE", tr.History[0].Location)
	assert.Equal(t, 7, tr.History[0].Timestamp.Hour())
	assert.Equal(t, int32(1), s.logins)
	assert.Equal(t, registry.Authenticated, tokens.State("dtdc:tracking"))
	require.NotNil(t, tr.EstimatedDelivery)
	assert.Equal(t, 6, tr.EstimatedDelivery.Day())
	assert.Equal(t, registry.Unauthenticated, tokens.State("dtdc"), "booking credentials are token-free")
}

func TestDTDC_RejectedTrackingTokenIsRefreshed(t *testing.T) {
	a, cfg, s, _ := newDTDC(t)
	s.reject = 1

	_, err := a.TrackShipment(context.Background(), "D1000", cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&s.logins))
}

func TestDTDC_BookShipment(t *testing.T) {
	a, cfg, _, _ := newDTDC(t)

	b, err := a.BookShipment(context.Background(), shipmentDetails(models.PaymentCOD), cfg)
	require.NoError(t, err)
	assert.Equal(t, "D1000", b.AWB)
	assert.Contains(t, b.LabelURL, "reference_number=D1000")
}

func TestDTDC_CancelFailure(t *testing.T) {
	a, cfg, _, _ := newDTDC(t)

	_, err := a.CancelShipment(context.Background(), "D1000", cfg)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindProviderRejected))
	assert.Contains(t, err.Error(), "already manifested")
}

func TestDTDC_MissingCustomerCode(t *testing.T) {
	a := providers.NewDTDCAdapter(providers.NewClient(nil), registry.NewTokenCache(nil), nil)
	cfg := &models.PartnerConfig{CourierCode: "dtdc", Credentials: map[string]string{"api_key": "k"}}
	_, err := a.BookShipment(context.Background(), shipmentDetails(models.PaymentPrepaid), cfg)
	assert.True(t, apperrors.Is(err, apperrors.KindConfiguration))
}

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "courier-service/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedMetric struct {
	name string
	dims map[string]string
}

type fakeMetrics struct {
	mu      sync.Mutex
	counts  []recordedMetric
	latency int
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, dims map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, recordedMetric{name: name, dims: dims})
	return nil
}

func (f *fakeMetrics) RecordLatency(_ context.Context, _ string, _ time.Duration, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency++
	return nil
}

func (f *fakeMetrics) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.counts {
		if m.name == name {
			n++
		}
	}
	return n
}

func TestClient_ClassifiesStatuses(t *testing.T) {
	tests := []struct {
		status int
		kind   apperrors.Kind
	}{
		{http.StatusUnauthorized, apperrors.KindProviderAuthFailed},
		{http.StatusForbidden, apperrors.KindProviderAuthFailed},
		{http.StatusTooManyRequests, apperrors.KindProviderUnavailable},
		{http.StatusBadGateway, apperrors.KindProviderUnavailable},
		{http.StatusUnprocessableEntity, apperrors.KindProviderRejected},
		{http.StatusBadRequest, apperrors.KindProviderRejected},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		c := NewClient(nil)
		err := c.doJSON(context.Background(), "delhivery", "rate", http.MethodGet, srv.URL, nil, nil, nil)
		srv.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.kind, apperrors.KindOf(err), "status %d", tt.status)
		var appErr *apperrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "delhivery", appErr.Provider)
	}
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(nil, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	err := c.doJSON(context.Background(), "shadowfax", "track", http.MethodGet, srv.URL, nil, nil, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindProviderUnavailable))
}

func TestClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := &fakeMetrics{}
	c := NewClient(zap.NewNop(), WithMetrics(m))
	require.NoError(t, c.doJSON(context.Background(), "dtdc", "book", http.MethodPost, srv.URL+"/ok", nil, map[string]string{}, &struct{}{}))
	require.Error(t, c.doJSON(context.Background(), "dtdc", "book", http.MethodPost, srv.URL+"/fail", nil, nil, nil))

	assert.Equal(t, 2, m.count("CourierRequests"))
	assert.Equal(t, 1, m.count("CourierErrors"))
	assert.Equal(t, 2, m.latency)
	assert.Equal(t, "dtdc", m.counts[0].dims["Courier"])
	assert.Equal(t, "book", m.counts[0].dims["Operation"])
}

func TestRetryOnce(t *testing.T) {
	log := zap.NewNop()
	ctx := context.Background()

	calls := 0
	err := retryOnce(ctx, log, "delhivery", func() error {
		calls++
		if calls == 1 {
			return apperrors.Provider(apperrors.KindProviderUnavailable, "delhivery", "502", nil)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = retryOnce(ctx, log, "delhivery", func() error {
		calls++
		return apperrors.Provider(apperrors.KindProviderUnavailable, "delhivery", "502", nil)
	})
	assert.True(t, apperrors.Is(err, apperrors.KindProviderUnavailable))
	assert.Equal(t, 2, calls, "retried once, not more")

	calls = 0
	err = retryOnce(ctx, log, "delhivery", func() error {
		calls++
		return apperrors.Provider(apperrors.KindProviderRejected, "delhivery", "bad pincode", nil)
	})
	assert.True(t, apperrors.Is(err, apperrors.KindProviderRejected))
	assert.Equal(t, 1, calls, "business rejections are not retried")
}

func TestClient_RateLimitedPerCourier(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(nil, WithRateLimit(1, 1))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, c.doJSON(ctx, "xpressbees", "rate", http.MethodGet, srv.URL, nil, nil, nil))
	err := c.doJSON(ctx, "xpressbees", "rate", http.MethodGet, srv.URL, nil, nil, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindProviderUnavailable), "second call cannot get a token before the deadline")

	// another courier has its own budget
	require.NoError(t, c.doJSON(ctx, "bluedart", "rate", http.MethodGet, srv.URL, nil, nil, nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"":                      "booked",
		"Manifested":            "booked",
		"Pending Pickup":        "booked",
		"In Transit":            "in_transit",
		"Out for Delivery":      "in_transit",
		"Undelivered":           "in_transit",
		"DELIVERED":             "delivered",
		"RTO Initiated":         "rto",
		"Shipment Cancelled":    "cancelled",
		"Lost":                  "failed",
		"Reached at hub MUMBAI": "in_transit",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), raw)
	}
}

func TestParseTime(t *testing.T) {
	for _, raw := range []string{
		"2024-05-01T10:30:00+05:30",
		"2024-05-01T10:30:00.000",
		"2024-05-01 10:30:00",
		"01052024 1030",
		"01-May-2024 10:30",
	} {
		ts, ok := parseTime(raw)
		require.True(t, ok, raw)
		assert.Equal(t, 2024, ts.Year(), raw)
		assert.Equal(t, time.May, ts.Month(), raw)
		assert.Equal(t, 10, ts.Hour(), raw)
	}
	_, ok := parseTime("yesterday")
	assert.False(t, ok)
}

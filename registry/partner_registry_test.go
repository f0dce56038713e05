package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courier-service/cache"
	apperrors "courier-service/common/errors"
	"courier-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- mock repository ----

type mockPartnerRepo struct {
	mu       sync.Mutex
	partners map[string]models.PartnerConfig
	finds    int32
	gate     chan struct{}
	findErr  error
}

func newMockPartnerRepo(ps ...models.PartnerConfig) *mockPartnerRepo {
	m := &mockPartnerRepo{partners: map[string]models.PartnerConfig{}}
	for _, p := range ps {
		m.partners[p.CourierCode] = p
	}
	return m
}

func (m *mockPartnerRepo) FindByCode(_ context.Context, code string) (*models.PartnerConfig, error) {
	atomic.AddInt32(&m.finds, 1)
	m.mu.Lock()
	p, ok := m.partners[code]
	m.mu.Unlock()
	// the row is read before blocking, like a query whose result is in flight
	if m.gate != nil {
		<-m.gate
	}
	if m.findErr != nil {
		return nil, m.findErr
	}
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (m *mockPartnerRepo) FindActive(_ context.Context) ([]models.PartnerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PartnerConfig
	for _, code := range []string{"bluedart", "delhivery", "dtdc", "ecomexpress", "shadowfax", "xpressbees"} {
		if p, ok := m.partners[code]; ok && p.IsActive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPartnerRepo) Save(_ context.Context, p *models.PartnerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partners[p.CourierCode] = *p
	return nil
}

func (m *mockPartnerRepo) UpdateStatus(_ context.Context, code string, status models.APIStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[code]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.APIStatus = status
	m.partners[code] = p
	return nil
}

func (m *mockPartnerRepo) UpdateCredentials(_ context.Context, code string, creds map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[code]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Credentials = creds
	m.partners[code] = p
	return nil
}

type stubSecrets map[string]string

func (s stubSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

func partner(code string, status models.APIStatus) models.PartnerConfig {
	return models.PartnerConfig{
		CourierCode:  code,
		Credentials:  map[string]string{"api_token": code + "-token"},
		RateDefaults: models.RateDefaults{BaseRate: 50, WeightRate: 20},
		APIStatus:    status,
	}
}

func TestGet_CacheFirst(t *testing.T) {
	repo := newMockPartnerRepo(partner("delhivery", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)

	p, err := r.Get(context.Background(), "Delhivery")
	require.NoError(t, err)
	assert.Equal(t, "delhivery-token", p.Credential("api_token"))

	p, err = r.Get(context.Background(), "delhivery")
	require.NoError(t, err)
	assert.Equal(t, "delhivery-token", p.Credential("api_token"), "credentials survive the cache round trip")
	assert.Equal(t, 50.0, p.RateDefaults.BaseRate)
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.finds))
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
	return nil
}

func TestGet_RecordsCacheMisses(t *testing.T) {
	metrics := &countingMetrics{}
	repo := newMockPartnerRepo(partner("delhivery", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil, WithMetrics(metrics))

	for i := 0; i < 3; i++ {
		_, err := r.Get(context.Background(), "delhivery")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, metrics.counts["PartnerCacheMisses"])

	r.Invalidate(context.Background(), "delhivery")
	_, err := r.Get(context.Background(), "delhivery")
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.counts["PartnerCacheMisses"])
}

func TestGet_UnknownCourierIsConfigurationError(t *testing.T) {
	r := NewPartnerRegistry(newMockPartnerRepo(), nil, nil)

	_, err := r.Get(context.Background(), "fedex")
	assert.True(t, apperrors.Is(err, apperrors.KindConfiguration))

	_, err = r.Get(context.Background(), "  ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestGet_StoreFailureIsInternal(t *testing.T) {
	repo := newMockPartnerRepo()
	repo.findErr = errors.New("connection refused")
	r := NewPartnerRegistry(repo, nil, nil)

	_, err := r.Get(context.Background(), "dtdc")
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
}

func TestGet_ConcurrentMissLoadsOnce(t *testing.T) {
	repo := newMockPartnerRepo(partner("bluedart", models.APIStatusActive))
	repo.gate = make(chan struct{})
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Get(context.Background(), "bluedart")
			assert.NoError(t, err)
			assert.Equal(t, "bluedart", p.CourierCode)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.finds))
}

func TestInvalidate_IsKeyScoped(t *testing.T) {
	repo := newMockPartnerRepo(partner("delhivery", models.APIStatusActive), partner("dtdc", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)
	ctx := context.Background()

	_, _ = r.Get(ctx, "delhivery")
	_, _ = r.Get(ctx, "dtdc")
	r.Tokens().entries["dtdc"] = &tokenEntry{state: Authenticated, token: Token{Value: "x", ExpiresAt: time.Now().Add(time.Hour)}}
	r.Tokens().entries["delhivery"] = &tokenEntry{state: Authenticated, token: Token{Value: "y", ExpiresAt: time.Now().Add(time.Hour)}}
	require.Equal(t, int32(2), atomic.LoadInt32(&repo.finds))

	r.Invalidate(ctx, "dtdc")

	_, _ = r.Get(ctx, "delhivery")
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.finds), "other courier still cached")
	assert.Equal(t, Authenticated, r.Tokens().State("delhivery"))
	assert.Equal(t, Unauthenticated, r.Tokens().State("dtdc"))

	_, _ = r.Get(ctx, "dtdc")
	assert.Equal(t, int32(3), atomic.LoadInt32(&repo.finds))
}

func TestSetAPIStatus_VisibleImmediately(t *testing.T) {
	repo := newMockPartnerRepo(partner("shadowfax", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)
	ctx := context.Background()

	p, _ := r.Get(ctx, "shadowfax")
	assert.True(t, p.IsActive())
	active, err := r.ActiveCouriers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shadowfax"}, active)

	require.NoError(t, r.SetAPIStatus(ctx, "shadowfax", models.APIStatusInactive))

	p, _ = r.Get(ctx, "shadowfax")
	assert.False(t, p.IsActive())
	active, _ = r.ActiveCouriers(ctx)
	assert.Empty(t, active)

	assert.True(t, apperrors.Is(r.SetAPIStatus(ctx, "shadowfax", "paused"), apperrors.KindValidation))
	assert.True(t, apperrors.Is(r.SetAPIStatus(ctx, "ghost", models.APIStatusActive), apperrors.KindConfiguration))
}

func TestSetAPIStatus_DuringInFlightLoad(t *testing.T) {
	repo := newMockPartnerRepo(partner("delhivery", models.APIStatusActive))
	repo.gate = make(chan struct{})
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)
	ctx := context.Background()

	done := make(chan *models.PartnerConfig)
	go func() {
		p, err := r.Get(ctx, "delhivery")
		assert.NoError(t, err)
		done <- p
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&repo.finds) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.SetAPIStatus(ctx, "delhivery", models.APIStatusInactive))
	close(repo.gate)
	stale := <-done
	assert.True(t, stale.IsActive(), "load began before the status change")

	p, err := r.Get(ctx, "delhivery")
	require.NoError(t, err)
	assert.False(t, p.IsActive())
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.finds))
}

func TestActiveCouriers_DuringInFlightLoad(t *testing.T) {
	repo := newMockPartnerRepo(partner("dtdc", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)
	ctx := context.Background()

	gen := r.generation(activeKey)
	r.Invalidate(ctx, "dtdc")
	r.storeIfCurrent(ctx, activeKey, gen, []string{"dtdc", "ghost"})

	active, err := r.ActiveCouriers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dtdc"}, active)
}

func TestRotateCredentials(t *testing.T) {
	repo := newMockPartnerRepo(partner("xpressbees", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)
	ctx := context.Background()

	_, _ = r.Get(ctx, "xpressbees")
	require.NoError(t, r.RotateCredentials(ctx, "xpressbees", map[string]string{"username": "ops", "password": "new"}))

	p, err := r.Get(ctx, "xpressbees")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Credential("password"))
	assert.Empty(t, p.Credential("api_token"))

	assert.True(t, apperrors.Is(r.RotateCredentials(ctx, "xpressbees", nil), apperrors.KindValidation))
}

func TestUpdate_NormalizesAndInvalidates(t *testing.T) {
	repo := newMockPartnerRepo(partner("ecomexpress", models.APIStatusActive))
	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil)
	ctx := context.Background()

	_, _ = r.Get(ctx, "ecomexpress")
	updated := partner("EcomExpress", "")
	updated.RateDefaults.BaseRate = 65
	require.NoError(t, r.Update(ctx, &updated))
	assert.Equal(t, models.APIStatusActive, updated.APIStatus)

	p, _ := r.Get(ctx, "ecomexpress")
	assert.Equal(t, 65.0, p.RateDefaults.BaseRate)

	bad := partner("ecomexpress", "maybe")
	assert.True(t, apperrors.Is(r.Update(ctx, &bad), apperrors.KindValidation))
}

func TestGet_ResolvesSecretReference(t *testing.T) {
	p := partner("bluedart", models.APIStatusActive)
	p.Credentials = map[string]string{"secret_id": "courier/bluedart", "login_id": "stored"}
	repo := newMockPartnerRepo(p)

	r := NewPartnerRegistry(repo, cache.NewMemoryCache(), nil,
		WithSecrets(stubSecrets{"courier/bluedart": `{"license_key":"lk","login_id":"from-secret"}`}),
		WithTTL(time.Minute))

	got, err := r.Get(context.Background(), "bluedart")
	require.NoError(t, err)
	assert.Equal(t, "lk", got.Credential("license_key"))
	assert.Equal(t, "from-secret", got.Credential("login_id"))

	r2 := NewPartnerRegistry(newMockPartnerRepo(p), nil, nil, WithSecrets(stubSecrets{}))
	_, err = r2.Get(context.Background(), "bluedart")
	assert.True(t, apperrors.Is(err, apperrors.KindConfiguration))
}

type forgettingSecrets struct {
	stubSecrets
	forgotten []string
}

func (s *forgettingSecrets) Forget(name string) { s.forgotten = append(s.forgotten, name) }

func TestInvalidate_ForgetsSecret(t *testing.T) {
	p := partner("bluedart", models.APIStatusActive)
	p.Credentials = map[string]string{"secret_id": "courier/bluedart"}
	secrets := &forgettingSecrets{stubSecrets: stubSecrets{"courier/bluedart": `{"license_key":"lk"}`}}
	r := NewPartnerRegistry(newMockPartnerRepo(p), cache.NewMemoryCache(), nil, WithSecrets(secrets))
	ctx := context.Background()

	_, err := r.Get(ctx, "bluedart")
	require.NoError(t, err)
	r.Invalidate(ctx, "bluedart")

	assert.Equal(t, []string{"courier/bluedart"}, secrets.forgotten)
}

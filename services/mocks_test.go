package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "courier-service/common/errors"
	"courier-service/models"
	"courier-service/providers"
	"courier-service/rates"
	"courier-service/repository"
	"courier-service/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ---- mock adapter ----

type mockAdapter struct {
	code    string
	quotes  []models.RateQuote
	rateErr error
	// block, when set, makes CalculateRate wait on it or on ctx
	block     chan struct{}
	ignoreCtx bool

	booking  *models.Booking
	bookErr  error
	// bookGate, when set, holds BookShipment until it is closed
	bookGate chan struct{}
	tracking *models.Tracking
	trackErr error
	panicOn  string

	calls int32
}

func (m *mockAdapter) Code() string { return m.code }

func (m *mockAdapter) CalculateRate(ctx context.Context, _ models.Package, _ models.DeliveryDetails, _ *models.PartnerConfig) ([]models.RateQuote, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.block != nil {
		if m.ignoreCtx {
			<-m.block
		} else {
			select {
			case <-m.block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return m.quotes, m.rateErr
}

func (m *mockAdapter) BookShipment(_ context.Context, _ models.ShipmentDetails, _ *models.PartnerConfig) (*models.Booking, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.bookGate != nil {
		<-m.bookGate
	}
	return m.booking, m.bookErr
}

func (m *mockAdapter) TrackShipment(_ context.Context, _ string, _ *models.PartnerConfig) (*models.Tracking, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.panicOn == "track" {
		panic("tracking parser blew up")
	}
	return m.tracking, m.trackErr
}

func (m *mockAdapter) CancelShipment(_ context.Context, id string, _ *models.PartnerConfig) (*models.Cancellation, error) {
	atomic.AddInt32(&m.calls, 1)
	return &models.Cancellation{TrackingID: id, Cancelled: true, Message: "cancelled"}, nil
}

func (m *mockAdapter) callCount() int32 { return atomic.LoadInt32(&m.calls) }

func quote(courier string, total float64) models.RateQuote {
	return models.RateQuote{Courier: courier, ServiceType: "standard", Mode: models.ModeSurface, Total: total, RateType: models.RateTypeLive}
}

// ---- mock partner source ----

type mockPartners struct {
	partners map[string]models.PartnerConfig
	order    []string
}

func newMockPartners(ps ...models.PartnerConfig) *mockPartners {
	m := &mockPartners{partners: map[string]models.PartnerConfig{}}
	for _, p := range ps {
		m.partners[p.CourierCode] = p
		m.order = append(m.order, p.CourierCode)
	}
	return m
}

func (m *mockPartners) Get(_ context.Context, code string) (*models.PartnerConfig, error) {
	p, ok := m.partners[code]
	if !ok {
		return nil, errNotConfigured(code)
	}
	return &p, nil
}

func (m *mockPartners) ActiveCouriers(_ context.Context) ([]string, error) {
	var out []string
	for _, code := range m.order {
		if p := m.partners[code]; p.IsActive() {
			out = append(out, code)
		}
	}
	return out, nil
}

func errNotConfigured(code string) error {
	return apperrors.Configuration(code, "courier %s is not configured", code)
}

func active(code string) models.PartnerConfig {
	return models.PartnerConfig{CourierCode: code, APIStatus: models.APIStatusActive}
}

// ---- mock card source ----

type mockCards struct {
	cards []models.EffectiveRateCard
	err   error
}

func (m *mockCards) EffectiveRateCards(_ context.Context, _ string) ([]models.EffectiveRateCard, error) {
	return m.cards, m.err
}

// ---- mock shipment repository ----

// mockShipmentRepo keeps the single order row the way the store does:
// Reserve claims it atomically and FindByOrderID sees the latest state.
type mockShipmentRepo struct {
	mu         sync.Mutex
	byOrder    *models.Shipment
	byOrderErr error
	byAWB      *models.Shipment
	reserved   []models.Shipment
	created    []models.Shipment
	updated    []models.Shipment
	reserveErr error
	createErr  error
	findAWBErr error
}

func newMockShipmentRepo() *mockShipmentRepo {
	return &mockShipmentRepo{byOrderErr: gorm.ErrRecordNotFound, findAWBErr: gorm.ErrRecordNotFound}
}

func (m *mockShipmentRepo) Reserve(_ context.Context, s *models.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserveErr != nil {
		return m.reserveErr
	}
	if m.byOrder != nil && !m.byOrder.Rebookable() {
		return repository.ErrOrderReserved
	}
	if m.byOrder != nil {
		s.ID = m.byOrder.ID
	} else {
		s.ID = uuid.New()
	}
	m.reserved = append(m.reserved, *s)
	cp := *s
	m.byOrder, m.byOrderErr = &cp, nil
	return nil
}

// Confirm records into created, the rows that carry an AWB.
func (m *mockShipmentRepo) Confirm(_ context.Context, s *models.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *s)
	cp := *s
	m.byOrder = &cp
	return nil
}

func (m *mockShipmentRepo) FindByOrderID(_ context.Context, _ string) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byOrder == nil {
		return nil, m.byOrderErr
	}
	cp := *m.byOrder
	return &cp, m.byOrderErr
}

func (m *mockShipmentRepo) FindByAWB(_ context.Context, _, _ string) (*models.Shipment, error) {
	if m.byAWB == nil {
		return nil, m.findAWBErr
	}
	cp := *m.byAWB
	return &cp, nil
}

func (m *mockShipmentRepo) Update(_ context.Context, s *models.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, *s)
	if m.byOrder != nil && m.byOrder.ID == s.ID {
		cp := *s
		m.byOrder = &cp
	}
	return nil
}

func (m *mockShipmentRepo) FindBySeller(_ context.Context, _ string, _, _ int) ([]models.Shipment, int64, error) {
	return nil, 0, nil
}

// ---- mock publisher / metrics ----

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (m *mockPublisher) Publish(_ context.Context, _, eventType string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return nil
}

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *mockMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name]++
	return nil
}

func (m *mockMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (m *mockMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// ---- fixture ----

type fixture struct {
	partners  *mockPartners
	cards     *mockCards
	shipments *mockShipmentRepo
	publisher *mockPublisher
	metrics   *mockMetrics
	engine    *rates.Engine
}

func newEngine() *rates.Engine {
	return rates.NewEngine(rates.NewZoneClassifier(rates.DefaultZoneRules()), rates.NewWeightCalculator(5000))
}

func newFixture(partners ...models.PartnerConfig) *fixture {
	return &fixture{
		partners:  newMockPartners(partners...),
		cards:     &mockCards{},
		shipments: newMockShipmentRepo(),
		publisher: &mockPublisher{},
		metrics:   &mockMetrics{},
		engine:    newEngine(),
	}
}

func (f *fixture) orchestrator(cfg services.OrchestratorConfig, degraded bool, adapters ...providers.CourierAdapter) *services.CourierOrchestrator {
	if cfg.SNSTopicArn == "" {
		cfg.SNSTopicArn = "arn:aws:sns:ap-south-1:000000000000:shipments"
	}
	return services.NewCourierOrchestrator(services.OrchestratorDeps{
		Partners:  f.partners,
		Adapters:  providers.NewRegistry(adapters...),
		Engine:    f.engine,
		Cards:     f.cards,
		Shipments: f.shipments,
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Degraded:  services.NewDegradedModePolicy(degraded, nil),
	}, cfg, nil)
}

func comparisonRequest(couriers ...string) models.RateComparisonRequest {
	return models.RateComparisonRequest{
		OriginPincode:      "400001",
		DestinationPincode: "560001",
		Package:            models.Package{WeightKg: 1.2},
		PaymentType:        models.PaymentPrepaid,
		Couriers:           couriers,
	}
}

func bookingDetails() models.ShipmentDetails {
	return models.ShipmentDetails{
		OrderID:     "ORD-42",
		SellerID:    "seller-9",
		Mode:        models.ModeSurface,
		PaymentType: models.PaymentPrepaid,
		Pickup: models.Address{
			Name: "Warehouse", Phone: "9800000001", Line1: "Plot 4", City: "Mumbai", State: "Maharashtra", Pincode: "400001",
		},
		Delivery: models.Address{
			Name: "Ravi", Phone: "9800000002", Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001",
		},
		Package: models.Package{WeightKg: 1, DeclaredValue: 500, Description: "Shoes", Quantity: 1},
	}
}

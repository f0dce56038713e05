package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "courier-service/common/errors"
	applog "courier-service/common/logger"
	"courier-service/models"
	aws_pkg "courier-service/pkg/aws"
	"courier-service/providers"
	"courier-service/rates"
	"courier-service/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Operation names a courier call that Dispatch can route.
type Operation string

const (
	OpCalculateRate  Operation = "calculate_rate"
	OpBookShipment   Operation = "book_shipment"
	OpTrackShipment  Operation = "track_shipment"
	OpCancelShipment Operation = "cancel_shipment"
)

const (
	DefaultCourierTimeout        = 12 * time.Second
	DefaultComparisonConcurrency = 6
)

// PartnerSource resolves partner configuration. *registry.PartnerRegistry
// satisfies it.
type PartnerSource interface {
	Get(ctx context.Context, code string) (*models.PartnerConfig, error)
	ActiveCouriers(ctx context.Context) ([]string, error)
}

type OrchestratorDeps struct {
	Partners  PartnerSource
	Adapters  *providers.Registry
	Engine    *rates.Engine
	Cards     CardSource
	Shipments repository.ShipmentRepository
	Publisher aws_pkg.SNSPublisher
	Metrics   providers.MetricsRecorder
	Degraded  *DegradedModePolicy
}

type OrchestratorConfig struct {
	SNSTopicArn    string
	CourierTimeout time.Duration
	Concurrency    int
}

// CourierOrchestrator routes every courier call through the adapter
// registered for the courier. It never talks to a provider itself.
type CourierOrchestrator struct {
	partners    PartnerSource
	adapters    *providers.Registry
	engine      *rates.Engine
	cards       CardSource
	shipments   repository.ShipmentRepository
	publisher   aws_pkg.SNSPublisher
	metrics     providers.MetricsRecorder
	degraded    *DegradedModePolicy
	topicArn    string
	timeout     time.Duration
	concurrency int
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewCourierOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig, logger *zap.Logger) *CourierOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CourierTimeout <= 0 {
		cfg.CourierTimeout = DefaultCourierTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultComparisonConcurrency
	}
	return &CourierOrchestrator{
		partners:    deps.Partners,
		adapters:    deps.Adapters,
		engine:      deps.Engine,
		cards:       deps.Cards,
		shipments:   deps.Shipments,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		degraded:    deps.Degraded,
		topicArn:    cfg.SNSTopicArn,
		timeout:     cfg.CourierTimeout,
		concurrency: cfg.Concurrency,
		validate:    validator.New(),
		logger:      logger,
	}
}

func courierCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// resolve fails before any network call when the courier is unknown, inactive
// or has no adapter.
func (o *CourierOrchestrator) resolve(ctx context.Context, code string) (*models.PartnerConfig, providers.CourierAdapter, error) {
	if code == "" {
		return nil, nil, apperrors.Validation("courier code is required")
	}
	cfg, err := o.partners.Get(ctx, code)
	if err != nil {
		return nil, nil, apperrors.Normalize(code, err)
	}
	if !cfg.IsActive() {
		return nil, nil, apperrors.Configuration(code, "courier %s is inactive", code)
	}
	adapter, ok := o.adapters.Get(code)
	if !ok {
		return nil, nil, apperrors.Configuration(code, "no integration registered for courier %s", code)
	}
	return cfg, adapter, nil
}

// Dispatch runs op against one courier and wraps the outcome in the uniform
// envelope. Nothing, including a panic, escapes as anything but a failed
// envelope.
func (o *CourierOrchestrator) Dispatch(ctx context.Context, code string, op Operation, payload any) (env *models.Envelope) {
	code = courierCode(code)
	defer func() {
		if r := recover(); r != nil {
			applog.For(ctx, o.logger).Error("Courier operation panicked",
				zap.String("courier", code),
				zap.String("op", string(op)),
				zap.Any("panic", r),
			)
			env = models.Fail(code, apperrors.Internal("courier operation failed", fmt.Errorf("panic: %v", r)))
		}
	}()

	var (
		data any
		err  error
	)
	switch op {
	case OpCalculateRate:
		req, ok := payload.(models.RateComparisonRequest)
		if !ok {
			return models.Fail(code, badPayload(op, payload))
		}
		data, err = o.CourierRates(ctx, code, req)
	case OpBookShipment:
		details, ok := payload.(models.ShipmentDetails)
		if !ok {
			return models.Fail(code, badPayload(op, payload))
		}
		data, err = o.BookShipment(ctx, code, details)
	case OpTrackShipment:
		id, ok := payload.(string)
		if !ok {
			return models.Fail(code, badPayload(op, payload))
		}
		data, err = o.TrackShipment(ctx, code, id)
	case OpCancelShipment:
		id, ok := payload.(string)
		if !ok {
			return models.Fail(code, badPayload(op, payload))
		}
		data, err = o.CancelShipment(ctx, code, id)
	default:
		err = apperrors.Validation("unknown operation %q", op)
	}
	if err != nil {
		return models.Fail(code, err)
	}
	return models.OK(code, data)
}

func badPayload(op Operation, payload any) error {
	return apperrors.Validation("operation %s does not accept a %T payload", op, payload)
}

// ---- rates ----

func (o *CourierOrchestrator) laneZone(req models.RateComparisonRequest) (models.Zone, error) {
	if req.Package.WeightKg <= 0 {
		return "", apperrors.Validation("package weight must be positive, got %v", req.Package.WeightKg)
	}
	switch req.PaymentType {
	case models.PaymentPrepaid, models.PaymentCOD:
	default:
		return "", apperrors.Validation("payment type must be prepaid or cod, got %q", req.PaymentType)
	}
	return o.engine.ResolveZone(models.CalculationRequest{
		OriginPincode:      req.OriginPincode,
		DestinationPincode: req.DestinationPincode,
	})
}

func (o *CourierOrchestrator) loadCards(ctx context.Context, sellerID string) []models.EffectiveRateCard {
	cards, err := o.cards.EffectiveRateCards(ctx, sellerID)
	if err != nil {
		// live quotes and partner defaults still work without cards
		o.logger.Warn("Rate cards unavailable", zap.String("seller_id", sellerID), zap.Error(err))
		return nil
	}
	return cards
}

// CourierRates quotes a single courier. A courier with no live rate API is
// priced from its cards, then from its partner defaults.
func (o *CourierOrchestrator) CourierRates(ctx context.Context, code string, req models.RateComparisonRequest) ([]models.RateQuote, error) {
	code = courierCode(code)
	zone, err := o.laneZone(req)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	quotes, _, err := o.quoteCourier(cctx, code, zone, req, o.loadCards(ctx, req.SellerID))
	if len(quotes) > 0 {
		return quotes, nil
	}
	return nil, err
}

// quoteCourier asks the courier's adapter for live quotes. degraded is set
// when quotes are a local stand-in for an unavailable courier; err then still
// carries the provider failure.
func (o *CourierOrchestrator) quoteCourier(ctx context.Context, code string, zone models.Zone, req models.RateComparisonRequest,
	cards []models.EffectiveRateCard) (quotes []models.RateQuote, degraded bool, err error) {
	cfg, adapter, err := o.resolve(ctx, code)
	if err != nil {
		return nil, false, err
	}
	if !cfg.Accepts(req.Package.WeightKg, req.Package.Dimensions) {
		return nil, false, apperrors.Provider(apperrors.KindProviderRejected, code, "parcel is outside the courier's weight or size limits", nil)
	}

	delivery := models.DeliveryDetails{
		PickupPincode:   req.OriginPincode,
		DeliveryPincode: req.DestinationPincode,
		PaymentType:     req.PaymentType,
		CODAmount:       req.CODCollectableAmount,
		Mode:            req.Mode,
	}
	quotes, err = adapter.CalculateRate(ctx, req.Package, delivery, cfg)
	if err == nil {
		return quotes, false, nil
	}
	if errors.Is(err, providers.ErrRateNotSupported) {
		quotes, err = o.localQuotes(code, zone, req, cfg, cards)
		return quotes, false, err
	}

	err = apperrors.Normalize(code, err)
	if o.degraded.Allow(code, err) {
		local, lerr := o.localQuotes(code, zone, req, cfg, cards)
		if lerr == nil {
			o.record(ctx, aws_pkg.MetricRateFallbacks, code)
			return local, true, err
		}
		o.logger.Warn("No local estimate for unavailable courier", zap.String("courier", code), zap.Error(lerr))
	}
	return nil, false, err
}

// localQuotes prices code from its rate cards for the lane, or from the
// partner's rate defaults when no card matches.
func (o *CourierOrchestrator) localQuotes(code string, zone models.Zone, req models.RateComparisonRequest,
	cfg *models.PartnerConfig, cards []models.EffectiveRateCard) ([]models.RateQuote, error) {
	own := make([]models.EffectiveRateCard, 0)
	for _, c := range cards {
		if !strings.EqualFold(c.Courier, code) {
			continue
		}
		if req.Mode != "" && c.Mode != req.Mode {
			continue
		}
		own = append(own, c)
	}

	calc := models.CalculationRequest{
		Zone:                 zone,
		WeightKg:             req.Package.WeightKg,
		Dimensions:           req.Package.Dimensions,
		PaymentType:          req.PaymentType,
		CODCollectableAmount: req.CODCollectableAmount,
		Courier:              code,
		IncludeRTO:           req.IncludeRTO,
	}
	if len(own) > 0 {
		res, err := o.engine.Calculate(calc, own)
		if err == nil {
			return rates.QuotesFromResult(res), nil
		}
		if !apperrors.Is(err, apperrors.KindNoRatesAvailable) {
			return nil, err
		}
	}

	if cfg.RateDefaults.BaseRate <= 0 {
		return nil, apperrors.NoRates("courier %s has no rate card for zone %s and no rate defaults", code, zone)
	}
	q, err := o.engine.FallbackQuote(code, cfg.RateDefaults, zone, req.Mode,
		req.Package.WeightKg, req.Package.Dimensions, req.PaymentType, req.CODCollectableAmount)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Serving fallback estimate",
		zap.String("courier", code),
		zap.String("zone", string(zone)),
		zap.Float64("total", q.Total),
	)
	return []models.RateQuote{q}, nil
}

// GetRateComparison fans out to every requested (or every active) courier
// concurrently. Each courier has its own timeout and its failure becomes its
// own entry. If ctx ends first, completed entries are still returned and the
// result is marked partial.
func (o *CourierOrchestrator) GetRateComparison(ctx context.Context, req models.RateComparisonRequest) (*models.RateComparison, error) {
	zone, err := o.laneZone(req)
	if err != nil {
		return nil, err
	}
	couriers, err := o.comparisonCouriers(ctx, req.Couriers)
	if err != nil {
		return nil, err
	}
	if len(couriers) == 0 {
		return nil, apperrors.NoRates("no active couriers to compare")
	}
	cards := o.loadCards(ctx, req.SellerID)

	var mu sync.Mutex
	entries := make([]models.ComparisonEntry, len(couriers))
	done := make([]bool, len(couriers))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		var g errgroup.Group
		g.SetLimit(o.concurrency)
		for i, code := range couriers {
			g.Go(func() error {
				entry := o.compareOne(ctx, code, zone, req, cards)
				mu.Lock()
				entries[i] = entry
				done[i] = true
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	result := &models.RateComparison{Zone: zone, Entries: make([]models.ComparisonEntry, len(couriers))}
	mu.Lock()
	for i, code := range couriers {
		if done[i] {
			result.Entries[i] = entries[i]
			continue
		}
		result.Partial = true
		result.Entries[i] = models.ComparisonEntry{
			Courier: code,
			Error: apperrors.ToBody(apperrors.Provider(apperrors.KindProviderUnavailable, code,
				"comparison ended before the courier answered", ctx.Err())),
		}
	}
	mu.Unlock()
	if result.Partial {
		o.logger.Warn("Rate comparison cancelled, returning completed couriers", zap.Error(ctx.Err()))
	}

	for _, e := range result.Entries {
		result.Offers = append(result.Offers, e.Quotes...)
	}
	sort.SliceStable(result.Offers, func(i, j int) bool {
		a, b := result.Offers[i], result.Offers[j]
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		if a.Courier != b.Courier {
			return a.Courier < b.Courier
		}
		return a.ServiceType < b.ServiceType
	})
	return result, nil
}

func (o *CourierOrchestrator) compareOne(ctx context.Context, code string, zone models.Zone, req models.RateComparisonRequest,
	cards []models.EffectiveRateCard) (entry models.ComparisonEntry) {
	start := time.Now()
	entry.Courier = code
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Rate quote panicked", zap.String("courier", code), zap.Any("panic", r))
			entry = models.ComparisonEntry{
				Courier: code,
				Error:   apperrors.ToBody(apperrors.Provider(apperrors.KindInternal, code, "rate quote failed", fmt.Errorf("panic: %v", r))),
			}
		}
		entry.LatencyMs = time.Since(start).Milliseconds()
	}()

	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	quotes, degraded, err := o.quoteCourier(cctx, code, zone, req, cards)
	entry.Quotes = quotes
	entry.Degraded = degraded
	if err != nil {
		entry.Error = apperrors.ToBody(apperrors.Normalize(code, err))
		return entry
	}
	entry.Success = true
	return entry
}

// comparisonCouriers returns the requested codes, deduplicated, or every
// active courier when none were requested.
func (o *CourierOrchestrator) comparisonCouriers(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) == 0 {
		active, err := o.partners.ActiveCouriers(ctx)
		if err != nil {
			return nil, err
		}
		requested = active
	}
	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, c := range requested {
		c = courierCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// ---- bookings ----

// BookShipment books with exactly one adapter call. The order is reserved
// before the courier is called, so a repeated or concurrent request for it
// returns the stored booking instead of issuing a second AWB. A cancelled or
// failed order may be booked again, with any courier.
func (o *CourierOrchestrator) BookShipment(ctx context.Context, code string, details models.ShipmentDetails) (*models.Booking, error) {
	code = courierCode(code)
	if err := o.validate.Struct(details); err != nil {
		return nil, apperrors.Validation("invalid shipment details: %v", err)
	}
	if details.PaymentType == models.PaymentCOD && details.CODAmount <= 0 {
		return nil, apperrors.Validation("cod amount is required for cod shipments")
	}

	if booking, err := o.existingBooking(ctx, code, details.OrderID); booking != nil || err != nil {
		return booking, err
	}

	cfg, adapter, err := o.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cfg.Accepts(details.Package.WeightKg, details.Package.Dimensions) {
		return nil, o.withAlternatives(ctx, code,
			apperrors.Provider(apperrors.KindProviderRejected, code, "parcel is outside the courier's weight or size limits", nil))
	}

	pickup, _ := json.Marshal(details.Pickup)
	delivery, _ := json.Marshal(details.Delivery)
	shipment := &models.Shipment{
		OrderID:      details.OrderID,
		SellerID:     details.SellerID,
		Courier:      code,
		Mode:         details.Mode,
		PaymentType:  details.PaymentType,
		CODAmount:    details.CODAmount,
		Status:       models.ShipmentStatusPending,
		WeightKg:     details.Package.WeightKg,
		PickupJSON:   string(pickup),
		DeliveryJSON: string(delivery),
	}
	if err := o.shipments.Reserve(ctx, shipment); err != nil {
		if errors.Is(err, repository.ErrOrderReserved) {
			// another request claimed the order between the check and here
			if booking, err := o.existingBooking(ctx, code, details.OrderID); booking != nil || err != nil {
				return booking, err
			}
		}
		o.logger.Error("Order reservation failed", zap.String("order_id", details.OrderID), zap.Error(err))
		return nil, apperrors.Internal("failed to reserve the order for booking", err)
	}

	// the reservation and the AWB must be settled even if the caller has gone
	persistCtx := context.WithoutCancel(ctx)

	booking, err := adapter.BookShipment(ctx, details, cfg)
	if err != nil {
		shipment.Status = models.ShipmentStatusBookingFailed
		if uerr := o.shipments.Update(persistCtx, shipment); uerr != nil {
			o.logger.Warn("Failed to release order reservation", zap.String("order_id", details.OrderID), zap.Error(uerr))
		}
		appErr := apperrors.Normalize(code, err)
		applog.For(ctx, o.logger).Error("Booking failed",
			zap.String("courier", code),
			zap.String("order_id", details.OrderID),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(appErr),
		)
		if appErr.Kind == apperrors.KindProviderUnavailable || appErr.Kind == apperrors.KindProviderRejected {
			return nil, o.withAlternatives(ctx, code, appErr)
		}
		return nil, appErr
	}

	shipment.AWB = booking.AWB
	shipment.TrackingURL = booking.TrackingURL
	shipment.LabelURL = booking.LabelURL
	shipment.Status = models.ShipmentStatusBooked
	if err := o.shipments.Confirm(persistCtx, shipment); err != nil {
		applog.For(ctx, o.logger).Error("Booked shipment was not persisted",
			zap.String("courier", code),
			zap.String("order_id", details.OrderID),
			zap.String("awb", booking.AWB),
			zap.Error(err),
		)
	} else {
		o.publishEvent(persistCtx, models.EventShipmentBooked, shipment)
		if booking.ShipmentID == "" {
			booking.ShipmentID = shipment.ID.String()
		}
	}
	o.record(persistCtx, aws_pkg.MetricShipmentsBooked, code)

	applog.For(ctx, o.logger).Info("Shipment booked",
		zap.String("courier", code),
		zap.String("order_id", details.OrderID),
		zap.String("awb", booking.AWB),
	)
	return booking, nil
}

// existingBooking returns the order's live booking with code. A live booking
// with another courier, or one still in flight, is a ValidationError. It
// returns nil, nil when the order is free to book.
func (o *CourierOrchestrator) existingBooking(ctx context.Context, code, orderID string) (*models.Booking, error) {
	existing, err := o.shipments.FindByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		o.logger.Error("Duplicate booking check failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperrors.Internal("failed to check for an existing booking", err)
	}
	if existing == nil || existing.Rebookable() {
		return nil, nil
	}
	if existing.Courier != code {
		o.logger.Warn("Order already booked with another courier",
			zap.String("order_id", orderID),
			zap.String("booked_with", existing.Courier),
			zap.String("requested", code),
		)
		return nil, apperrors.Validation("order %s is already booked with %s; cancel it before booking with %s",
			orderID, existing.Courier, code)
	}
	if existing.Status == models.ShipmentStatusPending {
		return nil, apperrors.Validation("order %s is already being booked with %s", orderID, code)
	}
	return bookingFromShipment(existing), nil
}

func bookingFromShipment(s *models.Shipment) *models.Booking {
	return &models.Booking{
		AWB:         s.AWB,
		TrackingURL: s.TrackingURL,
		LabelURL:    s.LabelURL,
		Courier:     s.Courier,
		BookingType: models.BookingTypeAPI,
		ShipmentID:  s.ID.String(),
	}
}

// withAlternatives attaches the other active couriers a failed booking could
// go to.
func (o *CourierOrchestrator) withAlternatives(ctx context.Context, failed string, appErr *apperrors.Error) *apperrors.Error {
	active, err := o.partners.ActiveCouriers(ctx)
	if err != nil {
		o.logger.Warn("Could not list alternative couriers", zap.Error(err))
		return appErr
	}
	out := *appErr
	out.Alternatives = nil
	for _, c := range active {
		c = courierCode(c)
		if c == failed {
			continue
		}
		if _, ok := o.adapters.Get(c); ok {
			out.Alternatives = append(out.Alternatives, c)
		}
	}
	return &out
}

// ---- tracking / cancellation ----

func (o *CourierOrchestrator) TrackShipment(ctx context.Context, code, trackingID string) (*models.Tracking, error) {
	code = courierCode(code)
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, apperrors.Validation("tracking id is required")
	}
	cfg, adapter, err := o.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	tracking, err := adapter.TrackShipment(ctx, trackingID, cfg)
	if err != nil {
		o.logger.Warn("Tracking failed", zap.String("courier", code), zap.String("awb", trackingID), zap.Error(err))
		return nil, apperrors.Normalize(code, err)
	}
	o.syncStatus(ctx, code, trackingID, tracking.Status, models.EventShipmentUpdated)
	return tracking, nil
}

func (o *CourierOrchestrator) CancelShipment(ctx context.Context, code, trackingID string) (*models.Cancellation, error) {
	code = courierCode(code)
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, apperrors.Validation("tracking id is required")
	}
	cfg, adapter, err := o.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	res, err := adapter.CancelShipment(ctx, trackingID, cfg)
	if err != nil {
		o.logger.Warn("Cancellation failed", zap.String("courier", code), zap.String("awb", trackingID), zap.Error(err))
		return nil, apperrors.Normalize(code, err)
	}
	o.syncStatus(context.WithoutCancel(ctx), code, trackingID, models.ShipmentStatusCancelled, models.EventShipmentCancelled)
	return res, nil
}

// syncStatus updates the stored shipment when the courier reports a new
// status. Shipments booked outside this service are not tracked here.
func (o *CourierOrchestrator) syncStatus(ctx context.Context, code, awb, status, eventType string) {
	rec, err := o.shipments.FindByAWB(ctx, code, awb)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			o.logger.Warn("Shipment lookup failed", zap.String("courier", code), zap.String("awb", awb), zap.Error(err))
		}
		return
	}
	if rec.Status == status {
		return
	}
	rec.Status = status
	if err := o.shipments.Update(ctx, rec); err != nil {
		o.logger.Warn("Failed to update shipment status", zap.String("awb", awb), zap.Error(err))
		return
	}
	o.publishEvent(ctx, eventType, rec)
}

// publishEvent publishes a shipment event to SNS (non-fatal on error).
func (o *CourierOrchestrator) publishEvent(ctx context.Context, eventType string, s *models.Shipment) {
	if o.publisher == nil || o.topicArn == "" {
		o.logger.Debug("SNS not configured, skipping event publish", zap.String("event", eventType))
		return
	}
	b, err := json.Marshal(models.ShipmentEvent{
		EventType:  eventType,
		ShipmentID: s.ID.String(),
		OrderID:    s.OrderID,
		SellerID:   s.SellerID,
		Courier:    s.Courier,
		AWB:        s.AWB,
		Status:     s.Status,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		o.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := o.publisher.Publish(ctx, o.topicArn, eventType, b); err != nil {
		o.logger.Error("Failed to publish SNS event", zap.String("event", eventType), zap.Error(err))
		return
	}
	o.logger.Info("Published SNS event", zap.String("event", eventType), zap.String("awb", s.AWB))
}

func (o *CourierOrchestrator) record(ctx context.Context, metric, courier string) {
	if o.metrics == nil {
		return
	}
	if err := o.metrics.RecordCount(ctx, metric, aws_pkg.CourierDimensions(courier, "")); err != nil {
		o.logger.Debug("metric publish failed", zap.String("metric", metric), zap.Error(err))
	}
}

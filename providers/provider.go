package providers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"courier-service/models"
	"courier-service/registry"

	"go.uber.org/zap"
)

// ErrRateNotSupported is returned by adapters whose courier exposes no live
// rate API. Callers price those couriers from rate cards instead.
var ErrRateNotSupported = errors.New("live rate calculation not supported")

// CourierAdapter is implemented once per courier integration.
type CourierAdapter interface {
	Code() string

	// CalculateRate returns the courier's live quotes for the lane.
	CalculateRate(ctx context.Context, pkg models.Package, delivery models.DeliveryDetails, cfg *models.PartnerConfig) ([]models.RateQuote, error)

	// BookShipment creates the shipment and returns its AWB. It is never retried.
	BookShipment(ctx context.Context, details models.ShipmentDetails, cfg *models.PartnerConfig) (*models.Booking, error)

	TrackShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Tracking, error)

	CancelShipment(ctx context.Context, trackingID string, cfg *models.PartnerConfig) (*models.Cancellation, error)
}

// Registry maps courier codes to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]CourierAdapter
}

func NewRegistry(adapters ...CourierAdapter) *Registry {
	r := &Registry{adapters: make(map[string]CourierAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a CourierAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(a.Code())] = a
}

func (r *Registry) Get(code string) (CourierAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(code))]
	return a, ok
}

// Codes lists registered courier codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// DefaultAdapters builds every supported courier integration on one shared
// client. Token-based adapters keep their tokens in tokens.
func DefaultAdapters(client *Client, tokens *registry.TokenCache, log *zap.Logger) []CourierAdapter {
	return []CourierAdapter{
		NewBlueDartAdapter(client, tokens, log),
		NewDelhiveryAdapter(client, log),
		NewDTDCAdapter(client, tokens, log),
		NewEcomExpressAdapter(client, log),
		NewShadowfaxAdapter(client, log),
		NewXpressBeesAdapter(client, tokens, log),
	}
}

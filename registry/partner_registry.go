package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"courier-service/cache"
	apperrors "courier-service/common/errors"
	"courier-service/models"
	awspkg "courier-service/pkg/aws"
	"courier-service/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	DefaultPartnerTTL = 30 * time.Minute

	partnerKeyPrefix = "partner:"
	activeKey        = "partners:active"

	// SecretIDKey in a partner's credentials names an AWS secret whose JSON
	// object is merged over the stored credentials.
	SecretIDKey = "secret_id"
)

// SecretResolver fetches a secret string by id.
type SecretResolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// MetricsRecorder counts cache misses. *aws.MetricsClient satisfies it.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// PartnerRegistry serves partner configuration cache-first with a store
// fallback, and owns each courier's token state.
type PartnerRegistry struct {
	repo    repository.PartnerRepository
	cache   cache.Cache
	ttl     time.Duration
	secrets SecretResolver
	metrics MetricsRecorder
	tokens  *TokenCache
	group   singleflight.Group
	log     *zap.Logger

	// gens counts invalidations per cache key. A load only writes back
	// when no invalidation happened while it read the store.
	mu   sync.Mutex
	gens map[string]uint64
}

type Option func(*PartnerRegistry)

func WithTTL(ttl time.Duration) Option {
	return func(r *PartnerRegistry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithSecrets(s SecretResolver) Option {
	return func(r *PartnerRegistry) { r.secrets = s }
}

func WithMetrics(m MetricsRecorder) Option {
	return func(r *PartnerRegistry) { r.metrics = m }
}

func NewPartnerRegistry(repo repository.PartnerRepository, c cache.Cache, log *zap.Logger, opts ...Option) *PartnerRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	r := &PartnerRegistry{
		repo:   repo,
		cache:  c,
		ttl:    DefaultPartnerTTL,
		tokens: NewTokenCache(log),
		log:    log,
		gens:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func partnerKey(code string) string {
	return partnerKeyPrefix + code
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Tokens returns the per-courier token cache.
func (r *PartnerRegistry) Tokens() *TokenCache {
	return r.tokens
}

// Get returns the partner's configuration with credentials resolved. An
// unknown courier is a ConfigurationError.
func (r *PartnerRegistry) Get(ctx context.Context, code string) (*models.PartnerConfig, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, apperrors.Validation("courier code is required")
	}

	var entry models.PartnerCacheEntry
	err := r.cache.Get(ctx, partnerKey(code), &entry)
	if err == nil {
		return r.resolveSecrets(ctx, entry.PartnerConfig())
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.log.Warn("partner cache read failed, using store", zap.String("courier", code), zap.Error(err))
	}
	if r.metrics != nil {
		_ = r.metrics.RecordCount(ctx, awspkg.MetricPartnerCacheMiss, awspkg.CourierDimensions(code, ""))
	}

	key := partnerKey(code)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		gen := r.generation(key)
		p, err := r.repo.FindByCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Configuration(code, "courier %s is not configured", code)
		}
		if err != nil {
			return nil, apperrors.Internal("failed to load partner config", err)
		}
		entry := models.NewPartnerCacheEntry(p)
		r.storeIfCurrent(ctx, key, gen, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return r.resolveSecrets(ctx, v.(models.PartnerCacheEntry).PartnerConfig())
}

func (r *PartnerRegistry) resolveSecrets(ctx context.Context, p *models.PartnerConfig) (*models.PartnerConfig, error) {
	id := p.Credential(SecretIDKey)
	if id == "" || r.secrets == nil {
		return p, nil
	}
	raw, err := r.secrets.GetSecret(ctx, id)
	if err != nil {
		return nil, apperrors.Configuration(p.CourierCode, "credentials secret for %s unavailable: %v", p.CourierCode, err)
	}
	var fromSecret map[string]string
	if err := json.Unmarshal([]byte(raw), &fromSecret); err != nil {
		return nil, apperrors.Configuration(p.CourierCode, "credentials secret for %s is not a JSON object", p.CourierCode)
	}
	merged := make(map[string]string, len(p.Credentials)+len(fromSecret))
	for k, v := range p.Credentials {
		merged[k] = v
	}
	for k, v := range fromSecret {
		merged[k] = v
	}
	p.Credentials = merged
	return p, nil
}

// ActiveCouriers lists the codes of every active partner, sorted.
func (r *PartnerRegistry) ActiveCouriers(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.cache.Get(ctx, activeKey, &codes); err == nil {
		return codes, nil
	}
	v, err, _ := r.group.Do(activeKey, func() (interface{}, error) {
		gen := r.generation(activeKey)
		partners, err := r.repo.FindActive(ctx)
		if err != nil {
			return nil, apperrors.Internal("failed to list partners", err)
		}
		out := make([]string, 0, len(partners))
		for _, p := range partners {
			out = append(out, p.CourierCode)
		}
		r.storeIfCurrent(ctx, activeKey, gen, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Update stores a full partner configuration and invalidates its cache entry.
func (r *PartnerRegistry) Update(ctx context.Context, p *models.PartnerConfig) error {
	p.CourierCode = normalizeCode(p.CourierCode)
	if p.CourierCode == "" {
		return apperrors.Validation("courier code is required")
	}
	switch p.APIStatus {
	case "":
		p.APIStatus = models.APIStatusActive
	case models.APIStatusActive, models.APIStatusInactive:
	default:
		return apperrors.Validation("api status must be active or inactive, got %q", p.APIStatus)
	}
	if err := r.repo.Save(ctx, p); err != nil {
		return apperrors.Internal("failed to save partner config", err)
	}
	r.Invalidate(ctx, p.CourierCode)
	return nil
}

func (r *PartnerRegistry) SetAPIStatus(ctx context.Context, code string, status models.APIStatus) error {
	code = normalizeCode(code)
	if status != models.APIStatusActive && status != models.APIStatusInactive {
		return apperrors.Validation("api status must be active or inactive, got %q", status)
	}
	if err := r.repo.UpdateStatus(ctx, code, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Configuration(code, "courier %s is not configured", code)
		}
		return apperrors.Internal("failed to update partner status", err)
	}
	r.Invalidate(ctx, code)
	r.log.Info("partner api status changed", zap.String("courier", code), zap.String("status", string(status)))
	return nil
}

// RotateCredentials replaces stored credentials and drops the courier's token.
func (r *PartnerRegistry) RotateCredentials(ctx context.Context, code string, creds map[string]string) error {
	code = normalizeCode(code)
	if len(creds) == 0 {
		return apperrors.Validation("credentials must not be empty")
	}
	if err := r.repo.UpdateCredentials(ctx, code, creds); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Configuration(code, "courier %s is not configured", code)
		}
		return apperrors.Internal("failed to rotate partner credentials", err)
	}
	r.Invalidate(ctx, code)
	r.log.Info("partner credentials rotated", zap.String("courier", code))
	return nil
}

// Invalidate drops one courier's cached config, its token and the derived
// active list. Other couriers are untouched.
func (r *PartnerRegistry) Invalidate(ctx context.Context, code string) {
	code = normalizeCode(code)
	r.forgetSecret(ctx, code)
	r.bump(partnerKey(code), activeKey)
	r.group.Forget(partnerKey(code))
	r.group.Forget(activeKey)
	if err := r.cache.Delete(ctx, partnerKey(code), activeKey); err != nil {
		r.log.Warn("partner cache invalidation failed", zap.String("courier", code), zap.Error(err))
	}
	r.tokens.Invalidate(code)
	r.log.Info("partner cache invalidated", zap.String("courier", code))
}

// forgetSecret drops the Secrets Manager value behind a cached partner's
// secret_id so rotated courier credentials are re-read.
func (r *PartnerRegistry) forgetSecret(ctx context.Context, code string) {
	f, ok := r.secrets.(interface{ Forget(name string) })
	if !ok {
		return
	}
	var entry models.PartnerCacheEntry
	if err := r.cache.Get(ctx, partnerKey(code), &entry); err != nil {
		return
	}
	if id := entry.Credentials[SecretIDKey]; id != "" {
		f.Forget(id)
	}
}

func (r *PartnerRegistry) generation(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[key]
}

func (r *PartnerRegistry) bump(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.gens[k]++
	}
}

// storeIfCurrent caches v unless key was invalidated after gen was read.
// The check and the write share r.mu so an Invalidate cannot slip between
// them.
func (r *PartnerRegistry) storeIfCurrent(ctx context.Context, key string, gen uint64, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[key] != gen {
		r.log.Debug("discarding partner load raced by invalidation", zap.String("key", key))
		return
	}
	if err := r.cache.Set(ctx, key, v, r.ttl); err != nil {
		r.log.Warn("partner cache write failed", zap.String("key", key), zap.Error(err))
	}
}

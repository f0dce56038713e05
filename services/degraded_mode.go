package services

import (
	apperrors "courier-service/common/errors"

	"go.uber.org/zap"
)

// DegradedModePolicy decides whether a rate comparison may answer for an
// unreachable courier with a locally derived estimate. It is the only place
// that substitutes local pricing for a failed live call.
type DegradedModePolicy struct {
	enabled bool
	logger  *zap.Logger
}

func NewDegradedModePolicy(enabled bool, logger *zap.Logger) *DegradedModePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DegradedModePolicy{enabled: enabled, logger: logger}
}

// Allow reports whether courier's failure may be covered by a local estimate.
// Only ProviderUnavailable qualifies; rejections and auth failures never do.
func (p *DegradedModePolicy) Allow(courier string, err error) bool {
	if p == nil || !p.enabled {
		return false
	}
	if !apperrors.Is(err, apperrors.KindProviderUnavailable) {
		return false
	}
	p.logger.Warn("Courier unavailable, serving local estimate",
		zap.String("courier", courier),
		zap.Error(err),
	)
	return true
}

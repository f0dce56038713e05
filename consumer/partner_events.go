package consumer

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Partner change events published by the partner admin tooling.
const (
	EventPartnerUpdated     = "updated"
	EventStatusChanged      = "status_changed"
	EventCredentialsRotated = "credentials_rotated"
)

// Invalidator drops one courier's cached configuration and token.
type Invalidator interface {
	Invalidate(ctx context.Context, code string)
}

type PartnerEvent struct {
	CourierCode string `json:"courierCode"`
	Event       string `json:"event"`
}

// snsEnvelope unwraps the SNS → SQS message wrapper
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// PartnerEventsConsumer keeps every replica's partner cache in step with
// admin changes made elsewhere.
type PartnerEventsConsumer struct {
	registry Invalidator
	logger   *zap.Logger
}

func NewPartnerEventsConsumer(registry Invalidator, logger *zap.Logger) *PartnerEventsConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartnerEventsConsumer{registry: registry, logger: logger}
}

// Handle processes one queue message. Malformed messages are logged and
// acknowledged; redelivering them would never succeed.
func (c *PartnerEventsConsumer) Handle(ctx context.Context, body string) error {
	payload := []byte(body)

	var env snsEnvelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Type == "Notification" && env.Message != "" {
		payload = []byte(env.Message)
	}

	var evt PartnerEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.logger.Error("Dropping malformed partner event", zap.Error(err))
		return nil
	}
	code := strings.ToLower(strings.TrimSpace(evt.CourierCode))
	if code == "" {
		c.logger.Error("Dropping partner event without courier code", zap.String("event", evt.Event))
		return nil
	}

	switch evt.Event {
	case EventPartnerUpdated, EventStatusChanged, EventCredentialsRotated:
	default:
		c.logger.Warn("Unknown partner event, invalidating anyway",
			zap.String("courier", code),
			zap.String("event", evt.Event),
		)
	}
	c.registry.Invalidate(ctx, code)
	c.logger.Info("Partner event applied", zap.String("courier", code), zap.String("event", evt.Event))
	return nil
}

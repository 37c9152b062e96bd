// Package notifications emits fire-and-forget domain events. Publish
// failures are logged and swallowed; a lost notification must never fail the
// operation that produced it.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/charmforge/charmforge-backend/pkg/enums"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

const publishTimeout = 10 * time.Second

// OrderConfirmedEvent is the payload for order.confirmed.
type OrderConfirmedEvent struct {
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Total       string `json:"total"`
	ItemCount   int    `json:"item_count"`
}

// CartChangedEvent is the payload for cart.changed.
type CartChangedEvent struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ItemCount int    `json:"item_count"`
	Version   int    `json:"version"`
}

// Publisher is the notification surface consumed by checkout and the cart API.
type Publisher interface {
	OrderConfirmation(ctx context.Context, event OrderConfirmedEvent)
	CartChanged(ctx context.Context, event CartChangedEvent)
}

type envelope struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data"`
}

// topicPublisher matches the Pub/Sub v2 Publisher surface we use.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

type pubsubPublisher struct {
	topic topicPublisher
	logg  *logger.Logger
}

// NewPubSubPublisher wraps a Pub/Sub topic publisher.
func NewPubSubPublisher(topic topicPublisher, logg *logger.Logger) (Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("topic publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &pubsubPublisher{topic: topic, logg: logg}, nil
}

func (p *pubsubPublisher) OrderConfirmation(ctx context.Context, event OrderConfirmedEvent) {
	p.emit(ctx, enums.EventOrderConfirmed, event)
}

func (p *pubsubPublisher) CartChanged(ctx context.Context, event CartChangedEvent) {
	p.emit(ctx, enums.EventCartChanged, event)
}

func (p *pubsubPublisher) emit(ctx context.Context, eventType enums.NotificationEventType, data any) {
	env := envelope{
		EventID:    uuid.NewString(),
		EventType:  string(eventType),
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		p.logg.Error(ctx, "encoding notification event", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	result := p.topic.Publish(publishCtx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":   env.EventID,
			"event_type": env.EventType,
		},
	})
	if result == nil {
		p.logg.Warn(ctx, "notification publisher returned nil result")
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		ctx = p.logg.WithField(ctx, "event_type", env.EventType)
		p.logg.Error(ctx, "publishing notification event", err)
	}
}

// NopPublisher drops every event. Used when Pub/Sub is not configured.
type NopPublisher struct{}

func (NopPublisher) OrderConfirmation(ctx context.Context, event OrderConfirmedEvent) {}
func (NopPublisher) CartChanged(ctx context.Context, event CartChangedEvent)          {}

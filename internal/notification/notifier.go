package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/booking-ledger/internal/core/events"
)

const DefaultChannel = "booking-ledger.events"

type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Message is what subscribers of the channel receive.
type Message struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// Notifier forwards committed domain events to an external channel. Delivery
// to users (mail, push) happens downstream of the channel.
type Notifier struct {
	publisher Publisher
	channel   string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, channel string, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{
		publisher: publisher,
		channel:   channel,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

func (n *Notifier) Register(bus *events.EventBus) {
	bus.SubscribeMany(n.Handle, events.DomainEventTypes...)
}

func (n *Notifier) Handle(ctx context.Context, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := Message{
		ID:         e.EventID(),
		Type:       e.EventType(),
		OccurredAt: e.OccurredAt(),
		Data:       e.Payload(),
	}
	if err := n.publisher.Publish(ctx, n.channel, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.EventType(), n.channel, err)
	}

	n.logger.Debug("event forwarded", "event_type", e.EventType(), "event_id", e.EventID(), "channel", n.channel)
	return nil
}

// LogPublisher stands in for Redis when it is disabled.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, channel string, message interface{}) error {
	p.Logger.Info("notification", "channel", channel, "message", message)
	return nil
}

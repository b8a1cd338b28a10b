package ports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Amund211/canchas/internal/app"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/reporting"
)

const (
	EventsExchange = "canchas.events"
	EventsQueue    = "canchas.cache-invalidation"

	RoutingKeyClubUpdated  = "club.updated"
	RoutingKeyCourtUpdated = "court.updated"
	RoutingKeySlotBooked   = "slot.booked"
	RoutingKeySlotReleased = "slot.released"
)

const (
	consumerPrefetch  = 16
	reconnectInterval = 5 * time.Second
)

var eventTypeByRoutingKey = map[string]domain.EventType{
	RoutingKeyClubUpdated:  domain.EventTypeClubUpdated,
	RoutingKeyCourtUpdated: domain.EventTypeCourtUpdated,
	RoutingKeySlotBooked:   domain.EventTypeBookingCreated,
	RoutingKeySlotReleased: domain.EventTypeBookingCancelled,
}

// EventsConsumer feeds events published on the events exchange to the invalidation listener
type EventsConsumer struct {
	rabbitURL         string
	handleDomainEvent app.HandleDomainEvent
	logger            *slog.Logger
	afterFunc         func(time.Duration) <-chan time.Time
}

func NewEventsConsumer(
	rabbitURL string,
	handleDomainEvent app.HandleDomainEvent,
	logger *slog.Logger,
	afterFunc func(time.Duration) <-chan time.Time,
) *EventsConsumer {
	return &EventsConsumer{
		rabbitURL:         rabbitURL,
		handleDomainEvent: handleDomainEvent,
		logger:            logger,
		afterFunc:         afterFunc,
	}
}

// Run consumes until ctx is cancelled, reconnecting when the connection is lost
func (c *EventsConsumer) Run(ctx context.Context) {
	ctx = logging.AddToContext(ctx, c.logger)
	ctx = reporting.AddHubToContext(ctx)

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopped consuming events")
			return
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "Event consumer failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-c.afterFunc(reconnectInterval):
		}
	}
}

func (c *EventsConsumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.rabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit dial failed: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel failed: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange failed: %w", err)
	}

	q, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	for key := range eventTypeByRoutingKey {
		if err := ch.QueueBind(q.Name, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue to key=%s failed: %w", key, err)
		}
	}

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return fmt.Errorf("set qos failed: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "canchas", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	c.logger.InfoContext(ctx, "Consuming events", slog.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.processDelivery(ctx, d)
		}
	}
}

func (c *EventsConsumer) processDelivery(ctx context.Context, d amqp.Delivery) {
	ctx = logging.AddMetaToContext(ctx, slog.String("routingKey", d.RoutingKey))

	if err := c.handleDelivery(ctx, d.RoutingKey, d.Body); err != nil {
		// Redelivering an undecodable message can never succeed
		logging.FromContext(ctx).WarnContext(ctx, "Dropping event", slog.String("error", err.Error()))
		if err := d.Nack(false, false); err != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "Failed to nack event", slog.String("error", err.Error()))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to ack event", slog.String("error", err.Error()))
	}
}

func (c *EventsConsumer) handleDelivery(ctx context.Context, routingKey string, body []byte) error {
	eventType, ok := eventTypeByRoutingKey[routingKey]
	if !ok {
		return fmt.Errorf("%w: routing key %s", domain.ErrUnknownEventType, routingKey)
	}

	event, err := decodeEvent(body, eventType)
	if err != nil {
		return err
	}

	c.handleDomainEvent(ctx, event)
	return nil
}

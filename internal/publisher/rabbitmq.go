// Package publisher announces match and sample events on a message broker.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bdougie/framematch/internal/models"
)

// RoutingKeyPrefix prefixes the event kind in published routing keys
const RoutingKeyPrefix = "framematch."

// Channel is the subset of *amqp.Channel the publisher needs
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher publishes each event as JSON to a topic exchange
type EventPublisher struct {
	channel  Channel
	exchange string
}

// NewEventPublisher opens a channel on conn and declares the exchange
func NewEventPublisher(conn *amqp.Connection, exchange string) (*EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &EventPublisher{channel: ch, exchange: exchange}, nil
}

// NewEventPublisherWithChannel publishes on an already configured channel
func NewEventPublisherWithChannel(ch Channel, exchange string) *EventPublisher {
	return &EventPublisher{channel: ch, exchange: exchange}
}

// RoutingKey returns the routing key events of kind are published with
func RoutingKey(kind models.EventKind) string {
	return RoutingKeyPrefix + string(kind)
}

// AddEvent publishes the event
func (p *EventPublisher) AddEvent(ctx context.Context, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(event.Kind),
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    fmt.Sprintf("%s/%s/%d", event.RunID, event.Kind, event.Index),
		},
	)
}

// Flush is a no-op; events are published immediately
func (p *EventPublisher) Flush() error {
	return nil
}

// Close closes the channel
func (p *EventPublisher) Close() error {
	return p.channel.Close()
}

package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pyama86/quera/domain/model"
	"github.com/rabbitmq/amqp091-go"
)

const eventExchange = "quera.events"

// EventPublisher mirrors change events to a RabbitMQ topic exchange so
// consumers outside the dashboard can follow the queries collection.
type EventPublisher struct {
	conn *amqp091.Connection
}

func NewEventPublisher(url string) (*EventPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		eventExchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	return &EventPublisher{conn: conn}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event model.ChangeEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s.%s", event.Table, event.Kind)
	err = ch.PublishWithContext(
		ctx, eventExchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		slog.Info("published change event", slog.String("key", key))
	}
	return err
}

func (p *EventPublisher) Close() error {
	return p.conn.Close()
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"medsearch/internal/model"
)

// JobEventPublisher emits one event per ingestion job transition. Events are
// consumed by the event worker and appended to the ingestion history log.
type JobEventPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewJobEventPublisher(conn *amqp.Connection, queueName string) *JobEventPublisher {
	return &JobEventPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JobEventPublisher) Publish(ctx context.Context, event model.IngestionEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish job event failed: %w", err)
	}
	return nil
}

// Package rabbitmq pushes translation lifecycle events onto a durable
// queue so downstream consumers (billing, analytics, notifiers) see
// every outcome without polling the API.
package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/quailsoft/transq/internal/engine"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// EventMessage is the wire form of an engine event. Result payloads are
// flattened so consumers need no knowledge of internal types.
type EventMessage struct {
	Kind           string `json:"kind"`
	RequestID      string `json:"request_id"`
	TranslatedText string `json:"translated_text,omitempty"`
	TokensUsed     int    `json:"tokens_used,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
	Error          string `json:"error,omitempty"`
	WaitMs         int64  `json:"wait_ms,omitempty"`
	EmittedAt      int64  `json:"emitted_at"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishEvent(ctx context.Context, ev engine.Event) error {
	msg := EventMessage{
		Kind:      string(ev.Kind),
		RequestID: ev.RequestID,
		Error:     ev.Error,
		WaitMs:    ev.Wait.Milliseconds(),
		EmittedAt: time.Now().Unix(),
	}
	if ev.Result != nil {
		msg.TranslatedText = ev.Result.TranslatedText
		msg.TokensUsed = ev.Result.TokensUsed
		msg.DurationMs = ev.Result.Duration.Milliseconds()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

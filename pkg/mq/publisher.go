package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"outreach/pkg/util"
)

// ErrJobExists is returned by PublishDelayed when a job with the same id has
// already been enqueued. Callers treat it as benign.
var ErrJobExists = errors.New("job id already enqueued")

type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	deduper *util.Deduper
}

func NewPublisher(url string, deduper *util.Deduper) (*Publisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
		deduper: deduper,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected checks if the publisher connection is still alive.
func (p *Publisher) IsConnected() bool {
	if p.conn == nil || p.channel == nil {
		return false
	}
	if p.conn.IsClosed() {
		return false
	}
	return true
}

// Publish publishes a message to the work exchange under the routing key.
func (p *Publisher) Publish(routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.channel.Publish(
		ExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
		},
	)
}

// PublishDelayed parks a message in the delay bucket for the routing key so
// it is delivered after delay. The job id is claimed first; a second publish
// with the same id returns ErrJobExists without enqueueing anything.
func (p *Publisher) PublishDelayed(ctx context.Context, jobID, routingKey string, payload any, delay time.Duration) error {
	if p.deduper != nil {
		// The claim must outlive the delay, otherwise a late re-schedule of
		// the same job would slip past the guard.
		if !p.deduper.AcquireOnce(ctx, "job", jobID, delay+time.Hour) {
			return ErrJobExists
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := DeclareWaitQueue(p.channel, routingKey, delay); err != nil {
		p.releaseJob(ctx, jobID)
		return err
	}

	err = p.channel.Publish(
		"", // default exchange routes straight to the bucket queue
		WaitQueueName(routingKey, delay),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    jobID,
		},
	)
	if err != nil {
		p.releaseJob(ctx, jobID)
		return fmt.Errorf("failed to publish delayed message: %w", err)
	}
	return nil
}

func (p *Publisher) releaseJob(ctx context.Context, jobID string) {
	if p.deduper != nil {
		p.deduper.Release(ctx, "job", jobID)
	}
}

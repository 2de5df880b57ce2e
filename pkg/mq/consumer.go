package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"outreach/pkg/metrics"
	"outreach/pkg/trace"
	"outreach/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// RetryPolicy caps redeliveries of a job; past the budget the message is
// parked in the DLQ instead of being requeued.
type RetryPolicy struct {
	Counter    *util.RetryCounter
	DLQ        *Publisher
	MaxRetries int64
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
	retry      *RetryPolicy
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
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

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) SetRetryPolicy(p *RetryPolicy) {
	c.retry = p
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. Blocks; call in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	// Every delivery ends in exactly one of ack, nack-requeue, or DLQ+ack.
	for msg := range deliveries {
		c.consumeOne(msg)
	}

	return nil
}

func (c *Consumer) consumeOne(msg amqp091.Delivery) {
	start := time.Now()
	ctx := trace.WithContext(context.Background(), trace.NewTraceID())
	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	// A panicking handler must not take the consumer down or lose the message.
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, msg.Body)
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))

	if err != nil {
		log.Error("Handler error", zap.Error(err))
		c.handleFailure(ctx, msg, err, log)
		return
	}

	if c.retry != nil && msg.MessageId != "" {
		_ = c.retry.Counter.Reset(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	} else {
		log.Debug("Message processed successfully")
	}
}

// handleFailure routes a failed delivery: retryable errors are requeued until
// the retry budget runs out, everything else goes straight to the DLQ.
func (c *Consumer) handleFailure(ctx context.Context, msg amqp091.Delivery, handlerErr error, log *zap.Logger) {
	retryable, errType := util.IsRetryableError(handlerErr)

	if c.retry == nil {
		if err := msg.Nack(false, retryable); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	attempts := int64(0)
	if msg.MessageId != "" {
		var err error
		attempts, err = c.retry.Counter.IncrementAndGet(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
		if err != nil {
			log.Warn("Retry counter unavailable, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
	}

	if util.ShouldRetry(attempts, c.retry.MaxRetries, retryable) {
		log.Warn("Requeueing message",
			zap.String("error_type", errType),
			zap.Int64("attempt", attempts),
		)
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	log.Error("Parking message in DLQ",
		zap.String("error_type", errType),
		zap.Int64("attempts", attempts),
	)
	if err := c.retry.DLQ.PublishToDLQ(c.routingKey, msg.Body, handlerErr.Error()); err != nil {
		log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message after DLQ", zap.Error(err))
	}
}

package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "outreach"
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the outreach work exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

// WaitQueueName returns the parking queue for one (routing key, delay)
// bucket. RabbitMQ only expires messages at the queue head, so each distinct
// delay gets its own queue; within a bucket every message carries the same
// TTL and expiry order matches arrival order.
func WaitQueueName(routingKey string, delay time.Duration) string {
	return fmt.Sprintf("%s.wait.%s.%dms", ExchangeName, routingKey, delay.Milliseconds())
}

func waitQueueArgs(routingKey string, delay time.Duration) amqp091.Table {
	return amqp091.Table{
		"x-message-ttl":             delay.Milliseconds(),
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": routingKey,
	}
}

// DeclareWaitQueue declares the delay bucket for a routing key. Messages sit
// here until the queue-level TTL expires, then dead-letter back into the work
// exchange under the original routing key.
func DeclareWaitQueue(ch *amqp091.Channel, routingKey string, delay time.Duration) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		WaitQueueName(routingKey, delay),
		true,
		false,
		false,
		false,
		waitQueueArgs(routingKey, delay),
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare wait queue: %w", err)
	}
	return q, nil
}

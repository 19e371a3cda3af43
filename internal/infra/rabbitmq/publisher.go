package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// Envelope is the message body consumers receive: the routing pattern is
// repeated inside so consumers bound with wildcards can dispatch on it.
type Envelope struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
	ID      string `json:"id,omitempty"`
}

func NewPublisher(amqpURL, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger.Named("publisher"),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, pattern string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := Envelope{
		Pattern: pattern,
		Data:    data,
		ID:      uuid.NewString(),
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		p.exchange,
		pattern,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    message.ID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message published",
		zap.String("exchange", p.exchange),
		zap.String("pattern", pattern),
		zap.String("message_id", message.ID))
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

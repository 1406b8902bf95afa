package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"trackit/pkg/otel"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Consumer reads a fanout exchange through a private, exclusive queue that
// the broker deletes when the connection goes away. Nothing published before
// the queue exists is ever delivered.
type Consumer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	queue    amqp091.Queue
	exchange string
	handler  MessageHandler
	logger   *zap.Logger
}

func NewConsumer(url, exchange string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("queue", q.Name),
		zap.String("exchange", exchange),
	)

	return &Consumer{
		conn:     conn,
		channel:  ch,
		queue:    q,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes
// (connection loss). Run it in a goroutine.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queue.Name,
		"",
		false, // manual ack
		true,  // exclusive
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("exchange", c.exchange),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("queue", c.queue.Name),
				zap.Any("panic", r),
			)
			_ = msg.Nack(false, false)
		}
	}()

	ctx, span := otel.MQConsumeSpan(ctx, c.queue.Name, msg.Headers)
	defer span.End()

	if err := c.handler(ctx, msg.Body); err != nil {
		c.logger.Warn("Handler error, dropping message",
			zap.String("queue", c.queue.Name),
			zap.Error(err),
		)
		// signals are not retried; the next refetch is the source of truth
		if err := msg.Nack(false, false); err != nil {
			c.logger.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message", zap.Error(err))
	}
}

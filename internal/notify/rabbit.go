package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	tableChangedExchange = "pos.table_changed"
	printExchange        = "pos.print"

	connectRetries = 5
)

// Connection wraps an AMQP connection and channel with bounded retry on
// connect and a topology declaration shared by publisher and subscriber.
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	url     string
	logger  *slog.Logger
}

// Connect dials RabbitMQ with retry and backoff and declares the exchanges.
func Connect(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{url: url, logger: logger}

	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		if err = c.dial(); err == nil {
			return c, nil
		}

		wait := time.Duration(attempt) * 2 * time.Second
		logger.Warn("rabbitmq_connect_failed", "attempt", attempt, "retry_in", wait.String(), "error", err)
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("connect to rabbitmq: %w", err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func declareTopology(channel *amqp091.Channel) error {
	if err := channel.ExchangeDeclare(tableChangedExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", tableChangedExchange, err)
	}
	if err := channel.ExchangeDeclare(printExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", printExchange, err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (c *Connection) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Publisher emits table-changed signals and print requests. It implements
// PrintDispatcher.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher creates a publisher over an established connection.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// PublishTableChanged fans a table-changed signal out to every listening
// terminal. Delivery is best effort; terminals re-fetch current state, so a
// lost signal only delays convergence until the next one.
func (p *Publisher) PublishTableChanged(ctx context.Context, event TableChanged) error {
	return p.publish(ctx, tableChangedExchange, "", event, false)
}

// RequestPrint dispatches a print request to the print pipeline. Requests
// are persistent: a bill must survive a broker restart.
func (p *Publisher) RequestPrint(ctx context.Context, req PrintRequest) error {
	return p.publish(ctx, printExchange, string(req.Kind), req, true)
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, message any, persistent bool) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", exchange, err)
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	err = p.conn.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	return nil
}

// TableChangedHandler reacts to one table-changed signal.
type TableChangedHandler func(ctx context.Context, event TableChanged)

// Subscriber listens for table-changed signals and drives re-fetches.
type Subscriber struct {
	conn   *Connection
	logger *slog.Logger
}

// NewSubscriber creates a subscriber over an established connection.
func NewSubscriber(conn *Connection, logger *slog.Logger) *Subscriber {
	return &Subscriber{conn: conn, logger: logger}
}

// Listen consumes table-changed signals until the context is cancelled.
// Malformed payloads are acknowledged and dropped; the handler re-reads
// current state, so there is nothing to replay.
func (s *Subscriber) Listen(ctx context.Context, handler TableChangedHandler) error {
	queue, err := s.conn.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare live update queue: %w", err)
	}

	if err := s.conn.channel.QueueBind(queue.Name, "", tableChangedExchange, false, nil); err != nil {
		return fmt.Errorf("bind live update queue: %w", err)
	}

	deliveries, err := s.conn.channel.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume live updates: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("live update channel closed")
			}

			var event TableChanged
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				s.logger.Warn("table_changed_malformed", "error", err)
				_ = delivery.Ack(false)
				continue
			}

			handler(ctx, event)
			_ = delivery.Ack(false)
		}
	}
}

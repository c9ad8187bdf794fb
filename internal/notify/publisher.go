package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/model"
)

// RoutingKeyClassCancelled is the topic routing key of cancellation events.
const RoutingKeyClassCancelled = "class.cancelled"

// Publisher delivers notifications to whatever sits downstream.
type Publisher interface {
	PublishClassCancelled(ctx context.Context, n *model.ClassCancelledNotification) error
	Close() error
}

// AMQPPublisher publishes JSON events to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishClassCancelled implements Publisher.
func (p *AMQPPublisher) PublishClassCancelled(ctx context.Context, n *model.ClassCancelledNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyClassCancelled, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close implements Publisher.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogPublisher writes notifications to the log. It stands in for the broker
// when no AMQP_URL is configured.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "log_publisher").Logger()}
}

// PublishClassCancelled implements Publisher.
func (p *LogPublisher) PublishClassCancelled(_ context.Context, n *model.ClassCancelledNotification) error {
	p.log.Info().
		Str("notification_id", n.ID.String()).
		Str("owner_id", n.OwnerID.String()).
		Str("class_id", n.ClassID.String()).
		Str("label", n.ClassLabel).
		Msg("class cancelled")
	return nil
}

// Close implements Publisher.
func (p *LogPublisher) Close() error { return nil }

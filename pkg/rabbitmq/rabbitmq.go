package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RoutingKeyOrderCreated is the routing key of OrderCreated messages.
const RoutingKeyOrderCreated = "order.created"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("rabbitmq client is closed")

// Channel is the subset of *amqp.Channel the client uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string

	// BreakerFailures consecutive publish failures open the breaker for
	// BreakerTimeout. Zero values mean 5 and 30s.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// OrderCreated is the body of an order.created message.
type OrderCreated struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Lines       []OrderCreatedLine `json:"lines"`
	CreatedAt   time.Time          `json:"created_at"`
}

// OrderCreatedLine is one purchased product of an OrderCreated event.
type OrderCreatedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Client publishes order events to a durable topic exchange. It is safe for
// concurrent use; Close waits for publishes in flight.
type Client struct {
	mu       sync.RWMutex
	conn     io.Closer
	channel  Channel
	exchange string
	breaker  *gobreaker.CircuitBreaker[struct{}]
	log      *zap.Logger
}

// NewClient dials RabbitMQ, opens a channel and declares the exchange.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c, err := newClient(conn, ch, cfg, log)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func newClient(conn io.Closer, ch Channel, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "order"
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "rabbitmq-publish",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	log.Info("RabbitMQ client connected", zap.String("exchange", cfg.Exchange))

	return &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		breaker:  breaker,
		log:      log,
	}, nil
}

// PublishOrderCreated publishes evt as a persistent JSON message. While the
// breaker is open it fails fast with gobreaker.ErrOpenState.
func (c *Client) PublishOrderCreated(ctx context.Context, evt OrderCreated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil {
		return ErrClosed
	}

	_, err = c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.channel.Publish(
			c.exchange,
			RoutingKeyOrderCreated,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.OrderID,
				Timestamp:    time.Now(),
				Body:         body,
			})
	})
	if err != nil {
		return fmt.Errorf("failed to publish order %s: %w", evt.OrderID, err)
	}

	c.log.Debug("order event published", zap.String("order_id", evt.OrderID))
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

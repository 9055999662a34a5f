package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const EventSaleCompleted = "sale.completed"

// SaleMessage is the JSON body published for every sale.
type SaleMessage struct {
	ID          string       `json:"id"`
	Event       string       `json:"event"`
	Sale        catalog.Sale `json:"sale"`
	PublishedAt time.Time    `json:"published_at"`
}

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards market sales to a durable RabbitMQ queue.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel Channel
	queue   string
}

// Dial connects to RabbitMQ with retries and declares the queue.
func Dial(url, queue string) (*Publisher, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < config.MaxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		slog.Warn("RabbitMQ not reachable yet", slog.String("type", "sys"), slog.Int("attempt", i+1), slog.Any("error", err))
		time.Sleep(config.RetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", config.MaxRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := NewPublisher(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, queue string) (*Publisher, error) {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &Publisher{channel: ch, queue: queue}, nil
}

// HandleSale publishes sale. It satisfies catalog.SaleListener.
func (p *Publisher) HandleSale(ctx context.Context, sale catalog.Sale) error {
	msg := SaleMessage{
		ID:          uuid.NewString(),
		Event:       EventSaleCompleted,
		Sale:        sale,
		PublishedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.PublishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    msg.ID,
			Type:         msg.Event,
			Timestamp:    msg.PublishedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	slog.Debug("Published sale",
		slog.String("type", "sys"),
		slog.String("queue", p.queue),
		slog.Uint64("token_id", sale.TokenID))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

package rabbit

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange all saga events flow through.
const Exchange = "booking.events"

type Publisher struct {
	ch *amqp.Channel

	mu      sync.Mutex
	delayed map[string]struct{}
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, delayed: make(map[string]struct{})}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, msg)
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, key, amqp.Publishing{
		MessageId:    uuid.New().String(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// PublishDelayedJSON schedules delivery of v on key after the given
// delay. The message is parked in a durable per-key queue with no
// consumers; per-message TTL dead-letters it into the main exchange, so
// a pending timeout survives both publisher and consumer restarts.
func (p *Publisher) PublishDelayedJSON(ctx context.Context, key string, v any, delay time.Duration) error {
	queue, err := p.ensureDelayQueue(key)
	if err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		MessageId:    uuid.New().String(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		Body:         body,
	})
}

func (p *Publisher) ensureDelayQueue(key string) (string, error) {
	queue := key + ".delay"

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.delayed[queue]; ok {
		return queue, nil
	}

	_, err := p.ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    Exchange,
		"x-dead-letter-routing-key": key,
	})
	if err != nil {
		return "", err
	}
	p.delayed[queue] = struct{}{}
	return queue, nil
}

// Package outbox moves booking-side events written transactionally
// with state changes onto the bus. The relay polls NEW records in
// order, publishes them and marks them PUBLISHED; a crash between
// publish and mark yields a duplicate, which consumers absorb.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bookingmicro/booking-saga/internal/adapters/crdb"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

type Store interface {
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Relay struct {
	store    Store
	pub      Publisher
	logger   observability.Logger
	interval time.Duration
	batch    int
}

func NewRelay(store Store, pub Publisher, logger observability.Logger, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{store: store, pub: pub, logger: logger, interval: interval, batch: batch}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.Error("outbox drain: ", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	records, err := r.store.GetUnpublishedOutbox(ctx, r.batch)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
		return nil
	}
	observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())

	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:    rec.DedupeKey,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         rec.Payload,
		}
		if err := r.pub.Publish(ctx, rec.EventType, msg); err != nil {
			// Leave the record NEW; the next tick retries it.
			return err
		}
		if err := r.store.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

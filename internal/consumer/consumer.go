// Package consumer dispatches bus deliveries to handlers with a
// bounded worker pool. One slow message must not stall the queue for
// unrelated bookings, so concurrency is per message, not per booking;
// handlers carry their own idempotency.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/bookingmicro/booking-saga/internal/observability"
)

// ErrMalformed marks a message that can never be processed. It is
// rejected without requeue instead of looping through redelivery.
var ErrMalformed = errors.New("malformed message")

type HandlerFunc func(ctx context.Context, body []byte) error

// JSON adapts a typed handler to a HandlerFunc.
func JSON[T any](fn func(ctx context.Context, msg T) error) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var msg T
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fn(ctx, msg)
	}
}

type Worker struct {
	handlers map[string]HandlerFunc
	workers  int
	logger   observability.Logger
}

func NewWorker(handlers map[string]HandlerFunc, workers int, logger observability.Logger) *Worker {
	if workers < 1 {
		workers = 1
	}
	return &Worker{handlers: handlers, workers: workers, logger: logger}
}

// Run consumes deliveries until the channel closes or ctx is done.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case d, ok := <-deliveries:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				w.dispatch(ctx, d)
				return nil
			})
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, d amqp.Delivery) {
	h, ok := w.handlers[d.RoutingKey]
	if !ok {
		_ = d.Ack(false)
		return
	}

	timer := prometheus.NewTimer(observability.ConsumerDuration.WithLabelValues(d.RoutingKey))
	err := h(ctx, d.Body)
	timer.ObserveDuration()

	if err != nil {
		log := w.logger.WithField("routing_key", d.RoutingKey).WithField("message_id", d.MessageId)
		if errors.Is(err, ErrMalformed) {
			log.Error("discarding message: ", err)
			_ = d.Nack(false, false)
			return
		}
		log.Error("handle message: ", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Package gateway abstracts the external payment provider. The real
// provider sits outside this system; Simulated stands in for it with a
// configurable decline rate.
package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Client charges and refunds payments. The boolean result is the
// business outcome (approved/declined); an error means the gateway
// itself could not be reached and the operation should be retried.
type Client interface {
	ProcessPayment(ctx context.Context, paymentID int64, amount float64) (bool, error)
	Refund(ctx context.Context, paymentID int64, amount float64) (bool, error)
}

type Simulated struct {
	successRate float64
	delay       time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(successRate float64, delay time.Duration) *Simulated {
	return &Simulated{
		successRate: successRate,
		delay:       delay,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *Simulated) ProcessPayment(ctx context.Context, paymentID int64, amount float64) (bool, error) {
	return g.attempt(ctx)
}

func (g *Simulated) Refund(ctx context.Context, paymentID int64, amount float64) (bool, error) {
	return g.attempt(ctx)
}

func (g *Simulated) attempt(ctx context.Context) (bool, error) {
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(g.delay):
		}
	}
	g.mu.Lock()
	ok := g.rnd.Float64() < g.successRate
	g.mu.Unlock()
	return ok, nil
}

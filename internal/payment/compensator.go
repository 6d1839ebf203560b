package payment

import (
	"context"
	"errors"
	"time"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

// HandleBookingCancelled is the compensating action of the saga: when a
// cancelled booking had a completed payment, refund it through the
// gateway and report the outcome back onto the bus. Both outcomes loop
// into the booking state machine to settle the terminal status.
func (s *Service) HandleBookingCancelled(ctx context.Context, msg events.BookingCancelled) error {
	if !msg.HasRefund {
		s.logger.WithField("booking_id", msg.BookingID).Info("booking cancelled without completed payment, refund not required")
		return nil
	}

	p, err := s.store.CompletedPaymentByBooking(ctx, msg.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.bus.PublishJSON(ctx, events.KeyPaymentRefundFailed, events.PaymentRefundFailed{
				PaymentID: 0,
				BookingID: msg.BookingID,
				Reason:    "No payment to refund",
				FailedAt:  time.Now().UTC(),
			})
		}
		return err
	}

	// A transport error here propagates so the bus redelivers; only a
	// gateway decline is a business outcome.
	ok, err := s.gateway.Refund(ctx, p.ID, p.Amount)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if !ok {
		if _, err := s.store.MarkPaymentRefundError(ctx, p.ID); err != nil {
			return err
		}
		observability.RefundFailures.Inc()
		return s.bus.PublishJSON(ctx, events.KeyPaymentRefundFailed, events.PaymentRefundFailed{
			PaymentID: p.ID,
			BookingID: p.BookingID,
			Reason:    "Gateway refund failed",
			FailedAt:  now,
		})
	}

	if _, err := s.store.MarkPaymentRefunded(ctx, p.ID, now); err != nil {
		return err
	}
	s.logger.WithField("payment_id", p.ID).Info("payment refunded")
	return s.bus.PublishJSON(ctx, events.KeyPaymentRefunded, events.PaymentRefunded{
		PaymentID:  p.ID,
		BookingID:  p.BookingID,
		Amount:     p.Amount,
		RefundedAt: now,
	})
}

package booking

import (
	"context"
	"errors"
	"time"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

// Event appliers, one per inbound message. Each re-reads or
// conditionally updates current state instead of trusting the payload;
// a redelivered or late message that finds the booking already moved on
// is a no-op.

// ApplyPaymentCreated stores the payment id and confirms the booking
// when the payment completed. Pending and RefundError both confirm: a
// successful re-payment resolves an earlier failed refund.
func (s *Service) ApplyPaymentCreated(ctx context.Context, msg events.PaymentCreated) error {
	if err := s.store.AttachPayment(ctx, msg.BookingID, msg.PaymentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithField("booking_id", msg.BookingID).Warn("payment created for unknown booking")
			return nil
		}
		return err
	}

	if domain.PaymentStatus(msg.Status) != domain.PaymentCompleted {
		s.logger.WithField("booking_id", msg.BookingID).Info("payment not completed, booking left unchanged")
		return nil
	}

	ok, err := s.store.ConfirmBooking(ctx, msg.BookingID)
	if err != nil {
		return err
	}
	if ok {
		observability.BookingsConfirmed.Inc()
		s.logger.WithField("booking_id", msg.BookingID).Info("booking confirmed after payment")
	}
	return nil
}

// ApplyRoomReserveRejected cancels a booking whose room turned out not
// to exist. Only Pending bookings are affected.
func (s *Service) ApplyRoomReserveRejected(ctx context.Context, msg events.RoomReserveRejected) error {
	return s.cancelIfPending(ctx, msg.BookingID, msg.RoomID, msg.Reason, "room_rejected")
}

// ApplyCancelTimeout fires when the scheduled timeout message arrives.
// If payment completed in the meantime the conditional update misses
// and the timeout is a no-op.
func (s *Service) ApplyCancelTimeout(ctx context.Context, msg events.CancelBookingTimeout) error {
	b, err := s.store.GetBooking(ctx, msg.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if b.Status != domain.BookingPending {
		return nil
	}
	return s.cancelIfPending(ctx, msg.BookingID, b.RoomID, "Timeout", "timeout")
}

func (s *Service) cancelIfPending(ctx context.Context, bookingID, roomID int64, reason, metricReason string) error {
	now := time.Now().UTC()
	ok, err := s.store.CancelBooking(ctx, bookingID,
		[]domain.BookingStatus{domain.BookingPending},
		now, reason, func() []Event {
			return []Event{mustEvent(events.KeyBookingCancelled, events.BookingCancelled{
				BookingID:         bookingID,
				RoomID:            roomID,
				CanceledAt:        now,
				HasRefund:         false,
				RefundErrorReason: reason,
			})}
		})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if ok {
		observability.BookingsCancelled.WithLabelValues(metricReason).Inc()
		s.logger.WithField("booking_id", bookingID).Info("booking cancelled: ", reason)
	}
	return nil
}

// ApplyPaymentRefunded settles a cancelled booking once the
// compensating refund went through: it stays Cancelled and any earlier
// refund error is cleared.
func (s *Service) ApplyPaymentRefunded(ctx context.Context, msg events.PaymentRefunded) error {
	ok, err := s.store.ResolveRefund(ctx, msg.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if ok {
		s.logger.WithField("booking_id", msg.BookingID).Info("booking settled after refund")
	}
	return nil
}

// ApplyPaymentRefundFailed parks the booking in RefundError with the
// gateway's reason. No automatic retry: resolution needs a new explicit
// action (re-pay or re-cancel).
func (s *Service) ApplyPaymentRefundFailed(ctx context.Context, msg events.PaymentRefundFailed) error {
	ok, err := s.store.MarkRefundError(ctx, msg.BookingID, msg.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if ok {
		observability.RefundFailures.Inc()
		s.logger.WithField("booking_id", msg.BookingID).Warn("refund failed: ", msg.Reason)
	}
	return nil
}

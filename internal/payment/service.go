// Package payment owns the payment rows of the saga. It creates a
// pending payment when a booking appears, charges it on the user's
// explicit pay action, and compensates cancelled bookings with refunds.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/gateway"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

type Store interface {
	CreatePayment(ctx context.Context, p *domain.Payment) (bool, error)
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error)
	CompletedPaymentByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error)
	MarkPaymentCompleted(ctx context.Context, id int64, paidAt time.Time) (bool, error)
	MarkPaymentRefunded(ctx context.Context, id int64, refundedAt time.Time) (bool, error)
	MarkPaymentRefundError(ctx context.Context, id int64) (bool, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Catalog interface {
	GetRoomByID(ctx context.Context, roomID int64) (*domain.Room, error)
}

type Service struct {
	store   Store
	catalog Catalog
	gateway gateway.Client
	bus     Publisher
	logger  observability.Logger
}

func NewService(store Store, catalog Catalog, gw gateway.Client, bus Publisher, logger observability.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		gateway: gw,
		bus:     bus,
		logger:  logger,
	}
}

// HandleBookingCreated creates the pending payment for a new booking:
// amount = room price x nights (at least one). Creation is idempotent
// on the booking id, so a redelivered event leaves exactly one row.
// Processing is not automatic; it waits for the explicit pay action.
func (s *Service) HandleBookingCreated(ctx context.Context, msg events.BookingCreated) error {
	room, err := s.catalog.GetRoomByID(ctx, msg.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WithField("room_id", msg.RoomID).Warn("room not found while creating payment")
			return nil
		}
		return err
	}

	nights := int(msg.CheckOut.Sub(msg.CheckIn).Hours() / 24)
	if nights < 1 {
		nights = 1
	}
	p := domain.NewPayment(msg.BookingID, room.Price*float64(nights))

	created, err := s.store.CreatePayment(ctx, p)
	if err != nil {
		return err
	}
	if !created {
		s.logger.WithField("booking_id", msg.BookingID).Info("payment already exists")
		return nil
	}
	s.logger.WithField("booking_id", msg.BookingID).WithField("payment_id", p.ID).Info("payment created")
	return nil
}

// Pay is the explicit user action that charges the payment. Completed
// is a success no-op; Pending and RefundError go to the gateway; any
// other status is an invalid operation. The outcome is published as
// payment.created with the resulting status, which the booking side
// turns into a Confirmed transition.
func (s *Service) Pay(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Status == domain.PaymentCompleted {
		return p, nil
	}
	if !p.Status.Payable() {
		return nil, fmt.Errorf("%w: payment cannot be processed in status %s", domain.ErrInvalidTransition, p.Status)
	}

	ok, err := s.gateway.ProcessPayment(ctx, p.ID, p.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if ok {
		if _, err := s.store.MarkPaymentCompleted(ctx, p.ID, now); err != nil {
			return nil, err
		}
		p.Status = domain.PaymentCompleted
		p.PaidAt = &now
	} else {
		if _, err := s.store.MarkPaymentRefundError(ctx, p.ID); err != nil {
			return nil, err
		}
		p.Status = domain.PaymentRefundError
	}

	evt := events.PaymentCreated{
		PaymentID: p.ID,
		BookingID: p.BookingID,
		Amount:    p.Amount,
		Status:    int(p.Status),
	}
	if err := s.bus.PublishJSON(ctx, events.KeyPaymentCreated, evt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	return s.store.GetPayment(ctx, paymentID)
}

func (s *Service) GetByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	return s.store.GetPaymentByBooking(ctx, bookingID)
}

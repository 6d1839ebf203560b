// Package booking owns the authoritative status of a reservation. All
// other services react to the events it emits; they never write booking
// rows directly.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

// Event is an outbox entry produced in the same transaction as a
// booking state change.
type Event struct {
	Key     string
	Payload []byte
}

// Store is the persistence contract for bookings. Conditional
// transitions return false when the row was not in an expected status,
// which is how redelivered messages become no-ops: the row itself is
// the serialization point.
type Store interface {
	CreateBooking(ctx context.Context, b *domain.Booking, evts func() []Event) error
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	BookedRoomIDs(ctx context.Context, roomIDs []int64, checkIn, checkOut time.Time) ([]int64, error)
	AttachPayment(ctx context.Context, id, paymentID int64) error
	ConfirmBooking(ctx context.Context, id int64) (bool, error)
	CancelBooking(ctx context.Context, id int64, from []domain.BookingStatus, canceledAt time.Time, reason string, evts func() []Event) (bool, error)
	ResolveRefund(ctx context.Context, id int64) (bool, error)
	MarkRefundError(ctx context.Context, id int64, reason string) (bool, error)
}

// Bus publishes events immediately or after a delay. Delayed delivery
// must be durable: the ten-minute cancellation timeout may not live in
// process memory.
type Bus interface {
	PublishJSON(ctx context.Context, key string, v any) error
	PublishDelayedJSON(ctx context.Context, key string, v any, delay time.Duration) error
}

// Catalog resolves rooms from the hotel catalog.
type Catalog interface {
	GetRoomByID(ctx context.Context, roomID int64) (*domain.Room, error)
	RoomsByHotel(ctx context.Context, hotelID int64) ([]domain.Room, error)
}

// Audit records saga actions for later inspection.
type Audit interface {
	LogAction(ctx context.Context, action, userID string, bookingID int64, data map[string]any) error
}

type NopAudit struct{}

func (NopAudit) LogAction(context.Context, string, string, int64, map[string]any) error { return nil }

type Service struct {
	store   Store
	catalog Catalog
	bus     Bus
	audit   Audit
	logger  observability.Logger
	timeout time.Duration
}

func NewService(store Store, catalog Catalog, bus Bus, audit Audit, logger observability.Logger, timeout time.Duration) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		bus:     bus,
		audit:   audit,
		logger:  logger,
		timeout: timeout,
	}
}

// Create validates the request, inserts a Pending booking together with
// its BookingCreated and RoomReserveRequested outbox entries, and
// schedules the cancellation timeout on the bus.
func (s *Service) Create(ctx context.Context, userID string, hotelID, roomID int64, checkIn, checkOut time.Time) (*domain.Booking, error) {
	b, err := domain.NewBooking(hotelID, roomID, userID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: room not found", domain.ErrInvalidInput)
		}
		return nil, err
	}

	err = s.store.CreateBooking(ctx, b, func() []Event {
		return []Event{
			mustEvent(events.KeyBookingCreated, events.BookingCreated{
				BookingID: b.ID,
				HotelID:   b.HotelID,
				RoomID:    b.RoomID,
				UserID:    b.UserID,
				CheckIn:   b.CheckIn,
				CheckOut:  b.CheckOut,
			}),
			mustEvent(events.KeyRoomReserveRequested, events.RoomReserveRequested{
				BookingID: b.ID,
				HotelID:   b.HotelID,
				RoomID:    b.RoomID,
				CheckIn:   b.CheckIn,
				CheckOut:  b.CheckOut,
			}),
		}
	})
	if err != nil {
		return nil, err
	}

	timeoutMsg := events.CancelBookingTimeout{BookingID: b.ID, CreatedAt: b.CreatedAt}
	if err := s.bus.PublishDelayedJSON(ctx, events.KeyCancelBookingTimeout, timeoutMsg, s.timeout); err != nil {
		// The booking exists either way; an unscheduled timeout only
		// means an unpaid booking stays Pending until cancelled by hand.
		s.logger.WithField("booking_id", b.ID).Error("schedule cancellation timeout: ", err)
	}

	observability.BookingsCreated.Inc()
	if err := s.audit.LogAction(ctx, "booking.created", userID, b.ID, map[string]any{
		"room_id":   b.RoomID,
		"check_in":  b.CheckIn,
		"check_out": b.CheckOut,
	}); err != nil {
		s.logger.Warn("audit booking.created: ", err)
	}
	return b, nil
}

// Cancel is the explicit user cancellation. Allowed from Pending and
// Confirmed only; the emitted BookingCancelled carries HasRefund when a
// payment was attached so the compensator knows to refund.
func (s *Service) Cancel(ctx context.Context, id int64, userID string) (*domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if !b.Status.CanCancel() {
		return nil, fmt.Errorf("%w: booking cannot be cancelled in status %s", domain.ErrInvalidTransition, b.Status)
	}

	hasRefund := b.PaymentID != nil
	now := time.Now().UTC()
	ok, err := s.store.CancelBooking(ctx, id,
		[]domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed},
		now, "", func() []Event {
			return []Event{mustEvent(events.KeyBookingCancelled, events.BookingCancelled{
				BookingID:  id,
				RoomID:     b.RoomID,
				CanceledAt: now,
				HasRefund:  hasRefund,
			})}
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another transition since the read above.
		return nil, fmt.Errorf("%w: booking cannot be cancelled in its current status", domain.ErrInvalidTransition)
	}

	observability.BookingsCancelled.WithLabelValues("user").Inc()
	if err := s.audit.LogAction(ctx, "booking.cancelled", userID, id, map[string]any{"has_refund": hasRefund}); err != nil {
		s.logger.Warn("audit booking.cancelled: ", err)
	}
	return s.store.GetBooking(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64, userID string) (*domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.store.ListBookingsByUser(ctx, userID)
}

// AvailableRooms lists the hotel's rooms with no Pending or Confirmed
// booking overlapping [checkIn, checkOut). Availability is derived from
// the overlap query, never from a stored flag.
func (s *Service) AvailableRooms(ctx context.Context, hotelID int64, checkIn, checkOut time.Time) ([]domain.Room, error) {
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("%w: check-out date must be later than check-in date", domain.ErrInvalidInput)
	}
	rooms, err := s.catalog.RoomsByHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	booked, err := s.store.BookedRoomIDs(ctx, ids, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, id := range booked {
		taken[id] = struct{}{}
	}
	available := rooms[:0]
	for _, r := range rooms {
		if _, ok := taken[r.ID]; !ok {
			available = append(available, r)
		}
	}
	return available, nil
}

func mustEvent(key string, v any) Event {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Event{Key: key, Payload: payload}
}

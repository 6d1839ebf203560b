// In-process saga test: all three services wired to an in-memory bus
// that dispatches synchronously, with stores mirroring the conditional
// transition semantics of the SQL repository. The delayed timeout
// message is captured and fired by hand so both orders (pay before
// timeout, timeout before pay) can be exercised deterministically.
package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookingmicro/booking-saga/internal/booking"
	"github.com/bookingmicro/booking-saga/internal/consumer"
	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/gateway"
	"github.com/bookingmicro/booking-saga/internal/observability"
	"github.com/bookingmicro/booking-saga/internal/payment"
	"github.com/bookingmicro/booking-saga/internal/room"
)

type syncBus struct {
	handlers map[string]consumer.HandlerFunc
	delayed  []delayedMsg
}

type delayedMsg struct {
	key  string
	body []byte
}

func (b *syncBus) PublishJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.dispatch(ctx, key, body)
}

func (b *syncBus) PublishDelayedJSON(ctx context.Context, key string, v any, delay time.Duration) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.delayed = append(b.delayed, delayedMsg{key: key, body: body})
	return nil
}

func (b *syncBus) dispatch(ctx context.Context, key string, body []byte) error {
	h, ok := b.handlers[key]
	if !ok {
		return nil
	}
	return h(ctx, body)
}

// fireDelayed delivers all captured delayed messages, as if their TTL
// elapsed.
func (b *syncBus) fireDelayed(ctx context.Context, t *testing.T) {
	t.Helper()
	msgs := b.delayed
	b.delayed = nil
	for _, m := range msgs {
		require.NoError(t, b.dispatch(ctx, m.key, m.body))
	}
}

type bookingStore struct {
	nextID   int64
	bookings map[int64]*domain.Booking
	bus      *syncBus
}

func (s *bookingStore) CreateBooking(ctx context.Context, b *domain.Booking, evts func() []booking.Event) error {
	for _, other := range s.bookings {
		if other.RoomID == b.RoomID && other.Status.Blocks() && other.Overlaps(b.CheckIn, b.CheckOut) {
			return domain.ErrConflict
		}
	}
	b.ID = s.nextID
	s.nextID++
	b.CreatedAt = time.Now().UTC()
	cp := *b
	s.bookings[b.ID] = &cp
	return s.relay(ctx, evts())
}

// relay stands in for the outbox relay: events written with the state
// change go straight onto the bus.
func (s *bookingStore) relay(ctx context.Context, evts []booking.Event) error {
	for _, e := range evts {
		if err := s.bus.dispatch(ctx, e.Key, e.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *bookingStore) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *bookingStore) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *bookingStore) BookedRoomIDs(ctx context.Context, roomIDs []int64, checkIn, checkOut time.Time) ([]int64, error) {
	var out []int64
	for _, id := range roomIDs {
		for _, b := range s.bookings {
			if b.RoomID == id && b.Status.Blocks() && b.Overlaps(checkIn, checkOut) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (s *bookingStore) AttachPayment(ctx context.Context, id, paymentID int64) error {
	b, ok := s.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.PaymentID = &paymentID
	return nil
}

func (s *bookingStore) ConfirmBooking(ctx context.Context, id int64) (bool, error) {
	b, ok := s.bookings[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if b.Status != domain.BookingPending && b.Status != domain.BookingRefundError {
		return false, nil
	}
	b.Status = domain.BookingConfirmed
	b.RefundErrorReason = nil
	return true, nil
}

func (s *bookingStore) CancelBooking(ctx context.Context, id int64, from []domain.BookingStatus, canceledAt time.Time, reason string, evts func() []booking.Event) (bool, error) {
	b, ok := s.bookings[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if b.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	b.Status = domain.BookingCancelled
	b.CanceledAt = &canceledAt
	if reason != "" {
		b.RefundErrorReason = &reason
	}
	return true, s.relay(ctx, evts())
}

func (s *bookingStore) ResolveRefund(ctx context.Context, id int64) (bool, error) {
	b, ok := s.bookings[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if b.Status != domain.BookingCancelled && b.Status != domain.BookingRefundError {
		return false, nil
	}
	b.Status = domain.BookingCancelled
	b.RefundErrorReason = nil
	return true, nil
}

func (s *bookingStore) MarkRefundError(ctx context.Context, id int64, reason string) (bool, error) {
	b, ok := s.bookings[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if b.Status != domain.BookingCancelled && b.Status != domain.BookingRefundError {
		return false, nil
	}
	b.Status = domain.BookingRefundError
	b.RefundErrorReason = &reason
	return true, nil
}

type paymentStore struct {
	nextID   int64
	payments map[int64]*domain.Payment
}

func (s *paymentStore) CreatePayment(ctx context.Context, p *domain.Payment) (bool, error) {
	for _, other := range s.payments {
		if other.BookingID == p.BookingID {
			return false, nil
		}
	}
	p.ID = s.nextID
	s.nextID++
	cp := *p
	s.payments[p.ID] = &cp
	return true, nil
}

func (s *paymentStore) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *paymentStore) GetPaymentByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *paymentStore) CompletedPaymentByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	for _, p := range s.payments {
		if p.BookingID == bookingID && p.Status == domain.PaymentCompleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *paymentStore) MarkPaymentCompleted(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	p, ok := s.payments[id]
	if !ok || !p.Status.Payable() {
		return false, nil
	}
	p.Status = domain.PaymentCompleted
	p.PaidAt = &paidAt
	return true, nil
}

func (s *paymentStore) MarkPaymentRefunded(ctx context.Context, id int64, refundedAt time.Time) (bool, error) {
	p, ok := s.payments[id]
	if !ok || p.Status != domain.PaymentCompleted {
		return false, nil
	}
	p.Status = domain.PaymentRefunded
	p.RefundedAt = &refundedAt
	return true, nil
}

func (s *paymentStore) MarkPaymentRefundError(ctx context.Context, id int64) (bool, error) {
	p, ok := s.payments[id]
	if !ok || p.Status == domain.PaymentRefunded {
		return false, nil
	}
	p.Status = domain.PaymentRefundError
	return true, nil
}

type catalog struct {
	rooms map[int64]domain.Room
}

func (c *catalog) GetRoomByID(ctx context.Context, roomID int64) (*domain.Room, error) {
	r, ok := c.rooms[roomID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (c *catalog) RoomsByHotel(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	var out []domain.Room
	for _, r := range c.rooms {
		if r.HotelID == hotelID {
			out = append(out, r)
		}
	}
	return out, nil
}

type saga struct {
	bus        *syncBus
	bookings   *bookingStore
	payments   *paymentStore
	bookingSvc *booking.Service
	paymentSvc *payment.Service
}

func newSaga(t *testing.T, gw gateway.Client) *saga {
	t.Helper()
	logger := observability.NewLogger()
	cat := &catalog{rooms: map[int64]domain.Room{
		101: {ID: 101, HotelID: 1, Number: "101", Price: 120},
	}}

	bus := &syncBus{handlers: map[string]consumer.HandlerFunc{}}
	bookings := &bookingStore{nextID: 1, bookings: map[int64]*domain.Booking{}, bus: bus}
	payments := &paymentStore{nextID: 1, payments: map[int64]*domain.Payment{}}

	bookingSvc := booking.NewService(bookings, cat, bus, booking.NopAudit{}, logger, 10*time.Minute)
	paymentSvc := payment.NewService(payments, cat, gw, bus, logger)
	roomHandler := room.NewHandler(cat, bus, logger)

	bus.handlers[events.KeyBookingCreated] = consumer.JSON(paymentSvc.HandleBookingCreated)
	bus.handlers[events.KeyBookingCancelled] = consumer.JSON(paymentSvc.HandleBookingCancelled)
	bus.handlers[events.KeyRoomReserveRequested] = consumer.JSON(roomHandler.HandleReserveRequested)
	bus.handlers[events.KeyRoomReserveRejected] = consumer.JSON(bookingSvc.ApplyRoomReserveRejected)
	bus.handlers[events.KeyCancelBookingTimeout] = consumer.JSON(bookingSvc.ApplyCancelTimeout)
	bus.handlers[events.KeyPaymentCreated] = consumer.JSON(bookingSvc.ApplyPaymentCreated)
	bus.handlers[events.KeyPaymentRefunded] = consumer.JSON(bookingSvc.ApplyPaymentRefunded)
	bus.handlers[events.KeyPaymentRefundFailed] = consumer.JSON(bookingSvc.ApplyPaymentRefundFailed)

	return &saga{bus: bus, bookings: bookings, payments: payments, bookingSvc: bookingSvc, paymentSvc: paymentSvc}
}

func TestSaga_PayBeforeTimeout(t *testing.T) {
	s := newSaga(t, gateway.NewSimulated(1.0, 0))
	ctx := context.Background()

	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	b, err := s.bookingSvc.Create(ctx, "u1", 1, 101, checkIn, checkIn.AddDate(0, 0, 3))
	require.NoError(t, err)

	// booking.created already produced the pending payment.
	p, err := s.paymentSvc.GetByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Equal(t, 360.0, p.Amount)

	_, err = s.paymentSvc.Pay(ctx, p.ID)
	require.NoError(t, err)

	got, err := s.bookingSvc.Get(ctx, b.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)

	// The timeout arrives late and finds a confirmed booking.
	s.bus.fireDelayed(ctx, t)
	got, _ = s.bookingSvc.Get(ctx, b.ID, "u1")
	assert.Equal(t, domain.BookingConfirmed, got.Status)
}

func TestSaga_TimeoutBeforePay(t *testing.T) {
	s := newSaga(t, gateway.NewSimulated(1.0, 0))
	ctx := context.Background()

	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	b, err := s.bookingSvc.Create(ctx, "u1", 1, 101, checkIn, checkIn.AddDate(0, 0, 3))
	require.NoError(t, err)

	s.bus.fireDelayed(ctx, t)

	got, err := s.bookingSvc.Get(ctx, b.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
	require.NotNil(t, got.RefundErrorReason)
	assert.Equal(t, "Timeout", *got.RefundErrorReason)

	// No completed payment existed, so no refund was attempted and the
	// payment row stays Pending.
	p, err := s.paymentSvc.GetByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)

	// The room is free again for the same dates.
	rooms, err := s.bookingSvc.AvailableRooms(ctx, 1, checkIn, checkIn.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestSaga_CancelConfirmedRefunds(t *testing.T) {
	s := newSaga(t, gateway.NewSimulated(1.0, 0))
	ctx := context.Background()

	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	b, err := s.bookingSvc.Create(ctx, "u1", 1, 101, checkIn, checkIn.AddDate(0, 0, 3))
	require.NoError(t, err)
	p, err := s.paymentSvc.GetByBooking(ctx, b.ID)
	require.NoError(t, err)
	_, err = s.paymentSvc.Pay(ctx, p.ID)
	require.NoError(t, err)

	_, err = s.bookingSvc.Cancel(ctx, b.ID, "u1")
	require.NoError(t, err)

	got, _ := s.bookingSvc.Get(ctx, b.ID, "u1")
	assert.Equal(t, domain.BookingCancelled, got.Status)
	assert.Nil(t, got.RefundErrorReason)

	refunded, err := s.paymentSvc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.Status)
}

func TestSaga_RefundFailureParksBooking(t *testing.T) {
	gw := &flippableGateway{inner: gateway.NewSimulated(1.0, 0)}
	s := newSaga(t, gw)
	ctx := context.Background()

	checkIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	b, err := s.bookingSvc.Create(ctx, "u1", 1, 101, checkIn, checkIn.AddDate(0, 0, 3))
	require.NoError(t, err)
	p, err := s.paymentSvc.GetByBooking(ctx, b.ID)
	require.NoError(t, err)
	_, err = s.paymentSvc.Pay(ctx, p.ID)
	require.NoError(t, err)

	// Refunds decline from here on.
	gw.decline = true
	_, err = s.bookingSvc.Cancel(ctx, b.ID, "u1")
	require.NoError(t, err)

	got, _ := s.bookingSvc.Get(ctx, b.ID, "u1")
	assert.Equal(t, domain.BookingRefundError, got.Status)
	require.NotNil(t, got.RefundErrorReason)
	assert.Equal(t, "Gateway refund failed", *got.RefundErrorReason)

	failed, _ := s.paymentSvc.Get(ctx, p.ID)
	assert.Equal(t, domain.PaymentRefundError, failed.Status)
}

// flippableGateway approves until decline is set.
type flippableGateway struct {
	inner   gateway.Client
	decline bool
}

func (g *flippableGateway) ProcessPayment(ctx context.Context, paymentID int64, amount float64) (bool, error) {
	if g.decline {
		return false, nil
	}
	return g.inner.ProcessPayment(ctx, paymentID, amount)
}

func (g *flippableGateway) Refund(ctx context.Context, paymentID int64, amount float64) (bool, error) {
	if g.decline {
		return false, nil
	}
	return g.inner.Refund(ctx, paymentID, amount)
}

package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/bookingmicro/booking-saga/internal/booking"
	"github.com/bookingmicro/booking-saga/internal/domain"
)

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}

var blockingStatuses = statusStrings([]domain.BookingStatus{
	domain.BookingPending,
	domain.BookingConfirmed,
})

// CreateBooking inserts a Pending booking and its outbox entries in one
// SERIALIZABLE transaction, after checking that no blocking booking for
// the same room overlaps the half-open [check_in, check_out) range.
func (r *Repository) CreateBooking(ctx context.Context, b *domain.Booking, evts func() []booking.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var taken bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE room_id = $1 AND status = ANY($2)
				  AND check_in < $3 AND check_out > $4
			)
		`, b.RoomID, blockingStatuses, b.CheckOut, b.CheckIn).Scan(&taken)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrConflict
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO bookings (hotel_id, room_id, user_id, check_in, check_out, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, b.HotelID, b.RoomID, b.UserID, b.CheckIn, b.CheckOut, b.Status.String()).Scan(&b.ID, &b.CreatedAt)
		if err != nil {
			return err
		}

		return r.insertEvents(ctx, tx, b.ID, evts())
	})
}

func (r *Repository) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT id, hotel_id, room_id, user_id, check_in, check_out, status,
		       payment_id, canceled_at, refund_error_reason, created_at
		FROM bookings WHERE id = $1
	`, id))
}

func (r *Repository) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, hotel_id, room_id, user_id, check_in, check_out, status,
		       payment_id, canceled_at, refund_error_reason, created_at
		FROM bookings WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// BookedRoomIDs returns the subset of roomIDs with a blocking booking
// overlapping [checkIn, checkOut).
func (r *Repository) BookedRoomIDs(ctx context.Context, roomIDs []int64, checkIn, checkOut time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT room_id FROM bookings
		WHERE room_id = ANY($1) AND status = ANY($2)
		  AND check_in < $3 AND check_out > $4
	`, roomIDs, blockingStatuses, checkOut, checkIn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repository) AttachPayment(ctx context.Context, id, paymentID int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET payment_id = $2 WHERE id = $1
	`, id, paymentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConfirmBooking moves Pending or RefundError to Confirmed and clears
// the refund error reason. Returns false when the booking was in
// neither status.
func (r *Repository) ConfirmBooking(ctx context.Context, id int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $2, refund_error_reason = NULL
		WHERE id = $1 AND status = ANY($3)
	`, id, domain.BookingConfirmed.String(), statusStrings([]domain.BookingStatus{
		domain.BookingPending, domain.BookingRefundError,
	}))
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// CancelBooking conditionally cancels the booking and writes the
// BookingCancelled outbox entry in the same transaction. Returns false
// without touching the outbox when the booking had already left the
// expected statuses.
func (r *Repository) CancelBooking(ctx context.Context, id int64, from []domain.BookingStatus, canceledAt time.Time, reason string, evts func() []booking.Event) (bool, error) {
	cancelled := false
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = $2, canceled_at = $3, refund_error_reason = NULLIF($4, '')
			WHERE id = $1 AND status = ANY($5)
		`, id, domain.BookingCancelled.String(), canceledAt, reason, statusStrings(from))
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		cancelled = true
		return r.insertEvents(ctx, tx, id, evts())
	})
	return cancelled, err
}

// ResolveRefund settles a refunded booking: Cancelled stays final and
// the refund error reason is cleared.
func (r *Repository) ResolveRefund(ctx context.Context, id int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $2, refund_error_reason = NULL
		WHERE id = $1 AND status = ANY($3)
	`, id, domain.BookingCancelled.String(), statusStrings([]domain.BookingStatus{
		domain.BookingCancelled, domain.BookingRefundError,
	}))
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) MarkRefundError(ctx context.Context, id int64, reason string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $2, refund_error_reason = $3
		WHERE id = $1 AND status = ANY($4)
	`, id, domain.BookingRefundError.String(), reason, statusStrings([]domain.BookingStatus{
		domain.BookingCancelled, domain.BookingRefundError,
	}))
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) insertEvents(ctx context.Context, tx pgx.Tx, bookingID int64, evts []booking.Event) error {
	for _, e := range evts {
		err := r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   bookingID,
			EventType:     e.Key,
			Payload:       e.Payload,
			DedupeKey:     uuid.New().String(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type bookingRow interface {
	Scan(dest ...any) error
}

func scanBooking(row bookingRow) (*domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(&b.ID, &b.HotelID, &b.RoomID, &b.UserID, &b.CheckIn, &b.CheckOut,
		&status, &b.PaymentID, &b.CanceledAt, &b.RefundErrorReason, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status, err = domain.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

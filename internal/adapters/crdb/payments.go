package crdb

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/bookingmicro/booking-saga/internal/domain"
)

// CreatePayment inserts a Pending payment for the booking. One active
// payment per booking: ON CONFLICT on the booking id makes redelivered
// BookingCreated events a no-op, reported as created=false.
func (r *Repository) CreatePayment(ctx context.Context, p *domain.Payment) (bool, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (booking_id, amount, currency, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING id
	`, p.BookingID, p.Amount, p.Currency, p.Status.String()).Scan(&p.ID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, booking_id, amount, currency, status, paid_at, refunded_at
		FROM payments WHERE id = $1
	`, id))
}

func (r *Repository) GetPaymentByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, booking_id, amount, currency, status, paid_at, refunded_at
		FROM payments WHERE booking_id = $1
	`, bookingID))
}

func (r *Repository) CompletedPaymentByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT id, booking_id, amount, currency, status, paid_at, refunded_at
		FROM payments WHERE booking_id = $1 AND status = $2
	`, bookingID, domain.PaymentCompleted.String()))
}

// MarkPaymentCompleted moves Pending or RefundError to Completed.
func (r *Repository) MarkPaymentCompleted(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $2, paid_at = $3
		WHERE id = $1 AND status = ANY($4)
	`, id, domain.PaymentCompleted.String(), paidAt, []string{
		domain.PaymentPending.String(), domain.PaymentRefundError.String(),
	})
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// MarkPaymentRefunded moves Completed to Refunded.
func (r *Repository) MarkPaymentRefunded(ctx context.Context, id int64, refundedAt time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $2, refunded_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.PaymentRefunded.String(), refundedAt, domain.PaymentCompleted.String())
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) MarkPaymentRefundError(ctx context.Context, id int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $2
		WHERE id = $1 AND status = ANY($3)
	`, id, domain.PaymentRefundError.String(), []string{
		domain.PaymentPending.String(), domain.PaymentCompleted.String(), domain.PaymentRefundError.String(),
	})
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func scanPayment(row bookingRow) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Currency, &status, &p.PaidAt, &p.RefundedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status, err = domain.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

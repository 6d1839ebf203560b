package domain

import (
	"fmt"
	"time"
)

// PaymentStatus ordinals are part of the wire contract: the
// payment.created event carries the status as an integer.
type PaymentStatus int

const (
	PaymentPending PaymentStatus = iota
	PaymentCompleted
	PaymentRefunded
	PaymentRefundError
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "Pending"
	case PaymentCompleted:
		return "Completed"
	case PaymentRefunded:
		return "Refunded"
	case PaymentRefundError:
		return "RefundError"
	}
	return fmt.Sprintf("PaymentStatus(%d)", int(s))
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch s {
	case "Pending":
		return PaymentPending, nil
	case "Completed":
		return PaymentCompleted, nil
	case "Refunded":
		return PaymentRefunded, nil
	case "RefundError":
		return PaymentRefundError, nil
	}
	return 0, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, s)
}

// Payable reports whether the explicit pay action may call the gateway.
func (s PaymentStatus) Payable() bool {
	return s == PaymentPending || s == PaymentRefundError
}

type Payment struct {
	ID         int64
	BookingID  int64
	Amount     float64
	Currency   string
	Status     PaymentStatus
	PaidAt     *time.Time
	RefundedAt *time.Time
}

func NewPayment(bookingID int64, amount float64) *Payment {
	return &Payment{
		BookingID: bookingID,
		Amount:    amount,
		Currency:  "USD",
		Status:    PaymentPending,
	}
}

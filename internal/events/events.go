// Package events holds the contracts exchanged between the booking,
// room and payment services over the bus. Events are immutable facts;
// consumers must re-read entity state before acting on them because the
// transport redelivers.
package events

import "time"

// Routing keys on the booking.events topic exchange.
const (
	KeyBookingCreated       = "booking.created"
	KeyBookingCancelled     = "booking.cancelled"
	KeyCancelBookingTimeout = "booking.cancel.timeout"
	KeyRoomReserveRequested = "room.reserve.requested"
	KeyRoomReserved         = "room.reserved"
	KeyRoomReserveRejected  = "room.reserve.rejected"
	KeyPaymentCreated       = "payment.created"
	KeyPaymentRefunded      = "payment.refunded"
	KeyPaymentRefundFailed  = "payment.refund.failed"
)

type BookingCreated struct {
	BookingID int64     `json:"booking_id"`
	HotelID   int64     `json:"hotel_id"`
	RoomID    int64     `json:"room_id"`
	UserID    string    `json:"user_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}

type RoomReserveRequested struct {
	BookingID int64     `json:"booking_id"`
	HotelID   int64     `json:"hotel_id"`
	RoomID    int64     `json:"room_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}

type RoomReserved struct {
	BookingID  int64     `json:"booking_id"`
	RoomID     int64     `json:"room_id"`
	ReservedAt time.Time `json:"reserved_at"`
}

type RoomReserveRejected struct {
	BookingID  int64     `json:"booking_id"`
	RoomID     int64     `json:"room_id"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

// PaymentCreated reports the outcome of payment processing. Status is
// the integer ordinal of domain.PaymentStatus (Completed = 1).
type PaymentCreated struct {
	PaymentID int64   `json:"payment_id"`
	BookingID int64   `json:"booking_id"`
	Amount    float64 `json:"amount"`
	Status    int     `json:"status"`
}

type PaymentRefunded struct {
	PaymentID  int64     `json:"payment_id"`
	BookingID  int64     `json:"booking_id"`
	Amount     float64   `json:"amount"`
	RefundedAt time.Time `json:"refunded_at"`
}

type PaymentRefundFailed struct {
	PaymentID int64     `json:"payment_id"`
	BookingID int64     `json:"booking_id"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

type BookingCancelled struct {
	BookingID  int64     `json:"booking_id"`
	RoomID     int64     `json:"room_id"`
	CanceledAt time.Time `json:"canceled_at"`
	// HasRefund marks that a payment was attached to the booking and a
	// compensating refund must be attempted.
	HasRefund         bool   `json:"has_refund"`
	RefundErrorReason string `json:"refund_error_reason,omitempty"`
}

// CancelBookingTimeout is scheduled through the bus's delayed delivery
// at booking creation and fires once, ten minutes later by default.
type CancelBookingTimeout struct {
	BookingID int64     `json:"booking_id"`
	CreatedAt time.Time `json:"created_at"`
}

package domain

import (
	"fmt"
	"time"
)

// BookingStatus is the closed set of states a booking moves through.
// Transitions: Pending -> Confirmed | Cancelled | RefundError,
// RefundError -> Confirmed | Cancelled. Cancelled is terminal.
type BookingStatus int

const (
	BookingPending BookingStatus = iota
	BookingConfirmed
	BookingCancelled
	BookingRefundError
)

func (s BookingStatus) String() string {
	switch s {
	case BookingPending:
		return "Pending"
	case BookingConfirmed:
		return "Confirmed"
	case BookingCancelled:
		return "Cancelled"
	case BookingRefundError:
		return "RefundError"
	}
	return fmt.Sprintf("BookingStatus(%d)", int(s))
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch s {
	case "Pending":
		return BookingPending, nil
	case "Confirmed":
		return BookingConfirmed, nil
	case "Cancelled":
		return BookingCancelled, nil
	case "RefundError":
		return BookingRefundError, nil
	}
	return 0, fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, s)
}

// CanCancel reports whether an explicit cancellation is allowed from s.
func (s BookingStatus) CanCancel() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Blocks reports whether a booking in this status holds its room for the
// purpose of the date-overlap availability check.
func (s BookingStatus) Blocks() bool {
	return s == BookingPending || s == BookingConfirmed
}

type Booking struct {
	ID                int64
	HotelID           int64
	RoomID            int64
	UserID            string
	CheckIn           time.Time
	CheckOut          time.Time
	Status            BookingStatus
	PaymentID         *int64
	CanceledAt        *time.Time
	RefundErrorReason *string
	CreatedAt         time.Time
}

func NewBooking(hotelID, roomID int64, userID string, checkIn, checkOut time.Time) (*Booking, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("%w: check-out date must be later than check-in date", ErrInvalidInput)
	}
	return &Booking{
		HotelID:  hotelID,
		RoomID:   roomID,
		UserID:   userID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Status:   BookingPending,
	}, nil
}

// Overlaps reports whether the booking's [CheckIn, CheckOut) interval
// intersects [checkIn, checkOut). Half-open comparison: back-to-back
// stays sharing a boundary date do not overlap.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn)
}

// Nights returns the number of nights to charge for, at least one.
func (b *Booking) Nights() int {
	n := int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
	if n < 1 {
		n = 1
	}
	return n
}

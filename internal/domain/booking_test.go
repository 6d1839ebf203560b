package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/bookingmicro/booking-saga/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewBooking_Validation(t *testing.T) {
	_, err := domain.NewBooking(1, 1, "", date(2026, 9, 1), date(2026, 9, 3))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for empty user, got %v", err)
	}

	_, err = domain.NewBooking(1, 1, "u1", date(2026, 9, 3), date(2026, 9, 1))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for reversed dates, got %v", err)
	}

	_, err = domain.NewBooking(1, 1, "u1", date(2026, 9, 1), date(2026, 9, 1))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for zero-night booking, got %v", err)
	}

	b, err := domain.NewBooking(1, 2, "u1", date(2026, 9, 1), date(2026, 9, 3))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if b.Status != domain.BookingPending {
		t.Errorf("expected new booking to be Pending, got %s", b.Status)
	}
}

func TestBooking_Overlaps(t *testing.T) {
	b, _ := domain.NewBooking(1, 1, "u1", date(2026, 9, 10), date(2026, 9, 15))

	cases := []struct {
		name               string
		checkIn, checkOut  time.Time
		want               bool
	}{
		{"inside", date(2026, 9, 11), date(2026, 9, 12), true},
		{"covers", date(2026, 9, 1), date(2026, 9, 30), true},
		{"left edge crossing", date(2026, 9, 8), date(2026, 9, 11), true},
		{"right edge crossing", date(2026, 9, 14), date(2026, 9, 20), true},
		{"back to back before", date(2026, 9, 5), date(2026, 9, 10), false},
		{"back to back after", date(2026, 9, 15), date(2026, 9, 20), false},
		{"disjoint before", date(2026, 9, 1), date(2026, 9, 5), false},
		{"disjoint after", date(2026, 9, 20), date(2026, 9, 25), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := b.Overlaps(tc.checkIn, tc.checkOut); got != tc.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tc.checkIn.Format("01-02"), tc.checkOut.Format("01-02"), got, tc.want)
			}
		})
	}
}

func TestBooking_Nights(t *testing.T) {
	b, _ := domain.NewBooking(1, 1, "u1", date(2026, 9, 1), date(2026, 9, 4))
	if n := b.Nights(); n != 3 {
		t.Errorf("expected 3 nights, got %d", n)
	}

	short := &domain.Booking{
		CheckIn:  time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
	}
	if n := short.Nights(); n != 1 {
		t.Errorf("expected at least 1 night, got %d", n)
	}
}

func TestBookingStatus_Parse(t *testing.T) {
	for _, s := range []domain.BookingStatus{
		domain.BookingPending, domain.BookingConfirmed, domain.BookingCancelled, domain.BookingRefundError,
	} {
		parsed, err := domain.ParseBookingStatus(s.String())
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		if parsed != s {
			t.Errorf("parsed %s as %s", s, parsed)
		}
	}

	if _, err := domain.ParseBookingStatus("Unknown"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestBookingStatus_Transitions(t *testing.T) {
	if !domain.BookingPending.CanCancel() || !domain.BookingConfirmed.CanCancel() {
		t.Error("Pending and Confirmed must be cancellable")
	}
	if domain.BookingCancelled.CanCancel() || domain.BookingRefundError.CanCancel() {
		t.Error("Cancelled and RefundError must not be cancellable")
	}

	if !domain.BookingPending.Blocks() || !domain.BookingConfirmed.Blocks() {
		t.Error("Pending and Confirmed must block the room")
	}
	if domain.BookingCancelled.Blocks() || domain.BookingRefundError.Blocks() {
		t.Error("Cancelled and RefundError must not block the room")
	}
}

func TestPaymentStatus_WireOrdinals(t *testing.T) {
	// The payment.created event carries these as integers; reordering
	// the constants breaks consumers.
	if int(domain.PaymentPending) != 0 || int(domain.PaymentCompleted) != 1 ||
		int(domain.PaymentRefunded) != 2 || int(domain.PaymentRefundError) != 3 {
		t.Error("payment status ordinals changed")
	}
}

func TestPaymentStatus_Payable(t *testing.T) {
	if !domain.PaymentPending.Payable() || !domain.PaymentRefundError.Payable() {
		t.Error("Pending and RefundError must be payable")
	}
	if domain.PaymentCompleted.Payable() || domain.PaymentRefunded.Payable() {
		t.Error("Completed and Refunded must not be payable")
	}
}

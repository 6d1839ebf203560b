package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookingmicro/booking-saga/internal/booking"
	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/idempotency"
)

// BookingHandlers exposes the booking service over HTTP: the
// synchronous entry points into the saga (create, cancel) plus the
// read-side queries.
type BookingHandlers struct {
	svc   *booking.Service
	idemp *idempotency.Idempotency
}

func NewBookingHandlers(svc *booking.Service, idemp *idempotency.Idempotency) *BookingHandlers {
	return &BookingHandlers{svc: svc, idemp: idemp}
}

type bookingResponse struct {
	ID                int64      `json:"id"`
	HotelID           int64      `json:"hotel_id"`
	RoomID            int64      `json:"room_id"`
	CheckIn           time.Time  `json:"check_in"`
	CheckOut          time.Time  `json:"check_out"`
	Status            string     `json:"status"`
	PaymentID         *int64     `json:"payment_id,omitempty"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
	RefundErrorReason *string    `json:"refund_error_reason,omitempty"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                b.ID,
		HotelID:           b.HotelID,
		RoomID:            b.RoomID,
		CheckIn:           b.CheckIn,
		CheckOut:          b.CheckOut,
		Status:            b.Status.String(),
		PaymentID:         b.PaymentID,
		CanceledAt:        b.CanceledAt,
		RefundErrorReason: b.RefundErrorReason,
	}
}

func (h *BookingHandlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	uid := userID(r)
	if uid == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		HotelID  int64  `json:"hotel_id"`
		RoomID   int64  `json:"room_id"`
		CheckIn  string `json:"check_in"`
		CheckOut string `json:"check_out"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	checkIn, err := parseDate(req.CheckIn)
	if err != nil {
		http.Error(w, "invalid check_in", http.StatusBadRequest)
		return
	}
	checkOut, err := parseDate(req.CheckOut)
	if err != nil {
		http.Error(w, "invalid check_out", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Create(r.Context(), uid, req.HotelID, req.RoomID, checkIn, checkOut)
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		http.Error(w, "room is already booked for the selected period", http.StatusConflict)
		return
	}
	if errors.Is(err, domain.ErrSerializationFailure) {
		http.Error(w, "conflict, try again", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(toBookingResponse(b))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *BookingHandlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	bookings, err := h.svc.ListByUser(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *BookingHandlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	b, err := h.svc.Get(r.Context(), id, uid)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookingResponse(b))
}

func (h *BookingHandlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	b, err := h.svc.Cancel(r.Context(), id, uid)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		http.Error(w, "booking cannot be cancelled in its current status", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookingResponse(b))
}

// AvailableRooms lists rooms of a hotel with no overlapping Pending or
// Confirmed booking in the requested range.
func (h *BookingHandlers) AvailableRooms(w http.ResponseWriter, r *http.Request) {
	hotelID, err := strconv.ParseInt(r.URL.Query().Get("hotel_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid hotel_id", http.StatusBadRequest)
		return
	}
	checkIn, err := parseDate(r.URL.Query().Get("check_in"))
	if err != nil {
		http.Error(w, "invalid check_in", http.StatusBadRequest)
		return
	}
	checkOut, err := parseDate(r.URL.Query().Get("check_out"))
	if err != nil {
		http.Error(w, "invalid check_out", http.StatusBadRequest)
		return
	}

	rooms, err := h.svc.AvailableRooms(r.Context(), hotelID, checkIn, checkOut)
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type roomResponse struct {
		ID     int64   `json:"id"`
		Number string  `json:"number"`
		Price  float64 `json:"price"`
	}
	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomResponse{ID: room.ID, Number: room.Number, Price: room.Price})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *BookingHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *BookingHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

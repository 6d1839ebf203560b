package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/payment"
)

type PaymentHandlers struct {
	svc *payment.Service
}

func NewPaymentHandlers(svc *payment.Service) *PaymentHandlers {
	return &PaymentHandlers{svc: svc}
}

type paymentResponse struct {
	ID         int64      `json:"id"`
	BookingID  int64      `json:"booking_id"`
	Amount     float64    `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:         p.ID,
		BookingID:  p.BookingID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status.String(),
		PaidAt:     p.PaidAt,
		RefundedAt: p.RefundedAt,
	}
}

// Pay triggers processing of a pending payment. Paying an already
// completed payment succeeds without touching the gateway.
func (h *PaymentHandlers) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	p, err := h.svc.Pay(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		http.Error(w, "payment cannot be processed in its current status", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if p.Status != domain.PaymentCompleted {
		w.WriteHeader(http.StatusPaymentRequired)
	}
	json.NewEncoder(w).Encode(toPaymentResponse(p))
}

func (h *PaymentHandlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPaymentResponse(p))
}

func (h *PaymentHandlers) GetPaymentByBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	p, err := h.svc.GetByBooking(r.Context(), bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPaymentResponse(p))
}

func (h *PaymentHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

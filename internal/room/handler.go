// Package room reacts to reservation requests from the booking side.
// It only validates that the room exists: double-booking is prevented
// by the booking service's own date-overlap check, because this service
// has no visibility into cross-service reservations.
package room

import (
	"context"
	"errors"
	"time"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/events"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

type Catalog interface {
	GetRoomByID(ctx context.Context, roomID int64) (*domain.Room, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Handler struct {
	catalog Catalog
	bus     Publisher
	logger  observability.Logger
}

func NewHandler(catalog Catalog, bus Publisher, logger observability.Logger) *Handler {
	return &Handler{catalog: catalog, bus: bus, logger: logger}
}

func (h *Handler) HandleReserveRequested(ctx context.Context, msg events.RoomReserveRequested) error {
	_, err := h.catalog.GetRoomByID(ctx, msg.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.WithField("room_id", msg.RoomID).Warn("reserve requested for unknown room")
			return h.bus.PublishJSON(ctx, events.KeyRoomReserveRejected, events.RoomReserveRejected{
				BookingID:  msg.BookingID,
				RoomID:     msg.RoomID,
				Reason:     "Room not found",
				RejectedAt: time.Now().UTC(),
			})
		}
		return err
	}

	return h.bus.PublishJSON(ctx, events.KeyRoomReserved, events.RoomReserved{
		BookingID:  msg.BookingID,
		RoomID:     msg.RoomID,
		ReservedAt: time.Now().UTC(),
	})
}

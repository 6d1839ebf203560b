package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bookingmicro/booking-saga/internal/observability"
)

// AuditLogger appends saga actions to a capped-style audit collection.
// Best effort: a failed write is logged, never blocks the saga.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditRecord struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id"`
	BookingID int64     `bson:"booking_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogAction(ctx context.Context, action, userID string, bookingID int64, data map[string]any) error {
	rec := AuditRecord{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		BookingID: bookingID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, rec)
	if err != nil {
		a.logger.Error("failed to insert audit record", err)
		return err
	}
	return nil
}

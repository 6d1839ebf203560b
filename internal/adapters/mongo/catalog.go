package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookingmicro/booking-saga/internal/domain"
	"github.com/bookingmicro/booking-saga/internal/observability"
)

// CatalogRepository reads the hotel room catalog. Hotels and rooms are
// administered by the catalog service; the saga only looks rooms up for
// existence and price.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("rooms"),
		logger: logger,
	}
}

type RoomDoc struct {
	ID          int64   `bson:"_id"`
	HotelID     int64   `bson:"hotel_id"`
	Number      string  `bson:"number"`
	Price       float64 `bson:"price"`
	Description string  `bson:"description,omitempty"`
}

func (d RoomDoc) toDomain() *domain.Room {
	return &domain.Room{
		ID:          d.ID,
		HotelID:     d.HotelID,
		Number:      d.Number,
		Price:       d.Price,
		Description: d.Description,
	}
}

func (c *CatalogRepository) GetRoomByID(ctx context.Context, roomID int64) (*domain.Room, error) {
	var doc RoomDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": roomID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get room", err)
		return nil, err
	}
	return doc.toDomain(), nil
}

func (c *CatalogRepository) RoomsByHotel(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	cur, err := c.coll.Find(ctx, bson.M{"hotel_id": hotelID})
	if err != nil {
		c.logger.Error("failed to list rooms", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []domain.Room
	for cur.Next(ctx) {
		var doc RoomDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rooms = append(rooms, *doc.toDomain())
	}
	return rooms, cur.Err()
}

// UpsertRoom seeds or updates a catalog entry. Used by fixtures and the
// catalog sync job, not by the saga itself.
func (c *CatalogRepository) UpsertRoom(ctx context.Context, room domain.Room) error {
	_, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": room.ID},
		bson.M{"$set": RoomDoc{
			ID:          room.ID,
			HotelID:     room.HotelID,
			Number:      room.Number,
			Price:       room.Price,
			Description: room.Description,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.Error("failed to upsert room", err)
	}
	return err
}

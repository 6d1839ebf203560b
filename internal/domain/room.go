package domain

type Room struct {
	ID          int64
	HotelID     int64
	Number      string
	Price       float64
	Description string
}

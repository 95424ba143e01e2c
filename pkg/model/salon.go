package model

import "time"

// Salon is a directory entry: where the barbers work, where it is on the
// map, and what it looks like. Barbers are embedded because they are only
// ever addressed through their salon; their IDs double as reservation
// resource ids.
type Salon struct {
	ID          string   `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string   `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Address     string   `json:"address" bson:"address" validate:"required,min=2,max=200"`
	City        string   `json:"city" bson:"city" validate:"required,min=2,max=64"`
	Phone       string   `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Timezone    string   `json:"timezone,omitempty" bson:"timezone,omitempty" validate:"omitempty,timezone"`
	Latitude    float64  `json:"latitude" bson:"latitude" validate:"min=-90,max=90"`
	Longitude   float64  `json:"longitude" bson:"longitude" validate:"min=-180,max=180"`
	Barbers     []Barber `json:"barbers,omitempty" bson:"barbers,omitempty" validate:"omitempty,dive"`
	PhotoURLs   []string `json:"photo_urls,omitempty" bson:"photo_urls,omitempty" validate:"omitempty,dive,url"`
	Rating      float64  `json:"rating" bson:"rating"`
	RatingCount int      `json:"rating_count" bson:"rating_count"`
	CreatedAt   time.Time `json:"created_at,omitempty" bson:"created_at"`
}

type Barber struct {
	ID       string `json:"id" bson:"id" validate:"required,min=1,max=64"`
	Name     string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	PhotoURL string `json:"photo_url,omitempty" bson:"photo_url,omitempty" validate:"omitempty,url"`
}

type SalonUpdate struct {
	Name      string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Address   string    `json:"address,omitempty" validate:"omitempty,min=2,max=200"`
	City      string    `json:"city,omitempty" validate:"omitempty,min=2,max=64"`
	Phone     string    `json:"phone,omitempty" validate:"omitempty,e164"`
	Latitude  *float64  `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64  `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Barbers   *[]Barber `json:"barbers,omitempty" validate:"omitempty,dive"`
}

// Review is retained indefinitely; the salon document carries the running
// rating aggregate so list pages never fan out into the reviews collection.
type Review struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SalonID   string    `json:"salon_id" bson:"salon_id" validate:"required,mongodb"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" validate:"required,min=1,max=64"`
	Rating    int       `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty" validate:"omitempty,max=1000"`
	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at"`
}

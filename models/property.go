package models

import "time"

// Property is the physical location a unit belongs to.
type Property struct {
	ID             string    `bson:"_id" json:"id"`
	OwnerID        string    `bson:"owner_id" json:"owner_id"`
	PropertyTypeID string    `bson:"property_type_id" json:"property_type_id"`
	Name           string    `bson:"name" json:"name" binding:"required,min=2,max=200"`
	City           string    `bson:"city" json:"city"`
	Address        string    `bson:"address" json:"address"`
	Latitude       float64   `bson:"latitude" json:"latitude"`
	Longitude      float64   `bson:"longitude" json:"longitude"`
	StarRating     int       `bson:"star_rating" json:"star_rating"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// PropertyType classifies properties (hotel, apartment building, resort, ...).
type PropertyType struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

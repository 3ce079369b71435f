package models

// Amenity is a searchable property/unit feature (wifi, parking, pool, ...).
type Amenity struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// Service is a bookable extra offered with a unit.
type Service struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

package models

import (
	"time"
)

// Unit is a single bookable inventory item belonging to a property.
type Unit struct {
	ID               string    `bson:"_id" json:"id"`
	PropertyID       string    `bson:"property_id" json:"property_id"`
	UnitTypeID       string    `bson:"unit_type_id" json:"unit_type_id"`
	Name             string    `bson:"name" json:"name" binding:"required,min=2,max=200"`
	MaxCapacity      int       `bson:"max_capacity" json:"max_capacity"`
	AdultsCapacity   int       `bson:"adults_capacity" json:"adults_capacity"`
	ChildrenCapacity int       `bson:"children_capacity" json:"children_capacity"`
	BasePrice        float64   `bson:"base_price" json:"base_price"`
	Currency         string    `bson:"currency" json:"currency"`
	IsApproved       bool      `bson:"is_approved" json:"is_approved"`
	IsFeatured       bool      `bson:"is_featured" json:"is_featured"`
	AverageRating    float64   `bson:"average_rating" json:"average_rating"`
	ViewCount        int64     `bson:"view_count" json:"view_count"`
	BookingCount     int64     `bson:"booking_count" json:"booking_count"`
	Amenities        []UnitAmenity      `bson:"amenities" json:"amenities"`
	Services         []UnitService      `bson:"services" json:"services"`
	FieldValues      []DynamicFieldValue `bson:"field_values" json:"field_values"`
	DeletedAt        *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// UnitAmenity links a unit to an amenity. IsAvailable tracks whether the
// amenity is currently offered; unavailable links stay on the unit for
// history but are excluded from search projection.
type UnitAmenity struct {
	AmenityID   string `bson:"amenity_id" json:"amenity_id"`
	IsAvailable bool   `bson:"is_available" json:"is_available"`
}

// UnitService links a unit to a bookable service (cleaning, breakfast, ...).
type UnitService struct {
	ServiceID string `bson:"service_id" json:"service_id"`
	IsActive  bool   `bson:"is_active" json:"is_active"`
}

// UnitType classifies units within a property (studio, suite, ...).
type UnitType struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

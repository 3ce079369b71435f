package models

import "time"

// ScheduleStatus is the availability state of one unit-day.
type ScheduleStatus string

const (
	ScheduleAvailable ScheduleStatus = "available"
	ScheduleBlocked   ScheduleStatus = "blocked"
	ScheduleBooked    ScheduleStatus = "booked"
)

// DailySchedule is the per-calendar-day availability/price record for a
// unit. Price and the other pointer fields carry "present means
// override" semantics: nil means the unit's fallback pricing rule
// applies, never zero.
type DailySchedule struct {
	ID          string         `bson:"_id" json:"id"`
	UnitID      string         `bson:"unit_id" json:"unit_id"`
	PropertyID  string         `bson:"property_id" json:"property_id"`
	Date        time.Time      `bson:"date" json:"date"`
	Status      ScheduleStatus `bson:"status" json:"status"`
	Price       *float64       `bson:"price,omitempty" json:"price,omitempty"`
	Currency    *string        `bson:"currency,omitempty" json:"currency,omitempty"`
	BookingID   *string        `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	PriceType   *string        `bson:"price_type,omitempty" json:"price_type,omitempty"`
	PricingTier *string        `bson:"pricing_tier,omitempty" json:"pricing_tier,omitempty"`
	Reason      *string        `bson:"reason,omitempty" json:"reason,omitempty"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updated_at"`
}

// Day returns the schedule date truncated to day granularity in UTC.
func (s DailySchedule) Day() time.Time {
	y, m, d := s.Date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

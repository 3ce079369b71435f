package search

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"booking-search-platform/models"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func ts(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func testAggregate() *UnitAggregate {
	return &UnitAggregate{
		Unit: &models.Unit{
			ID:               "unit-1",
			PropertyID:       "prop-1",
			UnitTypeID:       "ut-1",
			Name:             "Sea View Suite",
			MaxCapacity:      4,
			AdultsCapacity:   2,
			ChildrenCapacity: 2,
			BasePrice:        120,
			Currency:         "YER",
			IsApproved:       true,
			AverageRating:    4.5,
			ViewCount:        10,
			BookingCount:     3,
		},
		Property: &models.Property{
			ID:         "prop-1",
			OwnerID:    "owner-1",
			Name:       "Coral Hotel",
			City:       "Aden",
			Address:    "12 Corniche Road",
			Latitude:   12.7855,
			Longitude:  45.0187,
			StarRating: 4,
		},
		UnitType:     &models.UnitType{ID: "ut-1", Name: "Suite"},
		PropertyType: &models.PropertyType{ID: "pt-1", Name: "Hotel"},
	}
}

func TestBuildUnitDocumentNilMember(t *testing.T) {
	agg := testAggregate()
	agg.Property = nil

	_, err := BuildUnitDocument(agg, time.Now())
	if !errors.Is(err, ErrNilAggregateMember) {
		t.Fatalf("expected ErrNilAggregateMember, got %v", err)
	}

	var nilAgg *UnitAggregate
	if _, err := BuildUnitDocument(nilAgg, time.Now()); !errors.Is(err, ErrNilAggregateMember) {
		t.Fatalf("expected ErrNilAggregateMember for nil aggregate, got %v", err)
	}
}

func TestBuildUnitDocumentCoreFields(t *testing.T) {
	agg := testAggregate()
	indexedAt := ts("2026-03-01T10:30:00Z")

	doc, err := BuildUnitDocument(agg, indexedAt)
	if err != nil {
		t.Fatalf("BuildUnitDocument: %v", err)
	}

	if doc[FieldUnitID] != "unit-1" {
		t.Errorf("unitId = %v", doc[FieldUnitID])
	}
	if doc[FieldCity] != "Aden" {
		t.Errorf("city = %v", doc[FieldCity])
	}
	if doc[FieldIsApproved] != "1" {
		t.Errorf("isApproved = %v, want \"1\"", doc[FieldIsApproved])
	}
	if doc[FieldIsFeatured] != "0" {
		t.Errorf("isFeatured = %v, want \"0\"", doc[FieldIsFeatured])
	}
	if doc[FieldLocation] != "45.0187,12.7855" {
		t.Errorf("location = %v, want longitude first", doc[FieldLocation])
	}
	if doc[FieldIndexedAt] != indexedAt.Unix() {
		t.Errorf("indexedAt = %v, want %d", doc[FieldIndexedAt], indexedAt.Unix())
	}
}

func TestBuildUnitDocumentActiveJoinsOnly(t *testing.T) {
	agg := testAggregate()
	agg.Amenities = []AmenityLink{
		{Amenity: models.Amenity{ID: "a1", Name: "WiFi"}, IsAvailable: true},
		{Amenity: models.Amenity{ID: "a2", Name: "Pool"}, IsAvailable: false},
		{Amenity: models.Amenity{ID: "a3", Name: "Parking"}, IsAvailable: true},
	}
	agg.Services = []ServiceLink{
		{Service: models.Service{ID: "s1", Name: "Breakfast"}, IsActive: false},
		{Service: models.Service{ID: "s2", Name: "Cleaning"}, IsActive: true},
	}

	doc, err := BuildUnitDocument(agg, time.Now())
	if err != nil {
		t.Fatalf("BuildUnitDocument: %v", err)
	}

	gotAmenities := strings.Split(doc[FieldAmenityIDs].(string), IDSeparator)
	if len(gotAmenities) != 2 || gotAmenities[0] != "a1" || gotAmenities[1] != "a3" {
		t.Errorf("amenityIds = %v, want [a1 a3]", gotAmenities)
	}
	if names := doc[FieldAmenityNames].(string); strings.Contains(names, "Pool") {
		t.Errorf("amenityNames contains inactive amenity: %q", names)
	}
	if doc[FieldServiceIDs] != "s2" {
		t.Errorf("serviceIds = %v, want s2", doc[FieldServiceIDs])
	}
}

func TestProjectDynamicFields(t *testing.T) {
	agg := testAggregate()
	agg.Fields = []FieldEntry{
		{
			Definition: models.DynamicFieldDefinition{ID: "f1", Name: "Floor Number", TypeName: "number", IsSearchable: true, AppliesToUnit: true},
			Value:      "3",
		},
		{
			// Non-numeric value in a numeric field: must be omitted, not zeroed.
			Definition: models.DynamicFieldDefinition{ID: "f2", Name: "Ceiling Height", TypeName: "number", IsSearchable: true, AppliesToUnit: true},
			Value:      "tall",
		},
		{
			Definition: models.DynamicFieldDefinition{ID: "f3", Name: "View", TypeName: "text", IsSearchable: true, AppliesToUnit: true},
			Value:      "sea",
		},
		{
			Definition: models.DynamicFieldDefinition{ID: "f4", Name: "Internal Code", TypeName: "text", IsSearchable: false, AppliesToUnit: true},
			Value:      "X9",
		},
		{
			Definition: models.DynamicFieldDefinition{ID: "f5", Name: "Lobby Style", TypeName: "text", IsSearchable: true, AppliesToUnit: false},
			Value:      "modern",
		},
	}

	doc, err := BuildUnitDocument(agg, time.Now())
	if err != nil {
		t.Fatalf("BuildUnitDocument: %v", err)
	}

	if v, ok := doc["dfn_floor_number"]; !ok || v.(float64) != 3 {
		t.Errorf("dfn_floor_number = %v, ok=%v", v, ok)
	}
	if _, ok := doc["dfn_ceiling_height"]; ok {
		t.Errorf("unparseable numeric value must be omitted")
	}
	if doc["df_view"] != "sea" {
		t.Errorf("df_view = %v", doc["df_view"])
	}
	if _, ok := doc["df_internal_code"]; ok {
		t.Errorf("non-searchable field must not be projected")
	}
	if _, ok := doc["df_lobby_style"]; ok {
		t.Errorf("non-unit field must not be projected")
	}
}

func TestKeywordBagDedup(t *testing.T) {
	got := keywordBag("Coral Hotel", "  ", "coral hotel", "Aden", "Aden", "Suite")
	want := "Coral Hotel Aden Suite"
	if got != want {
		t.Fatalf("keywordBag = %q, want %q", got, want)
	}
}

func TestUnitSnapshotRoundTrip(t *testing.T) {
	agg := testAggregate()
	agg.Amenities = []AmenityLink{
		{Amenity: models.Amenity{ID: "a1", Name: "WiFi"}, IsAvailable: true},
	}

	doc, err := BuildUnitDocument(agg, time.Now())
	if err != nil {
		t.Fatalf("BuildUnitDocument: %v", err)
	}

	var snap unitSnapshot
	if err := json.Unmarshal([]byte(doc[FieldDocument].(string)), &snap); err != nil {
		t.Fatalf("snapshot not valid JSON: %v", err)
	}
	if snap.Unit.ID != "unit-1" || snap.Property.City != "Aden" {
		t.Errorf("snapshot lost data: %+v", snap)
	}
	if len(snap.AmenityNames) != 1 || snap.AmenityNames[0] != "WiFi" {
		t.Errorf("snapshot amenity names = %v", snap.AmenityNames)
	}
}

func TestBuildScheduleDocuments(t *testing.T) {
	agg := testAggregate()
	agg.Schedules = []models.DailySchedule{
		{
			ID:         "sch-1",
			UnitID:     "unit-1",
			PropertyID: "prop-1",
			Date:       ts("2026-03-05T14:45:00Z"),
			Status:     models.ScheduleAvailable,
			Price:      floatPtr(50),
			Currency:   strPtr("YER"),
		},
		{
			ID:         "sch-2",
			UnitID:     "unit-1",
			PropertyID: "prop-1",
			Date:       ts("2026-03-06T00:00:00Z"),
			Status:     models.ScheduleBooked,
			BookingID:  strPtr("bk-9"),
		},
	}

	docs, err := BuildScheduleDocuments(agg)
	if err != nil {
		t.Fatalf("BuildScheduleDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}

	first := docs[0]
	if first.ScheduleID != "sch-1" {
		t.Errorf("ScheduleID = %v", first.ScheduleID)
	}
	// dateTs is the day boundary, not the stored timestamp.
	if first.Fields[FieldDateTs] != ts("2026-03-05T00:00:00Z").Unix() {
		t.Errorf("dateTs = %v, want midnight UTC", first.Fields[FieldDateTs])
	}
	if first.Fields[FieldPrice] != 50.0 || first.Fields[FieldCurrency] != "YER" {
		t.Errorf("price/currency = %v/%v", first.Fields[FieldPrice], first.Fields[FieldCurrency])
	}
	if _, ok := first.Fields[FieldBookingID]; ok {
		t.Errorf("nil bookingId must be omitted")
	}

	second := docs[1]
	if second.Fields[FieldStatus] != "booked" {
		t.Errorf("status = %v", second.Fields[FieldStatus])
	}
	if _, ok := second.Fields[FieldPrice]; ok {
		t.Errorf("nil price must be omitted, not zero-filled")
	}
	if second.Fields[FieldBookingID] != "bk-9" {
		t.Errorf("bookingId = %v", second.Fields[FieldBookingID])
	}
}

// End-to-end projection of a small but realistic aggregate: an approved
// Aden unit with one searchable numeric field and three priced days.
func TestProjectionEndToEnd(t *testing.T) {
	agg := testAggregate()
	agg.Fields = []FieldEntry{
		{
			Definition: models.DynamicFieldDefinition{ID: "f1", Name: "Floor", TypeName: "number", IsSearchable: true, AppliesToUnit: true},
			Value:      "3",
		},
	}
	prices := []float64{50, 55, 60}
	for i, p := range prices {
		price := p
		agg.Schedules = append(agg.Schedules, models.DailySchedule{
			ID:         "sch-" + strings.Repeat("x", i+1),
			UnitID:     "unit-1",
			PropertyID: "prop-1",
			Date:       ts("2026-03-05T00:00:00Z").AddDate(0, 0, i),
			Status:     models.ScheduleAvailable,
			Price:      &price,
			Currency:   strPtr("YER"),
		})
	}

	doc, err := BuildUnitDocument(agg, time.Now())
	if err != nil {
		t.Fatalf("BuildUnitDocument: %v", err)
	}
	if doc[FieldCity] != "Aden" || doc[FieldMaxCapacity] != 4 {
		t.Errorf("unit doc fields: city=%v maxCapacity=%v", doc[FieldCity], doc[FieldMaxCapacity])
	}
	if doc["dfn_floor"] != 3.0 {
		t.Errorf("dfn_floor = %v", doc["dfn_floor"])
	}

	docs, err := BuildScheduleDocuments(agg)
	if err != nil {
		t.Fatalf("BuildScheduleDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d schedule docs, want 3", len(docs))
	}
	for i, d := range docs {
		if d.Fields[FieldPrice] != prices[i] {
			t.Errorf("day %d price = %v, want %v", i, d.Fields[FieldPrice], prices[i])
		}
		if d.Fields[FieldStatus] != "available" {
			t.Errorf("day %d status = %v", i, d.Fields[FieldStatus])
		}
	}
}

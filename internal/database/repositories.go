package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-search-platform/internal/search"
	"booking-search-platform/models"
)

// ErrUnitNotFound reports a unit that is missing or soft-deleted.
// Aliased from the search package so the orchestrator's errors.Is checks
// see the same sentinel.
var ErrUnitNotFound = search.ErrUnitNotFound

// Repositories reads the relational catalog the index is projected from.
// The search index is never the system of record; everything here is.
type Repositories struct {
	units      *mongo.Collection
	properties *mongo.Collection
	unitTypes  *mongo.Collection
	propTypes  *mongo.Collection
	amenities  *mongo.Collection
	services   *mongo.Collection
	fields     *mongo.Collection
	schedules  *mongo.Collection
}

func NewRepositories(client *mongo.Client, dbName string) *Repositories {
	db := client.Database(dbName)
	return &Repositories{
		units:      db.Collection("units"),
		properties: db.Collection("properties"),
		unitTypes:  db.Collection("unit_types"),
		propTypes:  db.Collection("property_types"),
		amenities:  db.Collection("amenities"),
		services:   db.Collection("services"),
		fields:     db.Collection("dynamic_fields"),
		schedules:  db.Collection("schedules"),
	}
}

// LoadUnitAggregate loads everything a projection needs for one unit:
// the unit row, its property/type rows, resolved amenity and service
// links, searchable field definitions with the unit's values, and the
// daily schedules inside [from, to).
func (r *Repositories) LoadUnitAggregate(ctx context.Context, unitID string, from, to time.Time) (*search.UnitAggregate, error) {
	var unit models.Unit
	err := r.units.FindOne(ctx, bson.M{"_id": unitID, "deleted_at": nil}).Decode(&unit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
		}
		return nil, fmt.Errorf("failed to load unit %s: %w", unitID, err)
	}

	var property models.Property
	if err := r.properties.FindOne(ctx, bson.M{"_id": unit.PropertyID}).Decode(&property); err != nil {
		return nil, fmt.Errorf("failed to load property %s: %w", unit.PropertyID, err)
	}

	var unitType models.UnitType
	if err := r.unitTypes.FindOne(ctx, bson.M{"_id": unit.UnitTypeID}).Decode(&unitType); err != nil {
		return nil, fmt.Errorf("failed to load unit type %s: %w", unit.UnitTypeID, err)
	}

	var propType models.PropertyType
	if err := r.propTypes.FindOne(ctx, bson.M{"_id": property.PropertyTypeID}).Decode(&propType); err != nil {
		return nil, fmt.Errorf("failed to load property type %s: %w", property.PropertyTypeID, err)
	}

	amenityLinks, err := r.resolveAmenities(ctx, unit.Amenities)
	if err != nil {
		return nil, err
	}

	serviceLinks, err := r.resolveServices(ctx, unit.Services)
	if err != nil {
		return nil, err
	}

	fieldEntries, err := r.resolveFieldValues(ctx, unit.FieldValues)
	if err != nil {
		return nil, err
	}

	schedules, err := r.LoadSchedules(ctx, unitID, from, to)
	if err != nil {
		return nil, err
	}

	return &search.UnitAggregate{
		Unit:         &unit,
		Property:     &property,
		UnitType:     &unitType,
		PropertyType: &propType,
		Amenities:    amenityLinks,
		Services:     serviceLinks,
		Fields:       fieldEntries,
		Schedules:    schedules,
	}, nil
}

func (r *Repositories) resolveAmenities(ctx context.Context, links []models.UnitAmenity) ([]search.AmenityLink, error) {
	if len(links) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.AmenityID)
	}

	cursor, err := r.amenities.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load amenities: %w", err)
	}
	var rows []models.Amenity
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode amenities: %w", err)
	}

	byID := make(map[string]models.Amenity, len(rows))
	for _, a := range rows {
		byID[a.ID] = a
	}

	out := make([]search.AmenityLink, 0, len(links))
	for _, l := range links {
		amenity, ok := byID[l.AmenityID]
		if !ok {
			continue
		}
		out = append(out, search.AmenityLink{Amenity: amenity, IsAvailable: l.IsAvailable})
	}
	return out, nil
}

func (r *Repositories) resolveServices(ctx context.Context, links []models.UnitService) ([]search.ServiceLink, error) {
	if len(links) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ServiceID)
	}

	cursor, err := r.services.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}
	var rows []models.Service
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}

	byID := make(map[string]models.Service, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}

	out := make([]search.ServiceLink, 0, len(links))
	for _, l := range links {
		service, ok := byID[l.ServiceID]
		if !ok {
			continue
		}
		out = append(out, search.ServiceLink{Service: service, IsActive: l.IsActive})
	}
	return out, nil
}

func (r *Repositories) resolveFieldValues(ctx context.Context, values []models.DynamicFieldValue) ([]search.FieldEntry, error) {
	if len(values) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.FieldID)
	}

	cursor, err := r.fields.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load field definitions: %w", err)
	}
	var defs []models.DynamicFieldDefinition
	if err := cursor.All(ctx, &defs); err != nil {
		return nil, fmt.Errorf("failed to decode field definitions: %w", err)
	}

	byID := make(map[string]models.DynamicFieldDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	out := make([]search.FieldEntry, 0, len(values))
	for _, v := range values {
		def, ok := byID[v.FieldID]
		if !ok {
			continue
		}
		out = append(out, search.FieldEntry{Definition: def, Value: v.Value})
	}
	return out, nil
}

// LoadSchedules returns the unit's daily schedules with date in [from, to).
func (r *Repositories) LoadSchedules(ctx context.Context, unitID string, from, to time.Time) ([]models.DailySchedule, error) {
	cursor, err := r.schedules.Find(ctx,
		bson.M{
			"unit_id": unitID,
			"date":    bson.M{"$gte": from, "$lt": to},
		},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules for unit %s: %w", unitID, err)
	}
	var rows []models.DailySchedule
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}
	return rows, nil
}

// ListUnitIDsByField returns the approved, non-deleted units carrying a
// value for the given dynamic field definition.
func (r *Repositories) ListUnitIDsByField(ctx context.Context, fieldID string) ([]string, error) {
	return r.listUnitIDs(ctx, bson.M{
		"field_values.field_id": fieldID,
		"is_approved":           true,
		"deleted_at":            nil,
	})
}

// ListApprovedUnitIDs returns every unit eligible for indexing. Used by
// full rebuilds and horizon maintenance.
func (r *Repositories) ListApprovedUnitIDs(ctx context.Context) ([]string, error) {
	return r.listUnitIDs(ctx, bson.M{"is_approved": true, "deleted_at": nil})
}

func (r *Repositories) listUnitIDs(ctx context.Context, filter bson.M) ([]string, error) {
	cursor, err := r.units.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode unit ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// ListScheduleIDsForUnit returns every schedule id belonging to a unit,
// regardless of horizon. Used when a unit's documents are removed.
func (r *Repositories) ListScheduleIDsForUnit(ctx context.Context, unitID string) ([]string, error) {
	cursor, err := r.schedules.Find(ctx,
		bson.M{"unit_id": unitID},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules for unit %s: %w", unitID, err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode schedule ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// ListScheduleIDsBefore returns schedule ids whose day falls strictly
// before the cutoff. Horizon maintenance evicts their documents.
func (r *Repositories) ListScheduleIDsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	cursor, err := r.schedules.Find(ctx,
		bson.M{"date": bson.M{"$lt": cutoff}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode schedule ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// FindDanglingScheduleIDs returns schedules whose unit row no longer
// exists. A dangling schedule is a consistency defect to surface, not
// something to index around.
func (r *Repositories) FindDanglingScheduleIDs(ctx context.Context, limit int64) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         "units",
			"localField":   "unit_id",
			"foreignField": "_id",
			"as":           "unit",
		}}},
		{{Key: "$match", Value: bson.M{"unit": bson.M{"$size": 0}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.schedules.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for dangling schedules: %w", err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode dangling schedule ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

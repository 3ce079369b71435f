package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"booking-search-platform/models"
)

// ErrNilAggregateMember reports a projection attempt over a partially
// loaded aggregate. This is a caller bug, never retried: a document
// built from a partial aggregate would silently corrupt the index.
var ErrNilAggregateMember = errors.New("required aggregate member is nil")

// AmenityLink pairs an amenity with its per-unit availability flag.
type AmenityLink struct {
	Amenity     models.Amenity
	IsAvailable bool
}

// ServiceLink pairs a service with its per-unit active flag.
type ServiceLink struct {
	Service  models.Service
	IsActive bool
}

// FieldEntry pairs a dynamic field definition with the unit's stored value.
type FieldEntry struct {
	Definition models.DynamicFieldDefinition
	Value      string
}

// UnitAggregate is the fully loaded in-memory state a projection runs
// over. The projector performs no lazy fetches: everything it needs must
// already be here.
type UnitAggregate struct {
	Unit         *models.Unit
	Property     *models.Property
	UnitType     *models.UnitType
	PropertyType *models.PropertyType
	Amenities    []AmenityLink
	Services     []ServiceLink
	Fields       []FieldEntry
	Schedules    []models.DailySchedule
}

func (agg *UnitAggregate) validate() error {
	switch {
	case agg == nil:
		return fmt.Errorf("aggregate: %w", ErrNilAggregateMember)
	case agg.Unit == nil:
		return fmt.Errorf("unit: %w", ErrNilAggregateMember)
	case agg.Property == nil:
		return fmt.Errorf("property: %w", ErrNilAggregateMember)
	case agg.UnitType == nil:
		return fmt.Errorf("unit type: %w", ErrNilAggregateMember)
	case agg.PropertyType == nil:
		return fmt.Errorf("property type: %w", ErrNilAggregateMember)
	}
	return nil
}

// ScheduleDocument is one projected daily-schedule field map plus the
// identity needed to key it.
type ScheduleDocument struct {
	ScheduleID string
	Fields     map[string]interface{}
}

// unitSnapshot is the denormalized hydration blob stored alongside the
// indexed fields so the query engine can render results without a
// second lookup.
type unitSnapshot struct {
	Unit         *models.Unit         `json:"unit"`
	Property     *models.Property     `json:"property"`
	UnitType     *models.UnitType     `json:"unit_type"`
	PropertyType *models.PropertyType `json:"property_type"`
	AmenityNames []string             `json:"amenity_names"`
	ServiceNames []string             `json:"service_names"`
}

// BuildUnitDocument projects a fully loaded aggregate into the flat unit
// document field map. indexedAt becomes the document's index timestamp;
// passing it in keeps the projection deterministic.
func BuildUnitDocument(agg *UnitAggregate, indexedAt time.Time) (map[string]interface{}, error) {
	if err := agg.validate(); err != nil {
		return nil, err
	}

	unit := agg.Unit
	prop := agg.Property

	amenityIDs, amenityNames := activeAmenities(agg.Amenities)
	serviceIDs, serviceNames := activeServices(agg.Services)

	doc := map[string]interface{}{
		FieldUnitID:           unit.ID,
		FieldPropertyID:       unit.PropertyID,
		FieldOwnerID:          prop.OwnerID,
		FieldUnitName:         unit.Name,
		FieldPropertyName:     prop.Name,
		FieldCity:             prop.City,
		FieldAddress:          prop.Address,
		FieldPropertyTypeID:   agg.PropertyType.ID,
		FieldPropertyTypeName: agg.PropertyType.Name,
		FieldUnitTypeID:       agg.UnitType.ID,
		FieldUnitTypeName:     agg.UnitType.Name,
		FieldLocation:         geoPoint(prop.Longitude, prop.Latitude),
		FieldLatitude:         prop.Latitude,
		FieldLongitude:        prop.Longitude,
		FieldMaxCapacity:      unit.MaxCapacity,
		FieldAdultsCapacity:   unit.AdultsCapacity,
		FieldChildrenCapacity: unit.ChildrenCapacity,
		FieldBasePrice:        unit.BasePrice,
		FieldCurrency:         unit.Currency,
		FieldStarRating:       prop.StarRating,
		FieldAverageRating:    unit.AverageRating,
		FieldIsApproved:       boolField(unit.IsApproved),
		FieldIsFeatured:       boolField(unit.IsFeatured),
		FieldAmenityIDs:       strings.Join(amenityIDs, IDSeparator),
		FieldAmenityNames:     strings.Join(amenityNames, " "),
		FieldServiceIDs:       strings.Join(serviceIDs, IDSeparator),
		FieldServiceNames:     strings.Join(serviceNames, " "),
		FieldViewCount:        unit.ViewCount,
		FieldBookingCount:     unit.BookingCount,
		FieldIndexedAt:        indexedAt.Unix(),
	}

	doc[FieldSearchKeywords] = keywordBag(
		prop.Name, unit.Name, prop.City,
		agg.PropertyType.Name, agg.UnitType.Name, prop.Address,
		strings.Join(amenityNames, " "), strings.Join(serviceNames, " "),
	)

	projectDynamicFields(doc, agg.Fields)

	snapshot, err := json.Marshal(unitSnapshot{
		Unit:         unit,
		Property:     prop,
		UnitType:     agg.UnitType,
		PropertyType: agg.PropertyType,
		AmenityNames: amenityNames,
		ServiceNames: serviceNames,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize unit snapshot: %w", err)
	}
	doc[FieldDocument] = string(snapshot)

	return doc, nil
}

// BuildScheduleDocuments projects the aggregate's daily schedules into
// per-day field maps. Optional source values are omitted from the map
// entirely; absence means "use the unit's fallback pricing rule".
func BuildScheduleDocuments(agg *UnitAggregate) ([]ScheduleDocument, error) {
	if err := agg.validate(); err != nil {
		return nil, err
	}

	docs := make([]ScheduleDocument, 0, len(agg.Schedules))
	for _, s := range agg.Schedules {
		fields := map[string]interface{}{
			FieldScheduleID: s.ID,
			FieldUnitID:     s.UnitID,
			FieldPropertyID: s.PropertyID,
			FieldDateTs:     s.Day().Unix(),
			FieldStatus:     string(s.Status),
		}
		if s.Price != nil {
			fields[FieldPrice] = *s.Price
		}
		if s.Currency != nil {
			fields[FieldCurrency] = *s.Currency
		}
		if s.BookingID != nil {
			fields[FieldBookingID] = *s.BookingID
		}
		if s.PriceType != nil {
			fields[FieldPriceType] = *s.PriceType
		}
		if s.PricingTier != nil {
			fields[FieldPricingTier] = *s.PricingTier
		}
		if s.Reason != nil {
			fields[FieldReason] = *s.Reason
		}
		docs = append(docs, ScheduleDocument{ScheduleID: s.ID, Fields: fields})
	}

	return docs, nil
}

// projectDynamicFields adds one entry per searchable, unit-applicable
// dynamic field. Numeric-typed definitions get the dfn_* variant after
// an invariant decimal parse; a value that does not parse is omitted,
// never zero-filled. All other types are stored as-is under df_*.
func projectDynamicFields(doc map[string]interface{}, fields []FieldEntry) {
	for _, entry := range fields {
		def := entry.Definition
		if !def.IsSearchable || !def.AppliesToUnit {
			continue
		}

		switch def.Type() {
		case models.FieldTypeNumber:
			v, err := strconv.ParseFloat(strings.TrimSpace(entry.Value), 64)
			if err != nil {
				continue
			}
			doc[DynamicNumericField(def.Name)] = v
		default:
			doc[DynamicTextField(def.Name)] = entry.Value
		}
	}
}

func activeAmenities(links []AmenityLink) (ids, names []string) {
	for _, l := range links {
		if !l.IsAvailable {
			continue
		}
		ids = append(ids, l.Amenity.ID)
		names = append(names, l.Amenity.Name)
	}
	return ids, names
}

func activeServices(links []ServiceLink) (ids, names []string) {
	for _, l := range links {
		if !l.IsActive {
			continue
		}
		ids = append(ids, l.Service.ID)
		names = append(names, l.Service.Name)
	}
	return ids, names
}

// geoPoint renders the combined geo field as "longitude,latitude", the
// order the store's geo queries expect.
func geoPoint(lon, lat float64) string {
	return strconv.FormatFloat(lon, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// keywordBag joins the given values into the free-text ranking bag:
// trimmed, blanks dropped, case-insensitively de-duplicated, original
// order preserved.
func keywordBag(values ...string) string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return strings.Join(out, " ")
}

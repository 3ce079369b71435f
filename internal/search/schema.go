package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Index names and key prefixes. Both are part of the wire contract with
// the query engine: changing either requires a coordinated reindex.
const (
	UnitIndexName     = "idx:units"
	ScheduleIndexName = "idx:schedules"

	UnitKeyPrefix     = "unit:"
	ScheduleKeyPrefix = "period:schedule:"
)

// Unit document field names. The projector and the query engine must
// reference these constants exclusively; no field name is spelled out
// anywhere else.
const (
	FieldUnitID           = "unitId"
	FieldPropertyID       = "propertyId"
	FieldOwnerID          = "ownerId"
	FieldUnitName         = "unitName"
	FieldPropertyName     = "propertyName"
	FieldCity             = "city"
	FieldAddress          = "address"
	FieldPropertyTypeID   = "propertyTypeId"
	FieldPropertyTypeName = "propertyTypeName"
	FieldUnitTypeID       = "unitTypeId"
	FieldUnitTypeName     = "unitTypeName"
	FieldLocation         = "location"
	FieldLatitude         = "latitude"
	FieldLongitude        = "longitude"
	FieldMaxCapacity      = "maxCapacity"
	FieldAdultsCapacity   = "adultsCapacity"
	FieldChildrenCapacity = "childrenCapacity"
	FieldBasePrice        = "basePrice"
	FieldCurrency         = "currency"
	FieldStarRating       = "starRating"
	FieldAverageRating    = "averageRating"
	FieldIsApproved       = "isApproved"
	FieldIsFeatured       = "isFeatured"
	FieldAmenityIDs       = "amenityIds"
	FieldAmenityNames     = "amenityNames"
	FieldServiceIDs       = "serviceIds"
	FieldServiceNames     = "serviceNames"
	FieldViewCount        = "viewCount"
	FieldBookingCount     = "bookingCount"
	FieldIndexedAt        = "indexedAt"
	FieldSearchKeywords   = "searchKeywords"
	FieldDocument         = "document"
)

// Daily-schedule document field names.
const (
	FieldScheduleID  = "scheduleId"
	FieldDateTs      = "dateTs"
	FieldStatus      = "status"
	FieldPrice       = "price"
	FieldBookingID   = "bookingId"
	FieldPriceType   = "priceType"
	FieldPricingTier = "pricingTier"
	FieldReason      = "reason"
)

// Separator for id-list fields (amenityIds, serviceIds). Matches the tag
// separator declared in the index definition.
const IDSeparator = ","

// Dynamic field name prefixes: dfn_* carries the numeric variant,
// df_* the text variant.
const (
	DynamicNumericPrefix = "dfn_"
	DynamicTextPrefix    = "df_"
)

// FieldKind is the closed set of index field kinds.
type FieldKind int

const (
	KindTag FieldKind = iota
	KindNumeric
	KindGeo
	KindText
)

func (k FieldKind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindNumeric:
		return "numeric"
	case KindGeo:
		return "geo"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// FieldSpec describes one indexed field of a document kind.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Sortable bool
	Weight   float64 // text fields only; 0 means default weight
}

// UnitIndexFields is the index definition for unit documents. The
// denormalized document blob and the per-unit dynamic fields are stored
// on the hash but not declared here; dynamic fields are matched by the
// query engine through the dfn_*/df_* naming convention.
func UnitIndexFields() []FieldSpec {
	return []FieldSpec{
		{Name: FieldUnitID, Kind: KindTag},
		{Name: FieldPropertyID, Kind: KindTag},
		{Name: FieldOwnerID, Kind: KindTag},
		{Name: FieldUnitName, Kind: KindText, Weight: 5},
		{Name: FieldPropertyName, Kind: KindText, Weight: 5},
		{Name: FieldCity, Kind: KindTag},
		{Name: FieldAddress, Kind: KindText},
		{Name: FieldPropertyTypeID, Kind: KindTag},
		{Name: FieldPropertyTypeName, Kind: KindText},
		{Name: FieldUnitTypeID, Kind: KindTag},
		{Name: FieldUnitTypeName, Kind: KindText},
		{Name: FieldLocation, Kind: KindGeo},
		{Name: FieldLatitude, Kind: KindNumeric, Sortable: true},
		{Name: FieldLongitude, Kind: KindNumeric, Sortable: true},
		{Name: FieldMaxCapacity, Kind: KindNumeric, Sortable: true},
		{Name: FieldAdultsCapacity, Kind: KindNumeric, Sortable: true},
		{Name: FieldChildrenCapacity, Kind: KindNumeric, Sortable: true},
		{Name: FieldBasePrice, Kind: KindNumeric, Sortable: true},
		{Name: FieldCurrency, Kind: KindTag},
		{Name: FieldStarRating, Kind: KindNumeric, Sortable: true},
		{Name: FieldAverageRating, Kind: KindNumeric, Sortable: true},
		{Name: FieldIsApproved, Kind: KindTag},
		{Name: FieldIsFeatured, Kind: KindTag},
		{Name: FieldAmenityIDs, Kind: KindTag},
		{Name: FieldAmenityNames, Kind: KindText, Weight: 2},
		{Name: FieldServiceIDs, Kind: KindTag},
		{Name: FieldServiceNames, Kind: KindText, Weight: 2},
		{Name: FieldViewCount, Kind: KindNumeric, Sortable: true},
		{Name: FieldBookingCount, Kind: KindNumeric, Sortable: true},
		{Name: FieldIndexedAt, Kind: KindNumeric, Sortable: true},
		{Name: FieldSearchKeywords, Kind: KindText},
	}
}

// ScheduleIndexFields is the index definition for daily-schedule documents.
func ScheduleIndexFields() []FieldSpec {
	return []FieldSpec{
		{Name: FieldScheduleID, Kind: KindTag},
		{Name: FieldUnitID, Kind: KindTag},
		{Name: FieldPropertyID, Kind: KindTag},
		{Name: FieldDateTs, Kind: KindNumeric, Sortable: true},
		{Name: FieldStatus, Kind: KindTag},
		{Name: FieldPrice, Kind: KindNumeric, Sortable: true},
		{Name: FieldCurrency, Kind: KindTag},
		{Name: FieldBookingID, Kind: KindTag},
		{Name: FieldPriceType, Kind: KindTag},
		{Name: FieldPricingTier, Kind: KindTag},
	}
}

// UnitKey builds the store key for a unit document.
func UnitKey(unitID string) string {
	return UnitKeyPrefix + unitID
}

// ScheduleKey builds the store key for a daily-schedule document.
func ScheduleKey(scheduleID string) string {
	return ScheduleKeyPrefix + scheduleID
}

// NormalizeFieldName maps a dynamic field's display name onto the
// stable, store-safe name used in document fields: lowercased, runs of
// non-alphanumeric characters collapsed to single underscores.
func NormalizeFieldName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// DynamicNumericField returns the numeric-variant field name for a
// dynamic field.
func DynamicNumericField(name string) string {
	return DynamicNumericPrefix + NormalizeFieldName(name)
}

// DynamicTextField returns the text-variant field name for a dynamic field.
func DynamicTextField(name string) string {
	return DynamicTextPrefix + NormalizeFieldName(name)
}

func fieldSchema(spec FieldSpec) *redis.FieldSchema {
	fs := &redis.FieldSchema{FieldName: spec.Name, Sortable: spec.Sortable}
	switch spec.Kind {
	case KindTag:
		fs.FieldType = redis.SearchFieldTypeTag
		fs.Separator = IDSeparator
	case KindNumeric:
		fs.FieldType = redis.SearchFieldTypeNumeric
	case KindGeo:
		fs.FieldType = redis.SearchFieldTypeGeo
	case KindText:
		fs.FieldType = redis.SearchFieldTypeText
		if spec.Weight > 0 {
			fs.Weight = spec.Weight
		}
	}
	return fs
}

func fieldSchemas(specs []FieldSpec) []*redis.FieldSchema {
	out := make([]*redis.FieldSchema, 0, len(specs))
	for _, spec := range specs {
		out = append(out, fieldSchema(spec))
	}
	return out
}

// EnsureIndexes creates the two search index definitions if they do not
// exist yet. An already-existing index is not an error; any other
// failure is returned so startup-time schema creation fails loudly.
func EnsureIndexes(ctx context.Context, rdb *redis.Client) error {
	err := rdb.FTCreate(ctx, UnitIndexName,
		&redis.FTCreateOptions{OnHash: true, Prefix: []interface{}{UnitKeyPrefix}},
		fieldSchemas(UnitIndexFields())...,
	).Err()
	if err != nil && !isIndexExists(err) {
		return fmt.Errorf("failed to create unit index: %w", err)
	}

	err = rdb.FTCreate(ctx, ScheduleIndexName,
		&redis.FTCreateOptions{OnHash: true, Prefix: []interface{}{ScheduleKeyPrefix}},
		fieldSchemas(ScheduleIndexFields())...,
	).Err()
	if err != nil && !isIndexExists(err) {
		return fmt.Errorf("failed to create schedule index: %w", err)
	}

	return nil
}

// DropIndexes removes both index definitions. With deleteDocs the
// underlying documents are deleted as well, which forces a full rebuild.
func DropIndexes(ctx context.Context, rdb *redis.Client, deleteDocs bool) error {
	opts := &redis.FTDropIndexOptions{DeleteDocs: deleteDocs}

	err := rdb.FTDropIndexWithArgs(ctx, UnitIndexName, opts).Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("failed to drop unit index: %w", err)
	}

	err = rdb.FTDropIndexWithArgs(ctx, ScheduleIndexName, opts).Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("failed to drop schedule index: %w", err)
	}

	return nil
}

func isIndexExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "index already exists")
}

func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

package search

import (
	"strings"
	"testing"
)

func TestKeyBuilders(t *testing.T) {
	if got := UnitKey("u-42"); got != "unit:u-42" {
		t.Fatalf("UnitKey = %q", got)
	}
	if got := ScheduleKey("s-7"); got != "period:schedule:s-7" {
		t.Fatalf("ScheduleKey = %q", got)
	}
	if !strings.HasPrefix(UnitKey("x"), UnitKeyPrefix) {
		t.Fatalf("unit key must carry the index prefix")
	}
	if !strings.HasPrefix(ScheduleKey("x"), ScheduleKeyPrefix) {
		t.Fatalf("schedule key must carry the index prefix")
	}
}

func TestNormalizeFieldName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Floor Number", "floor_number"},
		{"  Floor  Number  ", "floor_number"},
		{"Wi-Fi Speed (Mbps)", "wi_fi_speed_mbps"},
		{"already_normal", "already_normal"},
		{"ÇafÉ", "af"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeFieldName(c.in); got != c.want {
			t.Errorf("NormalizeFieldName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDynamicFieldNames(t *testing.T) {
	if got := DynamicNumericField("Floor Number"); got != "dfn_floor_number" {
		t.Fatalf("DynamicNumericField = %q", got)
	}
	if got := DynamicTextField("View"); got != "df_view" {
		t.Fatalf("DynamicTextField = %q", got)
	}
}

func TestIndexFieldDefinitions(t *testing.T) {
	unitFields := UnitIndexFields()
	names := make(map[string]FieldSpec, len(unitFields))
	for _, f := range unitFields {
		if _, dup := names[f.Name]; dup {
			t.Errorf("duplicate unit index field %q", f.Name)
		}
		names[f.Name] = f
	}

	if names[FieldLocation].Kind != KindGeo {
		t.Errorf("location must be a geo field")
	}
	if names[FieldCity].Kind != KindTag {
		t.Errorf("city must be a tag field")
	}
	if !names[FieldBasePrice].Sortable {
		t.Errorf("basePrice must be sortable")
	}
	if names[FieldUnitName].Weight != 5 {
		t.Errorf("unitName weight = %v, want 5", names[FieldUnitName].Weight)
	}
	// The snapshot blob is stored but never declared in the index.
	if _, ok := names[FieldDocument]; ok {
		t.Errorf("document blob must not be an indexed field")
	}

	schedFields := ScheduleIndexFields()
	sched := make(map[string]FieldSpec, len(schedFields))
	for _, f := range schedFields {
		sched[f.Name] = f
	}
	if sched[FieldDateTs].Kind != KindNumeric || !sched[FieldDateTs].Sortable {
		t.Errorf("dateTs must be sortable numeric")
	}
	if sched[FieldStatus].Kind != KindTag {
		t.Errorf("status must be a tag field")
	}
}

func TestIndexExistsDetection(t *testing.T) {
	if !isIndexExists(errTest("Index already exists")) {
		t.Errorf("case-insensitive match expected")
	}
	if isIndexExists(nil) {
		t.Errorf("nil error is not index-exists")
	}
	if !isUnknownIndex(errTest("Unknown index name")) {
		t.Errorf("unknown index not detected")
	}
	if !isUnknownIndex(errTest("no such index")) {
		t.Errorf("no-such-index variant not detected")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

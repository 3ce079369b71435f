package models

import (
	"testing"
	"time"
)

func TestParseDynamicFieldType(t *testing.T) {
	cases := map[string]DynamicFieldType{
		"number":   FieldTypeNumber,
		"numeric":  FieldTypeNumber,
		"decimal":  FieldTypeNumber,
		"integer":  FieldTypeNumber,
		"boolean":  FieldTypeBoolean,
		"select":   FieldTypeSelect,
		"text":     FieldTypeText,
		"anything": FieldTypeText, // unknown catalog types degrade to text
	}
	for in, want := range cases {
		if got := ParseDynamicFieldType(in); got != want {
			t.Errorf("ParseDynamicFieldType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestScheduleDay(t *testing.T) {
	d, _ := time.Parse(time.RFC3339, "2026-03-05T23:10:00+03:00")
	s := DailySchedule{Date: d}

	got := s.Day()
	want := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Day() = %v, want %v", got, want)
	}
}

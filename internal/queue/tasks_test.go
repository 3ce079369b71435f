package queue

import (
	"encoding/json"
	"testing"
)

func TestTaskPayloads(t *testing.T) {
	task, err := NewReindexUnitTask("unit-9")
	if err != nil {
		t.Fatalf("NewReindexUnitTask: %v", err)
	}
	if task.Type() != TaskReindexUnit {
		t.Errorf("type = %s", task.Type())
	}
	var p ReindexUnitPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.UnitID != "unit-9" {
		t.Errorf("unit_id = %s", p.UnitID)
	}

	fieldTask, err := NewReindexFieldTask("field-3")
	if err != nil {
		t.Fatalf("NewReindexFieldTask: %v", err)
	}
	var fp ReindexFieldPayload
	if err := json.Unmarshal(fieldTask.Payload(), &fp); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if fp.FieldID != "field-3" {
		t.Errorf("field_id = %s", fp.FieldID)
	}
}

package repos

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMergeStageRecord_LaterWritesWinPerField(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := MergeStageRecord(nil, "waiting", map[string]interface{}{"a": 1}, now)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second, err := MergeStageRecord(first, "completed", map[string]interface{}{"b": 2}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(second, &got); err != nil {
		t.Fatalf("unmarshal merged record: %v", err)
	}
	if got["a"] != float64(1) {
		t.Fatalf("earlier field erased: %#v", got)
	}
	if got["b"] != float64(2) {
		t.Fatalf("later field missing: %#v", got)
	}
	if got["status"] != "completed" {
		t.Fatalf("status not overwritten: %#v", got)
	}
}

func TestMergeStageRecord_SameKeyLaterWins(t *testing.T) {
	now := time.Now()
	first, err := MergeStageRecord(nil, "waiting", map[string]interface{}{"annotation": "draft"}, now)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second, err := MergeStageRecord(first, "completed", map[string]interface{}{"annotation": "ok"}, now)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(second, &got); err != nil {
		t.Fatalf("unmarshal merged record: %v", err)
	}
	if got["annotation"] != "ok" {
		t.Fatalf("later write should take precedence: %#v", got)
	}
}

func TestMergeStageRecord_RejectsCorruptExisting(t *testing.T) {
	if _, err := MergeStageRecord([]byte("{not json"), "active", nil, time.Now()); err == nil {
		t.Fatal("expected error for corrupt existing record")
	}
}

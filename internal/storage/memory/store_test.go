package memory

import (
	"context"
	"testing"

	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

func TestMemoryStore_RecordAndList(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		err := store.RecordPrediction(ctx, &storage.PredictionRecord{
			ID:        id,
			SessionID: "sess-1",
			Trigger:   storage.TriggerEdit,
			Status:    "ok",
		})
		if err != nil {
			t.Fatalf("RecordPrediction() error = %v", err)
		}
	}

	records, err := store.ListPredictions(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}
	if records[0].ID != "c" {
		t.Errorf("first record = %s, want newest (c)", records[0].ID)
	}

	limited, err := store.ListPredictions(ctx, "sess-1", 1)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Errorf("limited = %+v, want single newest record", limited)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.RecordPrediction(ctx, &storage.PredictionRecord{
		ID:        "a",
		SessionID: "sess-1",
		Status:    "ok",
	}); err != nil {
		t.Fatalf("RecordPrediction() error = %v", err)
	}

	records, _ := store.ListPredictions(ctx, "sess-1", 0)
	records[0].Status = "mutated"

	again, _ := store.ListPredictions(ctx, "sess-1", 0)
	if again[0].Status != "ok" {
		t.Error("store state leaked through returned record")
	}
}

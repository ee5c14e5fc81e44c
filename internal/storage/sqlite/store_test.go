package sqlite

import (
	"context"
	"testing"

	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

func TestSQLiteStore_RecordAndList(t *testing.T) {
	store, err := New("file:predlog1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	first := &storage.PredictionRecord{
		ID:          "rec-1",
		SessionID:   "sess-1",
		CustomerID:  "C001",
		Trigger:     storage.TriggerBaseline,
		Request:     `{"tenure_months":2}`,
		Response:    `{"churn_probability":0.82}`,
		Probability: 0.82,
		Status:      "ok",
		DurationNS:  1500,
	}
	if err := store.RecordPrediction(ctx, first); err != nil {
		t.Fatalf("RecordPrediction() error = %v", err)
	}

	second := &storage.PredictionRecord{
		ID:          "rec-2",
		SessionID:   "sess-1",
		CustomerID:  "C001",
		Trigger:     storage.TriggerOffer,
		OfferID:     "service_recovery",
		Probability: 0.64,
		Delta:       -0.18,
		Status:      "ok",
	}
	if err := store.RecordPrediction(ctx, second); err != nil {
		t.Fatalf("RecordPrediction() error = %v", err)
	}

	records, err := store.ListPredictions(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}

	// Newest first
	if records[0].ID != "rec-2" {
		t.Errorf("first record = %s, want rec-2", records[0].ID)
	}
	if records[0].Trigger != storage.TriggerOffer || records[0].OfferID != "service_recovery" {
		t.Errorf("unexpected offer record: %+v", records[0])
	}
	if records[0].Delta != -0.18 {
		t.Errorf("Delta = %v, want -0.18", records[0].Delta)
	}
	if records[1].Request != `{"tenure_months":2}` {
		t.Errorf("Request = %q", records[1].Request)
	}
}

func TestSQLiteStore_RecordsFailure(t *testing.T) {
	store, err := New("file:predlog2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec := &storage.PredictionRecord{
		ID:           "rec-err",
		SessionID:    "sess-2",
		CustomerID:   "C002",
		Trigger:      storage.TriggerEdit,
		Status:       "error",
		ErrorKind:    "network",
		ErrorMessage: "connection refused",
	}
	if err := store.RecordPrediction(ctx, rec); err != nil {
		t.Fatalf("RecordPrediction() error = %v", err)
	}

	records, err := store.ListPredictions(ctx, "sess-2", 0)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	if records[0].ErrorKind != "network" || records[0].Status != "error" {
		t.Errorf("unexpected failure record: %+v", records[0])
	}
}

func TestSQLiteStore_ListLimitAndIsolation(t *testing.T) {
	store, err := New("file:predlog3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec := &storage.PredictionRecord{
			ID:         "rec-" + string(rune('a'+i)),
			SessionID:  "sess-3",
			CustomerID: "C003",
			Trigger:    storage.TriggerEdit,
			Status:     "ok",
		}
		if err := store.RecordPrediction(ctx, rec); err != nil {
			t.Fatalf("RecordPrediction() error = %v", err)
		}
	}

	records, err := store.ListPredictions(ctx, "sess-3", 2)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("limited record count = %d, want 2", len(records))
	}

	other, err := store.ListPredictions(ctx, "sess-unknown", 0)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unknown session record count = %d, want 0", len(other))
	}
}

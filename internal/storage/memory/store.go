// Package memory is an in-memory implementation of the prediction log,
// used when no durable storage is configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

// Store is an in-memory implementation of PredictionLog.
type Store struct {
	mu      sync.RWMutex
	records map[string][]*storage.PredictionRecord // keyed by session ID
}

var _ storage.PredictionLog = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string][]*storage.PredictionRecord),
	}
}

// RecordPrediction stores one prediction attempt.
func (s *Store) RecordPrediction(_ context.Context, rec *storage.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	clone := *rec
	s.records[rec.SessionID] = append(s.records[rec.SessionID], &clone)
	return nil
}

// ListPredictions returns the most recent records for a session, newest first.
func (s *Store) ListPredictions(_ context.Context, sessionID string, limit int) ([]*storage.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.records[sessionID]
	out := make([]*storage.PredictionRecord, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		clone := *stored[i]
		out = append(out, &clone)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

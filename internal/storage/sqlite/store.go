// Package sqlite is a SQLite implementation of the prediction log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

// Store is a SQLite implementation of PredictionLog.
type Store struct {
	db *sql.DB
}

var _ storage.PredictionLog = (*Store)(nil)

// New creates a new SQLite store at the given path. In-memory databases
// (file:...?mode=memory) are supported for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			trigger_type TEXT NOT NULL,
			offer_id TEXT,
			request TEXT,
			response TEXT,
			probability REAL,
			delta REAL,
			status TEXT NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_session ON predictions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_customer ON predictions(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_status ON predictions(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return nil
}

// RecordPrediction stores one prediction attempt.
func (s *Store) RecordPrediction(ctx context.Context, rec *storage.PredictionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, session_id, customer_id, trigger_type, offer_id,
			request, response, probability, delta,
			status, error_kind, error_message, duration_ns, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.CustomerID, string(rec.Trigger), rec.OfferID,
		rec.Request, rec.Response, rec.Probability, rec.Delta,
		rec.Status, rec.ErrorKind, rec.ErrorMessage, rec.DurationNS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// ListPredictions returns the most recent records for a session, newest first.
func (s *Store) ListPredictions(ctx context.Context, sessionID string, limit int) ([]*storage.PredictionRecord, error) {
	query := `
		SELECT id, session_id, customer_id, trigger_type, offer_id,
			request, response, probability, delta,
			status, error_kind, error_message, duration_ns, created_at
		FROM predictions
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []*storage.PredictionRecord
	for rows.Next() {
		rec := &storage.PredictionRecord{}
		var trigger string
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.CustomerID, &trigger, &rec.OfferID,
			&rec.Request, &rec.Response, &rec.Probability, &rec.Delta,
			&rec.Status, &rec.ErrorKind, &rec.ErrorMessage, &rec.DurationNS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		rec.Trigger = storage.Trigger(trigger)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return records, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

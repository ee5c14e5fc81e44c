// Package storage defines the prediction log interface and its record
// types. Every prediction attempt made by a dashboard session (baseline,
// field edit, offer application) is recorded for later analysis.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Trigger identifies what caused a prediction request.
type Trigger string

const (
	TriggerBaseline Trigger = "baseline"
	TriggerEdit     Trigger = "edit"
	TriggerOffer    Trigger = "offer"
)

// PredictionRecord is one logged prediction attempt.
type PredictionRecord struct {
	ID         string
	SessionID  string
	CustomerID string

	// Trigger is what caused the request; OfferID is set for offer triggers.
	Trigger Trigger
	OfferID string

	// Request and Response hold the JSON payloads as sent and received.
	Request  string
	Response string

	Probability float64
	Delta       float64

	// Status is "ok" or "error"; ErrorKind/ErrorMessage describe failures.
	Status       string
	ErrorKind    string
	ErrorMessage string

	DurationNS int64
	CreatedAt  time.Time
}

// PredictionLog persists prediction records.
type PredictionLog interface {
	// RecordPrediction stores one prediction attempt. CreatedAt is set
	// to the current time when zero.
	RecordPrediction(ctx context.Context, rec *PredictionRecord) error

	// ListPredictions returns the most recent records for a session,
	// newest first, up to limit (0 means no limit).
	ListPredictions(ctx context.Context, sessionID string, limit int) ([]*PredictionRecord, error)

	// Close releases underlying resources.
	Close() error
}

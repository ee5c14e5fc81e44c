package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

// Predictor is the slice of the backend client the session needs.
type Predictor interface {
	Predict(ctx context.Context, req churn.PredictionRequest) (*churn.PredictionResponse, error)
}

// ErrNoSelection is returned by simulator operations before a customer
// has been selected.
var ErrNoSelection = errors.New("no customer selected")

// Session holds the selection and what-if simulation state for one
// dashboard user. All state transitions go through the session's mutex;
// prediction responses are committed only if no newer request has been
// issued since (last-request-wins), so a slow response can never
// overwrite state belonging to a newer edit or a newer selection.
type Session struct {
	ID string

	predictor Predictor
	predLog   storage.PredictionLog
	logger    *slog.Logger

	mu       sync.Mutex
	customer *churn.Customer
	fields   churn.PredictionRequest

	baseline         *float64
	probability      *float64
	delta            *float64
	offerProbability *float64
	topWeights       []churn.FeatureWeight
	riskLabel        string
	lastError        string

	// seq is the most recently issued request token; a response commits
	// only when its token still equals seq. inflight counts requests
	// issued but not yet resolved, for the loading indicator.
	seq      uint64
	inflight int
}

// NewSession creates a session with no selection.
func NewSession(predictor Predictor, predLog storage.PredictionLog, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:        uuid.New().String(),
		predictor: predictor,
		predLog:   predLog,
		logger:    logger,
	}
}

// FieldUpdate is one simulated-field edit. Exactly one field must be set.
type FieldUpdate struct {
	TenureMonths   *int            `json:"tenure_months,omitempty"`
	MonthlyCharges *float64        `json:"monthly_charges,omitempty"`
	Contract       *churn.Contract `json:"contract,omitempty"`
	Internet       *churn.Internet `json:"internet,omitempty"`
	SupportTickets *int            `json:"support_tickets,omitempty"`
}

// Snapshot is the serializable view of a session's state.
type Snapshot struct {
	ID               string                  `json:"id"`
	Customer         *churn.Customer         `json:"customer,omitempty"`
	Fields           churn.PredictionRequest `json:"fields"`
	Baseline         *float64                `json:"baseline,omitempty"`
	Probability      *float64                `json:"probability,omitempty"`
	ProbabilityPct   string                  `json:"probability_pct,omitempty"`
	Delta            *float64                `json:"delta,omitempty"`
	DeltaPct         string                  `json:"delta_pct,omitempty"`
	OfferProbability *float64                `json:"offer_probability,omitempty"`
	TopWeights       []churn.FeatureWeight   `json:"top_weights,omitempty"`
	RiskLabel        string                  `json:"risk_label,omitempty"`
	Loading          bool                    `json:"loading"`
	Error            string                  `json:"error,omitempty"`
}

// Select sets the active customer, clears any prior prediction state, and
// issues exactly one baseline prediction for the customer. The baseline
// probability is recorded from that response; stale responses belonging
// to a previously selected customer are discarded on arrival.
func (s *Session) Select(ctx context.Context, customer churn.Customer) error {
	s.mu.Lock()
	c := customer
	s.customer = &c
	s.fields = churn.BuildPredictionRequest(c)
	s.baseline = nil
	s.probability = nil
	s.delta = nil
	s.offerProbability = nil
	s.topWeights = nil
	s.riskLabel = ""
	s.lastError = ""
	token := s.issueLocked()
	req := s.fields
	s.mu.Unlock()

	return s.predict(ctx, token, req, predictOpts{
		trigger:    storage.TriggerBaseline,
		customerID: c.CustomerID,
		isBaseline: true,
	})
}

// Clear deselects the current customer and drops all simulator state.
// Any in-flight prediction is discarded on arrival.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customer = nil
	s.fields = churn.PredictionRequest{}
	s.baseline = nil
	s.probability = nil
	s.delta = nil
	s.offerProbability = nil
	s.topWeights = nil
	s.riskLabel = ""
	s.lastError = ""
	s.seq++ // invalidate in-flight responses
}

// Reset re-initializes the simulator from a customer and an externally
// supplied baseline, clearing delta and offer state. It issues no
// prediction; in-flight responses are discarded on arrival so stale
// simulated state never leaks across customers.
func (s *Session) Reset(customer churn.Customer, baselineProb float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := customer
	s.customer = &c
	s.fields = churn.BuildPredictionRequest(c)
	b := baselineProb
	s.baseline = &b
	p := baselineProb
	s.probability = &p
	s.delta = nil
	s.offerProbability = nil
	s.topWeights = nil
	s.riskLabel = ""
	s.lastError = ""
	s.seq++
}

// SetField updates exactly one simulated field and issues a prediction
// built from the full current simulated field set, so successive edits
// compose cumulatively.
func (s *Session) SetField(ctx context.Context, update FieldUpdate) error {
	s.mu.Lock()
	if s.customer == nil {
		s.mu.Unlock()
		return ErrNoSelection
	}
	if err := applyUpdate(&s.fields, update); err != nil {
		s.mu.Unlock()
		return err
	}
	token := s.issueLocked()
	req := s.fields
	customerID := s.customer.CustomerID
	s.mu.Unlock()

	return s.predict(ctx, token, req, predictOpts{
		trigger:    storage.TriggerEdit,
		customerID: customerID,
	})
}

// ApplyOffer applies a catalog offer to the current simulated fields,
// updates the form to the post-offer state, and issues a prediction whose
// result is recorded as the offer probability in addition to the regular
// probability/delta. Unknown offer IDs fall back to the first catalog
// entry.
func (s *Session) ApplyOffer(ctx context.Context, offerID string) error {
	offer := churn.OfferByID(offerID)

	s.mu.Lock()
	if s.customer == nil {
		s.mu.Unlock()
		return ErrNoSelection
	}
	s.fields = offer.Apply(s.fields)
	token := s.issueLocked()
	req := s.fields
	customerID := s.customer.CustomerID
	s.mu.Unlock()

	return s.predict(ctx, token, req, predictOpts{
		trigger:    storage.TriggerOffer,
		customerID: customerID,
		offerID:    offer.ID,
		isOffer:    true,
	})
}

// DismissError clears the error banner.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// Snapshot returns the serializable state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:               s.ID,
		Customer:         s.customer,
		Fields:           s.fields,
		Baseline:         s.baseline,
		Probability:      s.probability,
		Delta:            s.delta,
		OfferProbability: s.offerProbability,
		TopWeights:       s.topWeights,
		RiskLabel:        s.riskLabel,
		Loading:          s.inflight > 0,
		Error:            s.lastError,
	}
	if s.probability != nil {
		snap.ProbabilityPct = churn.DisplayPercent(*s.probability)
	}
	if s.delta != nil {
		snap.DeltaPct = fmt.Sprintf("%+.1f%%", *s.delta*100)
	}
	return snap
}

type predictOpts struct {
	trigger    storage.Trigger
	customerID string
	offerID    string
	isBaseline bool
	isOffer    bool
}

// issueLocked allocates the next request token. Callers must hold s.mu.
func (s *Session) issueLocked() uint64 {
	s.seq++
	s.inflight++
	return s.seq
}

// predict performs the round trip for an issued token and commits the
// result only if the token is still the latest. On failure the last
// successfully computed probability/delta stay in place and only the
// error banner and loading indicator change.
func (s *Session) predict(ctx context.Context, token uint64, req churn.PredictionRequest, opts predictOpts) error {
	start := time.Now()
	resp, err := s.predictor.Predict(ctx, req)
	duration := time.Since(start)

	s.mu.Lock()
	s.inflight--
	stale := token != s.seq

	if err != nil {
		if !stale {
			s.lastError = err.Error()
		}
		s.mu.Unlock()
		s.logger.Warn("prediction failed",
			slog.String("session_id", s.ID),
			slog.String("customer_id", opts.customerID),
			slog.String("trigger", string(opts.trigger)),
			slog.String("error", err.Error()),
		)
		s.record(ctx, req, nil, err, opts, duration, stale)
		return err
	}

	if stale {
		s.mu.Unlock()
		s.logger.Debug("discarding stale prediction response",
			slog.String("session_id", s.ID),
			slog.String("customer_id", opts.customerID),
		)
		s.record(ctx, req, resp, nil, opts, duration, true)
		return nil
	}

	p := resp.ChurnProbability
	s.probability = &p
	s.topWeights = resp.TopWeights
	s.riskLabel = resp.RiskLabel
	s.lastError = ""
	if opts.isBaseline {
		b := p
		s.baseline = &b
		s.delta = nil
	} else if s.baseline != nil {
		d := p - *s.baseline
		s.delta = &d
	}
	if opts.isOffer {
		op := p
		s.offerProbability = &op
	}
	var delta float64
	if s.delta != nil {
		delta = *s.delta
	}
	s.mu.Unlock()

	s.recordWithDelta(ctx, req, resp, nil, opts, duration, false, delta)
	return nil
}

func (s *Session) record(ctx context.Context, req churn.PredictionRequest, resp *churn.PredictionResponse, predictErr error, opts predictOpts, duration time.Duration, stale bool) {
	s.recordWithDelta(ctx, req, resp, predictErr, opts, duration, stale, 0)
}

func (s *Session) recordWithDelta(ctx context.Context, req churn.PredictionRequest, resp *churn.PredictionResponse, predictErr error, opts predictOpts, duration time.Duration, stale bool, delta float64) {
	if s.predLog == nil {
		return
	}

	rec := &storage.PredictionRecord{
		ID:         uuid.New().String(),
		SessionID:  s.ID,
		CustomerID: opts.customerID,
		Trigger:    opts.trigger,
		OfferID:    opts.offerID,
		Status:     "ok",
		Delta:      delta,
		DurationNS: duration.Nanoseconds(),
	}
	if body, err := json.Marshal(req); err == nil {
		rec.Request = string(body)
	}
	if resp != nil {
		rec.Probability = resp.ChurnProbability
		if body, err := json.Marshal(resp); err == nil {
			rec.Response = string(body)
		}
	}
	if stale {
		rec.Status = "stale"
	}
	if predictErr != nil {
		rec.Status = "error"
		rec.ErrorMessage = predictErr.Error()
		var apiErr *churn.APIError
		if errors.As(predictErr, &apiErr) {
			rec.ErrorKind = string(apiErr.Kind)
		}
	}

	if err := s.predLog.RecordPrediction(ctx, rec); err != nil {
		s.logger.Warn("failed to record prediction",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}

// applyUpdate applies exactly one field edit, clamping numeric fields at
// zero. The fields struct is untouched unless the update is valid.
func applyUpdate(fields *churn.PredictionRequest, update FieldUpdate) error {
	set := 0
	for _, present := range []bool{
		update.TenureMonths != nil,
		update.MonthlyCharges != nil,
		update.Contract != nil,
		update.Internet != nil,
		update.SupportTickets != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one field must be set, got %d", set)
	}

	switch {
	case update.TenureMonths != nil:
		fields.TenureMonths = max(*update.TenureMonths, 0)
	case update.MonthlyCharges != nil:
		fields.MonthlyCharges = math.Max(*update.MonthlyCharges, 0)
	case update.Contract != nil:
		fields.Contract = *update.Contract
	case update.Internet != nil:
		fields.Internet = *update.Internet
	case update.SupportTickets != nil:
		fields.SupportTickets = max(*update.SupportTickets, 0)
	}
	return nil
}

// Package insight provides the typed HTTP client for the churn prediction
// backend. Wire-level naming drift (weight vs impact, segment vs contract,
// rows vs total_customers) is normalized here so the rest of the system
// only ever sees the canonical churn types.
package insight

import (
	"encoding/json"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
)

// summaryWire is the backend's summary payload. Older backends report the
// customer count as "rows"; newer ones as "total_customers". Optional
// fields decode to their zero values.
type summaryWire struct {
	Rows                int     `json:"rows"`
	TotalCustomers      int     `json:"total_customers"`
	ChurnRate           float64 `json:"churn_rate"`
	AvgChurnProbability float64 `json:"avg_churn_probability"`
	HighRiskAlerts      int     `json:"high_risk_alerts"`
	ModerateRiskAlerts  int     `json:"moderate_risk_alerts"`
	ThresholdHigh       float64 `json:"threshold_high"`
	ThresholdModerate   float64 `json:"threshold_moderate"`
}

func (w summaryWire) toDomain() *churn.Summary {
	total := w.TotalCustomers
	if total == 0 {
		total = w.Rows
	}
	return &churn.Summary{
		TotalCustomers:      total,
		ChurnRate:           w.ChurnRate,
		AvgChurnProbability: w.AvgChurnProbability,
		HighRiskAlerts:      w.HighRiskAlerts,
		ModerateRiskAlerts:  w.ModerateRiskAlerts,
		ThresholdHigh:       w.ThresholdHigh,
		ThresholdModerate:   w.ThresholdModerate,
	}
}

// segmentWire is one row of a per-segment breakdown. The segment name
// arrives under a different key depending on the endpoint.
type segmentWire struct {
	Segment   string  `json:"segment"`
	Contract  string  `json:"contract"`
	Internet  string  `json:"internet"`
	ChurnRate float64 `json:"churn_rate"`
	Customers int     `json:"customers"`
}

func (w segmentWire) toDomain() churn.SegmentRate {
	name := w.Segment
	if name == "" {
		name = w.Contract
	}
	if name == "" {
		name = w.Internet
	}
	return churn.SegmentRate{Segment: name, ChurnRate: w.ChurnRate, Customers: w.Customers}
}

// weightWire is one feature contribution. The coefficient arrives as
// "weight" in the top_weights shape and as "impact" in the risk_factors
// shape.
type weightWire struct {
	Feature string   `json:"feature"`
	Weight  *float64 `json:"weight"`
	Impact  *float64 `json:"impact"`
}

func (w weightWire) value() float64 {
	if w.Weight != nil {
		return *w.Weight
	}
	if w.Impact != nil {
		return *w.Impact
	}
	return 0
}

// predictionWire is the backend's prediction payload in either shape:
// {churn_probability, prediction, top_weights} or
// {churn_probability, risk_label, risk_factors}.
type predictionWire struct {
	ChurnProbability float64      `json:"churn_probability"`
	Prediction       *int         `json:"prediction"`
	RiskLabel        string       `json:"risk_label"`
	TopWeights       []weightWire `json:"top_weights"`
	RiskFactors      []weightWire `json:"risk_factors"`
}

func (w predictionWire) toDomain() *churn.PredictionResponse {
	resp := &churn.PredictionResponse{
		ChurnProbability: w.ChurnProbability,
		RiskLabel:        w.RiskLabel,
	}
	if w.Prediction != nil {
		resp.Prediction = *w.Prediction
	}

	// Service order is authoritative; copy as-is.
	raw := w.TopWeights
	if len(raw) == 0 {
		raw = w.RiskFactors
	}
	for _, fw := range raw {
		resp.TopWeights = append(resp.TopWeights, churn.FeatureWeight{
			Feature: fw.Feature,
			Weight:  fw.value(),
		})
	}
	return resp
}

func decodePrediction(data []byte) (*churn.PredictionResponse, error) {
	var wire predictionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, churn.ErrDecode(err)
	}
	return wire.toDomain(), nil
}

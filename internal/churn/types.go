// Package churn provides the canonical domain model for the dashboard:
// customers, prediction requests and responses, segment aggregates, and the
// retention offer catalog. Wire-format quirks of the backend are normalized
// at the API client boundary; everything above it works with these types.
package churn

import "fmt"

// Contract is a customer's contract term.
type Contract string

const (
	ContractMonthToMonth Contract = "Month-to-month"
	ContractOneYear      Contract = "One year"
	ContractTwoYear      Contract = "Two year"
)

// Internet is a customer's internet service type.
type Internet string

const (
	InternetFiber Internet = "Fiber"
	InternetDSL   Internet = "DSL"
	InternetNone  Internet = "None"
)

// Customer is one row of the dataset. Customers are created by the bulk
// fetch and are immutable on the client; a fresh fetch replaces the set.
type Customer struct {
	CustomerID     string   `json:"customer_id"`
	TenureMonths   int      `json:"tenure_months"`
	MonthlyCharges float64  `json:"monthly_charges"`
	Contract       Contract `json:"contract"`
	Internet       Internet `json:"internet"`
	SupportTickets int      `json:"support_tickets"`

	// Churn is the historical outcome label (0 or 1). Nil for
	// future/unlabeled customers.
	Churn *int `json:"churn,omitempty"`

	// ChurnProbability and RiskLabel are populated by the prediction
	// service when present; they are not authoritative client state.
	ChurnProbability *float64 `json:"churn_probability,omitempty"`
	RiskLabel        string   `json:"risk_label,omitempty"`
}

// PredictionRequest contains exactly the five predictive fields of a
// customer. Identity and label fields are deliberately absent and must
// never be sent to the prediction service. Requests are built fresh for
// every call and never mutated afterwards.
type PredictionRequest struct {
	TenureMonths   int      `json:"tenure_months"`
	MonthlyCharges float64  `json:"monthly_charges"`
	Contract       Contract `json:"contract"`
	Internet       Internet `json:"internet"`
	SupportTickets int      `json:"support_tickets"`
}

// BuildPredictionRequest derives a PredictionRequest from a customer.
func BuildPredictionRequest(c Customer) PredictionRequest {
	return PredictionRequest{
		TenureMonths:   c.TenureMonths,
		MonthlyCharges: c.MonthlyCharges,
		Contract:       c.Contract,
		Internet:       c.Internet,
		SupportTickets: c.SupportTickets,
	}
}

// FeatureWeight is one signed feature contribution from the prediction
// service. The service returns weights ordered by descending absolute
// contribution; that order is preserved, never re-sorted.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// PredictionResponse is the normalized result of a prediction call.
// It is ephemeral: it exists only for the lifetime of the current
// selection and is discarded whenever the selection or a simulated
// field changes.
type PredictionResponse struct {
	ChurnProbability float64         `json:"churn_probability"`
	Prediction       int             `json:"prediction"`
	RiskLabel        string          `json:"risk_label,omitempty"`
	TopWeights       []FeatureWeight `json:"top_weights,omitempty"`
}

// Summary holds the dataset-level KPIs shown on the dashboard.
type Summary struct {
	TotalCustomers      int     `json:"total_customers"`
	ChurnRate           float64 `json:"churn_rate"`
	AvgChurnProbability float64 `json:"avg_churn_probability,omitempty"`
	HighRiskAlerts      int     `json:"high_risk_alerts,omitempty"`
	ModerateRiskAlerts  int     `json:"moderate_risk_alerts,omitempty"`
	ThresholdHigh       float64 `json:"threshold_high,omitempty"`
	ThresholdModerate   float64 `json:"threshold_moderate,omitempty"`
}

// SegmentRate is the aggregate churn rate for one named subgroup of
// customers (by contract type or internet service).
type SegmentRate struct {
	Segment   string  `json:"segment"`
	ChurnRate float64 `json:"churn_rate"`
	Customers int     `json:"customers,omitempty"`
}

// DisplayPercent renders a probability as a percentage with one decimal
// place, e.g. 0.347 -> "34.7%".
func DisplayPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

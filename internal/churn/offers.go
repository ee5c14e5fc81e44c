package churn

import "github.com/shopspring/decimal"

// Offer is a named retention intervention: a pure transformation of a
// PredictionRequest. Applying an offer never mutates the input request.
type Offer struct {
	ID    string
	Title string
	Apply func(PredictionRequest) PredictionRequest
}

// Catalog returns the fixed offer catalog, in display order. The first
// entry doubles as the fallback for unknown offer IDs.
func Catalog() []Offer {
	return []Offer{
		{
			ID:    "upgrade_combo",
			Title: "Contract upgrade + 10% discount",
			Apply: func(req PredictionRequest) PredictionRequest {
				req.Contract = upgradeContract(req.Contract)
				req.MonthlyCharges = discount(req.MonthlyCharges, 10)
				return req
			},
		},
		{
			ID:    "loyalty_discount",
			Title: "15% loyalty discount",
			Apply: func(req PredictionRequest) PredictionRequest {
				req.MonthlyCharges = discount(req.MonthlyCharges, 15)
				return req
			},
		},
		{
			ID:    "service_recovery",
			Title: "Ticket resolution + 5% credit",
			Apply: func(req PredictionRequest) PredictionRequest {
				if req.SupportTickets > 0 {
					req.SupportTickets--
				}
				req.MonthlyCharges = discount(req.MonthlyCharges, 5)
				return req
			},
		},
	}
}

// OfferByID looks up an offer in the catalog. An unknown ID falls back to
// the first catalog entry rather than failing.
func OfferByID(id string) Offer {
	catalog := Catalog()
	for _, o := range catalog {
		if o.ID == id {
			return o
		}
	}
	return catalog[0]
}

// upgradeContract moves the contract one step up the term ladder.
// Two year is already the longest term and stays unchanged.
func upgradeContract(c Contract) Contract {
	switch c {
	case ContractMonthToMonth:
		return ContractOneYear
	case ContractOneYear:
		return ContractTwoYear
	default:
		return c
	}
}

// discount reduces a monthly charge by the given percentage, clamped at
// zero. Decimal arithmetic keeps the result exact (100 at 5% is 95.0,
// not 94.999...).
func discount(charges float64, percent int64) float64 {
	d := decimal.NewFromFloat(charges).
		Mul(decimal.NewFromInt(100 - percent)).
		Div(decimal.NewFromInt(100))
	out, _ := d.Float64()
	if out < 0 {
		return 0
	}
	return out
}

package churn

import "testing"

func TestOfferServiceRecovery(t *testing.T) {
	req := PredictionRequest{
		TenureMonths:   12,
		MonthlyCharges: 100,
		Contract:       ContractMonthToMonth,
		Internet:       InternetFiber,
		SupportTickets: 1,
	}

	out := OfferByID("service_recovery").Apply(req)

	if out.SupportTickets != 0 {
		t.Errorf("SupportTickets = %d, want 0", out.SupportTickets)
	}
	if out.MonthlyCharges != 95.0 {
		t.Errorf("MonthlyCharges = %v, want 95.0", out.MonthlyCharges)
	}
	// Input must not be mutated
	if req.SupportTickets != 1 || req.MonthlyCharges != 100 {
		t.Errorf("input request mutated: %+v", req)
	}
}

func TestOfferServiceRecoveryClampsTickets(t *testing.T) {
	req := PredictionRequest{MonthlyCharges: 50, SupportTickets: 0}
	out := OfferByID("service_recovery").Apply(req)
	if out.SupportTickets != 0 {
		t.Errorf("SupportTickets = %d, want 0", out.SupportTickets)
	}
}

func TestOfferUpgradeCombo(t *testing.T) {
	req := PredictionRequest{Contract: ContractMonthToMonth, MonthlyCharges: 100}
	out := OfferByID("upgrade_combo").Apply(req)

	if out.Contract != ContractOneYear {
		t.Errorf("Contract = %q, want %q", out.Contract, ContractOneYear)
	}
	if out.MonthlyCharges != 90.0 {
		t.Errorf("MonthlyCharges = %v, want 90.0", out.MonthlyCharges)
	}
}

func TestOfferUpgradeComboAtLongestTerm(t *testing.T) {
	req := PredictionRequest{Contract: ContractTwoYear, MonthlyCharges: 100}
	out := OfferByID("upgrade_combo").Apply(req)

	if out.Contract != ContractTwoYear {
		t.Errorf("Contract = %q, want unchanged %q", out.Contract, ContractTwoYear)
	}
	if out.MonthlyCharges != 90.0 {
		t.Errorf("MonthlyCharges = %v, want 90.0 (discount still applies)", out.MonthlyCharges)
	}
}

func TestOfferUnknownIDFallsBack(t *testing.T) {
	o := OfferByID("no_such_offer")
	if o.ID != Catalog()[0].ID {
		t.Errorf("fallback offer = %q, want first catalog entry %q", o.ID, Catalog()[0].ID)
	}
}

func TestOffersNeverGoNegative(t *testing.T) {
	for _, o := range Catalog() {
		out := o.Apply(PredictionRequest{MonthlyCharges: 0, SupportTickets: 0})
		if out.MonthlyCharges < 0 {
			t.Errorf("%s: MonthlyCharges = %v, want >= 0", o.ID, out.MonthlyCharges)
		}
		if out.SupportTickets < 0 {
			t.Errorf("%s: SupportTickets = %d, want >= 0", o.ID, out.SupportTickets)
		}
	}
}

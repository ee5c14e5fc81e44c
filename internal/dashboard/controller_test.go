package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
)

type fakeClient struct {
	summary     *churn.Summary
	customers   []churn.Customer
	byContract  []churn.SegmentRate
	byInternet  []churn.SegmentRate
	exportBlob  []byte
	summaryErr  error
	exportErr   error
	predictProb float64
	predictErr  error
	predicted   []churn.PredictionRequest
}

func (f *fakeClient) GetSummary(_ context.Context) (*churn.Summary, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.summary, nil
}

func (f *fakeClient) GetCustomers(_ context.Context) ([]churn.Customer, error) {
	return f.customers, nil
}

func (f *fakeClient) GetChurnByContract(_ context.Context) ([]churn.SegmentRate, error) {
	return f.byContract, nil
}

func (f *fakeClient) GetChurnByInternet(_ context.Context) ([]churn.SegmentRate, error) {
	return f.byInternet, nil
}

func (f *fakeClient) Predict(_ context.Context, req churn.PredictionRequest) (*churn.PredictionResponse, error) {
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	f.predicted = append(f.predicted, req)
	return &churn.PredictionResponse{ChurnProbability: f.predictProb}, nil
}

func (f *fakeClient) ExportHighRisk(_ context.Context, threshold float64) ([]byte, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return f.exportBlob, nil
}

func loadedClient() *fakeClient {
	return &fakeClient{
		summary:     &churn.Summary{TotalCustomers: 2, ChurnRate: 0.5, ThresholdHigh: 0.7},
		customers:   testCustomers()[:2],
		byContract:  []churn.SegmentRate{{Segment: "Month-to-month", ChurnRate: 1}},
		byInternet:  []churn.SegmentRate{{Segment: "Fiber", ChurnRate: 0.8}},
		exportBlob:  []byte("customer_id\nC001\n"),
		predictProb: 0.6,
	}
}

func TestController_LoadPopulatesDashboard(t *testing.T) {
	client := loadedClient()
	ctrl := NewController(client, nil, discardLogger(), 0)

	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ctrl.Loaded() {
		t.Fatal("Loaded() = false after successful load")
	}
	if got := ctrl.Summary(); got == nil || got.TotalCustomers != 2 {
		t.Errorf("Summary() = %+v", got)
	}
	byContract, byInternet := ctrl.Segments()
	if len(byContract) != 1 || len(byInternet) != 1 {
		t.Errorf("segments = %d/%d, want 1/1", len(byContract), len(byInternet))
	}
	if got := len(ctrl.List().All()); got != 2 {
		t.Errorf("customer count = %d, want 2", got)
	}
}

func TestController_LoadFailureIsFailFast(t *testing.T) {
	client := loadedClient()
	client.summaryErr = churn.ErrHTTP(500, "boom")
	ctrl := NewController(client, nil, discardLogger(), 0)

	if err := ctrl.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if ctrl.Loaded() {
		t.Error("Loaded() = true after failed load")
	}
	if ctrl.Summary() != nil {
		t.Error("partial state rendered after failed load")
	}
	if ctrl.LastError() == "" {
		t.Error("expected error banner")
	}

	if _, err := ctrl.NewSession(context.Background()); err == nil {
		t.Error("NewSession before load: expected error")
	}
}

func TestController_NewSessionSelectsFirstCustomer(t *testing.T) {
	client := loadedClient()
	ctrl := NewController(client, nil, discardLogger(), 0)
	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sess, err := ctrl.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	snap := sess.Snapshot()
	if snap.Customer == nil || snap.Customer.CustomerID != "C001" {
		t.Errorf("default selection = %+v, want first customer C001", snap.Customer)
	}
	if snap.Baseline == nil || *snap.Baseline != 0.6 {
		t.Errorf("Baseline = %v, want 0.6", snap.Baseline)
	}

	got, ok := ctrl.Session(sess.ID)
	if !ok || got != sess {
		t.Error("session not registered by ID")
	}
}

func TestController_NewSessionSurvivesBaselineFailure(t *testing.T) {
	client := loadedClient()
	client.predictErr = churn.ErrNetwork(errors.New("refused"))
	ctrl := NewController(client, nil, discardLogger(), 0)
	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sess, err := ctrl.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession() error = %v, prediction failures are session-scoped", err)
	}
	if sess.Snapshot().Error == "" {
		t.Error("expected session error banner after failed baseline")
	}
}

func TestController_ThresholdPrefersServerValue(t *testing.T) {
	client := loadedClient()
	client.summary.ThresholdHigh = 0.85
	ctrl := NewController(client, nil, discardLogger(), 0)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := ctrl.Threshold(); got != 0.85 {
		t.Errorf("Threshold() = %v, want server-provided 0.85", got)
	}
}

func TestController_ThresholdDefault(t *testing.T) {
	ctrl := NewController(loadedClient(), nil, discardLogger(), 0)
	if got := ctrl.Threshold(); got != DefaultExportThreshold {
		t.Errorf("Threshold() = %v, want default %v", got, DefaultExportThreshold)
	}
}

func TestController_ExportHighRisk(t *testing.T) {
	client := loadedClient()
	ctrl := NewController(client, nil, discardLogger(), 0)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	export, err := ctrl.ExportHighRisk(context.Background())
	if err != nil {
		t.Fatalf("ExportHighRisk() error = %v", err)
	}
	if export.Filename != "outreach-high-risk.csv" {
		t.Errorf("Filename = %q", export.Filename)
	}
	if len(export.Data) == 0 {
		t.Error("empty export blob")
	}
}

func TestController_ExportFailureSetsBannerOnly(t *testing.T) {
	client := loadedClient()
	ctrl := NewController(client, nil, discardLogger(), 0)
	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	client.exportErr = churn.ErrHTTP(502, "bad gateway")
	if _, err := ctrl.ExportHighRisk(ctx); err == nil {
		t.Fatal("expected export error")
	}
	if ctrl.LastError() == "" {
		t.Error("expected shared error banner")
	}
	// The dashboard itself stays up.
	if !ctrl.Loaded() {
		t.Error("export failure must not take the dashboard down")
	}

	ctrl.DismissError()
	if ctrl.LastError() != "" {
		t.Error("banner survived dismissal")
	}
}

func TestController_SelectCustomer(t *testing.T) {
	client := loadedClient()
	ctrl := NewController(client, nil, discardLogger(), 0)
	ctx := context.Background()
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sess, err := ctrl.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if err := ctrl.SelectCustomer(ctx, sess, "C002"); err != nil {
		t.Fatalf("SelectCustomer() error = %v", err)
	}
	if got := sess.Snapshot().Customer.CustomerID; got != "C002" {
		t.Errorf("selected = %s, want C002", got)
	}

	if err := ctrl.SelectCustomer(ctx, sess, "nope"); err == nil {
		t.Error("unknown customer: expected error")
	}
}

package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

// DataClient is the full backend surface the controller depends on.
type DataClient interface {
	Predictor
	GetSummary(ctx context.Context) (*churn.Summary, error)
	GetCustomers(ctx context.Context) ([]churn.Customer, error)
	GetChurnByContract(ctx context.Context) ([]churn.SegmentRate, error)
	GetChurnByInternet(ctx context.Context) ([]churn.SegmentRate, error)
	ExportHighRisk(ctx context.Context, threshold float64) ([]byte, error)
}

const (
	// DefaultExportThreshold is used when neither the config nor the
	// backend summary provides a high-risk threshold.
	DefaultExportThreshold = 0.7

	// ExportFilename is the download name for the high-risk CSV.
	ExportFilename = "outreach-high-risk.csv"
)

// Export is a downloadable blob.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Controller is the top-level orchestrator: it loads the initial datasets,
// owns the shared list model and error state, manages sessions, and
// exposes the CSV export.
type Controller struct {
	client           DataClient
	predLog          storage.PredictionLog
	logger           *slog.Logger
	defaultThreshold float64

	list *ListModel

	mu         sync.RWMutex
	summary    *churn.Summary
	byContract []churn.SegmentRate
	byInternet []churn.SegmentRate
	loaded     bool
	lastError  string

	sessMu   sync.RWMutex
	sessions map[string]*Session
}

// NewController creates a controller. predLog may be nil to disable the
// prediction log; exportThreshold of 0 falls back to the default.
func NewController(client DataClient, predLog storage.PredictionLog, logger *slog.Logger, exportThreshold float64) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if exportThreshold <= 0 {
		exportThreshold = DefaultExportThreshold
	}
	return &Controller{
		client:           client,
		predLog:          predLog,
		logger:           logger,
		defaultThreshold: exportThreshold,
		list:             NewListModel(),
		sessions:         make(map[string]*Session),
	}
}

// Load issues the four read-only fetches concurrently and populates the
// dashboard only once all succeed. A failure in any one fails the whole
// load: no partially rendered state, a single error channel.
func (c *Controller) Load(ctx context.Context) error {
	var (
		summary    *churn.Summary
		customers  []churn.Customer
		byContract []churn.SegmentRate
		byInternet []churn.SegmentRate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = c.client.GetSummary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = c.client.GetCustomers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		byContract, err = c.client.GetChurnByContract(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		byInternet, err = c.client.GetChurnByInternet(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		c.mu.Lock()
		c.lastError = err.Error()
		c.mu.Unlock()
		c.logger.Error("dashboard load failed", slog.String("error", err.Error()))
		return err
	}

	c.mu.Lock()
	c.summary = summary
	c.byContract = byContract
	c.byInternet = byInternet
	c.loaded = true
	c.lastError = ""
	c.mu.Unlock()
	c.list.SetAll(customers)

	c.logger.Info("dashboard loaded",
		slog.Int("customers", len(customers)),
		slog.Float64("churn_rate", summary.ChurnRate),
	)
	return nil
}

// Loaded reports whether the initial load has completed successfully.
func (c *Controller) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// LastError returns the current error banner, empty when clear.
func (c *Controller) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// DismissError clears the error banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = ""
}

// Summary returns the loaded KPI summary, nil before load.
func (c *Controller) Summary() *churn.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.summary == nil {
		return nil
	}
	s := *c.summary
	return &s
}

// Segments returns the per-contract and per-internet churn breakdowns.
func (c *Controller) Segments() ([]churn.SegmentRate, []churn.SegmentRate) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]churn.SegmentRate(nil), c.byContract...),
		append([]churn.SegmentRate(nil), c.byInternet...)
}

// List exposes the shared customer list model.
func (c *Controller) List() *ListModel {
	return c.list
}

// Threshold returns the high-risk threshold: the server-provided value
// from the summary when present, the configured default otherwise.
func (c *Controller) Threshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.summary != nil && c.summary.ThresholdHigh > 0 {
		return c.summary.ThresholdHigh
	}
	return c.defaultThreshold
}

// ExportHighRisk downloads the high-risk outreach CSV at the current
// threshold. A failure sets the shared error banner but never takes the
// dashboard down.
func (c *Controller) ExportHighRisk(ctx context.Context) (*Export, error) {
	blob, err := c.client.ExportHighRisk(ctx, c.Threshold())
	if err != nil {
		c.mu.Lock()
		c.lastError = err.Error()
		c.mu.Unlock()
		c.logger.Error("csv export failed", slog.String("error", err.Error()))
		return nil, err
	}
	return &Export{
		Filename:    ExportFilename,
		ContentType: "text/csv",
		Data:        blob,
	}, nil
}

// NewSession creates a session and applies the default selection (the
// first customer of the loaded set). A failing baseline prediction is
// surfaced in the session's error state, not here: prediction failures
// are scoped to the simulator.
func (c *Controller) NewSession(ctx context.Context) (*Session, error) {
	if !c.Loaded() {
		return nil, fmt.Errorf("dashboard not loaded")
	}

	sess := NewSession(c.client, c.predLog, c.logger)
	c.sessMu.Lock()
	c.sessions[sess.ID] = sess
	c.sessMu.Unlock()

	if customers := c.list.All(); len(customers) > 0 {
		if err := sess.Select(ctx, customers[0]); err != nil {
			c.logger.Warn("default selection prediction failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return sess, nil
}

// Session looks up a session by ID.
func (c *Controller) Session(id string) (*Session, bool) {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	sess, ok := c.sessions[id]
	return sess, ok
}

// SelectCustomer selects a customer by ID within a session.
func (c *Controller) SelectCustomer(ctx context.Context, sess *Session, customerID string) error {
	for _, customer := range c.list.All() {
		if customer.CustomerID == customerID {
			return sess.Select(ctx, customer)
		}
	}
	return fmt.Errorf("unknown customer %q", customerID)
}

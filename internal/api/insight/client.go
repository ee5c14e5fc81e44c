package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// Client is a custom HTTP client for the churn prediction backend. Every
// call is a single request/response round trip: no retries, no caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new prediction backend client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health probes the backend's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

// GetSummary fetches the dataset-level KPI summary.
func (c *Client) GetSummary(ctx context.Context) (*churn.Summary, error) {
	body, err := c.do(ctx, http.MethodGet, "/data/summary", nil)
	if err != nil {
		return nil, err
	}
	var wire summaryWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, churn.ErrDecode(err)
	}
	return wire.toDomain(), nil
}

// GetCustomers fetches the full customer list.
func (c *Client) GetCustomers(ctx context.Context) ([]churn.Customer, error) {
	body, err := c.do(ctx, http.MethodGet, "/data/customers", nil)
	if err != nil {
		return nil, err
	}
	var customers []churn.Customer
	if err := json.Unmarshal(body, &customers); err != nil {
		return nil, churn.ErrDecode(err)
	}
	return customers, nil
}

// GetChurnByContract fetches the per-contract churn breakdown.
func (c *Client) GetChurnByContract(ctx context.Context) ([]churn.SegmentRate, error) {
	return c.getSegments(ctx, "/data/churn_by_contract")
}

// GetChurnByInternet fetches the per-internet-service churn breakdown.
func (c *Client) GetChurnByInternet(ctx context.Context) ([]churn.SegmentRate, error) {
	return c.getSegments(ctx, "/data/churn_by_internet")
}

func (c *Client) getSegments(ctx context.Context, path string) ([]churn.SegmentRate, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var rows []segmentWire
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, churn.ErrDecode(err)
	}
	segments := make([]churn.SegmentRate, 0, len(rows))
	for _, row := range rows {
		segments = append(segments, row.toDomain())
	}
	return segments, nil
}

// Predict requests a live churn probability for the given feature set.
// Exactly the five predictive fields are serialized; customer identity and
// label fields never reach the wire.
func (c *Client) Predict(ctx context.Context, req churn.PredictionRequest) (*churn.PredictionResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return decodePrediction(body)
}

// GetCustomerPrediction fetches a prediction by customer ID. This endpoint
// returns the risk_factors/impact response shape, normalized here to the
// same canonical PredictionResponse as Predict.
func (c *Client) GetCustomerPrediction(ctx context.Context, customerID string) (*churn.PredictionResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/predict/"+url.PathEscape(customerID), nil)
	if err != nil {
		return nil, err
	}
	return decodePrediction(body)
}

// ExportHighRisk downloads the high-risk outreach CSV for the given
// probability threshold. The blob is returned as-is.
func (c *Client) ExportHighRisk(ctx context.Context, threshold float64) ([]byte, error) {
	path := "/export/high_risk.csv?threshold=" + strconv.FormatFloat(threshold, 'f', -1, 64)
	return c.do(ctx, http.MethodGet, path, nil)
}

// do performs one round trip and maps failures onto the canonical error
// taxonomy: transport failures, non-2xx statuses, and unreadable bodies.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", "churn-dashboard/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, churn.ErrNetwork(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, churn.ErrNetwork(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, churn.ErrHTTP(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

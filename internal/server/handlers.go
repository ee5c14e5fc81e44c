package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/churn-dashboard/internal/churn"
	"github.com/tjfontaine/churn-dashboard/internal/dashboard"
	"github.com/tjfontaine/churn-dashboard/internal/storage"
)

// HealthChecker is the liveness probe of the upstream prediction API.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handlers exposes the dashboard controller over HTTP for the browser
// front end. All responses are JSON except the CSV export.
type Handlers struct {
	ctrl    *dashboard.Controller
	health  HealthChecker
	predLog storage.PredictionLog
	logger  *slog.Logger
}

func NewHandlers(ctrl *dashboard.Controller, health HealthChecker, predLog storage.PredictionLog, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{ctrl: ctrl, health: health, predLog: predLog, logger: logger}
}

// Register mounts all dashboard routes on the router.
func (h *Handlers) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", h.handleDashboard)
		r.Post("/dashboard/dismiss", h.handleDismiss)
		r.Get("/customers", h.handleCustomers)
		r.Post("/customers/sort", h.handleToggleSort)
		r.Get("/offers", h.handleOffers)
		r.Get("/export/high-risk.csv", h.handleExport)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.handleGetSession)
				r.Post("/select", h.handleSelect)
				r.Post("/clear", h.handleClear)
				r.Post("/field", h.handleSetField)
				r.Post("/offer", h.handleApplyOffer)
				r.Post("/dismiss", h.handleSessionDismiss)
				r.Get("/history", h.handleHistory)
			})
		})
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	AddLogField(r.Context(), "error", msg)
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "backend": "ok"}
	code := http.StatusOK
	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			status["backend"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, code, status)
}

type offerInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func offerList() []offerInfo {
	catalog := churn.Catalog()
	out := make([]offerInfo, len(catalog))
	for i, o := range catalog {
		out[i] = offerInfo{ID: o.ID, Title: o.Title}
	}
	return out
}

type dashboardResponse struct {
	Loaded          bool                `json:"loaded"`
	Summary         *churn.Summary      `json:"summary,omitempty"`
	ChurnByContract []churn.SegmentRate `json:"churn_by_contract,omitempty"`
	ChurnByInternet []churn.SegmentRate `json:"churn_by_internet,omitempty"`
	Threshold       float64             `json:"threshold"`
	Offers          []offerInfo         `json:"offers"`
	Error           string              `json:"error,omitempty"`
}

func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	byContract, byInternet := h.ctrl.Segments()
	h.writeJSON(w, http.StatusOK, dashboardResponse{
		Loaded:          h.ctrl.Loaded(),
		Summary:         h.ctrl.Summary(),
		ChurnByContract: byContract,
		ChurnByInternet: byInternet,
		Threshold:       h.ctrl.Threshold(),
		Offers:          offerList(),
		Error:           h.ctrl.LastError(),
	})
}

func (h *Handlers) handleDismiss(w http.ResponseWriter, r *http.Request) {
	h.ctrl.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleOffers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, offerList())
}

type customersResponse struct {
	Customers []churn.Customer        `json:"customers"`
	Total     int                     `json:"total"`
	SortKey   dashboard.SortKey       `json:"sort_key"`
	SortDir   dashboard.SortDirection `json:"sort_dir"`
}

// handleCustomers returns the filtered, sorted customer list. With no
// sort parameters the list model's current sort applies, so a page
// reload keeps the column the user last clicked.
func (h *Handlers) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Loaded() {
		h.writeError(w, r, http.StatusServiceUnavailable, "dashboard not loaded")
		return
	}

	q := r.URL.Query()
	key, dir := h.ctrl.List().CurrentSort()
	if s := q.Get("sort"); s != "" {
		key = dashboard.SortKey(s)
	}
	if s := q.Get("dir"); s != "" {
		dir = dashboard.SortDirection(s)
	}

	view := h.ctrl.List().View(q.Get("q"), key, dir)
	h.writeJSON(w, http.StatusOK, customersResponse{
		Customers: view,
		Total:     len(view),
		SortKey:   key,
		SortDir:   dir,
	})
}

type toggleSortRequest struct {
	Key string `json:"key"`
}

func (h *Handlers) handleToggleSort(w http.ResponseWriter, r *http.Request) {
	var req toggleSortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	key, dir := h.ctrl.List().ToggleSort(dashboard.SortKey(req.Key))
	h.writeJSON(w, http.StatusOK, map[string]string{
		"sort_key": string(key),
		"sort_dir": string(dir),
	})
}

func (h *Handlers) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.ctrl.ExportHighRisk(r.Context())
	if err != nil {
		h.writeBackendError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		h.logger.Warn("export write failed", slog.String("error", err.Error()))
	}
}

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ctrl.NewSession(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}
	AddLogField(r.Context(), "session_id", sess.ID)
	h.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// session resolves the {sessionID} URL parameter. Writes a 404 and
// returns nil when the session does not exist.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) *dashboard.Session {
	id := chi.URLParam(r, "sessionID")
	sess, ok := h.ctrl.Session(id)
	if !ok {
		h.writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown session %q", id))
		return nil
	}
	AddLogField(r.Context(), "session_id", id)
	return sess
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Snapshot())
}

type selectRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *Handlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		h.writeError(w, r, http.StatusBadRequest, "customer_id is required")
		return
	}

	if err := h.ctrl.SelectCustomer(r.Context(), sess, req.CustomerID); err != nil {
		var apiErr *churn.APIError
		if !errors.As(err, &apiErr) {
			h.writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		// Prediction failures are session-scoped: the selection stuck,
		// the snapshot carries the error banner.
	}
	h.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handlers) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	sess.Clear()
	h.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handlers) handleSetField(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var update dashboard.FieldUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := sess.SetField(r.Context(), update); err != nil {
		switch {
		case errors.Is(err, dashboard.ErrNoSelection):
			h.writeError(w, r, http.StatusConflict, err.Error())
			return
		case isBackendError(err):
			// Last good state stays; the banner travels in the snapshot.
		default:
			h.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, sess.Snapshot())
}

type offerRequest struct {
	OfferID string `json:"offer_id"`
}

func (h *Handlers) handleApplyOffer(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := sess.ApplyOffer(r.Context(), req.OfferID); err != nil {
		if errors.Is(err, dashboard.ErrNoSelection) {
			h.writeError(w, r, http.StatusConflict, err.Error())
			return
		}
		if !isBackendError(err) {
			h.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handlers) handleSessionDismiss(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	sess.DismissError()
	h.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	if h.predLog == nil {
		h.writeJSON(w, http.StatusOK, []*storage.PredictionRecord{})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.predLog.ListPredictions(r.Context(), sess.ID, limit)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*storage.PredictionRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

func isBackendError(err error) bool {
	var apiErr *churn.APIError
	return errors.As(err, &apiErr)
}

// writeBackendError maps an upstream API error onto our own status code.
func (h *Handlers) writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *churn.APIError
	if errors.As(err, &apiErr) {
		h.writeError(w, r, apiErr.HTTPStatusCode(), apiErr.Error())
		return
	}
	h.writeError(w, r, http.StatusBadGateway, err.Error())
}

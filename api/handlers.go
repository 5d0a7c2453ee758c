/*
handlers.go - HTTP API handlers for the statement engine

PURPOSE:
  Exposes the carryforward and working-capital engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Statement:
    POST   /api/statement/beginning-cash   Beginning cash for a period
    POST   /api/statement/working-capital  Receivables/payables changes
    POST   /api/statement/inputs           Both in one call

  Periods:
    GET    /api/periods/{id}               Period details
    GET    /api/periods/{id}/previous      Previous period by end-date order

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (carryforward engine, calculator, resolver)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors
  Degraded calculations are NOT errors: the engine reports them as
  warnings inside a 200 response, so a missing previous period or a
  store timeout never turns into a 5xx.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerline/statement-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      engine.Store
	Engine     *engine.CarryforwardEngine
	Calculator *engine.WorkingCapitalCalculator
	Resolver   *engine.PeriodResolver
}

// NewHandler creates a new handler with the given store.
func NewHandler(store engine.Store) *Handler {
	return &Handler{
		Store:      store,
		Engine:     engine.NewCarryforwardEngine(store),
		Calculator: engine.NewWorkingCapitalCalculator(store),
		Resolver:   &engine.PeriodResolver{Store: store},
	}
}

// =============================================================================
// STATEMENT HANDLERS
// =============================================================================

// BeginningCash computes beginning cash for a period.
// POST /api/statement/beginning-cash
func (h *Handler) BeginningCash(w http.ResponseWriter, r *http.Request) {
	var req BeginningCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PeriodID == "" {
		writeError(w, http.StatusBadRequest, "period_id is required", nil)
		return
	}
	if req.ProjectType == "" {
		writeError(w, http.StatusBadRequest, "project_type is required", nil)
		return
	}

	res := h.Engine.GetBeginningCash(r.Context(), toCarryforwardOptions(req))
	writeJSON(w, http.StatusOK, toBeginningCashResponse(res))
}

// WorkingCapital computes receivables/payables changes for a period.
// POST /api/statement/working-capital
func (h *Handler) WorkingCapital(w http.ResponseWriter, r *http.Request) {
	var req WorkingCapitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PeriodID == "" {
		writeError(w, http.StatusBadRequest, "period_id is required", nil)
		return
	}
	if req.ProjectID == "" && req.ProjectType == "" {
		writeError(w, http.StatusBadRequest, "project_id or project_type is required", nil)
		return
	}

	res := h.Calculator.CalculateChanges(r.Context(), toWorkingCapitalParams(req))
	writeJSON(w, http.StatusOK, toWorkingCapitalResponse(res))
}

// StatementInputs computes beginning cash and working-capital changes in
// one call, the way a statement assembly job consumes them.
// POST /api/statement/inputs
func (h *Handler) StatementInputs(w http.ResponseWriter, r *http.Request) {
	var req BeginningCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PeriodID == "" {
		writeError(w, http.StatusBadRequest, "period_id is required", nil)
		return
	}
	if req.ProjectType == "" {
		writeError(w, http.StatusBadRequest, "project_type is required", nil)
		return
	}

	inputs := engine.ComputeStatementInputs(r.Context(), h.Engine, h.Calculator, toCarryforwardOptions(req))

	warnings := inputs.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, StatementInputsResponse{
		BeginningCash:  toBeginningCashResponse(inputs.BeginningCash),
		WorkingCapital: toWorkingCapitalResponse(inputs.WorkingCapital),
		Warnings:       warnings,
	})
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// GetPeriod returns a reporting period.
// GET /api/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id := engine.PeriodID(chi.URLParam(r, "id"))

	period, err := h.Store.FindReportingPeriod(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load period", err)
		return
	}
	if period == nil {
		writeError(w, http.StatusNotFound, "Period not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// GetPreviousPeriod returns the previous period of the same cadence, or 404
// when the given period is the earliest one on record.
// GET /api/periods/{id}/previous
func (h *Handler) GetPreviousPeriod(w http.ResponseWriter, r *http.Request) {
	id := engine.PeriodID(chi.URLParam(r, "id"))

	previous, err := h.Resolver.FindPrevious(r.Context(), id)
	if errors.Is(err, engine.ErrPeriodNotFound) {
		writeError(w, http.StatusNotFound, "Period not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve previous period", err)
		return
	}
	if previous == nil {
		writeError(w, http.StatusNotFound, "No previous period", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(previous))
}

// =============================================================================
// HELPERS
// =============================================================================

func toCarryforwardOptions(req BeginningCashRequest) engine.CarryforwardOptions {
	opts := engine.CarryforwardOptions{
		PeriodID:      engine.PeriodID(req.PeriodID),
		ProjectType:   req.ProjectType,
		StatementCode: req.StatementCode,
	}
	if req.FacilityID != nil {
		id := engine.FacilityID(*req.FacilityID)
		opts.FacilityID = &id
	}
	for _, id := range req.FacilityIDs {
		opts.FacilityIDs = append(opts.FacilityIDs, engine.FacilityID(id))
	}
	return opts
}

func toWorkingCapitalParams(req WorkingCapitalRequest) engine.WorkingCapitalParams {
	params := engine.WorkingCapitalParams{
		PeriodID:    engine.PeriodID(req.PeriodID),
		ProjectID:   engine.ProjectID(req.ProjectID),
		ProjectType: req.ProjectType,
	}
	if req.FacilityID != nil {
		id := engine.FacilityID(*req.FacilityID)
		params.FacilityID = &id
	}
	for _, id := range req.FacilityIDs {
		params.FacilityIDs = append(params.FacilityIDs, engine.FacilityID(id))
	}
	return params
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

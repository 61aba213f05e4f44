/*
handlers.go - HTTP API handlers for the payment schedule engine

PURPOSE:
  Exposes schedule validation and the stored-schedule lifecycle via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  schedule service and the pure validator.

ENDPOINTS:
  Rules:
    GET    /api/rules                         Current rule set
    PUT    /api/rules                         Replace rule set (persisted revision)
    GET    /api/rules/presets                 List named presets
    POST   /api/rules/presets/{id}            Activate a preset

  Ad-hoc validation (nothing stored):
    POST   /api/validate                      Whole schedule
    POST   /api/validate/term                 One row (inline errors)

  Contracts:
    GET    /api/contracts                     List contracts
    POST   /api/contracts                     Create contract
    GET    /api/contracts/code-available      Contract code uniqueness
    GET    /api/contracts/{id}                Contract header
    GET    /api/contracts/{id}/schedule       Schedule + validation + summary
    PUT    /api/contracts/{id}/schedule       Submit whole schedule

  Terms:
    POST   /api/contracts/{id}/terms                    Add default term
    PUT    /api/contracts/{id}/terms/{termID}           Edit term
    DELETE /api/contracts/{id}/terms/{termID}           Delete term
    POST   /api/contracts/{id}/terms/{termID}/status    Status transition
    POST   /api/contracts/{id}/terms/reorder            Move term

  Sweeps:
    GET    /api/sweeps                        Recent overdue sweep runs
    POST   /api/sweeps/run                    Run the sweep now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input, invalid rules, negative contract amount
  - 404: Contract or term not found
  - 409: Duplicate contract code, refused delete
  - 422: Rejected schedule, term or status change (details carry messages)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payment-schedule/contract"
	"github.com/warp/payment-schedule/factory"
	"github.com/warp/payment-schedule/schedule"
	"github.com/warp/payment-schedule/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Service      *schedule.Service
	RulesFactory *factory.RulesFactory

	// Set by the scheduler so /api/sweeps/run shares its bookkeeping.
	Sweeper *OverdueScheduler

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and default rules.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:        store,
		Service:      schedule.NewService(store, schedule.DefaultRules()),
		RulesFactory: factory.NewRulesFactory(),
	}
}

// LoadRules activates the most recent persisted rule set, if any.
func (h *Handler) LoadRules(ctx context.Context) error {
	rec, err := h.Store.LatestRules(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	rules, err := h.RulesFactory.ParseRules(rec.ConfigJSON)
	if err != nil {
		return fmt.Errorf("stored rules revision %d: %w", rec.ID, err)
	}
	return h.Service.SetRules(rules)
}

// ActivateRules validates, persists and activates a rule set.
func (h *Handler) ActivateRules(ctx context.Context, rules schedule.Rules) (sqlite.RuleSetRecord, error) {
	if err := h.Service.SetRules(rules); err != nil {
		return sqlite.RuleSetRecord{}, err
	}
	data, err := json.Marshal(h.RulesFactory.ToJSON(rules))
	if err != nil {
		return sqlite.RuleSetRecord{}, err
	}
	return h.Store.SaveRules(ctx, rules.Version, string(data))
}

// =============================================================================
// RULES HANDLERS
// =============================================================================

// GetRules returns the active rule set.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.RulesFactory.ToJSON(h.Service.Rules()))
}

// UpdateRules replaces the active rule set. Omitted fields take defaults.
func (h *Handler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rules, err := h.RulesFactory.ParseRules(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rules", err)
		return
	}

	rec, err := h.ActivateRules(r.Context(), rules)
	if err != nil {
		h.handleError(w, "Failed to save rules", err)
		return
	}

	writeJSON(w, http.StatusOK, RulesUpdateResponse{
		Version:   rec.Version,
		Revision:  rec.ID,
		UpdatedAt: rec.CreatedAt.Format(time.RFC3339),
	})
}

// ListPresets returns the named rule presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, contract.ListPresets())
}

// ApplyPreset activates a named preset.
func (h *Handler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	preset := contract.Preset(chi.URLParam(r, "id"))
	jsonStr := contract.PresetJSON(preset)
	if jsonStr == "" {
		writeError(w, http.StatusNotFound, "Preset not found", nil)
		return
	}

	rules, err := h.RulesFactory.ParseRules(jsonStr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Preset is invalid", err)
		return
	}
	rec, err := h.ActivateRules(r.Context(), rules)
	if err != nil {
		h.handleError(w, "Failed to save rules", err)
		return
	}

	writeJSON(w, http.StatusOK, RulesUpdateResponse{
		Version:   rec.Version,
		Revision:  rec.ID,
		UpdatedAt: rec.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// AD-HOC VALIDATION HANDLERS
// =============================================================================

// ValidateSchedule validates a schedule that is not stored.
func (h *Handler) ValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cctx := req.Contract.toContext()
	if cctx.ContractAmount.IsNegative() {
		writeErrorCode(w, http.StatusBadRequest, "Contract amount must not be negative", "negative_contract_amount", nil)
		return
	}

	terms := schedule.DerivePercentages(schedule.CoerceTerms(req.Terms), cctx.ContractAmount)
	result := h.Service.Validator().ValidateSchedule(cctx, terms)
	observeValidation("adhoc", result)

	writeJSON(w, http.StatusOK, toValidationDTO(result))
}

// ValidateTerm returns inline errors for one row.
func (h *Handler) ValidateTerm(w http.ResponseWriter, r *http.Request) {
	var req ValidateTermRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cctx := req.Contract.toContext()
	if cctx.ContractAmount.IsNegative() {
		writeErrorCode(w, http.StatusBadRequest, "Contract amount must not be negative", "negative_contract_amount", nil)
		return
	}
	terms := schedule.CoerceTerms(req.Terms)
	if req.Index < 0 || req.Index > len(terms) {
		writeError(w, http.StatusBadRequest, "Index out of range", schedule.ErrTermIndexOutOfRange)
		return
	}

	errs := h.Service.Validator().ValidateSingleTerm(cctx, terms, req.Index,
		schedule.NormalizeDate(req.DueDate), schedule.CoerceAmount(req.Amount))

	writeJSON(w, http.StatusOK, TermErrorsDTO{Index: req.Index, Errors: errs})
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns all contracts.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.ListContracts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract validates the general info and stores a new contract.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	info := contract.GeneralInfo{
		Code:      req.Code,
		Name:      req.Name,
		Amount:    schedule.CoerceAmount(req.Amount),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	gv := contract.GeneralValidator{Rules: h.Service.Rules(), Codes: h.Store}
	errs, err := gv.Validate(r.Context(), info)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to validate contract", err)
		return
	}
	if len(errs) > 0 {
		writeErrorCode(w, http.StatusUnprocessableEntity, "Contract is invalid", "contract_invalid", errs)
		return
	}

	saved, err := h.Store.SaveContract(r.Context(), info.ToContract())
	if err != nil {
		h.handleError(w, "Failed to create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(saved))
}

// GetContract returns a single contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetContract(r.Context(), contractID(r))
	if err != nil {
		h.handleError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*c))
}

// CodeAvailable reports whether a contract code is free. ?exclude= skips the
// contract being edited.
func (h *Handler) CodeAvailable(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "code query parameter is required", nil)
		return
	}

	exclude := schedule.ContractID(r.URL.Query().Get("exclude"))
	unique, err := h.Store.IsContractCodeUnique(r.Context(), code, exclude)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check code", err)
		return
	}
	writeJSON(w, http.StatusOK, CodeAvailableDTO{Code: code, Available: unique})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns the stored schedule with a fresh validation result.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	c, terms, result, err := h.Service.Schedule(r.Context(), contractID(r), modeParam(r))
	if err != nil {
		h.handleError(w, "Failed to load schedule", err)
		return
	}
	observeValidation("load", result)
	writeJSON(w, http.StatusOK, toScheduleResponse(*c, terms, result))
}

// SubmitSchedule replaces the whole schedule if it validates.
func (h *Handler) SubmitSchedule(w http.ResponseWriter, r *http.Request) {
	var req SubmitScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := contractID(r)
	saved, result, err := h.Service.SubmitSchedule(r.Context(), id, schedule.CoerceTerms(req.Terms), schedule.ParseMode(req.Mode))
	if err == nil || errors.Is(err, schedule.ErrScheduleRejected) {
		observeValidation("submit", result)
	}
	if err != nil {
		h.handleError(w, "Failed to submit schedule", err)
		return
	}

	c, err := h.Store.GetContract(r.Context(), id)
	if err != nil {
		h.handleError(w, "Failed to load contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(*c, saved, result))
}

// =============================================================================
// TERM HANDLERS
// =============================================================================

// AddTerm appends a system-suggested term.
func (h *Handler) AddTerm(w http.ResponseWriter, r *http.Request) {
	term, result, err := h.Service.AddTerm(r.Context(), contractID(r))
	if err != nil {
		h.handleError(w, "Failed to add term", err)
		return
	}
	writeJSON(w, http.StatusCreated, TermChangeResponse{Term: toTermDTO(term), Validation: toValidationDTO(result)})
}

// UpdateTerm applies a partial edit to one term.
func (h *Handler) UpdateTerm(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	term, result, err := h.Service.UpdateTerm(r.Context(), contractID(r), termID(r), schedule.PatchFromRaw(raw), modeParam(r))
	if err != nil {
		h.handleError(w, "Failed to update term", err)
		return
	}
	writeJSON(w, http.StatusOK, TermChangeResponse{Term: toTermDTO(term), Validation: toValidationDTO(result)})
}

// DeleteTerm removes one term unless it is the last contract document.
func (h *Handler) DeleteTerm(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.DeleteTerm(r.Context(), contractID(r), termID(r))
	if err != nil {
		if errors.Is(err, schedule.ErrDeleteRefused) {
			deletesRefused.Inc()
		}
		h.handleError(w, "Failed to delete term", err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationDTO(result))
}

// ChangeTermStatus moves a term through the payment lifecycle.
func (h *Handler) ChangeTermStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	to := schedule.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	in := schedule.TransitionInput{
		PaidDate:   schedule.NormalizeDate(req.PaidDate),
		PaidAmount: schedule.CoerceAmount(req.PaidAmount),
		Notes:      req.Notes,
	}

	term, err := h.Service.UpdateTermStatus(r.Context(), contractID(r), termID(r), to, in)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidTransition) {
			transitionsRejected.WithLabelValues(string(to)).Inc()
		}
		h.handleError(w, "Failed to change status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTermDTO(term))
}

// ReorderTerms moves one term to a new position and renumbers.
func (h *Handler) ReorderTerms(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := contractID(r)
	terms, result, err := h.Service.MoveTerm(r.Context(), id, req.From, req.To)
	if err != nil {
		h.handleError(w, "Failed to reorder terms", err)
		return
	}
	c, err := h.Store.GetContract(r.Context(), id)
	if err != nil {
		h.handleError(w, "Failed to load contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(*c, terms, result))
}

// =============================================================================
// SWEEP HANDLERS
// =============================================================================

// ListSweepRuns returns recent overdue sweep runs.
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	runs, err := h.Store.GetSweepRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sweep runs", err)
		return
	}

	type runDTO struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Marked      int    `json:"marked"`
		Error       string `json:"error,omitempty"`
		StartedAt   string `json:"startedAt"`
		CompletedAt string `json:"completedAt,omitempty"`
	}
	dtos := make([]runDTO, len(runs))
	for i, run := range runs {
		dtos[i] = runDTO{
			ID:        run.ID,
			Status:    run.Status,
			Marked:    run.Marked,
			Error:     run.Error,
			StartedAt: run.StartedAt.Format(time.RFC3339),
		}
		if run.CompletedAt != nil {
			dtos[i].CompletedAt = run.CompletedAt.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerSweep runs the overdue sweep immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	sweeper := h.Sweeper
	if sweeper == nil {
		sweeper = NewOverdueScheduler(h.Store, h.Service)
	}
	run := sweeper.RunOnce(r.Context())
	if run.Status == sweepFailed {
		writeError(w, http.StatusInternalServerError, "Sweep failed", errors.New(run.Error))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": run.ID, "marked": run.Marked})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func contractID(r *http.Request) schedule.ContractID {
	return schedule.ContractID(chi.URLParam(r, "id"))
}

func termID(r *http.Request) schedule.TermID {
	return schedule.TermID(chi.URLParam(r, "termID"))
}

func modeParam(r *http.Request) schedule.Mode {
	return schedule.ParseMode(r.URL.Query().Get("mode"))
}

// decodeJSON keeps numbers as json.Number so amounts reach the decimal
// coercion without a float64 detour.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, message string, err error) {
	var (
		rejected   *schedule.ScheduleRejectedError
		termErr    *schedule.TermRejectedError
		transition *schedule.TransitionError
		refused    *schedule.DeleteRefusedError
	)

	switch {
	case errors.As(err, &rejected):
		writeErrorCode(w, http.StatusUnprocessableEntity, "Schedule has validation errors", "schedule_rejected", toValidationDTO(rejected.Result))
	case errors.As(err, &termErr):
		writeErrorCode(w, http.StatusUnprocessableEntity, fmt.Sprintf("Term %d has validation errors", termErr.Index+1), "term_rejected", termErr.Errors)
	case errors.As(err, &transition):
		writeErrorCode(w, http.StatusUnprocessableEntity, "Status change rejected", "invalid_transition", transition.Errors)
	case errors.As(err, &refused):
		writeErrorCode(w, http.StatusConflict, "Cannot delete term: "+refused.Reason, "delete_refused", nil)
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case schedule.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
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

func writeErrorCode(w http.ResponseWriter, status int, message, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

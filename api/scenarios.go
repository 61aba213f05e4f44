/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with contracts
	and schedules demonstrating each validation rule. Dates are relative to
	today so a scenario looks the same whenever it is loaded.

AVAILABLE SCENARIOS:

	valid-schedule:     Clean three-term schedule, no errors or warnings
	over-allocated:     Terms sum to 110% of the contract
	advance-too-large:  50% advance against a 30% ceiling
	date-conflicts:     Duplicate due dates and terms 3 days apart
	payment-lifecycle:  Paid, invoiced and past-due terms for the sweeper

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create contracts
 3. Write schedules straight to the store, bypassing validation, so that
    invalid demos can exist

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "over-allocated"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Schedule and term handlers
  - contract/presets.go: Rule presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "valid-schedule",
		Name:        "Valid Schedule",
		Description: "Advance, milestone and final payment that reconcile exactly",
		Category:    "valid",
	},
	{
		ID:          "over-allocated",
		Name:        "Over-Allocated",
		Description: "Payment terms exceed the contract value by 10%",
		Category:    "invalid",
	},
	{
		ID:          "advance-too-large",
		Name:        "Advance Too Large",
		Description: "First payment is a 50% advance, above the configured ceiling",
		Category:    "invalid",
	},
	{
		ID:          "date-conflicts",
		Name:        "Date Conflicts",
		Description: "Two terms share a due date and two are only 3 days apart",
		Category:    "invalid",
	},
	{
		ID:          "payment-lifecycle",
		Name:        "Payment Lifecycle",
		Description: "Paid, invoiced and past-due terms; run the sweeper to mark overdue",
		Category:    "lifecycle",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loaders := map[string]func(context.Context) error{
		"valid-schedule":    h.loadValidScheduleScenario,
		"over-allocated":    h.loadOverAllocatedScenario,
		"advance-too-large": h.loadAdvanceTooLargeScenario,
		"date-conflicts":    h.loadDateConflictsScenario,
		"payment-lifecycle": h.loadPaymentLifecycleScenario,
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedTerm is a term expressed as a share of the contract and a day offset
// from today.
type seedTerm struct {
	description string
	percent     int64
	dueInDays   int
	status      schedule.PaymentStatus
	paidInDays  int // only for paid terms
	docType     string
	fileName    string
}

const demoContractAmount = 2_000_000_000

func (h *Handler) seedContract(ctx context.Context, code, name string, startOffset, endOffset int, terms []seedTerm) error {
	today := schedule.Today()
	amount := decimal.NewFromInt(demoContractAmount)

	c, err := h.Store.SaveContract(ctx, schedule.Contract{
		Code:      code,
		Name:      name,
		Amount:    amount,
		StartDate: today.AddDays(startOffset).String(),
		EndDate:   today.AddDays(endOffset).String(),
	})
	if err != nil {
		return fmt.Errorf("contract %s: %w", code, err)
	}

	out := make([]schedule.PaymentTerm, len(terms))
	for i, st := range terms {
		pct := decimal.NewFromInt(st.percent)
		t := schedule.PaymentTerm{
			TermNumber:   i + 1,
			Description:  st.description,
			DueDate:      today.AddDays(st.dueInDays).String(),
			Amount:       schedule.AmountFromPercentage(pct, amount),
			Percentage:   pct,
			Status:       st.status,
			DocumentType: st.docType,
			FileName:     st.fileName,
		}
		if t.Status == "" {
			t.Status = schedule.StatusUnpaid
		}
		if t.Status == schedule.StatusPaid {
			t.PaidAmount = t.Amount
			t.PaidDate = today.AddDays(st.paidInDays).String()
		}
		out[i] = t
	}

	if _, err := h.Store.ReplaceSchedule(ctx, c.ID, out); err != nil {
		return fmt.Errorf("schedule %s: %w", code, err)
	}
	return nil
}

func (h *Handler) loadValidScheduleScenario(ctx context.Context) error {
	return h.seedContract(ctx, "HD-2026-001", "Warehouse construction", -10, 365, []seedTerm{
		{description: "Advance payment", percent: 20, dueInDays: 5, docType: "contract", fileName: "HD-2026-001.pdf"},
		{description: "Structure completed", percent: 70, dueInDays: 120},
		{description: "Final acceptance", percent: 10, dueInDays: 300},
	})
}

func (h *Handler) loadOverAllocatedScenario(ctx context.Context) error {
	return h.seedContract(ctx, "HD-2026-002", "Office fit-out", -10, 365, []seedTerm{
		{description: "Advance payment", percent: 30, dueInDays: 5, docType: "contract", fileName: "HD-2026-002.pdf"},
		{description: "Installation", percent: 60, dueInDays: 90},
		{description: "Handover", percent: 20, dueInDays: 200},
	})
}

func (h *Handler) loadAdvanceTooLargeScenario(ctx context.Context) error {
	return h.seedContract(ctx, "HD-2026-003", "Equipment supply", -10, 365, []seedTerm{
		{description: "Advance payment", percent: 50, dueInDays: 5, docType: "contract", fileName: "HD-2026-003.pdf"},
		{description: "Delivery", percent: 40, dueInDays: 60},
		{description: "Warranty release", percent: 10, dueInDays: 330},
	})
}

func (h *Handler) loadDateConflictsScenario(ctx context.Context) error {
	return h.seedContract(ctx, "HD-2026-004", "Software licences", -10, 365, []seedTerm{
		{description: "Advance payment", percent: 20, dueInDays: 10, docType: "contract", fileName: "HD-2026-004.pdf"},
		{description: "Licence delivery", percent: 40, dueInDays: 13},
		{description: "Go-live", percent: 30, dueInDays: 60},
		{description: "Final payment", percent: 10, dueInDays: 60},
	})
}

func (h *Handler) loadPaymentLifecycleScenario(ctx context.Context) error {
	return h.seedContract(ctx, "HD-2025-017", "Road resurfacing", -120, 240, []seedTerm{
		{description: "Advance payment", percent: 20, dueInDays: -100, status: schedule.StatusPaid, paidInDays: -98, docType: "contract", fileName: "HD-2025-017.pdf"},
		{description: "Phase 1 completed", percent: 30, dueInDays: -5, status: schedule.StatusInvoiced},
		{description: "Phase 2 completed", percent: 40, dueInDays: 60},
		{description: "Final acceptance", percent: 10, dueInDays: 200},
	})
}

/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Ad-hoc validation (whole schedule and single row)
- Contract creation and code uniqueness
- Stored schedule lifecycle: submit, add, edit, delete, status, reorder
- Rule activation, presets and persistence across restarts
- Error mapping (400/404/409/422)
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-schedule/schedule"
	"github.com/warp/payment-schedule/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setupServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// relDate returns today + days as YYYY-MM-DD.
func relDate(days int) string {
	return schedule.Today().AddDays(days).String()
}

// createContract creates a 100M contract running from 10 days ago to a year out.
func createContract(t *testing.T, router http.Handler, code string) ContractDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/contracts", map[string]any{
		"code":      code,
		"name":      "Warehouse roof",
		"amount":    "100,000,000",
		"startDate": relDate(-10),
		"endDate":   relDate(365),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ContractDTO](t, rec)
}

func healthyTerms() []map[string]any {
	return []map[string]any{
		{"description": "Advance payment", "dueDate": relDate(20), "amount": 20000000, "fileName": "contract.pdf"},
		{"description": "Milestone delivery", "dueDate": relDate(120), "amount": "50000000"},
		{"description": "Final acceptance", "dueDate": relDate(300), "amount": 30000000},
	}
}

func submitHealthy(t *testing.T, router http.Handler, id string) ScheduleResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPut, "/api/contracts/"+id+"/schedule", map[string]any{
		"mode":  "create",
		"terms": healthyTerms(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[ScheduleResponse](t, rec)
}

// =============================================================================
// AD-HOC VALIDATION
// =============================================================================

func TestValidateSchedule_AdvanceCeiling(t *testing.T) {
	// GIVEN: Rules with a 40% advance ceiling
	_, router := setupServer(t)
	rec := doJSON(t, router, http.MethodPut, "/api/rules", `{"version": "t-1", "advance_payment_max_percentage": 40}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Validating a 100M contract split in halves at start and end
	rec = doJSON(t, router, http.MethodPost, "/api/validate", map[string]any{
		"contract": map[string]any{"amount": "100,000,000", "startDate": "2026-01-01", "endDate": "2026-12-31", "mode": "edit"},
		"terms": []map[string]any{
			{"description": "Advance payment", "dueDate": "2026-01-01", "amount": 50000000},
			{"description": "Final", "due_date": "2026-12-31", "amount": "50000000"},
		},
	})

	// THEN: Exactly one error, for the advance share
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[ValidationDTO](t, rec)
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{"Advance payment is 50.00% of the contract, above the maximum of 40.00%"}, v.Errors)
	assert.Empty(t, v.Warnings)
	assert.Equal(t, float64(100000000), v.TotalAmount)
	assert.Equal(t, float64(100), v.TotalPercentage)
}

func TestValidateSchedule_EmptyListsNotNull(t *testing.T) {
	_, router := setupServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/validate", `{"contract": {"amount": 0}, "terms": []}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isValid": true, "errors": [], "warnings": [], "totalAmount": 0, "totalPercentage": 0}`, rec.Body.String())
}

func TestValidateSchedule_NegativeContractAmount(t *testing.T) {
	_, router := setupServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/validate", `{"contract": {"amount": -5}, "terms": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "negative_contract_amount", decode[ErrorResponse](t, rec).Code)
}

func TestValidateSchedule_MalformedBody(t *testing.T) {
	_, router := setupServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/validate", `{"contract": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateTerm(t *testing.T) {
	_, router := setupServer(t)
	base := map[string]any{
		"contract": map[string]any{"amount": 100000000, "mode": "edit"},
		"terms": []map[string]any{
			{"description": "Advance payment", "dueDate": "2026-02-01", "amount": 20000000},
			{"description": "Final", "dueDate": "2026-10-01", "amount": 80000000},
		},
	}

	t.Run("advance ceiling on the first row", func(t *testing.T) {
		req := base
		req["index"] = 0
		req["dueDate"] = "2026-02-01"
		req["amount"] = "50,000,000"

		rec := doJSON(t, router, http.MethodPost, "/api/validate/term", req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[TermErrorsDTO](t, rec)
		assert.Equal(t, []string{"Term 1: advance payment 50.00% exceeds the maximum of 30.00%"}, got.Errors)
	})

	t.Run("index out of range", func(t *testing.T) {
		req := base
		req["index"] = 5
		rec := doJSON(t, router, http.MethodPost, "/api/validate/term", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// CONTRACTS
// =============================================================================

func TestCreateContract(t *testing.T) {
	_, router := setupServer(t)

	// WHEN: A contract is created
	c := createContract(t, router, "HD-001")

	// THEN: It is stored with an ID and the parsed amount
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, float64(100000000), c.Amount)

	rec := doJSON(t, router, http.MethodGet, "/api/contracts/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HD-001", decode[ContractDTO](t, rec).Code)

	rec = doJSON(t, router, http.MethodGet, "/api/contracts", nil)
	assert.Len(t, decode[[]ContractDTO](t, rec), 1)
}

func TestCreateContract_Invalid(t *testing.T) {
	_, router := setupServer(t)
	createContract(t, router, "HD-001")

	// WHEN: The same code (different case) and a bad window are submitted
	rec := doJSON(t, router, http.MethodPost, "/api/contracts", map[string]any{
		"code":      "hd-001",
		"name":      "",
		"amount":    0,
		"startDate": "2026-05-01",
		"endDate":   "2026-04-01",
	})

	// THEN: Every problem is reported in one response
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "contract_invalid", resp.Code)
	assert.ElementsMatch(t, []any{
		`Contract code "hd-001" is already in use`,
		"Contract name is required",
		"Contract amount must be greater than 0",
		"End date must be after start date",
	}, resp.Details)
}

func TestCodeAvailable(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")

	rec := doJSON(t, router, http.MethodGet, "/api/contracts/code-available?code=hd-001", nil)
	assert.False(t, decode[CodeAvailableDTO](t, rec).Available)

	rec = doJSON(t, router, http.MethodGet, "/api/contracts/code-available?code=HD-001&exclude="+c.ID, nil)
	assert.True(t, decode[CodeAvailableDTO](t, rec).Available)

	rec = doJSON(t, router, http.MethodGet, "/api/contracts/code-available", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetContract_NotFound(t *testing.T) {
	_, router := setupServer(t)

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/contracts/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/contracts/nope/schedule", nil).Code)
}

// =============================================================================
// STORED SCHEDULES
// =============================================================================

func TestSubmitSchedule(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")

	// WHEN: A valid schedule is submitted
	resp := submitHealthy(t, router, c.ID)

	// THEN: Terms come back with IDs, percentages and a clean result
	require.Len(t, resp.Terms, 3)
	assert.NotEmpty(t, resp.Terms[0].ID)
	assert.Equal(t, float64(50), resp.Terms[1].Percentage)
	assert.True(t, resp.Validation.IsValid, resp.Validation.Errors)
	assert.Equal(t, float64(100000000), resp.Summary.Outstanding)
	assert.Equal(t, 3, resp.Summary.ByStatus["unpaid"].Count)

	// AND: Reading it back gives the same schedule
	rec := doJSON(t, router, http.MethodGet, "/api/contracts/"+c.ID+"/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ScheduleResponse](t, rec)
	assert.Equal(t, resp.Terms[2].ID, got.Terms[2].ID)
	assert.Equal(t, "contract.pdf", got.Terms[0].FileName)
}

func TestSubmitSchedule_Rejected(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")

	terms := healthyTerms()
	terms[2]["amount"] = 40000000

	rec := doJSON(t, router, http.MethodPut, "/api/contracts/"+c.ID+"/schedule", map[string]any{"terms": terms})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Code    string        `json:"code"`
		Details ValidationDTO `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "schedule_rejected", resp.Code)
	assert.Contains(t, resp.Details.Errors, "Total payment amount (110000000) exceeds contract value (100000000)")

	// Nothing was stored
	rec = doJSON(t, router, http.MethodGet, "/api/contracts/"+c.ID+"/schedule", nil)
	assert.Empty(t, decode[ScheduleResponse](t, rec).Terms)
}

func TestSubmitSchedule_InvalidTermIDs(t *testing.T) {
	_, router := setupServer(t)
	a := createContract(t, router, "HD-001")
	b := createContract(t, router, "HD-002")
	schedA := submitHealthy(t, router, a.ID)
	schedB := submitHealthy(t, router, b.ID)

	// GIVEN: B's schedule, once with one of A's term IDs and once with an ID repeated
	foreign := healthyTerms()
	foreign[0]["id"] = schedA.Terms[0].ID
	repeated := healthyTerms()
	repeated[0]["id"] = schedB.Terms[0].ID
	repeated[1]["id"] = schedB.Terms[0].ID

	for _, terms := range [][]map[string]any{foreign, repeated} {
		// WHEN: Submitted to B
		rec := doJSON(t, router, http.MethodPut, "/api/contracts/"+b.ID+"/schedule", map[string]any{"terms": terms})

		// THEN: A client error rather than a database failure
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}

	// B is unchanged
	rec := doJSON(t, router, http.MethodGet, "/api/contracts/"+b.ID+"/schedule", nil)
	got := decode[ScheduleResponse](t, rec)
	require.Len(t, got.Terms, 3)
	assert.Equal(t, schedB.Terms[0].ID, got.Terms[0].ID)
}

func TestSubmitSchedule_PaidWithoutPaidFields(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")

	terms := healthyTerms()
	terms[0]["status"] = "paid"

	rec := doJSON(t, router, http.MethodPut, "/api/contracts/"+c.ID+"/schedule", map[string]any{"terms": terms})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var resp struct {
		Details ValidationDTO `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Details.Errors, "Term 1: paid terms need a valid paid date")
}

func TestAddTerm(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")

	rec := doJSON(t, router, http.MethodPost, "/api/contracts/"+c.ID+"/terms", nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[TermChangeResponse](t, rec)
	assert.Equal(t, "Advance payment", resp.Term.Description)
	assert.Equal(t, float64(10000000), resp.Term.Amount)
	assert.Equal(t, relDate(30), resp.Term.DueDate)
	assert.False(t, resp.Validation.IsValid)
}

func TestUpdateTerm(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")
	sched := submitHealthy(t, router, c.ID)
	path := "/api/contracts/" + c.ID + "/terms/" + sched.Terms[1].ID

	// Percentage edit re-derives the amount
	rec := doJSON(t, router, http.MethodPut, path, `{"percentage": "45"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TermChangeResponse](t, rec)
	assert.Equal(t, float64(45000000), resp.Term.Amount)
	assert.Contains(t, resp.Validation.Errors, "Total payment amount is less than contract value by 5000000")

	// A due date outside the contract window is rejected inline
	rec = doJSON(t, router, http.MethodPut, path, map[string]any{"dueDate": relDate(400)})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "term_rejected", decode[ErrorResponse](t, rec).Code)

	// Unknown term
	rec = doJSON(t, router, http.MethodPut, "/api/contracts/"+c.ID+"/terms/nope", `{"notes": "x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTerm(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")
	sched := submitHealthy(t, router, c.ID)

	// The only contract document cannot be deleted
	rec := doJSON(t, router, http.MethodDelete, "/api/contracts/"+c.ID+"/terms/"+sched.Terms[0].ID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "delete_refused", decode[ErrorResponse](t, rec).Code)

	// Other terms can
	rec = doJSON(t, router, http.MethodDelete, "/api/contracts/"+c.ID+"/terms/"+sched.Terms[2].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[ValidationDTO](t, rec).Errors, "Total payment amount is less than contract value by 30000000")
}

func TestChangeTermStatus(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")
	sched := submitHealthy(t, router, c.ID)
	path := "/api/contracts/" + c.ID + "/terms/" + sched.Terms[0].ID + "/status"

	// Missing payment details
	rec := doJSON(t, router, http.MethodPost, path, `{"status": "paid"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_transition", resp.Code)
	assert.Len(t, resp.Details, 2)

	// Unknown status
	rec = doJSON(t, router, http.MethodPost, path, `{"status": "refunded"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Complete payment
	rec = doJSON(t, router, http.MethodPost, path, map[string]any{
		"status": "PAID", "paidDate": relDate(0), "paidAmount": "20,000,000", "notes": "wire 42",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	term := decode[TermDTO](t, rec)
	assert.Equal(t, "paid", term.Status)
	assert.Equal(t, "wire 42", term.Notes)

	rec = doJSON(t, router, http.MethodGet, "/api/contracts/"+c.ID+"/schedule", nil)
	summary := decode[ScheduleResponse](t, rec).Summary
	assert.Equal(t, float64(20000000), summary.PaidAmount)
	assert.Equal(t, float64(80000000), summary.Outstanding)
}

func TestReorderTerms(t *testing.T) {
	_, router := setupServer(t)
	c := createContract(t, router, "HD-001")
	sched := submitHealthy(t, router, c.ID)

	rec := doJSON(t, router, http.MethodPost, "/api/contracts/"+c.ID+"/terms/reorder", `{"from": 2, "to": 0}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ScheduleResponse](t, rec)
	assert.Equal(t, sched.Terms[2].ID, resp.Terms[0].ID)
	assert.Equal(t, 1, resp.Terms[0].TermNumber)
	assert.Contains(t, resp.Validation.Warnings, "First payment term is not marked as an advance payment")

	rec = doJSON(t, router, http.MethodPost, "/api/contracts/"+c.ID+"/terms/reorder", `{"from": 0, "to": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// RULES
// =============================================================================

func TestRules_UpdateAndPersist(t *testing.T) {
	h, router := setupServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/rules", `{"version": "tenant-a", "max_payment_terms": 10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "tenant-a", decode[RulesUpdateResponse](t, rec).Version)

	rec = doJSON(t, router, http.MethodGet, "/api/rules", nil)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "tenant-a", got["version"])
	assert.Equal(t, float64(10), got["max_payment_terms"])

	// A restarted handler on the same store picks the revision up
	restarted := NewHandler(h.Store)
	require.NoError(t, restarted.LoadRules(context.Background()))
	assert.Equal(t, "tenant-a", restarted.Service.Rules().Version)
	assert.Equal(t, 10, restarted.Service.Rules().MaxPaymentTerms)
}

func TestRules_Invalid(t *testing.T) {
	_, router := setupServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/rules", `{"min_payment_percentage": 150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/rules", nil)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "default-1", got["version"])
}

func TestRules_Presets(t *testing.T) {
	h, router := setupServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/rules/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 4)

	rec = doJSON(t, router, http.MethodPost, "/api/rules/presets/construction", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "construction-1", h.Service.Rules().Version)

	rec = doJSON(t, router, http.MethodPost, "/api/rules/presets/bespoke", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SWEEPS AND METRICS
// =============================================================================

func TestTriggerSweep(t *testing.T) {
	_, router := setupServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "payment-lifecycle"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: The sweep runs
	rec = doJSON(t, router, http.MethodPost, "/api/sweeps/run", nil)

	// THEN: The past-due invoiced term is marked overdue and the run recorded
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["marked"])

	rec = doJSON(t, router, http.MethodGet, "/api/sweeps", nil)
	runs := decode[[]map[string]any](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0]["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setupServer(t)
	doJSON(t, router, http.MethodPost, "/api/validate", `{"contract": {"amount": 100}, "terms": []}`)

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_schedule_validations_total")
}

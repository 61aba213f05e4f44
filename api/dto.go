/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Responses carry amounts as JSON numbers (float64) for the frontend.
  Requests carrying terms are decoded as loose JSON objects and normalized
  by schedule.CoerceTerm, which accepts numbers, numeric strings and
  thousands separators. The engine itself never sees floats.

VALIDATION:
  Validation is done in handlers and the schedule package, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RulesJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	StartDate string  `json:"startDate,omitempty"`
	EndDate   string  `json:"endDate,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// CreateContractRequest is the body of POST /api/contracts.
type CreateContractRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Amount    any    `json:"amount"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// CodeAvailableDTO answers GET /api/contracts/code-available.
type CodeAvailableDTO struct {
	Code      string `json:"code"`
	Available bool   `json:"available"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// TermDTO represents a payment term in API responses.
type TermDTO struct {
	ID           string  `json:"id,omitempty"`
	TermNumber   int     `json:"termNumber"`
	Description  string  `json:"description"`
	DueDate      string  `json:"dueDate"`
	Amount       float64 `json:"amount"`
	Percentage   float64 `json:"percentage"`
	Status       string  `json:"status"`
	PaidAmount   float64 `json:"paidAmount,omitempty"`
	PaidDate     string  `json:"paidDate,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	DocumentType string  `json:"documentType,omitempty"`
	FileName     string  `json:"fileName,omitempty"`
}

// ValidationDTO is a ValidationResult on the wire.
type ValidationDTO struct {
	IsValid         bool     `json:"isValid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	TotalAmount     float64  `json:"totalAmount"`
	TotalPercentage float64  `json:"totalPercentage"`
}

// StatusTotalsDTO is one status bucket of a schedule summary.
type StatusTotalsDTO struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// SummaryDTO aggregates a schedule per payment status.
type SummaryDTO struct {
	ByStatus    map[string]StatusTotalsDTO `json:"byStatus"`
	TotalAmount float64                    `json:"totalAmount"`
	PaidAmount  float64                    `json:"paidAmount"`
	Outstanding float64                    `json:"outstanding"`
}

// ScheduleResponse is returned by every endpoint that reads or changes a
// stored schedule, so clients never render a stale validation result.
type ScheduleResponse struct {
	Contract   ContractDTO   `json:"contract"`
	Terms      []TermDTO     `json:"terms"`
	Validation ValidationDTO `json:"validation"`
	Summary    SummaryDTO    `json:"summary"`
}

// SubmitScheduleRequest is the body of PUT /api/contracts/{id}/schedule.
type SubmitScheduleRequest struct {
	Mode  string           `json:"mode"`
	Terms []map[string]any `json:"terms"`
}

// ContractContextRequest describes the contract of an ad-hoc validation.
type ContractContextRequest struct {
	Amount    any    `json:"amount"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Mode      string `json:"mode"`
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	Contract ContractContextRequest `json:"contract"`
	Terms    []map[string]any       `json:"terms"`
}

// ValidateTermRequest is the body of POST /api/validate/term.
type ValidateTermRequest struct {
	Contract ContractContextRequest `json:"contract"`
	Terms    []map[string]any       `json:"terms"`
	Index    int                    `json:"index"`
	DueDate  string                 `json:"dueDate"`
	Amount   any                    `json:"amount"`
}

// TermErrorsDTO answers POST /api/validate/term.
type TermErrorsDTO struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// TermChangeResponse is returned by add and edit term endpoints.
type TermChangeResponse struct {
	Term       TermDTO       `json:"term"`
	Validation ValidationDTO `json:"validation"`
}

// StatusChangeRequest is the body of POST .../terms/{termID}/status.
type StatusChangeRequest struct {
	Status     string  `json:"status"`
	PaidDate   string  `json:"paidDate"`
	PaidAmount any     `json:"paidAmount"`
	Notes      *string `json:"notes"`
}

// ReorderRequest is the body of POST .../terms/reorder.
type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// =============================================================================
// RULES AND SCENARIOS
// =============================================================================

// RulesUpdateResponse is returned by PUT /api/rules.
type RulesUpdateResponse struct {
	Version   string `json:"version"`
	Revision  int64  `json:"revision"`
	UpdatedAt string `json:"updatedAt"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "valid", "invalid" or "lifecycle"
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toContractDTO(c schedule.Contract) ContractDTO {
	dto := ContractDTO{
		ID:        string(c.ID),
		Code:      c.Code,
		Name:      c.Name,
		Amount:    toFloat(c.Amount),
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	if !c.UpdatedAt.IsZero() {
		dto.UpdatedAt = c.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTermDTO(t schedule.PaymentTerm) TermDTO {
	return TermDTO{
		ID:           string(t.ID),
		TermNumber:   t.TermNumber,
		Description:  t.Description,
		DueDate:      t.DueDate,
		Amount:       toFloat(t.Amount),
		Percentage:   toFloat(t.Percentage.Round(2)),
		Status:       string(t.Status),
		PaidAmount:   toFloat(t.PaidAmount),
		PaidDate:     t.PaidDate,
		Notes:        t.Notes,
		DocumentType: t.DocumentType,
		FileName:     t.FileName,
	}
}

func toTermDTOs(terms []schedule.PaymentTerm) []TermDTO {
	out := make([]TermDTO, len(terms))
	for i, t := range terms {
		out[i] = toTermDTO(t)
	}
	return out
}

func toValidationDTO(r schedule.ValidationResult) ValidationDTO {
	dto := ValidationDTO{
		IsValid:         r.IsValid(),
		Errors:          r.Errors,
		Warnings:        r.Warnings,
		TotalAmount:     toFloat(r.TotalAmount),
		TotalPercentage: toFloat(r.TotalPercentage.Round(2)),
	}
	if dto.Errors == nil {
		dto.Errors = []string{}
	}
	if dto.Warnings == nil {
		dto.Warnings = []string{}
	}
	return dto
}

func toSummaryDTO(s schedule.Summary) SummaryDTO {
	dto := SummaryDTO{
		ByStatus:    make(map[string]StatusTotalsDTO, len(s.ByStatus)),
		TotalAmount: toFloat(s.TotalAmount),
		PaidAmount:  toFloat(s.PaidAmount),
		Outstanding: toFloat(s.Outstanding),
	}
	for st, totals := range s.ByStatus {
		dto.ByStatus[string(st)] = StatusTotalsDTO{Count: totals.Count, Amount: toFloat(totals.Amount)}
	}
	return dto
}

func toScheduleResponse(c schedule.Contract, terms []schedule.PaymentTerm, r schedule.ValidationResult) ScheduleResponse {
	return ScheduleResponse{
		Contract:   toContractDTO(c),
		Terms:      toTermDTOs(terms),
		Validation: toValidationDTO(r),
		Summary:    toSummaryDTO(schedule.StatusSummary(terms)),
	}
}

func (c ContractContextRequest) toContext() schedule.ContractContext {
	return schedule.ContractContext{
		ContractAmount: schedule.CoerceAmount(c.Amount),
		StartDate:      schedule.NormalizeDate(c.StartDate),
		EndDate:        schedule.NormalizeDate(c.EndDate),
		Mode:           schedule.ParseMode(c.Mode),
	}
}

package contract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// GENERAL INFO VALIDATOR - Sibling of the schedule validator
// =============================================================================

// CodeChecker answers "is this contract code already taken". Implemented by
// the stores; the validator only consumes the boolean.
type CodeChecker interface {
	IsContractCodeUnique(ctx context.Context, code string, exclude schedule.ContractID) (bool, error)
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{1,49}$`)

// GeneralInfo is the header of a contract as entered on the general tab.
type GeneralInfo struct {
	ID        schedule.ContractID // empty when creating
	Code      string
	Name      string
	Amount    decimal.Decimal
	StartDate string
	EndDate   string
}

// GeneralValidator checks contract header fields. It shares the rule set
// with the schedule validator.
type GeneralValidator struct {
	Rules schedule.Rules
	Codes CodeChecker // optional; uniqueness is skipped when nil
}

// Validate returns blocking messages for the header. An error is returned
// only when the uniqueness lookup itself fails.
func (v *GeneralValidator) Validate(ctx context.Context, info GeneralInfo) ([]string, error) {
	errs := []string{}

	code := strings.TrimSpace(info.Code)
	switch {
	case code == "":
		errs = append(errs, "Contract code is required")
	case !codePattern.MatchString(code):
		errs = append(errs, "Contract code may only contain letters, digits, '.', '_', '/' and '-' (2-50 characters)")
	case v.Codes != nil:
		unique, err := v.Codes.IsContractCodeUnique(ctx, code, info.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check contract code: %w", err)
		}
		if !unique {
			errs = append(errs, fmt.Sprintf("Contract code %q is already in use", code))
		}
	}

	if strings.TrimSpace(info.Name) == "" {
		errs = append(errs, "Contract name is required")
	}
	if !info.Amount.IsPositive() {
		errs = append(errs, "Contract amount must be greater than 0")
	}
	if info.Amount.IsPositive() && info.Amount.LessThan(v.Rules.MinTermAmount) {
		errs = append(errs, fmt.Sprintf("Contract amount must be at least %s", v.Rules.MinTermAmount.String()))
	}

	start, startOK := schedule.ParseDate(info.StartDate)
	end, endOK := schedule.ParseDate(info.EndDate)
	if info.StartDate != "" && !startOK {
		errs = append(errs, "Start date is not a valid date")
	}
	if info.EndDate != "" && !endOK {
		errs = append(errs, "End date is not a valid date")
	}
	if startOK && endOK && !end.After(start) {
		errs = append(errs, "End date must be after start date")
	}

	return errs, nil
}

// ToContract converts validated header fields to a schedule.Contract.
func (g GeneralInfo) ToContract() schedule.Contract {
	return schedule.Contract{
		ID:        g.ID,
		Code:      strings.TrimSpace(g.Code),
		Name:      strings.TrimSpace(g.Name),
		Amount:    g.Amount,
		StartDate: schedule.NormalizeDate(g.StartDate),
		EndDate:   schedule.NormalizeDate(g.EndDate),
	}
}

/*
Package factory converts rule files into schedule.Rules.

PURPOSE:
  Rule thresholds are per deployment and per tenant, and finance staff edit
  them without a release. The factory reads JSON (admin API, database) and
  TOML (files shipped with a deployment) into the engine's typed Rules.

MERGE SEMANTICS:
  Every field is optional. Omitted fields keep the value of the base rule set
  (schedule.DefaultRules() unless a different base is given), so a file only
  needs to state what it changes.

JSON SCHEMA:
  {
    "version": "construction-2",
    "total_amount_tolerance_percent": 0.5,
    "advance_payment_max_percentage": 40,
    "final_payment_min_percentage": 5,
    "min_payment_percentage": 1,
    "min_due_date_gap_days": 14,
    "high_value_threshold": 5000000000,
    "min_terms_for_high_value": 4,
    "max_payment_terms": 36,
    "min_term_amount": 1000000,
    "advance_keywords": ["advance", "tạm ứng"],
    "required_fields": ["description", "dueDate"],
    "require_contract_file": true,
    "min_required_files": 1,
    "contract_document_type": "contract",
    "contract_document_extension": ".pdf"
  }

TOML uses the same keys at top level.

USAGE:
  f := factory.NewRulesFactory()
  rules, err := f.ParseRulesFile("rules.toml")

SEE ALSO:
  - schedule/rules.go: Rules type and DefaultRules
  - contract/presets.go: Named presets expressed in this schema
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// FILE SCHEMA
// =============================================================================

// RulesJSON is the serialized form of schedule.Rules. Pointer fields are
// optional and fall back to the base rule set.
type RulesJSON struct {
	Version                     string   `json:"version,omitempty" toml:"version,omitempty"`
	TotalAmountTolerancePercent *float64 `json:"total_amount_tolerance_percent,omitempty" toml:"total_amount_tolerance_percent,omitempty"`
	AdvancePaymentMaxPercentage *float64 `json:"advance_payment_max_percentage,omitempty" toml:"advance_payment_max_percentage,omitempty"`
	FinalPaymentMinPercentage   *float64 `json:"final_payment_min_percentage,omitempty" toml:"final_payment_min_percentage,omitempty"`
	MinPaymentPercentage        *float64 `json:"min_payment_percentage,omitempty" toml:"min_payment_percentage,omitempty"`
	MinDueDateGapDays           *int     `json:"min_due_date_gap_days,omitempty" toml:"min_due_date_gap_days,omitempty"`
	HighValueThreshold          *float64 `json:"high_value_threshold,omitempty" toml:"high_value_threshold,omitempty"`
	MinTermsForHighValue        *int     `json:"min_terms_for_high_value,omitempty" toml:"min_terms_for_high_value,omitempty"`
	MaxPaymentTerms             *int     `json:"max_payment_terms,omitempty" toml:"max_payment_terms,omitempty"`
	MinTermAmount               *float64 `json:"min_term_amount,omitempty" toml:"min_term_amount,omitempty"`
	AdvanceKeywords             []string `json:"advance_keywords,omitempty" toml:"advance_keywords,omitempty"`
	RequiredFields              []string `json:"required_fields,omitempty" toml:"required_fields,omitempty"`
	RequireContractFile         *bool    `json:"require_contract_file,omitempty" toml:"require_contract_file,omitempty"`
	MinRequiredFiles            *int     `json:"min_required_files,omitempty" toml:"min_required_files,omitempty"`
	ContractDocumentType        *string  `json:"contract_document_type,omitempty" toml:"contract_document_type,omitempty"`
	ContractDocumentExtension   *string  `json:"contract_document_extension,omitempty" toml:"contract_document_extension,omitempty"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts rule files to schedule.Rules.
type RulesFactory struct {
	// Base supplies values for omitted fields.
	Base schedule.Rules
}

// NewRulesFactory creates a factory based on schedule.DefaultRules().
func NewRulesFactory() *RulesFactory {
	return &RulesFactory{Base: schedule.DefaultRules()}
}

// ParseRules parses a JSON rule set. Unknown keys are rejected, as in TOML.
func (f *RulesFactory) ParseRules(jsonStr string) (schedule.Rules, error) {
	var rj RulesJSON
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rj); err != nil {
		return schedule.Rules{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseRulesTOML parses a TOML rule set.
func (f *RulesFactory) ParseRulesTOML(tomlStr string) (schedule.Rules, error) {
	var rj RulesJSON
	md, err := toml.Decode(tomlStr, &rj)
	if err != nil {
		return schedule.Rules{}, fmt.Errorf("failed to parse rules TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return schedule.Rules{}, fmt.Errorf("unknown rule keys: %v", undecoded)
	}
	return f.FromJSON(rj)
}

// ParseRulesFile picks the parser from the file extension (.toml or .json).
func (f *RulesFactory) ParseRulesFile(path string) (schedule.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schedule.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return f.ParseRulesTOML(string(data))
	case ".json":
		return f.ParseRules(string(data))
	default:
		return schedule.Rules{}, fmt.Errorf("unsupported rules file extension: %s", filepath.Ext(path))
	}
}

// FromJSON merges rj over the base rules and validates the result.
func (f *RulesFactory) FromJSON(rj RulesJSON) (schedule.Rules, error) {
	r := f.Base
	r.AdvanceKeywords = append([]string(nil), f.Base.AdvanceKeywords...)
	r.RequiredFields = append([]string(nil), f.Base.RequiredFields...)

	if rj.Version != "" {
		r.Version = rj.Version
	}
	setDecimal(&r.TotalAmountTolerancePercent, rj.TotalAmountTolerancePercent)
	setDecimal(&r.AdvancePaymentMaxPercentage, rj.AdvancePaymentMaxPercentage)
	setDecimal(&r.FinalPaymentMinPercentage, rj.FinalPaymentMinPercentage)
	setDecimal(&r.MinPaymentPercentage, rj.MinPaymentPercentage)
	setDecimal(&r.HighValueThreshold, rj.HighValueThreshold)
	setDecimal(&r.MinTermAmount, rj.MinTermAmount)
	setInt(&r.MinDueDateGapDays, rj.MinDueDateGapDays)
	setInt(&r.MinTermsForHighValue, rj.MinTermsForHighValue)
	setInt(&r.MaxPaymentTerms, rj.MaxPaymentTerms)
	setInt(&r.MinRequiredFiles, rj.MinRequiredFiles)

	if rj.AdvanceKeywords != nil {
		r.AdvanceKeywords = rj.AdvanceKeywords
	}
	if rj.RequiredFields != nil {
		for _, field := range rj.RequiredFields {
			if !knownField(field) {
				return schedule.Rules{}, &schedule.InvalidRulesError{Field: "required_fields", Reason: "unknown field " + field}
			}
		}
		r.RequiredFields = rj.RequiredFields
	}
	if rj.RequireContractFile != nil {
		r.RequireContractFile = *rj.RequireContractFile
	}
	if rj.ContractDocumentType != nil {
		r.ContractDocumentType = *rj.ContractDocumentType
	}
	if rj.ContractDocumentExtension != nil {
		r.ContractDocumentExtension = *rj.ContractDocumentExtension
	}

	if err := r.Validate(); err != nil {
		return schedule.Rules{}, err
	}
	return r, nil
}

// ToJSON converts Rules to their fully populated serialized form.
func (f *RulesFactory) ToJSON(r schedule.Rules) RulesJSON {
	return RulesJSON{
		Version:                     r.Version,
		TotalAmountTolerancePercent: floatPtr(r.TotalAmountTolerancePercent),
		AdvancePaymentMaxPercentage: floatPtr(r.AdvancePaymentMaxPercentage),
		FinalPaymentMinPercentage:   floatPtr(r.FinalPaymentMinPercentage),
		MinPaymentPercentage:        floatPtr(r.MinPaymentPercentage),
		MinDueDateGapDays:           intPtr(r.MinDueDateGapDays),
		HighValueThreshold:          floatPtr(r.HighValueThreshold),
		MinTermsForHighValue:        intPtr(r.MinTermsForHighValue),
		MaxPaymentTerms:             intPtr(r.MaxPaymentTerms),
		MinTermAmount:               floatPtr(r.MinTermAmount),
		AdvanceKeywords:             r.AdvanceKeywords,
		RequiredFields:              r.RequiredFields,
		RequireContractFile:         &r.RequireContractFile,
		MinRequiredFiles:            intPtr(r.MinRequiredFiles),
		ContractDocumentType:        &r.ContractDocumentType,
		ContractDocumentExtension:   &r.ContractDocumentExtension,
	}
}

// ToTOML renders Rules as a TOML document.
func (f *RulesFactory) ToTOML(r schedule.Rules) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f.ToJSON(r)); err != nil {
		return "", fmt.Errorf("failed to encode rules TOML: %w", err)
	}
	return buf.String(), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func setDecimal(dst *decimal.Decimal, v *float64) {
	if v != nil {
		*dst = decimal.NewFromFloat(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func floatPtr(d decimal.Decimal) *float64 {
	f, _ := d.Float64()
	return &f
}

func intPtr(i int) *int { return &i }

func knownField(f string) bool {
	switch f {
	case schedule.FieldDescription, schedule.FieldDueDate:
		return true
	}
	return false
}

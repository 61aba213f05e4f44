/*
Package contract provides contract-level rules that sit next to the payment
schedule engine: named rule presets, the general-info validator and the
attachment policy.

PRESETS:
  Rule presets are JSON rule sets for common contract kinds. They are plain
  JSON strings so this package does not depend on the factory:

    jsonStr := contract.PresetJSON(contract.PresetConstruction)
    rules, err := factory.NewRulesFactory().ParseRules(jsonStr)

AVAILABLE PRESETS:
  standard      Stock thresholds (same as schedule.DefaultRules)
  construction  Larger advance allowed, wider due date spacing, retention-sized final payment
  government    Tight reconciliation tolerance, strict advance ceiling, two files required
  retainer      Monthly installments, small shares, no advance ceiling
*/
package contract

import (
	"encoding/json"
	"sort"
)

type Preset string

const (
	PresetStandard     Preset = "standard"
	PresetConstruction Preset = "construction"
	PresetGovernment   Preset = "government"
	PresetRetainer     Preset = "retainer"
)

// PresetInfo describes a preset for listing.
type PresetInfo struct {
	ID          Preset `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var presets = map[Preset]struct {
	info PresetInfo
	json func() string
}{
	PresetStandard: {
		info: PresetInfo{ID: PresetStandard, Name: "Standard", Description: "Stock thresholds for service and supply contracts"},
		json: StandardRulesJSON,
	},
	PresetConstruction: {
		info: PresetInfo{ID: PresetConstruction, Name: "Construction", Description: "Larger advance, milestone spacing, retention final payment"},
		json: ConstructionRulesJSON,
	},
	PresetGovernment: {
		info: PresetInfo{ID: PresetGovernment, Name: "Government", Description: "Tight reconciliation, strict advance ceiling"},
		json: GovernmentRulesJSON,
	},
	PresetRetainer: {
		info: PresetInfo{ID: PresetRetainer, Name: "Retainer", Description: "Monthly installments without an advance"},
		json: RetainerRulesJSON,
	},
}

// ListPresets returns every preset, sorted by ID.
func ListPresets() []PresetInfo {
	out := make([]PresetInfo, 0, len(presets))
	for _, p := range presets {
		out = append(out, p.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PresetJSON returns the rule JSON for a preset, or "" if unknown.
func PresetJSON(p Preset) string {
	if entry, ok := presets[p]; ok {
		return entry.json()
	}
	return ""
}

// StandardRulesJSON returns the stock rule set. Every other field falls back
// to schedule.DefaultRules.
func StandardRulesJSON() string {
	return marshal(map[string]interface{}{
		"version": "standard-1",
	})
}

// ConstructionRulesJSON returns rules for construction contracts.
func ConstructionRulesJSON() string {
	return marshal(map[string]interface{}{
		"version":                        "construction-1",
		"total_amount_tolerance_percent": 1,
		"advance_payment_max_percentage": 40,
		"final_payment_min_percentage":   5,
		"min_payment_percentage":         2,
		"min_due_date_gap_days":          14,
		"min_terms_for_high_value":       4,
		"max_payment_terms":              36,
	})
}

// GovernmentRulesJSON returns rules for public-sector contracts.
func GovernmentRulesJSON() string {
	return marshal(map[string]interface{}{
		"version":                        "government-1",
		"total_amount_tolerance_percent": 0.1,
		"advance_payment_max_percentage": 20,
		"final_payment_min_percentage":   10,
		"min_payment_percentage":         1,
		"min_due_date_gap_days":          30,
		"min_terms_for_high_value":       3,
		"max_payment_terms":              12,
		"require_contract_file":          true,
		"min_required_files":             2,
	})
}

// RetainerRulesJSON returns rules for monthly retainers.
func RetainerRulesJSON() string {
	return marshal(map[string]interface{}{
		"version":                        "retainer-1",
		"advance_payment_max_percentage": 100,
		"final_payment_min_percentage":   0,
		"min_payment_percentage":         0.5,
		"min_due_date_gap_days":          25,
		"min_terms_for_high_value":       6,
		"max_payment_terms":              60,
		"advance_keywords":               []string{"month 1", "first month", "advance"},
	})
}

func marshal(v map[string]interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

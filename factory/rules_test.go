package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-schedule/schedule"
)

func TestParseRules_MergesOverDefaults(t *testing.T) {
	// GIVEN: A JSON rule set that only changes the advance ceiling
	f := NewRulesFactory()

	// WHEN: Parsed
	rules, err := f.ParseRules(`{"version": "custom-1", "advance_payment_max_percentage": 40}`)

	// THEN: The changed field is applied and everything else is the default
	require.NoError(t, err)
	def := schedule.DefaultRules()
	assert.Equal(t, "custom-1", rules.Version)
	assert.True(t, rules.AdvancePaymentMaxPercentage.Equal(decimal.NewFromInt(40)))
	assert.True(t, rules.TotalAmountTolerancePercent.Equal(def.TotalAmountTolerancePercent))
	assert.Equal(t, def.MinDueDateGapDays, rules.MinDueDateGapDays)
	assert.Equal(t, def.AdvanceKeywords, rules.AdvanceKeywords)
	assert.True(t, rules.RequireContractFile)
}

func TestParseRules_ExplicitZeroAndFalse(t *testing.T) {
	rules, err := NewRulesFactory().ParseRules(`{"min_due_date_gap_days": 0, "require_contract_file": false}`)

	require.NoError(t, err)
	assert.Equal(t, 0, rules.MinDueDateGapDays)
	assert.False(t, rules.RequireContractFile)
}

func TestParseRules_DoesNotAliasBaseSlices(t *testing.T) {
	f := NewRulesFactory()
	rules, err := f.ParseRules(`{}`)
	require.NoError(t, err)

	rules.AdvanceKeywords[0] = "changed"

	assert.Equal(t, "advance", f.Base.AdvanceKeywords[0])
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"advance_payment_max_percentage": }`},
		{"negative tolerance", `{"total_amount_tolerance_percent": -1}`},
		{"share above 100", `{"final_payment_min_percentage": 120}`},
		{"min terms above max", `{"min_terms_for_high_value": 10, "max_payment_terms": 5}`},
		{"unknown required field", `{"required_fields": ["colour"]}`},
		{"amount is not a configurable required field", `{"required_fields": ["amount"]}`},
		{"unknown key", `{"advance_max": 40}`},
		{"min share above advance ceiling", `{"min_payment_percentage": 35}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRulesFactory().ParseRules(tt.json)
			assert.Error(t, err)
		})
	}

	_, err := NewRulesFactory().ParseRules(`{"required_fields": ["colour"]}`)
	assert.ErrorIs(t, err, schedule.ErrInvalidRules)
}

func TestParseRules_UnknownKeysMatchTOML(t *testing.T) {
	f := NewRulesFactory()

	_, jsonErr := f.ParseRules(`{"min_due_date_gap": 14}`)
	_, tomlErr := f.ParseRulesTOML(`min_due_date_gap = 14`)

	assert.Error(t, jsonErr)
	assert.Error(t, tomlErr)
}

func TestParseRulesTOML(t *testing.T) {
	doc := `
version = "site-rules"
min_due_date_gap_days = 14
advance_keywords = ["mobilization", "tạm ứng"]
high_value_threshold = 5000000000.0
`
	rules, err := NewRulesFactory().ParseRulesTOML(doc)

	require.NoError(t, err)
	assert.Equal(t, "site-rules", rules.Version)
	assert.Equal(t, 14, rules.MinDueDateGapDays)
	assert.Equal(t, []string{"mobilization", "tạm ứng"}, rules.AdvanceKeywords)
	assert.True(t, rules.HighValueThreshold.Equal(decimal.NewFromInt(5_000_000_000)))
}

func TestParseRulesTOML_UnknownKeys(t *testing.T) {
	_, err := NewRulesFactory().ParseRulesTOML(`advance_max = 40`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule keys")
}

func TestToTOML_ParsesBack(t *testing.T) {
	f := NewRulesFactory()
	original := schedule.DefaultRules()
	original.Version = "exported"
	original.MinTermsForHighValue = 5

	doc, err := f.ToTOML(original)
	require.NoError(t, err)

	// Parse over a base that differs everywhere so only the document counts
	g := &RulesFactory{Base: schedule.Rules{Version: "other", MaxPaymentTerms: 99}}
	back, err := g.ParseRulesTOML(doc)
	require.NoError(t, err)

	assert.Equal(t, "exported", back.Version)
	assert.Equal(t, 5, back.MinTermsForHighValue)
	assert.Equal(t, original.MaxPaymentTerms, back.MaxPaymentTerms)
	assert.True(t, back.MinTermAmount.Equal(original.MinTermAmount))
	assert.True(t, back.TotalAmountTolerancePercent.Equal(original.TotalAmountTolerancePercent))
	assert.Equal(t, original.AdvanceKeywords, back.AdvanceKeywords)
	assert.Equal(t, original.ContractDocumentExtension, back.ContractDocumentExtension)
}

func TestParseRulesFile(t *testing.T) {
	dir := t.TempDir()
	f := NewRulesFactory()

	tomlPath := filepath.Join(dir, "rules.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("max_payment_terms = 12\n"), 0o644))
	rules, err := f.ParseRulesFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 12, rules.MaxPaymentTerms)

	jsonPath := filepath.Join(dir, "rules.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"max_payment_terms": 6}`), 0o644))
	rules, err = f.ParseRulesFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 6, rules.MaxPaymentTerms)

	yamlPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("x: 1"), 0o644))
	_, err = f.ParseRulesFile(yamlPath)
	assert.Error(t, err)

	_, err = f.ParseRulesFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

package contract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-schedule/contract"
	"github.com/warp/payment-schedule/factory"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// PRESETS
// =============================================================================

func TestPresets_AllParse(t *testing.T) {
	f := factory.NewRulesFactory()

	for _, p := range contract.ListPresets() {
		t.Run(string(p.ID), func(t *testing.T) {
			jsonStr := contract.PresetJSON(p.ID)
			require.NotEmpty(t, jsonStr)

			rules, err := f.ParseRules(jsonStr)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(rules.Version, string(p.ID)), rules.Version)
		})
	}
}

func TestPresets_ListedInOrder(t *testing.T) {
	var ids []contract.Preset
	for _, p := range contract.ListPresets() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []contract.Preset{
		contract.PresetConstruction,
		contract.PresetGovernment,
		contract.PresetRetainer,
		contract.PresetStandard,
	}, ids)
}

func TestPresets_Values(t *testing.T) {
	f := factory.NewRulesFactory()

	construction, err := f.ParseRules(contract.ConstructionRulesJSON())
	require.NoError(t, err)
	assert.True(t, construction.AdvancePaymentMaxPercentage.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 14, construction.MinDueDateGapDays)

	government, err := f.ParseRules(contract.GovernmentRulesJSON())
	require.NoError(t, err)
	assert.Equal(t, "0.1", government.TotalAmountTolerancePercent.String())
	assert.Equal(t, 2, government.MinRequiredFiles)

	standard, err := f.ParseRules(contract.StandardRulesJSON())
	require.NoError(t, err)
	def := schedule.DefaultRules()
	assert.True(t, standard.AdvancePaymentMaxPercentage.Equal(def.AdvancePaymentMaxPercentage))
	assert.Equal(t, def.MaxPaymentTerms, standard.MaxPaymentTerms)
}

func TestPresetJSON_Unknown(t *testing.T) {
	assert.Empty(t, contract.PresetJSON("bespoke"))
}

// =============================================================================
// GENERAL INFO
// =============================================================================

type fakeCodes struct {
	taken map[string]schedule.ContractID
	err   error
}

func (f fakeCodes) IsContractCodeUnique(_ context.Context, code string, exclude schedule.ContractID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	owner, ok := f.taken[strings.ToUpper(code)]
	return !ok || owner == exclude, nil
}

func validInfo() contract.GeneralInfo {
	return contract.GeneralInfo{
		Code:      "HD-2026/001",
		Name:      "Warehouse roof",
		Amount:    decimal.NewFromInt(2_000_000_000),
		StartDate: "2026-01-01",
		EndDate:   "2026-12-31",
	}
}

func TestGeneralValidator_Valid(t *testing.T) {
	v := &contract.GeneralValidator{Rules: schedule.DefaultRules(), Codes: fakeCodes{}}

	errs, err := v.Validate(context.Background(), validInfo())

	require.NoError(t, err)
	require.NotNil(t, errs)
	assert.Empty(t, errs)
}

func TestGeneralValidator_Messages(t *testing.T) {
	codes := fakeCodes{taken: map[string]schedule.ContractID{"HD-2026/001": "c-1"}}
	v := &contract.GeneralValidator{Rules: schedule.DefaultRules(), Codes: codes}

	tests := []struct {
		name   string
		mutate func(*contract.GeneralInfo)
		want   string
	}{
		{"missing code", func(g *contract.GeneralInfo) { g.Code = "  " }, "Contract code is required"},
		{"bad code", func(g *contract.GeneralInfo) { g.Code = "has space" }, "Contract code may only contain letters, digits, '.', '_', '/' and '-' (2-50 characters)"},
		{"taken code", func(g *contract.GeneralInfo) { g.Code = "hd-2026/001" }, `Contract code "hd-2026/001" is already in use`},
		{"missing name", func(g *contract.GeneralInfo) { g.Name = "" }, "Contract name is required"},
		{"zero amount", func(g *contract.GeneralInfo) { g.Amount = decimal.Zero }, "Contract amount must be greater than 0"},
		{"tiny amount", func(g *contract.GeneralInfo) { g.Amount = decimal.NewFromInt(10) }, "Contract amount must be at least 1000"},
		{"bad start", func(g *contract.GeneralInfo) { g.StartDate = "2026-02-30" }, "Start date is not a valid date"},
		{"bad end", func(g *contract.GeneralInfo) { g.EndDate = "soon" }, "End date is not a valid date"},
		{"end before start", func(g *contract.GeneralInfo) { g.EndDate = "2025-12-31" }, "End date must be after start date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := validInfo()
			info.ID = "c-2"
			tt.mutate(&info)

			errs, err := v.Validate(context.Background(), info)

			require.NoError(t, err)
			assert.Contains(t, errs, tt.want)
		})
	}
}

func TestGeneralValidator_OwnCodeIsNotADuplicate(t *testing.T) {
	codes := fakeCodes{taken: map[string]schedule.ContractID{"HD-2026/001": "c-1"}}
	v := &contract.GeneralValidator{Rules: schedule.DefaultRules(), Codes: codes}
	info := validInfo()
	info.ID = "c-1"

	errs, err := v.Validate(context.Background(), info)

	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestGeneralValidator_LookupFailure(t *testing.T) {
	v := &contract.GeneralValidator{Rules: schedule.DefaultRules(), Codes: fakeCodes{err: errors.New("db down")}}

	_, err := v.Validate(context.Background(), validInfo())

	assert.Error(t, err)
}

func TestGeneralInfo_ToContract(t *testing.T) {
	info := validInfo()
	info.Code = " HD-1 "
	info.StartDate = "2026-01-01T00:00:00Z"

	c := info.ToContract()

	assert.Equal(t, "HD-1", c.Code)
	assert.Equal(t, "2026-01-01", c.StartDate)
	assert.True(t, c.Amount.Equal(info.Amount))
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func TestValidateAttachments(t *testing.T) {
	rules := schedule.DefaultRules()

	// No files at all
	assert.Equal(t, []string{
		"At least 1 file(s) must be attached (currently 0)",
		"A signed contract document must be attached",
	}, contract.ValidateAttachments(nil, rules))

	// A file, but not the contract
	assert.Equal(t, []string{"A signed contract document must be attached"},
		contract.ValidateAttachments([]contract.Attachment{{FileName: "quote.xlsx"}}, rules))

	// Contract by extension or by type
	assert.Empty(t, contract.ValidateAttachments([]contract.Attachment{{FileName: "signed.PDF"}}, rules))
	assert.Empty(t, contract.ValidateAttachments([]contract.Attachment{{FileName: "scan.tiff", DocumentType: "contract"}}, rules))

	// Policy off
	rules.RequireContractFile = false
	rules.MinRequiredFiles = 0
	assert.Empty(t, contract.ValidateAttachments(nil, rules))
}

func TestAttachmentsFromTerms(t *testing.T) {
	terms := []schedule.PaymentTerm{
		{Description: "Advance", FileName: "contract.pdf"},
		{Description: "Milestone"},
		{Description: "Final", DocumentType: "invoice", FileName: "inv-3.pdf"},
	}

	files := contract.AttachmentsFromTerms(terms)

	assert.Equal(t, []contract.Attachment{
		{FileName: "contract.pdf"},
		{FileName: "inv-3.pdf", DocumentType: "invoice"},
	}, files)
}

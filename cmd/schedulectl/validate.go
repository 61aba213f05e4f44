package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/payment-schedule/contract"
	"github.com/warp/payment-schedule/factory"
	"github.com/warp/payment-schedule/schedule"
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("file", "f", "", "Schedule file (JSON), - for stdin")
	validateCmd.Flags().String("rules", "", "Rule file (.toml or .json)")
	validateCmd.Flags().String("preset", "", "Named rule preset")
	validateCmd.Flags().String("mode", "", "Validation mode: create or edit (overrides the file)")
}

// scheduleFile is the on-disk input of the validate command.
type scheduleFile struct {
	Contract struct {
		Amount    any    `json:"amount"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
		Mode      string `json:"mode"`
	} `json:"contract"`
	Terms []map[string]any `json:"terms"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a payment schedule file",
	Long: `Validate a payment schedule against the default rules, a rule file or a
named preset. Errors and warnings are printed; the exit code is 1 when the
schedule has errors.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("schedule file required: schedulectl validate -f <file>")
	}

	rules, err := loadRules(cmd)
	if err != nil {
		return err
	}

	sf, err := readScheduleFile(path)
	if err != nil {
		return err
	}

	mode := sf.Contract.Mode
	if m, _ := cmd.Flags().GetString("mode"); m != "" {
		mode = m
	}
	ctx := schedule.ContractContext{
		ContractAmount: schedule.CoerceAmount(sf.Contract.Amount),
		StartDate:      schedule.NormalizeDate(sf.Contract.StartDate),
		EndDate:        schedule.NormalizeDate(sf.Contract.EndDate),
		Mode:           schedule.ParseMode(mode),
	}
	if ctx.ContractAmount.IsNegative() {
		return fmt.Errorf("contract amount must not be negative: %s", ctx.ContractAmount)
	}

	terms := schedule.DerivePercentages(schedule.CoerceTerms(sf.Terms), ctx.ContractAmount)
	result := schedule.NewValidator(rules).ValidateSchedule(ctx, terms)
	attachmentErrs := contract.ValidateAttachments(contract.AttachmentsFromTerms(terms), rules)

	printResult(cmd.OutOrStdout(), rules, result, attachmentErrs)

	if !result.IsValid() || len(attachmentErrs) > 0 {
		return errInvalid
	}
	return nil
}

func readScheduleFile(path string) (scheduleFile, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return scheduleFile{}, fmt.Errorf("cannot read schedule file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var sf scheduleFile
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&sf); err != nil {
		return scheduleFile{}, fmt.Errorf("invalid schedule file: %w", err)
	}
	return sf, nil
}

func printResult(w io.Writer, rules schedule.Rules, r schedule.ValidationResult, attachmentErrs []string) {
	fmt.Fprintf(w, "Rules:      %s\n", rules.Version)
	fmt.Fprintf(w, "Total:      %s (%s%%)\n", r.TotalAmount.StringFixed(2), r.TotalPercentage.StringFixed(2))

	for _, e := range r.Errors {
		fmt.Fprintf(w, "ERROR    %s\n", e)
	}
	for _, e := range attachmentErrs {
		fmt.Fprintf(w, "ERROR    %s\n", e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "WARNING  %s\n", warn)
	}

	if r.IsValid() && len(attachmentErrs) == 0 {
		fmt.Fprintf(w, "OK (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(w, "INVALID (%d error(s), %d warning(s))\n", len(r.Errors)+len(attachmentErrs), len(r.Warnings))
	}
}

// loadRules resolves --rules and --preset; with neither the defaults apply.
func loadRules(cmd *cobra.Command) (schedule.Rules, error) {
	rulesPath, _ := cmd.Flags().GetString("rules")
	preset, _ := cmd.Flags().GetString("preset")
	f := factory.NewRulesFactory()

	switch {
	case rulesPath != "" && preset != "":
		return schedule.Rules{}, fmt.Errorf("--rules and --preset are mutually exclusive")
	case rulesPath != "":
		return f.ParseRulesFile(rulesPath)
	case preset != "":
		jsonStr := contract.PresetJSON(contract.Preset(preset))
		if jsonStr == "" {
			return schedule.Rules{}, fmt.Errorf("unknown preset %q", preset)
		}
		return f.ParseRules(jsonStr)
	default:
		return schedule.DefaultRules(), nil
	}
}

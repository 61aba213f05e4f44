package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/payment-schedule/contract"
	"github.com/warp/payment-schedule/factory"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().String("rules", "", "Rule file (.toml or .json) to normalize")
	rulesCmd.Flags().String("preset", "", "Named rule preset")
	rulesCmd.Flags().Bool("list", false, "List available presets")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rule set as TOML",
	Long: `Print the effective rule set, with every default filled in, as TOML.
The output is a valid --rules file.`,
	RunE: runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, p := range contract.ListPresets() {
			fmt.Fprintf(out, "%-14s %s\n", p.ID, p.Description)
		}
		return nil
	}

	rules, err := loadRules(cmd)
	if err != nil {
		return err
	}
	doc, err := factory.NewRulesFactory().ToTOML(rules)
	if err != nil {
		return err
	}
	fmt.Fprint(out, doc)
	return nil
}

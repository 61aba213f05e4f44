/*
schedulectl - Offline payment schedule validation

PURPOSE:
  Validates a schedule file against a rule set without a server or
  database, for CI checks on contract drafts and for trying rule changes.

COMMANDS:
  validate  Validate a schedule file; exit code 1 when it has errors
  rules     Print the effective rule set as TOML

EXAMPLES:
  schedulectl validate -f draft.json --rules construction.toml --mode create
  schedulectl rules --preset government > government.toml

SCHEDULE FILE:
  {
    "contract": {"amount": 2000000000, "startDate": "2026-01-01", "endDate": "2026-12-31"},
    "terms": [
      {"description": "Advance payment", "dueDate": "2026-01-15", "amount": 400000000},
      ...
    ]
  }
*/
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errInvalid marks a completed validation that found errors.
var errInvalid = errors.New("schedule has validation errors")

var rootCmd = &cobra.Command{
	Use:           "schedulectl",
	Short:         "Validate payment schedules offline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

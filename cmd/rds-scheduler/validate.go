package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/validation"
)

// errValidationFailed is returned after the failing result was printed.
var errValidationFailed = errors.New("validation failed")

// newValidateCmd creates the "validate" subcommand for checking the
// synthesized templates.
func newValidateCmd(root *rootOptions) *cobra.Command {
	var (
		strict      bool
		skipCfnLint bool
		asJSON      bool
		disable     []string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint the synthesized templates",
		Long: `Validate synthesizes both stacks and checks them.

Checks performed:
  - Scheduler rules RDS001-RDS007: permissions, schedules, pipeline
    artifact flow and hardcoded secrets
  - cfn-lint: CloudFormation schema and best-practice rules

Examples:
    rds-scheduler validate
    rds-scheduler validate --strict --json
    rds-scheduler validate --disable RDS002`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, asm, err := root.synthesize(cmd)
			if err != nil {
				return err
			}
			logger := root.logger()
			opts := validation.Options{SkipCfnLint: skipCfnLint, Strict: strict, Logger: logger}
			opts.Lint.DisabledRules = disable

			result, err := validation.Validate(asm, "", opts)
			if err != nil {
				return err
			}
			return outputValidateResult(cmd, *result, asJSON)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as failures")
	cmd.Flags().BoolVar(&skipCfnLint, "skip-cfn-lint", false, "Only run the scheduler rules")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "Rule IDs to skip")

	return cmd
}

func outputValidateResult(cmd *cobra.Command, result rdsscheduler.ValidateResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		if result.Success {
			fmt.Fprintf(out, "Validation passed: %d stacks OK\n", result.Stacks)
		} else {
			fmt.Fprintln(out, "Validation FAILED:")
		}
		for _, msg := range result.Errors {
			fmt.Fprintf(out, "  ERROR: %s\n", msg)
		}
		for _, msg := range result.Warnings {
			fmt.Fprintf(out, "  WARNING: %s\n", msg)
		}
	}

	if !result.Success {
		return errValidationFailed
	}
	return nil
}

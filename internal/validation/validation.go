// Package validation checks a synthesized assembly before deployment.
//
// Two passes run over every stack template:
//   - internal/lint: scheduler rules (least privilege, schedules, artifacts)
//   - cfn-lint-go: CloudFormation schema and best-practice rules
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lex00/cfn-lint-go/pkg/lint"
	"go.uber.org/zap"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/app"
	schedlint "github.com/lex00/rds-scheduler-go/internal/lint"
)

// CfnLintResult contains the result of running cfn-lint on one template.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// Options configures Validate.
type Options struct {
	Lint schedlint.Options
	// SkipCfnLint runs only the scheduler rules.
	SkipCfnLint bool
	// Strict fails validation on warnings too.
	Strict bool
	Logger *zap.SugaredLogger
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return nil, errors.Wrapf(err, "linting %s", templatePath)
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}
	for _, match := range matches {
		formatted := formatMatch(match)
		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0
	return result, nil
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	pathStr := ""
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		pathStr = strings.Join(parts, "/")
	}

	if pathStr != "" {
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, pathStr)
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}

// Validate lints every template of asm. Templates are written to dir for
// cfn-lint; an empty dir uses a temporary directory that is removed
// afterwards.
func Validate(asm *app.Assembly, dir string, opts Options) (*rdsscheduler.ValidateResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	result := &rdsscheduler.ValidateResult{Stacks: len(asm.Order)}

	lr := schedlint.LintTemplates(asm.Templates, opts.Lint)
	result.Issues = lr.Issues
	for _, issue := range lr.Issues {
		line := fmt.Sprintf("%s/%s: %s: %s", issue.Stack, issue.Resource, issue.Rule, issue.Message)
		switch issue.Severity {
		case schedlint.SeverityError:
			result.Errors = append(result.Errors, line)
		case schedlint.SeverityWarning:
			result.Warnings = append(result.Warnings, line)
		}
	}

	if !opts.SkipCfnLint {
		if dir == "" {
			tmp, err := os.MkdirTemp("", "rds-scheduler-validate-")
			if err != nil {
				return nil, errors.Wrap(err, "creating temporary directory")
			}
			defer os.RemoveAll(tmp)
			dir = tmp
		}
		if _, err := asm.Write(dir); err != nil {
			return nil, err
		}

		for _, name := range asm.Order {
			path := filepath.Join(dir, asm.Manifest.Stacks[name].TemplateFile)
			cr, err := RunCfnLint(path)
			if err != nil {
				return nil, err
			}
			logger.Debugw("cfn-lint", "stack", name, "errors", len(cr.Errors), "warnings", len(cr.Warnings))
			for _, e := range cr.Errors {
				result.Errors = append(result.Errors, name+": "+e)
			}
			for _, w := range cr.Warnings {
				result.Warnings = append(result.Warnings, name+": "+w)
			}
		}
	}

	result.Success = len(result.Errors) == 0 && (!opts.Strict || len(result.Warnings) == 0)
	return result, nil
}

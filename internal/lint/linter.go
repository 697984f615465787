// Package lint checks synthesized templates for scheduler mistakes that a
// generic CloudFormation linter cannot see.
//
// Rules:
//
//	RDS001: Scheduled function policies must not use wildcards
//	RDS002: Policies granting every action on every resource
//	RDS003: Schedule rules need a valid cron expression and a target
//	RDS004: Scheduled functions need an invoke permission for their rule
//	RDS005: Scheduled functions need the instance identifier variable
//	RDS006: Pipeline artifacts must be produced before they are consumed
//	RDS007: Hardcoded secrets in template values
package lint

import (
	"sort"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
)

// Severity levels of a lint issue.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Rule checks one template.
type Rule interface {
	ID() string
	Description() string
	Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue
}

// Result contains the outcome of linting.
type Result struct {
	Success bool
	Issues  []rdsscheduler.LintIssue
}

// Errors counts issues with error severity.
func (r Result) Errors() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Options configures the linter.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
	// Rules to skip, applied after EnabledRules.
	DisabledRules []string
}

// LintTemplate runs the enabled rules on one stack template. Success is
// false only when an error-level issue is found.
func LintTemplate(stack string, t *rdsscheduler.Template, opts Options) Result {
	var issues []rdsscheduler.LintIssue
	for _, rule := range getRules(opts) {
		issues = append(issues, rule.Check(stack, t)...)
	}
	res := Result{Issues: issues}
	res.Success = res.Errors() == 0
	return res
}

// LintTemplates lints every stack in name order.
func LintTemplates(templates map[string]*rdsscheduler.Template, opts Options) Result {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	var issues []rdsscheduler.LintIssue
	for _, name := range names {
		issues = append(issues, LintTemplate(name, templates[name], opts).Issues...)
	}
	res := Result{Issues: issues}
	res.Success = res.Errors() == 0
	return res
}

// AllRules returns all available lint rules.
func AllRules() []Rule {
	return []Rule{
		FunctionPolicyWildcard{},
		AdministratorPolicy{},
		ScheduleRule{},
		ScheduledInvokePermission{},
		ScheduledFunctionInstance{},
		PipelineArtifactFlow{},
		SecretPattern{},
	}
}

// getRules returns the rules to use based on options.
func getRules(opts Options) []Rule {
	all := AllRules()

	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}
	disabled := make(map[string]bool)
	for _, id := range opts.DisabledRules {
		disabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if len(enabled) > 0 && !enabled[r.ID()] {
			continue
		}
		if disabled[r.ID()] {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

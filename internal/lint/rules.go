package lint

import (
	"fmt"
	"sort"
	"strings"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/schedule"
)

// sortedResources returns logical IDs of resources of the given type in
// name order. An empty type matches every resource.
func sortedResources(t *rdsscheduler.Template, typ string) []string {
	var ids []string
	for id, res := range t.Resources {
		if typ == "" || res.Type == typ {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// list treats a scalar as a one-element list.
func list(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// refTarget returns the logical ID of {"Ref": id}.
func refTarget(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	id, ok := m["Ref"].(string)
	return id, ok
}

// getAttTarget returns the logical ID and attribute of a Fn::GetAtt in
// either the list or the dotted form.
func getAttTarget(v any) (string, string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", "", false
	}
	switch x := m["Fn::GetAtt"].(type) {
	case []any:
		if len(x) != 2 {
			return "", "", false
		}
		id, ok1 := x[0].(string)
		attr, ok2 := x[1].(string)
		return id, attr, ok1 && ok2
	case string:
		id, attr, ok := strings.Cut(x, ".")
		return id, attr, ok
	}
	return "", "", false
}

// referencedID returns the logical ID a Ref or GetAtt points to.
func referencedID(v any) (string, bool) {
	if id, ok := refTarget(v); ok {
		return id, true
	}
	id, _, ok := getAttTarget(v)
	return id, ok
}

func statements(policy rdsscheduler.ResourceDef) []map[string]any {
	doc, _ := policy.Properties["PolicyDocument"].(map[string]any)
	var out []map[string]any
	for _, s := range list(doc["Statement"]) {
		if m, ok := s.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// trustedBy reports whether role's trust policy names service.
func trustedBy(role rdsscheduler.ResourceDef, service string) bool {
	doc, _ := role.Properties["AssumeRolePolicyDocument"].(map[string]any)
	for _, s := range list(doc["Statement"]) {
		stmt, _ := s.(map[string]any)
		principal, _ := stmt["Principal"].(map[string]any)
		for _, p := range list(principal["Service"]) {
			if p == service {
				return true
			}
		}
	}
	return false
}

func hasWildcard(values []any) bool {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.Contains(s, "*") {
			return true
		}
	}
	return false
}

func issue(rule Rule, stack, resource, severity, format string, args ...any) rdsscheduler.LintIssue {
	return rdsscheduler.LintIssue{
		Stack:    stack,
		Resource: resource,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Rule:     rule.ID(),
	}
}

// FunctionPolicyWildcard flags wildcard actions or resources in policies
// attached to Lambda roles. A scheduled function may touch exactly one
// instance with exactly one action.
type FunctionPolicyWildcard struct{}

func (r FunctionPolicyWildcard) ID() string { return "RDS001" }
func (r FunctionPolicyWildcard) Description() string {
	return "Scheduled function policies must name their actions and resources"
}

func (r FunctionPolicyWildcard) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	var issues []rdsscheduler.LintIssue
	for _, id := range sortedResources(t, "AWS::IAM::Policy") {
		policy := t.Resources[id]
		if !attachedToLambdaRole(t, policy) {
			continue
		}
		for i, stmt := range statements(policy) {
			if hasWildcard(list(stmt["Action"])) {
				issues = append(issues, issue(r, stack, id, SeverityError, "statement %d grants a wildcard action", i))
			}
			if hasWildcard(list(stmt["Resource"])) {
				issues = append(issues, issue(r, stack, id, SeverityError, "statement %d grants access to a wildcard resource", i))
			}
		}
	}
	return issues
}

func attachedToLambdaRole(t *rdsscheduler.Template, policy rdsscheduler.ResourceDef) bool {
	for _, ref := range list(policy.Properties["Roles"]) {
		roleID, ok := refTarget(ref)
		if !ok {
			continue
		}
		if role, ok := t.Resources[roleID]; ok && trustedBy(role, "lambda.amazonaws.com") {
			return true
		}
	}
	return false
}

// AdministratorPolicy warns about statements allowing every action on every
// resource. The deploy role carries one when admin permissions are enabled.
type AdministratorPolicy struct{}

func (r AdministratorPolicy) ID() string { return "RDS002" }
func (r AdministratorPolicy) Description() string {
	return "Policies granting every action on every resource"
}

func (r AdministratorPolicy) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	var issues []rdsscheduler.LintIssue
	for _, id := range sortedResources(t, "AWS::IAM::Policy") {
		for _, stmt := range statements(t.Resources[id]) {
			if stmt["Effect"] != "Allow" {
				continue
			}
			if containsValue(list(stmt["Action"]), "*") && containsValue(list(stmt["Resource"]), "*") {
				issues = append(issues, issue(r, stack, id, SeverityWarning, "policy grants administrator access"))
			}
		}
	}
	return issues
}

func containsValue(values []any, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// ScheduleRule checks that schedule expressions parse and that enabled
// rules have a target.
type ScheduleRule struct{}

func (r ScheduleRule) ID() string { return "RDS003" }
func (r ScheduleRule) Description() string {
	return "Schedule rules need a valid cron expression and a target"
}

func (r ScheduleRule) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	var issues []rdsscheduler.LintIssue
	for _, id := range sortedResources(t, "AWS::Events::Rule") {
		props := t.Resources[id].Properties
		raw, ok := props["ScheduleExpression"].(string)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(raw, "cron(") && strings.HasSuffix(raw, ")"):
			if _, err := schedule.ParseExpression(strings.TrimSuffix(strings.TrimPrefix(raw, "cron("), ")")); err != nil {
				issues = append(issues, issue(r, stack, id, SeverityError, "%v", err))
			}
		case strings.HasPrefix(raw, "rate(") && strings.HasSuffix(raw, ")"):
		default:
			issues = append(issues, issue(r, stack, id, SeverityError, "schedule expression %q is neither cron(...) nor rate(...)", raw))
		}
		if props["State"] != "DISABLED" && len(list(props["Targets"])) == 0 {
			issues = append(issues, issue(r, stack, id, SeverityWarning, "enabled schedule rule has no targets"))
		}
	}
	return issues
}

// scheduledFunctions maps each function targeted by a schedule rule to the
// rules targeting it.
func scheduledFunctions(t *rdsscheduler.Template) map[string][]string {
	out := make(map[string][]string)
	for _, ruleID := range sortedResources(t, "AWS::Events::Rule") {
		props := t.Resources[ruleID].Properties
		if _, ok := props["ScheduleExpression"]; !ok {
			continue
		}
		for _, target := range list(props["Targets"]) {
			m, _ := target.(map[string]any)
			fnID, ok := referencedID(m["Arn"])
			if !ok {
				continue
			}
			if res, ok := t.Resources[fnID]; ok && res.Type == "AWS::Lambda::Function" {
				out[fnID] = append(out[fnID], ruleID)
			}
		}
	}
	return out
}

// ScheduledInvokePermission requires a lambda permission letting each
// schedule rule invoke its target. Without it the rule fires and nothing
// runs.
type ScheduledInvokePermission struct{}

func (r ScheduledInvokePermission) ID() string { return "RDS004" }
func (r ScheduledInvokePermission) Description() string {
	return "Scheduled functions need an invoke permission for their rule"
}

func (r ScheduledInvokePermission) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	type grant struct{ fn, rule string }
	granted := make(map[grant]bool)
	for _, id := range sortedResources(t, "AWS::Lambda::Permission") {
		props := t.Resources[id].Properties
		if props["Principal"] != "events.amazonaws.com" || props["Action"] != "lambda:InvokeFunction" {
			continue
		}
		fnID, ok1 := referencedID(props["FunctionName"])
		ruleID, ok2 := referencedID(props["SourceArn"])
		if ok1 && ok2 {
			granted[grant{fnID, ruleID}] = true
		}
	}

	var issues []rdsscheduler.LintIssue
	scheduled := scheduledFunctions(t)
	for _, fnID := range sortedKeys(scheduled) {
		for _, ruleID := range scheduled[fnID] {
			if !granted[grant{fnID, ruleID}] {
				issues = append(issues, issue(r, stack, fnID, SeverityError, "rule %s cannot invoke the function", ruleID))
			}
		}
	}
	return issues
}

// ScheduledFunctionInstance requires scheduled functions to carry the
// instance identifier their handler acts on.
type ScheduledFunctionInstance struct{}

func (r ScheduledFunctionInstance) ID() string { return "RDS005" }
func (r ScheduledFunctionInstance) Description() string {
	return "Scheduled functions need the instance identifier variable"
}

func (r ScheduledFunctionInstance) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	var issues []rdsscheduler.LintIssue
	for _, fnID := range sortedKeys(scheduledFunctions(t)) {
		env, _ := t.Resources[fnID].Properties["Environment"].(map[string]any)
		vars, _ := env["Variables"].(map[string]any)
		if v, ok := vars[rdsscheduler.InstanceEnvVar].(string); !ok || v == "" {
			issues = append(issues, issue(r, stack, fnID, SeverityError, "missing %s environment variable", rdsscheduler.InstanceEnvVar))
		}
	}
	return issues
}

// PipelineArtifactFlow checks that the first stage only sources, that each
// input artifact is produced by an earlier stage or an earlier run order,
// and that output artifact names are unique.
type PipelineArtifactFlow struct{}

func (r PipelineArtifactFlow) ID() string { return "RDS006" }
func (r PipelineArtifactFlow) Description() string {
	return "Pipeline artifacts must be produced before they are consumed"
}

func (r PipelineArtifactFlow) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	var issues []rdsscheduler.LintIssue
	for _, id := range sortedResources(t, "AWS::CodePipeline::Pipeline") {
		stages := list(t.Resources[id].Properties["Stages"])
		if len(stages) < 2 {
			issues = append(issues, issue(r, stack, id, SeverityError, "pipeline needs at least two stages"))
		}

		produced := make(map[string]bool)
		for i, s := range stages {
			stage, _ := s.(map[string]any)
			stageName, _ := stage["Name"].(string)
			actions := list(stage["Actions"])

			// Outputs become visible to later run orders in the same stage.
			local := make(map[string]float64)
			for _, a := range actions {
				action, _ := a.(map[string]any)
				order := runOrder(action)
				for _, o := range list(action["OutputArtifacts"]) {
					name := artifactName(o)
					if _, dup := local[name]; dup || produced[name] {
						issues = append(issues, issue(r, stack, id, SeverityError, "artifact %s is produced more than once", name))
					}
					local[name] = order
				}
			}

			for _, a := range actions {
				action, _ := a.(map[string]any)
				actionName, _ := action["Name"].(string)
				typeID, _ := action["ActionTypeId"].(map[string]any)
				if i == 0 && typeID["Category"] != "Source" {
					issues = append(issues, issue(r, stack, id, SeverityError, "stage %s: action %s is not a source action", stageName, actionName))
				}
				for _, in := range list(action["InputArtifacts"]) {
					name := artifactName(in)
					if produced[name] {
						continue
					}
					if order, ok := local[name]; ok && order < runOrder(action) {
						continue
					}
					issues = append(issues, issue(r, stack, id, SeverityError, "stage %s: action %s consumes %s before it is produced", stageName, actionName, name))
				}
			}

			for name := range local {
				produced[name] = true
			}
		}
	}
	return issues
}

func runOrder(action map[string]any) float64 {
	if n, ok := action["RunOrder"].(float64); ok {
		return n
	}
	return 1
}

func artifactName(v any) string {
	m, _ := v.(map[string]any)
	name, _ := m["Name"].(string)
	return name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package schedule declares Lambda functions that run a single RDS operation
// on an EventBridge cron schedule.
package schedule

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/codeparams"
	"github.com/lex00/rds-scheduler-go/intrinsics"
	"github.com/lex00/rds-scheduler-go/resources/events"
	"github.com/lex00/rds-scheduler-go/resources/iam"
	"github.com/lex00/rds-scheduler-go/resources/lambda"
)

// ErrWildcardPermission is returned when an action would grant a wildcard
// operation or resource.
var ErrWildcardPermission = errors.New("wildcard permission")

// BasicExecutionPolicy is the managed policy granting CloudWatch Logs access.
const BasicExecutionPolicy = "service-role/AWSLambdaBasicExecutionRole"

// Action is one scheduled operation against one database instance.
type Action struct {
	// Name prefixes every logical ID, e.g. DBShutDown.
	Name        string
	InstanceID  string
	InstanceARN string
	// Operation is the single IAM action granted, e.g. rds:StopDBInstance.
	Operation string
	// Expression is a six-field cron expression.
	Expression string
}

// FunctionSettings are the function properties shared by every action.
type FunctionSettings struct {
	Runtime      string
	Handler      string
	Architecture string
	MemorySize   int
	Timeout      time.Duration
}

// DefaultFunctionSettings returns the settings used when config leaves them unset.
func DefaultFunctionSettings() FunctionSettings {
	return FunctionSettings{
		Runtime:      "provided.al2023",
		Handler:      "bootstrap",
		Architecture: "arm64",
		MemorySize:   128,
		Timeout:      300 * time.Second,
	}
}

// Stack is where an action declares its resources.
type Stack interface {
	AddResource(name string, res rdsscheduler.Resource, dependsOn ...string) error
	AddParameter(name string, param rdsscheduler.Parameter) error
}

// Result names what Build declared.
type Result struct {
	FunctionID   string
	RoleID       string
	PolicyID     string
	RuleID       string
	PermissionID string
	Statement    intrinsics.PolicyStatement
	Expression   Expression
}

// Validate checks the action without declaring anything.
func (a Action) Validate() error {
	if a.Name == "" {
		return errors.New("action name must not be empty")
	}
	if a.InstanceID == "" {
		return errors.Newf("%s: instance identifier must not be empty", a.Name)
	}
	service, op, ok := strings.Cut(a.Operation, ":")
	if !ok || service == "" || op == "" {
		return errors.WithHint(
			errors.Newf("%s: operation %q is not service:Action", a.Name, a.Operation),
			"e.g. rds:StopDBInstance",
		)
	}
	if strings.Contains(a.Operation, "*") {
		return errors.WithHint(
			errors.Wrapf(ErrWildcardPermission, "%s: operation %q", a.Name, a.Operation),
			"grant the single RDS operation the function calls",
		)
	}
	if a.InstanceARN == "" || strings.Contains(a.InstanceARN, "*") {
		return errors.WithHint(
			errors.Wrapf(ErrWildcardPermission, "%s: resource %q", a.Name, a.InstanceARN),
			"scope the permission to the instance ARN",
		)
	}
	if _, err := ParseExpression(a.Expression); err != nil {
		return errors.Wrapf(err, "%s", a.Name)
	}
	return nil
}

// Build declares the function, its role and policy, the schedule rule and
// the permission letting the rule invoke the function. code is bound to the
// new function.
func Build(stack Stack, action Action, fn FunctionSettings, code *codeparams.Code) (*Result, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	expr := MustParseExpression(action.Expression)

	r := &Result{
		FunctionID:   action.Name + "Function",
		RoleID:       action.Name + "FunctionServiceRole",
		PolicyID:     action.Name + "FunctionServiceRoleDefaultPolicy",
		RuleID:       action.Name + "Rule",
		PermissionID: action.Name + "RuleAllowEventRuleFunction",
		Statement:    intrinsics.Allow(intrinsics.Any(action.Operation), intrinsics.Any(action.InstanceARN)),
		Expression:   expr,
	}

	fnCode, err := code.Bind(stack, r.FunctionID)
	if err != nil {
		return nil, err
	}

	declare := []struct {
		id        string
		res       rdsscheduler.Resource
		dependsOn []string
	}{
		{r.RoleID, iam.Role{
			AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("lambda.amazonaws.com"),
			ManagedPolicyArns:        intrinsics.Any(intrinsics.ManagedPolicyArn(BasicExecutionPolicy)),
		}, nil},
		{r.PolicyID, iam.Policy{
			PolicyDocument: intrinsics.NewPolicyDocument(r.Statement),
			PolicyName:     r.PolicyID,
			Roles:          intrinsics.Any(intrinsics.Ref{LogicalName: r.RoleID}),
		}, nil},
		{r.FunctionID, lambda.Function{
			Architectures: []string{fn.Architecture},
			Code:          fnCode,
			Environment: &lambda.Function_Environment{
				Variables: map[string]any{rdsscheduler.InstanceEnvVar: action.InstanceID},
			},
			Handler:    fn.Handler,
			MemorySize: fn.MemorySize,
			Role:       intrinsics.GetAtt{LogicalName: r.RoleID, Attribute: "Arn"},
			Runtime:    fn.Runtime,
			Timeout:    int(fn.Timeout / time.Second),
		}, []string{r.PolicyID, r.RoleID}},
		{r.RuleID, events.Rule{
			ScheduleExpression: expr.ScheduleExpression(),
			State:              "ENABLED",
			Targets: []events.Rule_Target{{
				Arn: intrinsics.GetAtt{LogicalName: r.FunctionID, Attribute: "Arn"},
				Id:  "Target0",
			}},
		}, nil},
		{r.PermissionID, lambda.Permission{
			Action:       "lambda:InvokeFunction",
			FunctionName: intrinsics.GetAtt{LogicalName: r.FunctionID, Attribute: "Arn"},
			Principal:    "events.amazonaws.com",
			SourceArn:    intrinsics.GetAtt{LogicalName: r.RuleID, Attribute: "Arn"},
		}, nil},
	}

	for _, d := range declare {
		if err := stack.AddResource(d.id, d.res, d.dependsOn...); err != nil {
			return nil, errors.Wrapf(err, "declaring %s", action.Name)
		}
	}
	return r, nil
}

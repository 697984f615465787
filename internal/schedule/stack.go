package schedule

import (
	"github.com/cockroachdb/errors"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/app"
	"github.com/lex00/rds-scheduler-go/internal/codeparams"
)

// LambdaStackName is the logical name of the scheduled functions stack.
const LambdaStackName = "LambdaStack"

// Default schedules, UTC.
const (
	DefaultStopExpression  = "0 17 ? * MON-FRI *"
	DefaultStartExpression = "0 5 ? * MON-FRI *"
)

// LambdaStackProps configures NewLambdaStack.
type LambdaStackProps struct {
	Env             rdsscheduler.Environment
	InstanceID      string
	InstanceARN     string
	StopExpression  string
	StartExpression string
	Function        FunctionSettings
}

// LambdaStack holds the shutdown and startup functions of one instance.
type LambdaStack struct {
	*app.Stack

	ShutDown     *Result
	StartUp      *Result
	ShutDownCode *codeparams.Code
	StartUpCode  *codeparams.Code
}

// ShutDownAction is the stop action for an instance.
func ShutDownAction(instanceID, instanceARN, expression string) Action {
	return Action{
		Name:        "DBShutDown",
		InstanceID:  instanceID,
		InstanceARN: instanceARN,
		Operation:   "rds:StopDBInstance",
		Expression:  expression,
	}
}

// StartUpAction is the start action for an instance.
func StartUpAction(instanceID, instanceARN, expression string) Action {
	return Action{
		Name:        "DBStartUp",
		InstanceID:  instanceID,
		InstanceARN: instanceARN,
		Operation:   "rds:StartDBInstance",
		Expression:  expression,
	}
}

// NewLambdaStack adds the scheduled functions stack to a. The returned code
// placeholders are meant for the pipeline that deploys the stack.
func NewLambdaStack(a *app.App, props LambdaStackProps) (*LambdaStack, error) {
	if props.StopExpression == "" {
		props.StopExpression = DefaultStopExpression
	}
	if props.StartExpression == "" {
		props.StartExpression = DefaultStartExpression
	}
	if props.Function == (FunctionSettings{}) {
		props.Function = DefaultFunctionSettings()
	}
	if sameSchedule(props.StopExpression, props.StartExpression) {
		return nil, errors.WithHint(
			errors.Newf("stop and start expressions are both %q", props.StopExpression),
			"the instance would be stopped and started at the same moment",
		)
	}

	stack, err := a.NewStack(LambdaStackName, "Scheduled start and stop of RDS instance "+props.InstanceID, props.Env)
	if err != nil {
		return nil, err
	}

	ls := &LambdaStack{
		Stack:        stack,
		ShutDownCode: codeparams.New(),
		StartUpCode:  codeparams.New(),
	}

	ls.ShutDown, err = Build(stack, ShutDownAction(props.InstanceID, props.InstanceARN, props.StopExpression), props.Function, ls.ShutDownCode)
	if err != nil {
		return nil, err
	}
	ls.StartUp, err = Build(stack, StartUpAction(props.InstanceID, props.InstanceARN, props.StartExpression), props.Function, ls.StartUpCode)
	if err != nil {
		return nil, err
	}
	return ls, nil
}

// sameSchedule reports whether two expressions fire at the same times.
// Invalid expressions are left for Build to report.
func sameSchedule(a, b string) bool {
	ea, errA := ParseExpression(a)
	eb, errB := ParseExpression(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ea.Equivalent(eb)
}

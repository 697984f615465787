package schedule

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/app"
	"github.com/lex00/rds-scheduler-go/internal/codeparams"
	"github.com/lex00/rds-scheduler-go/internal/template"
)

const (
	testAccount = "111111111111"
	testRegion  = "us-east-1"
	testID      = "mydb"
	testARN     = "arn:aws:rds:us-east-1:111111111111:db:mydb"
)

func TestAction_Validate(t *testing.T) {
	valid := ShutDownAction(testID, testARN, DefaultStopExpression)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(*Action)
		wildcard bool
	}{
		{"no name", func(a *Action) { a.Name = "" }, false},
		{"no instance", func(a *Action) { a.InstanceID = "" }, false},
		{"malformed operation", func(a *Action) { a.Operation = "StopDBInstance" }, false},
		{"wildcard operation", func(a *Action) { a.Operation = "rds:*" }, true},
		{"wildcard resource", func(a *Action) { a.InstanceARN = "*" }, true},
		{"wildcard in arn", func(a *Action) { a.InstanceARN = "arn:aws:rds:us-east-1:111111111111:db:*" }, true},
		{"missing resource", func(a *Action) { a.InstanceARN = "" }, true},
		{"bad expression", func(a *Action) { a.Expression = "0 17 * * MON-FRI" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.wildcard, errors.Is(err, ErrWildcardPermission))
		})
	}
}

func TestBuild(t *testing.T) {
	b := template.NewBuilder("")
	code := codeparams.New()

	res, err := Build(b, ShutDownAction(testID, testARN, DefaultStopExpression), DefaultFunctionSettings(), code)
	require.NoError(t, err)

	assert.Equal(t, "DBShutDownFunction", res.FunctionID)
	assert.Equal(t, "DBShutDownRule", res.RuleID)
	assert.True(t, code.IsBound())

	tmpl, err := b.Build()
	require.NoError(t, err)

	assert.Len(t, tmpl.Parameters, 2)
	types := map[string]string{}
	for id, r := range tmpl.Resources {
		types[id] = r.Type
	}
	assert.Equal(t, map[string]string{
		"DBShutDownFunction":                         "AWS::Lambda::Function",
		"DBShutDownFunctionServiceRole":              "AWS::IAM::Role",
		"DBShutDownFunctionServiceRoleDefaultPolicy": "AWS::IAM::Policy",
		"DBShutDownRule":                             "AWS::Events::Rule",
		"DBShutDownRuleAllowEventRuleFunction":       "AWS::Lambda::Permission",
	}, types)

	fn := tmpl.Resources["DBShutDownFunction"]
	assert.Equal(t, []string{"DBShutDownFunctionServiceRole", "DBShutDownFunctionServiceRoleDefaultPolicy"}, fn.DependsOn)
	assert.Equal(t, float64(128), fn.Properties["MemorySize"])
	assert.Equal(t, float64(300), fn.Properties["Timeout"])
	assert.Equal(t, "provided.al2023", fn.Properties["Runtime"])
	assert.Equal(t, []any{"arm64"}, fn.Properties["Architectures"])
	assert.Equal(t, map[string]any{"Variables": map[string]any{"INSTANCE_IDENTIFIER": "mydb"}}, fn.Properties["Environment"])

	rule := tmpl.Resources["DBShutDownRule"]
	assert.Equal(t, "cron(0 17 ? * MON-FRI *)", rule.Properties["ScheduleExpression"])

	perm := tmpl.Resources["DBShutDownRuleAllowEventRuleFunction"]
	assert.Equal(t, "events.amazonaws.com", perm.Properties["Principal"])
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"DBShutDownRule", "Arn"}}, perm.Properties["SourceArn"])
}

func TestBuild_PolicyStatement(t *testing.T) {
	b := template.NewBuilder("")
	_, err := Build(b, StartUpAction(testID, testARN, DefaultStartExpression), DefaultFunctionSettings(), codeparams.New())
	require.NoError(t, err)

	tmpl, err := b.Build()
	require.NoError(t, err)

	data, err := json.Marshal(tmpl.Resources["DBStartUpFunctionServiceRoleDefaultPolicy"].Properties["PolicyDocument"])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Action": ["rds:StartDBInstance"],
			"Resource": ["arn:aws:rds:us-east-1:111111111111:db:mydb"]
		}]
	}`, string(data))
}

func TestBuild_InvalidDeclaresNothing(t *testing.T) {
	b := template.NewBuilder("")
	code := codeparams.New()

	_, err := Build(b, ShutDownAction(testID, "*", DefaultStopExpression), DefaultFunctionSettings(), code)
	require.Error(t, err)
	assert.False(t, code.IsBound())
	assert.False(t, b.Has("DBShutDownFunction"))
}

func newLambdaStack(t *testing.T) (*app.App, *LambdaStack) {
	t.Helper()
	a := app.New()
	ls, err := NewLambdaStack(a, LambdaStackProps{
		Env:         rdsscheduler.Environment{Account: testAccount, Region: testRegion},
		InstanceID:  testID,
		InstanceARN: testARN,
	})
	require.NoError(t, err)
	return a, ls
}

func TestNewLambdaStack_EndToEnd(t *testing.T) {
	a, ls := newLambdaStack(t)
	assert.True(t, ls.ShutDownCode.IsBound())
	assert.True(t, ls.StartUpCode.IsBound())

	asm, err := a.Synth()
	require.NoError(t, err)
	tmpl := asm.Templates[LambdaStackName]
	require.NotNil(t, tmpl)
	assert.Equal(t, "aws://111111111111/us-east-1", asm.Manifest.Stacks[LambdaStackName].Environment)

	functions := 0
	for _, r := range tmpl.Resources {
		if r.Type != "AWS::Lambda::Function" {
			continue
		}
		functions++
		env := r.Properties["Environment"].(map[string]any)["Variables"].(map[string]any)
		assert.Equal(t, map[string]any{"INSTANCE_IDENTIFIER": "mydb"}, env)
	}
	assert.Equal(t, 2, functions)

	ops := map[string]bool{}
	for _, res := range []*Result{ls.ShutDown, ls.StartUp} {
		actions := res.Statement.Action.([]any)
		resources := res.Statement.Resource.([]any)
		require.Len(t, actions, 1)
		require.Len(t, resources, 1)
		assert.Equal(t, testARN, resources[0])
		assert.NotContains(t, actions[0], "*")
		ops[actions[0].(string)] = true
	}
	assert.Equal(t, map[string]bool{"rds:StopDBInstance": true, "rds:StartDBInstance": true}, ops)

	assert.NotEqual(t, ls.ShutDown.Expression.String(), ls.StartUp.Expression.String())
}

func TestNewLambdaStack_SameExpressions(t *testing.T) {
	for _, start := range []string{DefaultStopExpression, "0 17 ? * 2-6 *"} {
		_, err := NewLambdaStack(app.New(), LambdaStackProps{
			InstanceID:      testID,
			InstanceARN:     testARN,
			StopExpression:  DefaultStopExpression,
			StartExpression: start,
		})
		require.Error(t, err, start)
	}
}

func TestNewLambdaStack_Deterministic(t *testing.T) {
	render := func() []byte {
		a, _ := newLambdaStack(t)
		asm, err := a.Synth()
		require.NoError(t, err)
		data, err := template.ToJSON(asm.Templates[LambdaStackName])
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, string(render()), string(render()))
}

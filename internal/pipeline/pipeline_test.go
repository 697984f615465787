package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/codeparams"
	"github.com/lex00/rds-scheduler-go/internal/lookup"
	"github.com/lex00/rds-scheduler-go/internal/template"
	"github.com/lex00/rds-scheduler-go/resources/codepipeline"
)

type mapLookup map[string]string

func (m mapLookup) StringParameter(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.Wrapf(lookup.ErrNotFound, "%s", name)
	}
	return v, nil
}

var testLookups = mapLookup{
	DefaultOwnerParameter: "octo",
	DefaultRepoParameter:  "rds-scheduler-go",
}

func testProps(t *testing.T) Props {
	t.Helper()
	lambdaStack := template.NewBuilder("")
	props := DefaultProps()
	props.ShutDownCode = codeparams.New()
	props.StartUpCode = codeparams.New()
	_, err := props.ShutDownCode.Bind(lambdaStack, "DBShutDownFunction")
	require.NoError(t, err)
	_, err = props.StartUpCode.Bind(lambdaStack, "DBStartUpFunction")
	require.NoError(t, err)
	return props
}

func assemble(t *testing.T, props Props) (*Pipeline, *rdsscheduler.Template) {
	t.Helper()
	b := template.NewBuilder("")
	p, err := Assemble(context.Background(), b, testLookups, props)
	require.NoError(t, err)
	tmpl, err := b.Build()
	require.NoError(t, err)
	return p, tmpl
}

func TestAssemble_Stages(t *testing.T) {
	p, _ := assemble(t, testProps(t))

	require.Len(t, p.Stages, 3)
	names := []any{}
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []any{SourceStage, BuildStage, DeployStage}, names)
	assert.Equal(t, "octo", p.Owner)
	assert.Equal(t, "rds-scheduler-go", p.Repo)
}

func TestAssemble_BuildActionsRunTogether(t *testing.T) {
	p, _ := assemble(t, testProps(t))

	build, ok := p.Stage(BuildStage)
	require.True(t, ok)
	require.Len(t, build.Actions, 3)

	runOrders := map[int]bool{}
	for _, a := range build.Actions {
		runOrders[a.RunOrder] = true
		assert.Equal(t, []codepipeline.Pipeline_InputArtifact{{Name: "SourceOutput"}}, a.InputArtifacts)
		require.Len(t, a.OutputArtifacts, 1)
	}
	assert.Len(t, runOrders, 1)
}

func TestAssemble_DeployConsumesAllBuildOutputs(t *testing.T) {
	p, _ := assemble(t, testProps(t))

	build, _ := p.Stage(BuildStage)
	produced := map[any]bool{}
	for _, a := range build.Actions {
		produced[a.OutputArtifacts[0].Name] = true
	}

	deploy, ok := p.Stage(DeployStage)
	require.True(t, ok)
	require.Len(t, deploy.Actions, 1)
	action := deploy.Actions[0]

	consumed := map[any]bool{}
	for _, in := range action.InputArtifacts {
		consumed[in.Name] = true
	}
	assert.Equal(t, produced, consumed)

	cfg := action.Configuration
	assert.Equal(t, "CREATE_UPDATE", cfg["ActionMode"])
	assert.Equal(t, "LambdaDeploymentStack", cfg["StackName"])
	assert.Equal(t, "CAPABILITY_NAMED_IAM", cfg["Capabilities"])
	assert.Equal(t, "CdkBuildOutput::LambdaStack.template.json", cfg["TemplatePath"])
}

func TestAssemble_ParameterOverrides(t *testing.T) {
	p, _ := assemble(t, testProps(t))
	deploy, _ := p.Stage(DeployStage)

	var overrides map[string]any
	require.NoError(t, json.Unmarshal([]byte(deploy.Actions[0].Configuration["ParameterOverrides"].(string)), &overrides))

	assert.Equal(t, map[string]any{
		"DBShutDownFunctionLambdaSourceBucketNameParameter": map[string]any{"Fn::GetArtifactAtt": []any{"ShutDownLambdaBuildOutput", "BucketName"}},
		"DBShutDownFunctionLambdaSourceObjectKeyParameter":  map[string]any{"Fn::GetArtifactAtt": []any{"ShutDownLambdaBuildOutput", "ObjectKey"}},
		"DBStartUpFunctionLambdaSourceBucketNameParameter":  map[string]any{"Fn::GetArtifactAtt": []any{"StartUpLambdaBuildOutput", "BucketName"}},
		"DBStartUpFunctionLambdaSourceObjectKeyParameter":   map[string]any{"Fn::GetArtifactAtt": []any{"StartUpLambdaBuildOutput", "ObjectKey"}},
	}, overrides)
}

func TestAssemble_SourceAction(t *testing.T) {
	p, tmpl := assemble(t, testProps(t))
	source, _ := p.Stage(SourceStage)
	cfg := source.Actions[0].Configuration

	assert.Equal(t, "octo", cfg["Owner"])
	assert.Equal(t, "master", cfg["Branch"])
	assert.Equal(t, false, cfg["PollForSourceChanges"])

	props := tmpl.Resources[PipelineID].Properties
	stages := props["Stages"].([]any)
	action := stages[0].(map[string]any)["Actions"].([]any)[0].(map[string]any)
	assert.Equal(t,
		"{{resolve:secretsmanager:/automatic-aws-db-shutdown-cdk/github/token:SecretString:github-token::}}",
		action["Configuration"].(map[string]any)["OAuthToken"])

	webhook, ok := tmpl.Resources[WebhookID]
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Ref": PipelineID}, webhook.Properties["TargetPipeline"])
}

func TestAssemble_NoWebhook(t *testing.T) {
	props := testProps(t)
	props.Source.Webhook = false
	p, tmpl := assemble(t, props)

	assert.NotContains(t, tmpl.Resources, WebhookID)
	source, _ := p.Stage(SourceStage)
	assert.Equal(t, true, source.Actions[0].Configuration["PollForSourceChanges"])
}

func policyStatements(t *testing.T, tmpl *rdsscheduler.Template, id string) []any {
	t.Helper()
	res, ok := tmpl.Resources[id]
	require.True(t, ok, id)
	return res.Properties["PolicyDocument"].(map[string]any)["Statement"].([]any)
}

func TestAssemble_DeployRoleReadsArtifacts(t *testing.T) {
	_, tmpl := assemble(t, testProps(t))
	statements := policyStatements(t, tmpl, DeployPolicyID)
	require.Len(t, statements, 2)

	read := statements[0].(map[string]any)
	assert.Equal(t, []any{"s3:GetObject*", "s3:GetBucket*", "s3:List*"}, read["Action"])
	resources := read["Resource"].([]any)
	require.Len(t, resources, 2)
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{ArtifactsBucketID, "Arn"}}, resources[0])

	admin := statements[1].(map[string]any)
	assert.Equal(t, []any{"*"}, admin["Action"])
}

func TestAssemble_WithoutAdminPermissions(t *testing.T) {
	props := testProps(t)
	props.AdminPermissions = false
	_, tmpl := assemble(t, props)

	assert.Len(t, policyStatements(t, tmpl, DeployPolicyID), 1)
}

func TestAssemble_Resources(t *testing.T) {
	_, tmpl := assemble(t, testProps(t))

	counts := map[string]int{}
	for _, r := range tmpl.Resources {
		counts[r.Type]++
	}
	assert.Equal(t, map[string]int{
		"AWS::S3::Bucket":             1,
		"AWS::CodeBuild::Project":     3,
		"AWS::IAM::Role":              5,
		"AWS::IAM::Policy":            5,
		"AWS::CodePipeline::Pipeline": 1,
		"AWS::CodePipeline::Webhook":  1,
	}, counts)
	assert.Equal(t, []string{PipelinePolicyID}, tmpl.Resources[PipelineID].DependsOn)
	assert.Contains(t, tmpl.Outputs, "ArtifactsBucketName")
}

func TestAssemble_Errors(t *testing.T) {
	t.Run("lookup missing", func(t *testing.T) {
		_, err := Assemble(context.Background(), template.NewBuilder(""), mapLookup{}, testProps(t))
		require.Error(t, err)
		assert.True(t, errors.Is(err, lookup.ErrNotFound))
	})

	t.Run("code missing", func(t *testing.T) {
		props := testProps(t)
		props.StartUpCode = nil
		_, err := Assemble(context.Background(), template.NewBuilder(""), testLookups, props)
		require.Error(t, err)
	})

	t.Run("code unbound", func(t *testing.T) {
		props := testProps(t)
		props.StartUpCode = codeparams.New()
		_, err := Assemble(context.Background(), template.NewBuilder(""), testLookups, props)
		require.Error(t, err)
		assert.True(t, errors.Is(err, codeparams.ErrNotBound))
	})
}

func TestAssemble_DummyLookups(t *testing.T) {
	b := template.NewBuilder("")
	p, err := Assemble(context.Background(), b, lookup.Dummy{}, testProps(t))
	require.NoError(t, err)
	assert.Equal(t, lookup.DummyValue(DefaultOwnerParameter), p.Owner)
}

func TestArtifact(t *testing.T) {
	assert.Equal(t, "CdkBuildOutput::LambdaStack.template.json", CdkBuildOutput.AtPath("LambdaStack.template.json"))

	data, err := json.Marshal(StartUpLambdaBuildOutput.Location().ObjectKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::GetArtifactAtt": ["StartUpLambdaBuildOutput", "ObjectKey"]}`, string(data))
}

func TestBuildSpec_Render(t *testing.T) {
	rendered, err := SynthBuildSpec("1.24", "LambdaStack.template.json", nil).Render()
	require.NoError(t, err)

	var spec map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &spec))
	assert.Equal(t, "0.2", spec["version"])
	artifacts := spec["artifacts"].(map[string]any)
	assert.Equal(t, "dist", artifacts["base-directory"])
	assert.Equal(t, []any{"LambdaStack.template.json"}, artifacts["files"])

	rendered, err = HandlerBuildSpec("1.24", "arm64", "./cmd/db-shutdown", "dist/shut-down").Render()
	require.NoError(t, err)
	assert.Contains(t, rendered, "GOARCH: arm64")
	assert.Contains(t, rendered, "go build -tags lambda.norpc -trimpath -o dist/shut-down/bootstrap ./cmd/db-shutdown")

	_, err = BuildSpec{Version: BuildSpecVersion}.Render()
	require.Error(t, err)
}

func TestAssemble_SynthBuildRunsWithoutLookups(t *testing.T) {
	props := testProps(t)
	props.SynthEnv = map[string]string{
		"RDS_SCHEDULER_INSTANCE_ID":   "mydb",
		"RDS_SCHEDULER_SCHEDULE_STOP": "0 17 ? * MON-FRI *",
	}
	_, tmpl := assemble(t, props)

	res, ok := tmpl.Resources["CdkBuild"]
	require.True(t, ok)
	source := res.Properties["Source"].(map[string]any)

	var spec struct {
		Env struct {
			Variables map[string]string `yaml:"variables"`
		} `yaml:"env"`
		Phases struct {
			Build struct {
				Commands []string `yaml:"commands"`
			} `yaml:"build"`
		} `yaml:"phases"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(source["BuildSpec"].(string)), &spec))
	assert.Equal(t, props.SynthEnv, spec.Env.Variables)
	assert.Equal(t, []string{"go run ./cmd/rds-scheduler synth --no-lookups -o dist"}, spec.Phases.Build.Commands)
}

// Package pipeline declares the CodePipeline that rebuilds the Lambda
// handlers and redeploys the scheduled functions stack on every push.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/app"
	"github.com/lex00/rds-scheduler-go/internal/codeparams"
	"github.com/lex00/rds-scheduler-go/internal/lookup"
	"github.com/lex00/rds-scheduler-go/intrinsics"
	"github.com/lex00/rds-scheduler-go/resources/codebuild"
	"github.com/lex00/rds-scheduler-go/resources/codepipeline"
	"github.com/lex00/rds-scheduler-go/resources/iam"
	"github.com/lex00/rds-scheduler-go/resources/s3"
)

// StackName is the logical name of the pipeline stack.
const StackName = "PipelineStack"

// Defaults.
const (
	DefaultPipelineName    = "automatic-aws-db-shutdown-cdk-pipeline"
	DefaultTokenSecret     = "/automatic-aws-db-shutdown-cdk/github/token"
	DefaultTokenField      = "github-token"
	DefaultOwnerParameter  = "/automatic-aws-db-shutdown-cdk/github/owner"
	DefaultRepoParameter   = "/automatic-aws-db-shutdown-cdk/github/repo"
	DefaultBranch          = "master"
	DefaultDeploymentStack = "LambdaDeploymentStack"
	DefaultBuildImage      = "aws/codebuild/standard:7.0"
	DefaultGoVersion       = "1.24"
	DefaultArchitecture    = "arm64"
)

// Stage names, in execution order.
const (
	SourceStage = "Source"
	BuildStage  = "Build"
	DeployStage = "Deploy"
)

// Artifacts passed between actions.
const (
	SourceOutput              Artifact = "SourceOutput"
	CdkBuildOutput            Artifact = "CdkBuildOutput"
	ShutDownLambdaBuildOutput Artifact = "ShutDownLambdaBuildOutput"
	StartUpLambdaBuildOutput  Artifact = "StartUpLambdaBuildOutput"
)

// Logical IDs of the pipeline stack resources.
const (
	ArtifactsBucketID = "ArtifactsBucket"
	PipelineID        = "Pipeline"
	PipelineRoleID    = "PipelineRole"
	PipelinePolicyID  = "PipelineRoleDefaultPolicy"
	WebhookID         = "PipelineWebhook"
	DeployRoleID      = "DeployRole"
	DeployPolicyID    = "DeployRoleDefaultPolicy"
)

const capabilityNamedIAM = "CAPABILITY_NAMED_IAM"

// Artifact is a named pipeline artifact.
type Artifact string

// Name returns the artifact name.
func (a Artifact) Name() string {
	return string(a)
}

// AtPath addresses a file inside the artifact, as in TemplatePath.
func (a Artifact) AtPath(file string) string {
	return string(a) + "::" + file
}

// Location is the artifact's S3 location at deploy time.
func (a Artifact) Location() codeparams.Location {
	return codeparams.ArtifactLocation(string(a))
}

// Source configures the GitHub source action.
type Source struct {
	TokenSecret    string
	TokenField     string
	OwnerParameter string
	RepoParameter  string
	Branch         string
	// Webhook triggers on push instead of polling.
	Webhook bool
}

// Props configures Assemble.
type Props struct {
	PipelineName    string
	DeploymentStack string
	Source          Source
	// LambdaTemplate is the template file the synth build outputs.
	LambdaTemplate string
	ShutDownCode   *codeparams.Code
	StartUpCode    *codeparams.Code
	// AdminPermissions gives the deploy role full access, since it deploys
	// an arbitrary template.
	AdminPermissions bool
	BuildImage       string
	GoVersion        string
	// Architecture is the Lambda architecture the handlers are built for.
	Architecture string
	// SynthEnv is set on the synth build so it reproduces the functions
	// stack without a config file or lookups.
	SynthEnv map[string]string
}

// DefaultProps returns props with every default filled in. The code
// placeholders are left for the caller.
func DefaultProps() Props {
	return Props{
		PipelineName:    DefaultPipelineName,
		DeploymentStack: DefaultDeploymentStack,
		Source: Source{
			TokenSecret:    DefaultTokenSecret,
			TokenField:     DefaultTokenField,
			OwnerParameter: DefaultOwnerParameter,
			RepoParameter:  DefaultRepoParameter,
			Branch:         DefaultBranch,
			Webhook:        true,
		},
		LambdaTemplate:   "LambdaStack.template.json",
		AdminPermissions: true,
		BuildImage:       DefaultBuildImage,
		GoVersion:        DefaultGoVersion,
		Architecture:     DefaultArchitecture,
	}
}

// Stack is where the pipeline declares its resources.
type Stack interface {
	AddResource(name string, res rdsscheduler.Resource, dependsOn ...string) error
	AddOutput(name string, output rdsscheduler.Output) error
}

// Pipeline names what Assemble declared.
type Pipeline struct {
	Name     string
	Stages   []codepipeline.Pipeline_StageDeclaration
	Projects []string
	Owner    string
	Repo     string
}

// Stage returns the stage named name.
func (p *Pipeline) Stage(name string) (codepipeline.Pipeline_StageDeclaration, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return codepipeline.Pipeline_StageDeclaration{}, false
}

type buildProject struct {
	id     string
	action string
	output Artifact
	spec   BuildSpec
}

// Assemble declares the artifact bucket, build projects, roles, pipeline and
// webhook into stack. The GitHub owner and repository are resolved through
// lookups.
func Assemble(ctx context.Context, stack Stack, lookups lookup.Provider, props Props) (*Pipeline, error) {
	if props.ShutDownCode == nil || props.StartUpCode == nil {
		return nil, errors.New("pipeline needs both shutdown and startup code")
	}

	owner, err := lookups.StringParameter(ctx, props.Source.OwnerParameter)
	if err != nil {
		return nil, errors.Wrap(err, "resolving GitHub owner")
	}
	repo, err := lookups.StringParameter(ctx, props.Source.RepoParameter)
	if err != nil {
		return nil, errors.Wrap(err, "resolving GitHub repository")
	}

	overrides, err := deployOverrides(props)
	if err != nil {
		return nil, err
	}

	goarch := props.Architecture
	if goarch == "x86_64" {
		goarch = "amd64"
	}
	projects := []buildProject{
		{"StartUpLambdaBuild", "Start_Up_Lambda_Build", StartUpLambdaBuildOutput,
			HandlerBuildSpec(props.GoVersion, goarch, "./cmd/db-startup", "dist/start-up")},
		{"ShutDownLambdaBuild", "Shut_Down_Lambda_Build", ShutDownLambdaBuildOutput,
			HandlerBuildSpec(props.GoVersion, goarch, "./cmd/db-shutdown", "dist/shut-down")},
		{"CdkBuild", "CDK_Build", CdkBuildOutput,
			SynthBuildSpec(props.GoVersion, props.LambdaTemplate, props.SynthEnv)},
	}

	if err := stack.AddResource(ArtifactsBucketID, artifactsBucket()); err != nil {
		return nil, err
	}

	token := intrinsics.SecretsManagerValue{SecretID: props.Source.TokenSecret, JSONField: props.Source.TokenField}
	p := &Pipeline{Name: props.PipelineName, Owner: owner, Repo: repo}

	sourceConfig := map[string]any{
		"Owner":                owner,
		"Repo":                 repo,
		"Branch":               props.Source.Branch,
		"OAuthToken":           token,
		"PollForSourceChanges": !props.Source.Webhook,
	}
	source := codepipeline.Pipeline_StageDeclaration{
		Name: SourceStage,
		Actions: []codepipeline.Pipeline_ActionDeclaration{{
			Name:            "Source",
			ActionTypeId:    actionType("Source", "ThirdParty", "GitHub"),
			Configuration:   sourceConfig,
			OutputArtifacts: outputs(SourceOutput),
			RunOrder:        1,
		}},
	}

	build := codepipeline.Pipeline_StageDeclaration{Name: BuildStage}
	for _, bp := range projects {
		if err := addBuildProject(stack, bp, props.BuildImage); err != nil {
			return nil, err
		}
		p.Projects = append(p.Projects, bp.id)
		build.Actions = append(build.Actions, codepipeline.Pipeline_ActionDeclaration{
			Name:            bp.action,
			ActionTypeId:    actionType("Build", "AWS", "CodeBuild"),
			Configuration:   map[string]any{"ProjectName": intrinsics.Ref{LogicalName: bp.id}},
			InputArtifacts:  inputs(SourceOutput),
			OutputArtifacts: outputs(bp.output),
			RunOrder:        1,
		})
	}

	if err := addDeployRole(stack, props.AdminPermissions); err != nil {
		return nil, err
	}
	deploy := codepipeline.Pipeline_StageDeclaration{
		Name: DeployStage,
		Actions: []codepipeline.Pipeline_ActionDeclaration{{
			Name:         "Lambda_Deploy",
			ActionTypeId: actionType("Deploy", "AWS", "CloudFormation"),
			Configuration: map[string]any{
				"ActionMode":         "CREATE_UPDATE",
				"StackName":          props.DeploymentStack,
				"Capabilities":       capabilityNamedIAM,
				"RoleArn":            intrinsics.GetAtt{LogicalName: DeployRoleID, Attribute: "Arn"},
				"TemplatePath":       CdkBuildOutput.AtPath(props.LambdaTemplate),
				"ParameterOverrides": overrides,
			},
			InputArtifacts: inputs(CdkBuildOutput, StartUpLambdaBuildOutput, ShutDownLambdaBuildOutput),
			RunOrder:       1,
		}},
	}

	p.Stages = []codepipeline.Pipeline_StageDeclaration{source, build, deploy}

	if err := addPipelineRole(stack, p.Projects, props.DeploymentStack); err != nil {
		return nil, err
	}
	if err := stack.AddResource(PipelineID, codepipeline.Pipeline{
		ArtifactStore: &codepipeline.Pipeline_ArtifactStore{
			Location: intrinsics.Ref{LogicalName: ArtifactsBucketID},
			Type:     "S3",
		},
		Name:                     props.PipelineName,
		RestartExecutionOnUpdate: true,
		RoleArn:                  intrinsics.GetAtt{LogicalName: PipelineRoleID, Attribute: "Arn"},
		Stages:                   p.Stages,
	}, PipelinePolicyID); err != nil {
		return nil, err
	}

	if props.Source.Webhook {
		if err := stack.AddResource(WebhookID, codepipeline.Webhook{
			Authentication: "GITHUB_HMAC",
			AuthenticationConfiguration: &codepipeline.Webhook_WebhookAuthConfiguration{
				SecretToken: token,
			},
			Filters: []codepipeline.Webhook_WebhookFilterRule{{
				JsonPath:    "$.ref",
				MatchEquals: "refs/heads/{Branch}",
			}},
			RegisterWithThirdParty: true,
			TargetAction:           "Source",
			TargetPipeline:         intrinsics.Ref{LogicalName: PipelineID},
			TargetPipelineVersion:  1,
		}); err != nil {
			return nil, err
		}
	}

	if err := stack.AddOutput("ArtifactsBucketName", rdsscheduler.Output{
		Description: "Bucket holding pipeline artifacts",
		Value:       intrinsics.Ref{LogicalName: ArtifactsBucketID},
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// NewPipelineStack adds the pipeline stack to a.
func NewPipelineStack(ctx context.Context, a *app.App, env rdsscheduler.Environment, lookups lookup.Provider, props Props) (*app.Stack, *Pipeline, error) {
	stack, err := a.NewStack(StackName, "CI/CD pipeline for the RDS scheduler", env)
	if err != nil {
		return nil, nil, err
	}
	p, err := Assemble(ctx, stack, lookups, props)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "assembling %s", StackName)
	}
	return stack, p, nil
}

// deployOverrides renders the ParameterOverrides string pointing both code
// placeholders at their build outputs.
func deployOverrides(props Props) (string, error) {
	startUp, err := props.StartUpCode.Assign(StartUpLambdaBuildOutput.Location())
	if err != nil {
		return "", errors.Wrap(err, "startup code")
	}
	shutDown, err := props.ShutDownCode.Assign(ShutDownLambdaBuildOutput.Location())
	if err != nil {
		return "", errors.Wrap(err, "shutdown code")
	}
	merged, err := codeparams.MergeOverrides(startUp, shutDown)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return "", errors.Wrap(err, "rendering parameter overrides")
	}
	return string(data), nil
}

func actionType(category, owner, provider string) codepipeline.Pipeline_ActionTypeId {
	return codepipeline.Pipeline_ActionTypeId{Category: category, Owner: owner, Provider: provider, Version: "1"}
}

func inputs(artifacts ...Artifact) []codepipeline.Pipeline_InputArtifact {
	out := make([]codepipeline.Pipeline_InputArtifact, len(artifacts))
	for i, a := range artifacts {
		out[i] = codepipeline.Pipeline_InputArtifact{Name: a.Name()}
	}
	return out
}

func outputs(artifacts ...Artifact) []codepipeline.Pipeline_OutputArtifact {
	out := make([]codepipeline.Pipeline_OutputArtifact, len(artifacts))
	for i, a := range artifacts {
		out[i] = codepipeline.Pipeline_OutputArtifact{Name: a.Name()}
	}
	return out
}

func artifactsBucket() s3.Bucket {
	return s3.Bucket{
		BucketEncryption: &s3.Bucket_BucketEncryption{
			ServerSideEncryptionConfiguration: []s3.Bucket_ServerSideEncryptionRule{{
				ServerSideEncryptionByDefault: &s3.Bucket_ServerSideEncryptionByDefault{SSEAlgorithm: "AES256"},
			}},
		},
		PublicAccessBlockConfiguration: &s3.Bucket_PublicAccessBlockConfiguration{
			BlockPublicAcls:       true,
			BlockPublicPolicy:     true,
			IgnorePublicAcls:      true,
			RestrictPublicBuckets: true,
		},
		VersioningConfiguration: &s3.Bucket_VersioningConfiguration{Status: "Enabled"},
	}
}

// bucketResources covers the artifacts bucket and every object in it.
func bucketResources() []any {
	arn := intrinsics.GetAtt{LogicalName: ArtifactsBucketID, Attribute: "Arn"}
	return intrinsics.Any(arn, intrinsics.Join{Delimiter: "", Values: intrinsics.Any(arn, "/*")})
}

// ArtifactReadStatement grants read access to the artifacts bucket.
func ArtifactReadStatement() intrinsics.PolicyStatement {
	return intrinsics.Allow(intrinsics.Any("s3:GetObject*", "s3:GetBucket*", "s3:List*"), bucketResources())
}

func artifactWriteStatement() intrinsics.PolicyStatement {
	return intrinsics.Allow(
		intrinsics.Any("s3:GetObject*", "s3:GetBucket*", "s3:List*", "s3:DeleteObject*", "s3:PutObject*", "s3:Abort*"),
		bucketResources(),
	)
}

func addBuildProject(stack Stack, bp buildProject, image string) error {
	spec, err := bp.spec.Render()
	if err != nil {
		return errors.Wrapf(err, "%s", bp.id)
	}
	roleID := bp.id + "Role"
	policyID := bp.id + "RoleDefaultPolicy"

	if err := stack.AddResource(roleID, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("codebuild.amazonaws.com"),
	}); err != nil {
		return err
	}
	if err := stack.AddResource(bp.id, codebuild.Project{
		Artifacts: &codebuild.Project_Artifacts{Type: "CODEPIPELINE"},
		Environment: &codebuild.Project_Environment{
			ComputeType:              "BUILD_GENERAL1_SMALL",
			Image:                    image,
			ImagePullCredentialsType: "CODEBUILD",
			Type:                     "LINUX_CONTAINER",
		},
		ServiceRole: intrinsics.GetAtt{LogicalName: roleID, Attribute: "Arn"},
		Source:      &codebuild.Project_Source{BuildSpec: spec, Type: "CODEPIPELINE"},
	}); err != nil {
		return err
	}

	logs := intrinsics.Sub{String: "arn:${AWS::Partition}:logs:${AWS::Region}:${AWS::AccountId}:log-group:/aws/codebuild/${" + bp.id + "}"}
	logStreams := intrinsics.Sub{String: "arn:${AWS::Partition}:logs:${AWS::Region}:${AWS::AccountId}:log-group:/aws/codebuild/${" + bp.id + "}:*"}
	return stack.AddResource(policyID, iam.Policy{
		PolicyDocument: intrinsics.NewPolicyDocument(
			intrinsics.Allow(intrinsics.Any("logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"), intrinsics.Any(logs, logStreams)),
			artifactWriteStatement(),
		),
		PolicyName: policyID,
		Roles:      intrinsics.Any(intrinsics.Ref{LogicalName: roleID}),
	})
}

func addDeployRole(stack Stack, admin bool) error {
	if err := stack.AddResource(DeployRoleID, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("cloudformation.amazonaws.com"),
	}); err != nil {
		return err
	}
	statements := []any{ArtifactReadStatement()}
	if admin {
		statements = append(statements, intrinsics.Allow(intrinsics.Any("*"), intrinsics.Any("*")))
	}
	return stack.AddResource(DeployPolicyID, iam.Policy{
		PolicyDocument: intrinsics.NewPolicyDocument(statements...),
		PolicyName:     DeployPolicyID,
		Roles:          intrinsics.Any(intrinsics.Ref{LogicalName: DeployRoleID}),
	})
}

func addPipelineRole(stack Stack, projects []string, deploymentStack string) error {
	if err := stack.AddResource(PipelineRoleID, iam.Role{
		AssumeRolePolicyDocument: intrinsics.AssumeRolePolicy("codepipeline.amazonaws.com"),
	}); err != nil {
		return err
	}

	projectArns := make([]any, len(projects))
	for i, id := range projects {
		projectArns[i] = intrinsics.GetAtt{LogicalName: id, Attribute: "Arn"}
	}
	stackArn := intrinsics.Sub{String: "arn:${AWS::Partition}:cloudformation:${AWS::Region}:${AWS::AccountId}:stack/" + deploymentStack + "/*"}

	return stack.AddResource(PipelinePolicyID, iam.Policy{
		PolicyDocument: intrinsics.NewPolicyDocument(
			artifactWriteStatement(),
			intrinsics.Allow(intrinsics.Any("codebuild:BatchGetBuilds", "codebuild:StartBuild", "codebuild:StopBuild"), projectArns),
			intrinsics.Allow(
				intrinsics.Any("cloudformation:CreateStack", "cloudformation:DeleteStack", "cloudformation:DescribeStack*",
					"cloudformation:GetTemplate", "cloudformation:UpdateStack"),
				intrinsics.Any(stackArn),
			),
			intrinsics.Allow(intrinsics.Any("iam:PassRole"), intrinsics.Any(intrinsics.GetAtt{LogicalName: DeployRoleID, Attribute: "Arn"})),
		),
		PolicyName: PipelinePolicyID,
		Roles:      intrinsics.Any(intrinsics.Ref{LogicalName: PipelineRoleID}),
	})
}

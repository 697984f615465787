// Package codepipeline provides CloudFormation resource types for AWS::CodePipeline.
package codepipeline

// Pipeline represents AWS::CodePipeline::Pipeline.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-codepipeline-pipeline.html
type Pipeline struct {
	ArtifactStore            *Pipeline_ArtifactStore     `json:"ArtifactStore,omitempty"`
	Name                     any                         `json:"Name,omitempty"`
	PipelineType             any                         `json:"PipelineType,omitempty"`
	RestartExecutionOnUpdate bool                        `json:"RestartExecutionOnUpdate,omitempty"`
	RoleArn                  any                         `json:"RoleArn,omitempty"`
	Stages                   []Pipeline_StageDeclaration `json:"Stages,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Pipeline) ResourceType() string {
	return "AWS::CodePipeline::Pipeline"
}

// Pipeline_ArtifactStore represents AWS::CodePipeline::Pipeline.ArtifactStore.
type Pipeline_ArtifactStore struct {
	Location any `json:"Location,omitempty"`
	Type     any `json:"Type,omitempty"`
}

// Pipeline_StageDeclaration represents AWS::CodePipeline::Pipeline.StageDeclaration.
type Pipeline_StageDeclaration struct {
	Actions []Pipeline_ActionDeclaration `json:"Actions,omitempty"`
	Name    any                          `json:"Name,omitempty"`
}

// Pipeline_ActionDeclaration represents AWS::CodePipeline::Pipeline.ActionDeclaration.
type Pipeline_ActionDeclaration struct {
	ActionTypeId    Pipeline_ActionTypeId     `json:"ActionTypeId"`
	Configuration   map[string]any            `json:"Configuration,omitempty"`
	InputArtifacts  []Pipeline_InputArtifact  `json:"InputArtifacts,omitempty"`
	Name            any                       `json:"Name,omitempty"`
	OutputArtifacts []Pipeline_OutputArtifact `json:"OutputArtifacts,omitempty"`
	RoleArn         any                       `json:"RoleArn,omitempty"`
	RunOrder        int                       `json:"RunOrder,omitempty"`
}

// Pipeline_ActionTypeId represents AWS::CodePipeline::Pipeline.ActionTypeId.
type Pipeline_ActionTypeId struct {
	Category any `json:"Category,omitempty"`
	Owner    any `json:"Owner,omitempty"`
	Provider any `json:"Provider,omitempty"`
	Version  any `json:"Version,omitempty"`
}

// Pipeline_InputArtifact represents AWS::CodePipeline::Pipeline.InputArtifact.
type Pipeline_InputArtifact struct {
	Name any `json:"Name,omitempty"`
}

// Pipeline_OutputArtifact represents AWS::CodePipeline::Pipeline.OutputArtifact.
type Pipeline_OutputArtifact struct {
	Name any `json:"Name,omitempty"`
}

// Webhook represents AWS::CodePipeline::Webhook.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-codepipeline-webhook.html
type Webhook struct {
	Authentication              any                               `json:"Authentication,omitempty"`
	AuthenticationConfiguration *Webhook_WebhookAuthConfiguration `json:"AuthenticationConfiguration,omitempty"`
	Filters                     []Webhook_WebhookFilterRule       `json:"Filters,omitempty"`
	RegisterWithThirdParty      bool                              `json:"RegisterWithThirdParty,omitempty"`
	TargetAction                any                               `json:"TargetAction,omitempty"`
	TargetPipeline              any                               `json:"TargetPipeline,omitempty"`
	TargetPipelineVersion       int                               `json:"TargetPipelineVersion,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Webhook) ResourceType() string {
	return "AWS::CodePipeline::Webhook"
}

// Webhook_WebhookAuthConfiguration represents AWS::CodePipeline::Webhook.WebhookAuthConfiguration.
type Webhook_WebhookAuthConfiguration struct {
	AllowedIPRange any `json:"AllowedIPRange,omitempty"`
	SecretToken    any `json:"SecretToken,omitempty"`
}

// Webhook_WebhookFilterRule represents AWS::CodePipeline::Webhook.WebhookFilterRule.
type Webhook_WebhookFilterRule struct {
	JsonPath    any `json:"JsonPath,omitempty"`
	MatchEquals any `json:"MatchEquals,omitempty"`
}

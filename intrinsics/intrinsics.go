// Package intrinsics provides CloudFormation intrinsic functions.
//
// This package re-exports the core intrinsic types from cloudformation-schema-go
// and adds the pipeline-specific forms the scheduler stacks need.
//
// Core intrinsic functions:
//
//	Ref{LogicalName: "DBShutDownFunction"} → {"Ref": "DBShutDownFunction"}
//	Sub{String: "${AWS::StackName}-db"} → {"Fn::Sub": "${AWS::StackName}-db"}
//	GetAtt{LogicalName: "DBShutDownRule", Attribute: "Arn"} → {"Fn::GetAtt": ["DBShutDownRule", "Arn"]}
//
// Pipeline and dynamic references:
//
//	ArtifactAtt{Artifact: "StartUpLambdaBuildOutput", Attribute: "ObjectKey"}
//	SecretsManagerValue{SecretID: "/app/github/token", JSONField: "github-token"}
package intrinsics

import (
	"encoding/json"

	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

// Re-export core intrinsic types from shared package.
type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// ArtifactAtt is the CodePipeline-only Fn::GetArtifactAtt function.
// It is valid inside CloudFormation action ParameterOverrides and resolves
// to the S3 location of a pipeline artifact when the action runs.
type ArtifactAtt struct {
	Artifact  string
	Attribute string
}

// Artifact attribute names understood by CodePipeline.
const (
	ArtifactBucketName = "BucketName"
	ArtifactObjectKey  = "ObjectKey"
)

// MarshalJSON serializes to {"Fn::GetArtifactAtt": [artifact, attribute]}.
func (a ArtifactAtt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		"Fn::GetArtifactAtt": {a.Artifact, a.Attribute},
	})
}

// SecretsManagerValue is a CloudFormation dynamic reference to a Secrets
// Manager secret. The secret is resolved by CloudFormation at deploy time and
// never appears in the synthesized template.
type SecretsManagerValue struct {
	SecretID string
	// JSONField selects a key of a JSON secret. Empty means the whole string.
	JSONField string
	// VersionStage defaults to AWSCURRENT when empty.
	VersionStage string
}

// String renders the {{resolve:secretsmanager:...}} form.
func (s SecretsManagerValue) String() string {
	return "{{resolve:secretsmanager:" + s.SecretID + ":SecretString:" + s.JSONField + ":" + s.VersionStage + ":}}"
}

// MarshalJSON serializes the dynamic reference as a plain string.
func (s SecretsManagerValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// IsZero returns true if no secret is referenced.
func (s SecretsManagerValue) IsZero() bool {
	return s.SecretID == ""
}

// Package codebuild provides CloudFormation resource types for AWS::CodeBuild.
package codebuild

// Project represents AWS::CodeBuild::Project.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-codebuild-project.html
type Project struct {
	Artifacts   *Project_Artifacts   `json:"Artifacts,omitempty"`
	Description any                  `json:"Description,omitempty"`
	Environment *Project_Environment `json:"Environment,omitempty"`
	Name        any                  `json:"Name,omitempty"`
	ServiceRole any                  `json:"ServiceRole,omitempty"`
	Source      *Project_Source      `json:"Source,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Project) ResourceType() string {
	return "AWS::CodeBuild::Project"
}

// Project_Artifacts represents AWS::CodeBuild::Project.Artifacts.
type Project_Artifacts struct {
	Type any `json:"Type,omitempty"`
}

// Project_Environment represents AWS::CodeBuild::Project.Environment.
type Project_Environment struct {
	ComputeType              any                           `json:"ComputeType,omitempty"`
	EnvironmentVariables     []Project_EnvironmentVariable `json:"EnvironmentVariables,omitempty"`
	Image                    any                           `json:"Image,omitempty"`
	ImagePullCredentialsType any                           `json:"ImagePullCredentialsType,omitempty"`
	PrivilegedMode           bool                          `json:"PrivilegedMode,omitempty"`
	Type                     any                           `json:"Type,omitempty"`
}

// Project_EnvironmentVariable represents AWS::CodeBuild::Project.EnvironmentVariable.
type Project_EnvironmentVariable struct {
	Name  any `json:"Name,omitempty"`
	Type  any `json:"Type,omitempty"`
	Value any `json:"Value,omitempty"`
}

// Project_Source represents AWS::CodeBuild::Project.Source.
type Project_Source struct {
	BuildSpec any `json:"BuildSpec,omitempty"`
	Type      any `json:"Type,omitempty"`
}

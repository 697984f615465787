// Package rdsscheduler provides the shared types for synthesizing the RDS
// start/stop scheduler and its delivery pipeline into CloudFormation.
//
// Stacks are assembled in Go and written out as a cloud assembly:
//
//	LambdaStack.template.json    scheduled start/stop functions
//	PipelineStack.template.json  source -> build -> deploy pipeline
//	manifest.json                stack environments and template files
//
// The rds-scheduler CLI drives synthesis, validation, diffing and graphing.
package rdsscheduler

// InstanceEnvVar names the function environment variable holding the RDS
// instance identifier. Synthesis writes it and the handlers read it.
const InstanceEnvVar = "INSTANCE_IDENTIFIER"

// Resource represents a CloudFormation resource.
// All resource types under resources/ (lambda.Function, iam.Role, etc.) implement this interface.
type Resource interface {
	// ResourceType returns the CloudFormation type (e.g., "AWS::Lambda::Function")
	ResourceType() string
}

// Environment is the deployment target of a stack.
type Environment struct {
	Account string `json:"account" yaml:"account"`
	Region  string `json:"region" yaml:"region"`
}

// String renders the environment the way cloud assemblies address it.
func (e Environment) String() string {
	return "aws://" + e.Account + "/" + e.Region
}

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type          string   `json:"Type" yaml:"Type"`
	Description   string   `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default       any      `json:"Default,omitempty" yaml:"Default,omitempty"`
	AllowedValues []string `json:"AllowedValues,omitempty" yaml:"AllowedValues,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string  `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any     `json:"Value" yaml:"Value"`
	Export      *Export `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// Export names a stack output for cross-stack import.
type Export struct {
	Name string `json:"Name" yaml:"Name"`
}

// Manifest describes a synthesized cloud assembly.
type Manifest struct {
	Version string                   `json:"version"`
	Stacks  map[string]StackArtifact `json:"artifacts"`
}

// StackArtifact is one stack entry in the manifest.
type StackArtifact struct {
	Type         string `json:"type"`
	Environment  string `json:"environment"`
	TemplateFile string `json:"templateFile"`
	Resources    int    `json:"resources"`
}

// SynthResult is the JSON output from `rds-scheduler synth --json`.
type SynthResult struct {
	Success   bool     `json:"success"`
	OutputDir string   `json:"output_dir,omitempty"`
	Stacks    []string `json:"stacks,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// LintIssue is a single template lint finding.
type LintIssue struct {
	Stack    string `json:"stack"`
	Resource string `json:"resource,omitempty"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Rule     string `json:"rule"`
}

// ValidateResult is the JSON output from `rds-scheduler validate`.
type ValidateResult struct {
	Success  bool        `json:"success"`
	Stacks   int         `json:"stacks"`
	Issues   []LintIssue `json:"issues,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// ListResult is the JSON output from `rds-scheduler list`.
type ListResult struct {
	Stack     string         `json:"stack"`
	Resources []ListResource `json:"resources"`
}

// ListResource is a single resource in the list output.
type ListResource struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// DiffEntry describes one added, removed or modified resource.
type DiffEntry struct {
	Resource string   `json:"resource"`
	Type     string   `json:"type"`
	Changes  []string `json:"changes,omitempty"`
}

// TemplateDiff groups resource differences by kind.
type TemplateDiff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
}

// DiffSummary counts differences.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}

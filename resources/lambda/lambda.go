// Package lambda provides CloudFormation resource types for AWS::Lambda.
package lambda

// Function represents AWS::Lambda::Function.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-lambda-function.html
type Function struct {
	// Architectures is the instruction set architecture (x86_64 or arm64).
	Architectures []string `json:"Architectures,omitempty"`
	// Code is the deployment package location.
	Code any `json:"Code,omitempty"`
	// Description of the function.
	Description any `json:"Description,omitempty"`
	// Environment holds variables visible to the function at runtime.
	Environment *Function_Environment `json:"Environment,omitempty"`
	// FunctionName is the physical name. Generated when empty.
	FunctionName any `json:"FunctionName,omitempty"`
	// Handler is the entry point.
	Handler any `json:"Handler,omitempty"`
	// MemorySize in MB.
	MemorySize int `json:"MemorySize,omitempty"`
	// Role is the ARN of the execution role.
	Role any `json:"Role,omitempty"`
	// Runtime identifier, e.g. provided.al2023.
	Runtime any `json:"Runtime,omitempty"`
	// Timeout in seconds.
	Timeout int `json:"Timeout,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Function) ResourceType() string {
	return "AWS::Lambda::Function"
}

// Function_Code represents AWS::Lambda::Function.Code.
type Function_Code struct {
	S3Bucket any `json:"S3Bucket,omitempty"`
	S3Key    any `json:"S3Key,omitempty"`
	ZipFile  any `json:"ZipFile,omitempty"`
}

// Function_Environment represents AWS::Lambda::Function.Environment.
type Function_Environment struct {
	Variables map[string]any `json:"Variables,omitempty"`
}

// Permission represents AWS::Lambda::Permission.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-lambda-permission.html
type Permission struct {
	Action       any `json:"Action,omitempty"`
	FunctionName any `json:"FunctionName,omitempty"`
	Principal    any `json:"Principal,omitempty"`
	SourceArn    any `json:"SourceArn,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Permission) ResourceType() string {
	return "AWS::Lambda::Permission"
}

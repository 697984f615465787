// Package iam provides CloudFormation resource types for AWS::IAM.
package iam

// Role represents AWS::IAM::Role.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-iam-role.html
type Role struct {
	AssumeRolePolicyDocument any           `json:"AssumeRolePolicyDocument,omitempty"`
	Description              any           `json:"Description,omitempty"`
	ManagedPolicyArns        []any         `json:"ManagedPolicyArns,omitempty"`
	Path                     any           `json:"Path,omitempty"`
	Policies                 []Role_Policy `json:"Policies,omitempty"`
	RoleName                 any           `json:"RoleName,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Role) ResourceType() string {
	return "AWS::IAM::Role"
}

// Role_Policy represents AWS::IAM::Role.Policy.
type Role_Policy struct {
	PolicyDocument any `json:"PolicyDocument,omitempty"`
	PolicyName     any `json:"PolicyName,omitempty"`
}

// Policy represents AWS::IAM::Policy.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-iam-policy.html
type Policy struct {
	PolicyDocument any   `json:"PolicyDocument,omitempty"`
	PolicyName     any   `json:"PolicyName,omitempty"`
	Roles          []any `json:"Roles,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Policy) ResourceType() string {
	return "AWS::IAM::Policy"
}

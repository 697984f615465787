// Package intrinsics provides CloudFormation intrinsic functions.
// This file contains IAM policy document types and helpers.
package intrinsics

import (
	"encoding/json"
)

// Json is a shorthand for map[string]any.
// Used for inline JSON objects like Condition blocks.
type Json = map[string]any

// Any creates a []any slice from the given items.
// Use for fields typed as []any that accept mixed types or intrinsics.
//
// Example:
//
//	Resource: Any(BucketArn, Join{Delimiter: "", Values: Any(BucketArn, "/*")}),
func Any(items ...any) []any {
	return items
}

// PolicyVersion is the only IAM policy language version in use.
const PolicyVersion = "2012-10-17"

// PolicyDocument represents an IAM policy document.
//
// Example:
//
//	var StopPolicy = PolicyDocument{
//	    Version:   "2012-10-17",
//	    Statement: []any{StopStatement},
//	}
type PolicyDocument struct {
	Version   string `json:"Version,omitempty"`
	Statement []any  `json:"Statement"`
}

// NewPolicyDocument creates a PolicyDocument with the default version.
func NewPolicyDocument(statements ...any) PolicyDocument {
	return PolicyDocument{Version: PolicyVersion, Statement: statements}
}

// PolicyStatement represents an IAM policy statement.
//
// Example:
//
//	var StopStatement = PolicyStatement{
//	    Effect:   "Allow",
//	    Action:   []any{"rds:StopDBInstance"},
//	    Resource: []any{"arn:aws:rds:us-east-1:111111111111:db:mydb"},
//	}
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal any    `json:"Principal,omitempty"`
	Action    any    `json:"Action,omitempty"`
	Resource  any    `json:"Resource,omitempty"`
	Condition Json   `json:"Condition,omitempty"`
}

// Allow creates an Allow statement over the given actions and resources.
func Allow(actions []any, resources []any) PolicyStatement {
	return PolicyStatement{Effect: "Allow", Action: actions, Resource: resources}
}

// --- Principal Helpers ---

// ServicePrincipal represents a service principal (e.g., lambda.amazonaws.com).
// Serializes to {"Service": ...} format.
//
// Examples:
//
//	ServicePrincipal{"lambda.amazonaws.com"}
//	ServicePrincipal{"codepipeline.amazonaws.com"}
type ServicePrincipal []any

// MarshalJSON serializes to {"Service": ...} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"Service": p[0]})
	}
	return json.Marshal(map[string]any{"Service": []any(p)})
}

// AssumeRolePolicy returns the trust policy letting service assume a role.
func AssumeRolePolicy(service string) PolicyDocument {
	return NewPolicyDocument(PolicyStatement{
		Effect:    "Allow",
		Principal: ServicePrincipal{service},
		Action:    "sts:AssumeRole",
	})
}

// ManagedPolicyArn returns the partition-aware ARN of an AWS managed policy,
// e.g. "service-role/AWSLambdaBasicExecutionRole".
func ManagedPolicyArn(name string) Join {
	return Join{
		Delimiter: "",
		Values:    []any{"arn:", AWS_PARTITION, ":iam::aws:policy/" + name},
	}
}

// Package codeparams provides Lambda code whose S3 location is supplied at
// deploy time through template parameters.
//
// A Code is bound once to a function in a stack, which declares two
// parameters. A pipeline deploying that stack later calls Assign with a build
// artifact's location to get the ParameterOverrides that fill them in.
package codeparams

import (
	"github.com/cockroachdb/errors"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/intrinsics"
	"github.com/lex00/rds-scheduler-go/resources/lambda"
)

// ErrNotBound is returned when Assign is called before Bind.
var ErrNotBound = errors.New("code is not bound to a function")

// ErrAlreadyBound is returned when Bind is called twice.
var ErrAlreadyBound = errors.New("code is already bound to a function")

// ParameterAdder declares template parameters. *app.Stack satisfies it.
type ParameterAdder interface {
	AddParameter(name string, param rdsscheduler.Parameter) error
}

// Location is where a deployment package lives in S3.
type Location struct {
	BucketName any
	ObjectKey  any
}

// Code is a parameterized Lambda code location.
type Code struct {
	bucketParam string
	keyParam    string
}

// New returns an unbound Code.
func New() *Code {
	return &Code{}
}

// Bind declares the bucket and key parameters for functionID and returns the
// function code referencing them.
func (c *Code) Bind(stack ParameterAdder, functionID string) (lambda.Function_Code, error) {
	if c.IsBound() {
		return lambda.Function_Code{}, errors.Wrapf(ErrAlreadyBound, "binding to %s", functionID)
	}

	bucketParam := functionID + "LambdaSourceBucketNameParameter"
	keyParam := functionID + "LambdaSourceObjectKeyParameter"

	if err := stack.AddParameter(bucketParam, rdsscheduler.Parameter{
		Type:        "String",
		Description: "S3 bucket holding the " + functionID + " deployment package",
	}); err != nil {
		return lambda.Function_Code{}, errors.Wrapf(err, "binding code to %s", functionID)
	}
	if err := stack.AddParameter(keyParam, rdsscheduler.Parameter{
		Type:        "String",
		Description: "S3 object key of the " + functionID + " deployment package",
	}); err != nil {
		return lambda.Function_Code{}, errors.Wrapf(err, "binding code to %s", functionID)
	}

	c.bucketParam = bucketParam
	c.keyParam = keyParam
	return c.FunctionCode(), nil
}

// IsBound reports whether Bind has succeeded.
func (c *Code) IsBound() bool {
	return c.bucketParam != ""
}

// BucketNameParam is the bucket parameter's logical ID.
func (c *Code) BucketNameParam() string {
	return c.bucketParam
}

// ObjectKeyParam is the object key parameter's logical ID.
func (c *Code) ObjectKeyParam() string {
	return c.keyParam
}

// FunctionCode returns Code properties referencing the bound parameters.
func (c *Code) FunctionCode() lambda.Function_Code {
	return lambda.Function_Code{
		S3Bucket: intrinsics.Ref{LogicalName: c.bucketParam},
		S3Key:    intrinsics.Ref{LogicalName: c.keyParam},
	}
}

// Assign returns the parameter overrides that point the bound parameters at
// loc.
func (c *Code) Assign(loc Location) (map[string]any, error) {
	if !c.IsBound() {
		return nil, ErrNotBound
	}
	return map[string]any{
		c.bucketParam: loc.BucketName,
		c.keyParam:    loc.ObjectKey,
	}, nil
}

// ArtifactLocation is the deploy-time S3 location of a pipeline artifact.
func ArtifactLocation(artifact string) Location {
	return Location{
		BucketName: intrinsics.ArtifactAtt{Artifact: artifact, Attribute: intrinsics.ArtifactBucketName},
		ObjectKey:  intrinsics.ArtifactAtt{Artifact: artifact, Attribute: intrinsics.ArtifactObjectKey},
	}
}

// MergeOverrides combines parameter overrides. Duplicate keys are an error.
func MergeOverrides(overrides ...map[string]any) (map[string]any, error) {
	merged := make(map[string]any)
	for _, o := range overrides {
		for k, v := range o {
			if _, exists := merged[k]; exists {
				return nil, errors.Newf("parameter override %s assigned twice", k)
			}
			merged[k] = v
		}
	}
	return merged, nil
}

// Package events provides CloudFormation resource types for AWS::Events.
package events

// Rule represents AWS::Events::Rule.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-events-rule.html
type Rule struct {
	Description        any           `json:"Description,omitempty"`
	Name               any           `json:"Name,omitempty"`
	ScheduleExpression any           `json:"ScheduleExpression,omitempty"`
	State              any           `json:"State,omitempty"`
	Targets            []Rule_Target `json:"Targets,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Rule) ResourceType() string {
	return "AWS::Events::Rule"
}

// Rule_Target represents AWS::Events::Rule.Target.
type Rule_Target struct {
	Arn any `json:"Arn,omitempty"`
	Id  any `json:"Id,omitempty"`
}

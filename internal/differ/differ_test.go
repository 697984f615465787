package differ

import (
	"os"
	"path/filepath"
	"testing"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/pipeline"
	"github.com/lex00/rds-scheduler-go/internal/schedule"
	"github.com/lex00/rds-scheduler-go/internal/synth/synthtest"
)

func TestCompare(t *testing.T) {
	t1 := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"DBShutDownRule": {Type: "AWS::Events::Rule", Properties: map[string]any{"ScheduleExpression": "cron(0 17 ? * MON-FRI *)"}},
			"DBStartUpRule":  {Type: "AWS::Events::Rule", Properties: map[string]any{"ScheduleExpression": "cron(0 5 ? * MON-FRI *)"}},
		},
	}

	t2 := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"DBShutDownRule": {Type: "AWS::Events::Rule", Properties: map[string]any{"ScheduleExpression": "cron(0 19 ? * MON-FRI *)"}},
			"DBRestartRule":  {Type: "AWS::Events::Rule", Properties: map[string]any{"ScheduleExpression": "cron(0 3 ? * SAT *)"}},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	// DBStartUpRule was removed
	if len(result.Diff.Removed) != 1 {
		t.Errorf("Removed = %d, want 1", len(result.Diff.Removed))
	} else if result.Diff.Removed[0].Resource != "DBStartUpRule" {
		t.Errorf("Removed[0].Resource = %s, want DBStartUpRule", result.Diff.Removed[0].Resource)
	}

	// DBRestartRule was added
	if len(result.Diff.Added) != 1 {
		t.Errorf("Added = %d, want 1", len(result.Diff.Added))
	} else if result.Diff.Added[0].Resource != "DBRestartRule" {
		t.Errorf("Added[0].Resource = %s, want DBRestartRule", result.Diff.Added[0].Resource)
	}

	// DBShutDownRule was modified
	if len(result.Diff.Modified) != 1 {
		t.Errorf("Modified = %d, want 1", len(result.Diff.Modified))
	} else if result.Diff.Modified[0].Resource != "DBShutDownRule" {
		t.Errorf("Modified[0].Resource = %s, want DBShutDownRule", result.Diff.Modified[0].Resource)
	}

	// Summary
	if result.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", result.Summary.Total)
	}
}

func TestCompareIdentical(t *testing.T) {
	template := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"Bucket": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "test"}},
		},
	}

	result, err := Compare(template, template, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if result.Summary.Total != 0 {
		t.Errorf("Summary.Total = %d, want 0 for identical templates", result.Summary.Total)
	}
}

func TestCompareEmpty(t *testing.T) {
	t1 := &rdsscheduler.Template{Resources: map[string]rdsscheduler.ResourceDef{}}
	t2 := &rdsscheduler.Template{Resources: map[string]rdsscheduler.ResourceDef{}}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if result.Summary.Total != 0 {
		t.Errorf("Summary.Total = %d, want 0", result.Summary.Total)
	}
}

func TestCompareTypeChange(t *testing.T) {
	t1 := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"Resource1": {Type: "AWS::S3::Bucket"},
		},
	}

	t2 := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"Resource1": {Type: "AWS::S3::AccessPoint"},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}

	found := false
	for _, change := range result.Diff.Modified[0].Changes {
		if change == "Type changed: AWS::S3::Bucket → AWS::S3::AccessPoint" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected type change to be detected")
	}
}

func TestCompareProperties(t *testing.T) {
	tests := []struct {
		name    string
		props1  map[string]any
		props2  map[string]any
		wantLen int
	}{
		{
			name:    "identical",
			props1:  map[string]any{"Key": "value"},
			props2:  map[string]any{"Key": "value"},
			wantLen: 0,
		},
		{
			name:    "added property",
			props1:  map[string]any{},
			props2:  map[string]any{"Key": "value"},
			wantLen: 1,
		},
		{
			name:    "removed property",
			props1:  map[string]any{"Key": "value"},
			props2:  map[string]any{},
			wantLen: 1,
		},
		{
			name:    "modified property",
			props1:  map[string]any{"Key": "value1"},
			props2:  map[string]any{"Key": "value2"},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := compareProperties("", tt.props1, tt.props2, Options{})
			if len(changes) != tt.wantLen {
				t.Errorf("compareProperties() returned %d changes, want %d", len(changes), tt.wantLen)
			}
		})
	}
}

func TestEqualStringSlices(t *testing.T) {
	tests := []struct {
		a, b []string
		want bool
	}{
		{nil, nil, true},
		{[]string{}, []string{}, true},
		{[]string{"a", "b"}, []string{"a", "b"}, true},
		{[]string{"a"}, []string{"b"}, false},
		{[]string{"a"}, []string{"a", "b"}, false},
	}

	for _, tt := range tests {
		got := equalStringSlices(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("equalStringSlices(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareIgnoreOrder(t *testing.T) {
	t1 := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"Policy": {Type: "AWS::IAM::Policy", Properties: map[string]any{
				"Roles": []any{map[string]any{"Ref": "A"}, map[string]any{"Ref": "B"}},
			}},
		},
	}
	t2 := &rdsscheduler.Template{
		Resources: map[string]rdsscheduler.ResourceDef{
			"Policy": {Type: "AWS::IAM::Policy", Properties: map[string]any{
				"Roles": []any{map[string]any{"Ref": "B"}, map[string]any{"Ref": "A"}},
			}},
		},
	}

	ordered, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if ordered.Empty() {
		t.Error("expected reordered roles to differ")
	}

	unordered, err := Compare(t1, t2, Options{IgnoreOrder: true})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !unordered.Empty() {
		t.Errorf("expected no changes ignoring order, got %+v", unordered.Diff)
	}
}

func TestCompareNil(t *testing.T) {
	if _, err := Compare(nil, &rdsscheduler.Template{}, Options{}); err == nil {
		t.Error("expected error for nil template")
	}
}

func TestCompareFiles_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "LambdaStack.template.json")
	yamlPath := filepath.Join(dir, "LambdaStack.template.yaml")

	if err := os.WriteFile(jsonPath, []byte(`{
  "AWSTemplateFormatVersion": "2010-09-09",
  "Resources": {
    "DBShutDownRule": {"Type": "AWS::Events::Rule", "Properties": {"State": "ENABLED"}}
  }
}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte(`AWSTemplateFormatVersion: "2010-09-09"
Resources:
  DBShutDownRule:
    Type: AWS::Events::Rule
    Properties:
      State: DISABLED
`), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := CompareFiles(jsonPath, yamlPath, Options{})
	if err != nil {
		t.Fatalf("CompareFiles() error = %v", err)
	}
	if len(result.Diff.Modified) != 1 || result.Diff.Modified[0].Changes[0] != "State modified" {
		t.Errorf("unexpected diff: %+v", result.Diff)
	}

	if _, err := CompareFiles(filepath.Join(dir, "missing.json"), yamlPath, Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCompareAssembly(t *testing.T) {
	_, asm := synthtest.Assembly(t, synthtest.Config(t, nil))

	// Nothing synthesized yet: every resource is new.
	dir := t.TempDir()
	results, err := CompareAssembly(dir, asm, Options{})
	if err != nil {
		t.Fatalf("CompareAssembly() error = %v", err)
	}
	lambda := results[schedule.LambdaStackName]
	if lambda.Summary.Added != len(asm.Templates[schedule.LambdaStackName].Resources) {
		t.Errorf("Added = %d, want every resource", lambda.Summary.Added)
	}

	// Same output on disk: no changes.
	if _, err := asm.Write(dir); err != nil {
		t.Fatal(err)
	}
	results, err = CompareAssembly(dir, asm, Options{})
	if err != nil {
		t.Fatalf("CompareAssembly() error = %v", err)
	}
	for name, res := range results {
		if !res.Empty() {
			t.Errorf("%s: expected no changes, got %+v", name, res.Diff)
		}
	}

	// A new stop time modifies only the shutdown rule.
	_, changed := synthtest.Assembly(t, synthtest.Config(t, map[string]any{"schedule.stop": "0 19 ? * MON-FRI *"}))
	results, err = CompareAssembly(dir, changed, Options{})
	if err != nil {
		t.Fatalf("CompareAssembly() error = %v", err)
	}
	mod := results[schedule.LambdaStackName].Diff.Modified
	if len(mod) != 1 || mod[0].Resource != "DBShutDownRule" {
		t.Errorf("Modified = %+v, want DBShutDownRule only", mod)
	}
	if !results[pipeline.StackName].Empty() {
		t.Errorf("pipeline stack should be unchanged, got %+v", results[pipeline.StackName].Diff)
	}
}

package graph

import (
	"strings"
	"testing"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/pipeline"
	"github.com/lex00/rds-scheduler-go/internal/schedule"
	"github.com/lex00/rds-scheduler-go/internal/synth/synthtest"
)

func functionTemplate() *rdsscheduler.Template {
	return &rdsscheduler.Template{
		Parameters: map[string]rdsscheduler.Parameter{
			"CodeBucket": {Type: "String"},
		},
		Resources: map[string]rdsscheduler.ResourceDef{
			"Role":   {Type: "AWS::IAM::Role"},
			"Policy": {Type: "AWS::IAM::Policy", Properties: map[string]any{"Roles": []any{map[string]any{"Ref": "Role"}}}},
			"Fn": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"Role": map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
					"Code": map[string]any{"S3Bucket": map[string]any{"Ref": "CodeBucket"}},
				},
				DependsOn: []string{"Policy", "Role"},
			},
		},
	}
}

func TestGenerator_Generate_SimpleGraph(t *testing.T) {
	gen := &Generator{}
	var sb strings.Builder
	if err := gen.Generate(functionTemplate(), &sb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := sb.String()
	if !strings.Contains(output, "digraph") {
		t.Error("expected digraph declaration")
	}
	for _, name := range []string{"Role", "Policy", "Fn"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected %s node", name)
		}
	}
	if !strings.Contains(output, "AWS::Lambda::Function") {
		t.Error("expected resource type in label")
	}
	if strings.Contains(output, "CodeBucket") {
		t.Error("parameters should be omitted by default")
	}
}

func TestGenerator_Generate_EdgeStyles(t *testing.T) {
	gen := &Generator{}
	output, err := gen.GenerateString(functionTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Fn -> Role is a GetAtt; Fn -> Policy is DependsOn only.
	if !strings.Contains(output, "blue") {
		t.Error("expected blue color for GetAtt edge")
	}
	if !strings.Contains(output, "dashed") {
		t.Error("expected dashed style for DependsOn edge")
	}
}

func TestGenerator_Generate_WithParameters(t *testing.T) {
	gen := &Generator{IncludeParameters: true}
	output, err := gen.GenerateString(functionTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "CodeBucket") {
		t.Error("expected CodeBucket parameter node")
	}
	if !strings.Contains(output, "ellipse") {
		t.Error("expected ellipse shape for parameter")
	}
}

func TestGenerator_Generate_ClusterByType(t *testing.T) {
	gen := &Generator{ClusterByType: true}
	output, err := gen.GenerateString(functionTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "cluster_IAM") {
		t.Errorf("expected IAM cluster subgraph, got:\n%s", output)
	}
	if strings.Contains(output, "cluster_Lambda") {
		t.Error("single-resource services should not be clustered")
	}
}

func TestGenerator_Generate_MermaidFormat(t *testing.T) {
	gen := &Generator{Format: FormatMermaid}
	output, err := gen.GenerateString(functionTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "graph") && !strings.Contains(output, "flowchart") {
		t.Errorf("expected mermaid graph/flowchart, got:\n%s", output)
	}
	if strings.Contains(output, "digraph") {
		t.Error("expected mermaid format, not DOT")
	}
}

func TestGenerator_Generate_Deterministic(t *testing.T) {
	_, asm := synthtest.Assembly(t, synthtest.Config(t, nil))
	gen := &Generator{ClusterByType: true}

	first, err := gen.GenerateString(asm.Templates[schedule.LambdaStackName])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := gen.GenerateString(asm.Templates[schedule.LambdaStackName])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatal("graph output is not deterministic")
		}
	}
}

func TestGenerator_GeneratePipeline(t *testing.T) {
	_, asm := synthtest.Assembly(t, synthtest.Config(t, nil))

	gen := &Generator{}
	var sb strings.Builder
	if err := gen.GeneratePipeline(asm.Templates[pipeline.StackName], &sb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := sb.String()
	for _, want := range []string{
		"1. Source", "2. Build", "3. Deploy",
		"Lambda_Deploy", "CloudFormation",
		string(pipeline.SourceOutput), string(pipeline.CdkBuildOutput),
		string(pipeline.ShutDownLambdaBuildOutput), string(pipeline.StartUpLambdaBuildOutput),
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in pipeline graph", want)
		}
	}
}

func TestExtractService(t *testing.T) {
	tests := map[string]string{
		"AWS::Lambda::Function":       "Lambda",
		"AWS::CodePipeline::Pipeline": "CodePipeline",
		"Custom":                      "Other",
	}
	for in, want := range tests {
		if got := extractService(in); got != want {
			t.Errorf("extractService(%q) = %q, want %q", in, got, want)
		}
	}
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/lex00/rds-scheduler-go/internal/graph"
	"github.com/lex00/rds-scheduler-go/internal/pipeline"
	"github.com/lex00/rds-scheduler-go/internal/schedule"
)

func newGraphCmd(root *rootOptions) *cobra.Command {
	var (
		stack             string
		outputFormat      string
		includeParameters bool
		clusterByType     bool
		stages            bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph of a synthesized stack.

The output can be rendered with Graphviz:
    rds-scheduler graph | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    rds-scheduler graph -f mermaid

Examples:
    rds-scheduler graph                          # LambdaStack resources
    rds-scheduler graph --stack PipelineStack -c # cluster by service
    rds-scheduler graph --pipeline               # stages and artifacts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := graph.Format(outputFormat)
			if format != graph.FormatDOT && format != graph.FormatMermaid {
				return unknownFormat(outputFormat, string(graph.FormatDOT), string(graph.FormatMermaid))
			}

			_, asm, err := root.synthesize(cmd)
			if err != nil {
				return err
			}

			gen := &graph.Generator{
				IncludeParameters: includeParameters,
				Format:            format,
				ClusterByType:     clusterByType,
			}
			if stages {
				t, err := stackTemplate(asm, pipeline.StackName)
				if err != nil {
					return err
				}
				return gen.GeneratePipeline(t, cmd.OutOrStdout())
			}

			t, err := stackTemplate(asm, stack)
			if err != nil {
				return err
			}
			return gen.Generate(t, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&stack, "stack", schedule.LambdaStackName, "Stack to graph")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVarP(&clusterByType, "cluster", "c", false, "Cluster resources by AWS service type")
	cmd.Flags().BoolVar(&stages, "pipeline", false, "Graph pipeline stages and artifact flow")

	return cmd
}

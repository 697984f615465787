package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var (
		stack        string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List synthesized resources",
		Long: `List synthesizes the stacks and displays their resources.

Examples:
    rds-scheduler list
    rds-scheduler list --stack PipelineStack --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, asm, err := root.synthesize(cmd)
			if err != nil {
				return err
			}

			names := asm.Order
			if stack != "" {
				if _, err := stackTemplate(asm, stack); err != nil {
					return err
				}
				names = []string{stack}
			}

			results := make([]rdsscheduler.ListResult, 0, len(names))
			for _, name := range names {
				results = append(results, listStack(name, asm.Templates[name]))
			}
			return outputListResults(cmd, results, outputFormat)
		},
	}

	cmd.Flags().StringVar(&stack, "stack", "", "Only list this stack")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func listStack(name string, t *rdsscheduler.Template) rdsscheduler.ListResult {
	result := rdsscheduler.ListResult{
		Stack:     name,
		Resources: make([]rdsscheduler.ListResource, 0, len(t.Resources)),
	}
	for id, res := range t.Resources {
		result.Resources = append(result.Resources, rdsscheduler.ListResource{
			Name:      id,
			Type:      res.Type,
			DependsOn: res.DependsOn,
		})
	}

	// Sort by name for consistent output
	sort.Slice(result.Resources, func(i, j int) bool {
		return result.Resources[i].Name < result.Resources[j].Name
	})
	return result
}

func outputListResults(cmd *cobra.Command, results []rdsscheduler.ListResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return printJSON(out, results)

	case "text":
		for i, result := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s (%d resources):\n\n", result.Stack, len(result.Resources))
			for _, res := range result.Resources {
				fmt.Fprintf(out, "  %s: %s\n", res.Name, res.Type)
			}
		}

	default:
		return unknownFormat(format, "text", "json")
	}

	return nil
}

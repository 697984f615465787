package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lex00/rds-scheduler-go/internal/differ"
)

type diffOptions struct {
	against     string
	stack       string
	format      string
	ignoreOrder bool
}

// newDiffCmd creates the "diff" subcommand comparing the synthesized stacks
// with earlier output.
func newDiffCmd(root *rootOptions) *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff [template]",
		Short: "Compare synthesized stacks with previous output",
		Long: `Diff synthesizes both stacks and reports resources added, removed or
modified relative to a previous synth output directory.

With --stack and a template file, only that stack is compared with the file,
which may be JSON or YAML.

Examples:
    rds-scheduler diff --against dist
    rds-scheduler diff --stack LambdaStack deployed.yaml
    rds-scheduler diff -f json --ignore-order`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.against, "against", "dist", "Previous synth output directory")
	cmd.Flags().StringVar(&opts.stack, "stack", "", "Compare only this stack with the given template file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.ignoreOrder, "ignore-order", false, "Ignore array element order")

	return cmd
}

func runDiff(cmd *cobra.Command, root *rootOptions, opts diffOptions, args []string) error {
	if len(args) == 1 && opts.stack == "" {
		return errors.WithHint(errors.New("a template file needs --stack"), "e.g. --stack LambdaStack")
	}
	if opts.format != "text" && opts.format != "json" {
		return unknownFormat(opts.format, "text", "json")
	}

	_, asm, err := root.synthesize(cmd)
	if err != nil {
		return err
	}
	dopts := differ.Options{IgnoreOrder: opts.ignoreOrder}

	results := make(map[string]*differ.Result)
	order := asm.Order
	if len(args) == 1 {
		current, err := stackTemplate(asm, opts.stack)
		if err != nil {
			return err
		}
		previous, err := differ.LoadTemplate(args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to load %s", args[0])
		}
		res, err := differ.Compare(previous, current, dopts)
		if err != nil {
			return err
		}
		results[opts.stack] = res
		order = []string{opts.stack}
	} else {
		results, err = differ.CompareAssembly(opts.against, asm, dopts)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return printJSON(out, results)
	}
	for _, name := range order {
		printDiff(out, name, results[name])
	}
	return nil
}

func printDiff(w io.Writer, stack string, res *differ.Result) {
	if res.Empty() {
		fmt.Fprintf(w, "%s: no changes\n", stack)
		return
	}

	fmt.Fprintf(w, "%s: %d added, %d removed, %d modified\n",
		stack, res.Summary.Added, res.Summary.Removed, res.Summary.Modified)
	for _, e := range res.Diff.Added {
		fmt.Fprintf(w, "  + %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range res.Diff.Removed {
		fmt.Fprintf(w, "  - %s (%s)\n", e.Resource, e.Type)
	}
	for _, e := range res.Diff.Modified {
		fmt.Fprintf(w, "  ~ %s (%s)\n", e.Resource, e.Type)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "      %s\n", c)
		}
	}
}

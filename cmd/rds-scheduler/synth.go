package main

import (
	"fmt"

	"github.com/spf13/cobra"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/template"
)

type synthOptions struct {
	outputDir string
	stack     string
	format    string
	json      bool
}

// newSynthCmd creates the "synth" subcommand that writes the cloud assembly.
func newSynthCmd(root *rootOptions) *cobra.Command {
	var opts synthOptions

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the CloudFormation templates",
		Long: `Synth writes one template per stack and a manifest.json to the output
directory. With --stack, a single template is printed instead.

SSM lookups are read from the context file next to the config and saved
there after the first successful lookup.

Examples:
    rds-scheduler synth -o dist
    rds-scheduler synth --stack LambdaStack -f yaml
    rds-scheduler synth --no-lookups --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "dist", "Output directory for the cloud assembly")
	cmd.Flags().StringVar(&opts.stack, "stack", "", "Print a single stack template instead of writing files")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Template format with --stack: json or yaml")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the synth result as JSON")

	return cmd
}

func runSynth(cmd *cobra.Command, root *rootOptions, opts synthOptions) error {
	out := cmd.OutOrStdout()

	_, asm, err := root.synthesize(cmd)
	if err != nil {
		if opts.json {
			_ = printJSON(out, rdsscheduler.SynthResult{Errors: []string{err.Error()}})
		}
		return err
	}

	if opts.stack != "" {
		t, err := stackTemplate(asm, opts.stack)
		if err != nil {
			return err
		}
		var data []byte
		switch opts.format {
		case "json":
			data, err = template.ToJSON(t)
		case "yaml":
			data, err = template.ToYAML(t)
		default:
			return unknownFormat(opts.format, "json", "yaml")
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	written, err := asm.Write(opts.outputDir)
	if err != nil {
		return err
	}

	if opts.json {
		return printJSON(out, rdsscheduler.SynthResult{
			Success:   true,
			OutputDir: opts.outputDir,
			Stacks:    asm.Order,
		})
	}
	for _, path := range written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}

// Command rds-scheduler synthesizes the CloudFormation stacks that stop and
// start an RDS instance on a schedule, and the pipeline that deploys them.
//
// Usage:
//
//	rds-scheduler synth -o dist       Write the cloud assembly
//	rds-scheduler validate            Lint the synthesized templates
//	rds-scheduler schedule            Show the next stop and start times
//	rds-scheduler init                Write a sample config file
//	rds-scheduler version             Show version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/app"
	"github.com/lex00/rds-scheduler-go/internal/config"
	"github.com/lex00/rds-scheduler-go/internal/synth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		stop()
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	noLookups  bool
	v          *viper.Viper
}

// flagKeys maps persistent override flags to config keys.
var flagKeys = map[string]string{
	"account":      "account",
	"region":       "region",
	"instance":     "instance_id",
	"instance-arn": "instance_arn",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "rds-scheduler",
		Short: "Stop and start an RDS instance on a schedule",
		Long: `rds-scheduler synthesizes two CloudFormation stacks:

  LambdaStack     scheduled functions that stop and start one DB instance
  PipelineStack   a CodePipeline that builds and deploys LambdaStack

Settings come from rds-scheduler.yaml, RDS_SCHEDULER_* environment
variables and the flags below, in increasing priority.

    rds-scheduler init --account 123456789012 --region us-east-1 --instance mydb
    rds-scheduler synth -o dist`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: ./rds-scheduler.yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&opts.noLookups, "no-lookups", false, "Use placeholder values for SSM lookups not in the context file")
	flags.String("account", "", "AWS account ID")
	flags.String("region", "", "AWS region")
	flags.String("instance", "", "DB instance identifier")
	flags.String("instance-arn", "", "DB instance ARN (default: derived from --instance)")
	for name, key := range flagKeys {
		_ = opts.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newSynthCmd(opts),
		newValidateCmd(opts),
		newDiffCmd(opts),
		newGraphCmd(opts),
		newListCmd(opts),
		newScheduleCmd(opts),
		newWatchCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rds-scheduler %s\n", getVersion())
		},
	}
}

// logger returns a development logger with --verbose. Otherwise a production
// logger reports warnings and errors only.
func (o *rootOptions) logger() *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	if o.verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// load reads the config file and applies flag overrides. An --instance
// without --instance-arn derives the ARN from account and region.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	if err := config.ReadFile(o.v, o.configPath); err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("instance") && !flags.Changed("instance-arn") {
		o.v.Set("instance_arn", "arn:aws:rds:"+o.v.GetString("region")+":"+
			o.v.GetString("account")+":db:"+o.v.GetString("instance_id"))
	}
	return config.LoadWithViper(o.v)
}

// configDir is the directory of the config file in use, against which the
// lookup context file resolves.
func (o *rootOptions) configDir() string {
	if used := o.v.ConfigFileUsed(); used != "" {
		return filepath.Dir(used)
	}
	return ""
}

// synthesize loads the config and synthesizes the app.
func (o *rootOptions) synthesize(cmd *cobra.Command) (*synth.Result, *app.Assembly, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger()
	defer func() { _ = logger.Sync() }()

	cache, err := synth.Lookups(cfg, o.configDir(), o.noLookups, logger)
	if err != nil {
		return nil, nil, err
	}
	return synth.Run(cmd.Context(), cfg, cache, logger)
}

// stackTemplate returns the template of the named stack of asm.
func stackTemplate(asm *app.Assembly, name string) (*rdsscheduler.Template, error) {
	if t, ok := asm.Templates[name]; ok {
		return t, nil
	}
	return nil, errors.WithHintf(errors.Newf("unknown stack %q", name), "stacks: %s", strings.Join(asm.Order, ", "))
}

// errUnknownFormat marks a --format value the command does not support.
var errUnknownFormat = errors.New("unknown format")

func unknownFormat(format string, supported ...string) error {
	return errors.WithHintf(
		errors.Mark(errors.Newf("unknown format: %s", format), errUnknownFormat),
		"use %s", strings.Join(supported, " or "),
	)
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

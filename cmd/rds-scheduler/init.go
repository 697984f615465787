package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lex00/rds-scheduler-go/internal/config"
)

func newInitCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample config file",
		Long: `Init writes a config file with every option at its default value.
The account, region and instance come from the global flags or the
RDS_SCHEDULER_* environment.

Examples:
    rds-scheduler init --account 123456789012 --region us-east-1 --instance mydb
    rds-scheduler init prod.yaml --account 123456789012 --region eu-west-1 --instance proddb`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}

			account := root.v.GetString("account")
			region := root.v.GetString("region")
			instance := root.v.GetString("instance_id")
			if account == "" || region == "" || instance == "" {
				return errors.WithHint(
					errors.New("account, region and instance are required"),
					"pass --account, --region and --instance",
				)
			}

			if err := config.WriteSample(path, account, region, instance); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	return cmd
}

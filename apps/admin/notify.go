package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/selah/core"
)

func (cli *commandLine) notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Push notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run-once",
		Short: "Send the notifications due now, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := cli.scheduler.Tick(context.Background(), core.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d checked, %d sent, %d failed, %d expired\n", report.Checked, report.Sent, report.Failed, report.Expired)
			return nil
		},
	})
	return cmd
}

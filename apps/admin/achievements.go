package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) achievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Manage the achievements catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert or update the default achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.gameSvc.SeedAchievements(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d achievements seeded\n", n)
			return nil
		},
	})
	return cmd
}

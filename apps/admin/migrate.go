package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/selah/storage/database"
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command: up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	return database.GooseRun(args[0], cli.db, args[1:]...)
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(uname, pwd)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username or email")
	return cmd
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.Now()
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}

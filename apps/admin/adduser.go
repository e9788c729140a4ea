package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var uname, email, name, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user or update an existing one. The password is prompted next.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" || email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(name, uname, email, pwd, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "user %q saved (%s)\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username")
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&name, "name", "", "The user's name")
	cmd.Flags().StringVar(&role, "role", user.RoleReader, "One of "+fmt.Sprint(user.AllRoles))
	return cmd
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd, role string) (user.User, error) {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if user.RolePriority(role) == 0 {
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if err != user.ErrNotFound {
			return user.User{}, err
		}
		now := core.Now()
		usr = user.User{
			Username:  uname,
			Email:     email,
			Timezone:  "UTC",
			CreatedAt: now,
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = uname
	}
	usr.Roles = []string{role}
	usr.IsActive = true
	usr.UpdatedAt = core.Now()
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}

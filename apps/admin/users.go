package main

import (
	"context"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/user"
)

func (cli *commandLine) usersCmd() *cobra.Command {
	var filter user.QueryFilter
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users, optionally filtered by search term and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.listUsers(filter)
		},
	}
	cmd.Flags().StringVar(&filter.Search, "search", "", "Match name, username or email")
	cmd.Flags().StringSliceVar(&filter.Roles, "role", nil, "Only users with one of these roles")
	return cmd
}

func (cli *commandLine) listUsers(filter user.QueryFilter) error {
	users, err := cli.usrRepo.QueryUsers(context.Background(), &filter, []core.DBOrdering{{Field: "username", Ascending: true}})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Username", "Email", "Name", "Roles", "Active", "Last login"})
	for _, usr := range users {
		active := "yes"
		if !usr.IsActive {
			active = "no"
		}
		lastLogin := "never"
		if !usr.LastLogin.IsZero() {
			lastLogin = usr.LastLogin.Format("2006-01-02 15:04")
		}
		table.Append([]string{usr.Username, usr.Email, usr.Name, strings.Join(usr.Roles, ", "), active, lastLogin})
	}
	table.Render()
	return nil
}

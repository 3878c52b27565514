package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/user"
)

func newCreateUserCommand(cli *commandLine) *cobra.Command {
	var uname, email, name string
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a user or update the one with the same username or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.createUser(cmd.Context(), uname, email, name, pwd, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "full name (defaults to the username)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant every role")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// createUser updates or creates a user.User
func (cli *commandLine) createUser(ctx context.Context, uname, email, name, pwd string, isAdmin bool) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}

	exists := true
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		exists = false
		now := core.Now()
		usr = user.User{ID: uuid.NewString(), Roles: []string{}, CreatedAt: now}
	}

	usr.Name = name
	usr.Username = uname
	usr.Email = email
	usr.IsActive = true
	usr.UpdatedAt = core.Now()
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}

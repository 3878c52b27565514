package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/user"
)

func newResetPasswordCommand(cli *commandLine) *cobra.Command {
	var uname string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the new password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			if err = cli.resetPassword(cmd.Context(), uname, pwd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	uname = core.CleanString(uname, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname}})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.Now()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}

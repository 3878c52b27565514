package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eventuais/eventuais/core"
)

func newSendReportsCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "sendreports",
		Short: "Run the scheduled reports that are due and email them to their recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.analyticsSvc.SendScheduledReports(cmd.Context(), core.Now())
			if err != nil {
				return errors.Wrap(err, "sending scheduled reports")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d report(s) sent\n", n)
			return nil
		},
	}
}

func newFlagOverdueCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "flagoverdue",
		Short: "Refresh the overdue flag of support tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.supportSvc.FlagOverdue(cmd.Context(), core.Now())
			if err != nil {
				return errors.Wrap(err, "flagging overdue tickets")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d ticket(s) updated\n", n)
			return nil
		},
	}
}

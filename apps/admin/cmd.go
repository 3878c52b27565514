package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/project"
	"github.com/eventuais/eventuais/core/support"
	"github.com/eventuais/eventuais/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password is required")
)

type commandLine struct {
	db           *sqlx.DB
	validate     *validator.Validate
	usrRepo      user.Repository
	crmRepo      crm.Repository
	projectRepo  project.Repository
	supportSvc   *support.Service
	analyticsSvc *analytics.Service
}

func newRootCommand(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Eventuais administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newMigrateCommand(cli),
		newCreateUserCommand(cli),
		newResetPasswordCommand(cli),
		newLoadDataCommand(cli),
		newSendReportsCommand(cli),
		newFlagOverdueCommand(cli),
	)
	return cmd
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eventuais/eventuais/storage/database"
)

var migrateFunc = database.Migrate // mockable

var migrateCommands = map[string]bool{
	"up": false, "up-by-one": false, "up-to": true, "down": false, "down-to": true,
	"redo": false, "reset": false, "status": false, "version": false, "fix": false,
}

func newMigrateCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [VERSION]",
		Short: "Run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.migrate(args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) migrate(command string, args ...string) error {
	needsVersion, ok := migrateCommands[command]
	if !ok {
		return fmt.Errorf("%q: no such command", command)
	}
	if needsVersion {
		if len(args) == 0 {
			return fmt.Errorf("%s must be of form: migrate %s VERSION", command, command)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[0])
		}
	}
	return migrateFunc(cli.db, command, args...)
}

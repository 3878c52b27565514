package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/support"
	"github.com/eventuais/eventuais/core/user"
	emailsvc "github.com/eventuais/eventuais/services/email"
	logsvc "github.com/eventuais/eventuais/services/logger"
	sqlxrepos "github.com/eventuais/eventuais/storage/database/sqlx"
	"github.com/eventuais/eventuais/tests"
)

var (
	db  *sqlx.DB
	cli *commandLine
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()
	conf, terminate, err := testutil.StartPostgres(ctx)
	if err != nil {
		fmt.Println(err)
		return 1
	}
	defer terminate()

	if db, err = testutil.PrepareDB(ctx, conf); err != nil {
		fmt.Println(err)
		return 1
	}
	defer db.Close()

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	core.ParseEmailTemplates(logger, conf)

	cli = &commandLine{
		db:          db,
		validate:    validate,
		usrRepo:     sqlxrepos.NewUserRepository(db),
		crmRepo:     sqlxrepos.NewCRMRepository(db),
		projectRepo: sqlxrepos.NewProjectRepository(db),
		supportSvc:  support.NewService(db, sqlxrepos.NewSupportRepository(db), validate),
		analyticsSvc: analytics.NewService(
			db, sqlxrepos.NewAnalyticsRepository(db), nil, emailsvc.NewConsoleServiceMock(conf, logger), conf, validate, logger,
		),
	}
	return m.Run()
}

// execute runs the admin command with args, feeding pwd to any password prompt.
func execute(t *testing.T, pwd string, args ...string) (string, error) {
	t.Helper()
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }

	var out bytes.Buffer
	cmd := newRootCommand(cli)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func getUser(t *testing.T, uname string) user.User {
	t.Helper()
	usr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{UsernameOrEmail: []string{uname}})
	require.NoError(t, err)
	return usr
}

func Test_commandLine_migrate(t *testing.T) {
	var gotCommand string
	var gotArgs []string
	migrateFunc = func(_ *sqlx.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		return nil
	}

	tests := []struct {
		name       string
		args       []string
		wantErrStr string
		wantArgs   []string
	}{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: migrate up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: migrate down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, wantArgs: []string{"2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}, wantArgs: []string{"1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCommand, gotArgs = "", nil
			_, err := execute(t, "", tt.args...)
			if tt.wantErrStr != "" {
				require.EqualError(t, err, tt.wantErrStr)
				assert.Empty(t, gotCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.args[1], gotCommand)
			if tt.wantArgs == nil {
				assert.Empty(t, gotArgs)
			} else {
				assert.Equal(t, tt.wantArgs, gotArgs)
			}
		})
	}
}

func Test_commandLine_createUser(t *testing.T) {
	testutil.ResetDB(t, db)

	_, err := execute(t, "", "createuser", "--username", "awe", "--email", "awe@test.cd")
	assert.Equal(t, errEmptyPassword, err)

	_, err = execute(t, "mdr", "createuser", "--email", "awe@test.cd")
	assert.Error(t, err, "username is required")

	out, err := execute(t, "s3cret!pwd", "createuser", "--username", " Awe ", "--email", "AWE@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "Enter password:\nuser awe saved\n", out)

	usr := getUser(t, "awe")
	assert.Equal(t, "awe", usr.Name)
	assert.Equal(t, "awe@test.cd", usr.Email)
	assert.True(t, usr.IsActive)
	assert.Empty(t, usr.Roles)
	assert.NoError(t, usr.CheckPassword("s3cret!pwd"))

	// same email: the existing user is updated
	_, err = execute(t, "0th3r!pwd", "createuser", "--username", "awe2", "--email", "awe@test.cd", "--name", "Awe Admin", "--admin")
	require.NoError(t, err)

	updated := getUser(t, "awe2")
	assert.Equal(t, usr.ID, updated.ID)
	assert.Equal(t, "Awe Admin", updated.Name)
	assert.ElementsMatch(t, user.AllRoles, updated.Roles)
	assert.NoError(t, updated.CheckPassword("0th3r!pwd"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	testutil.ResetDB(t, db)
	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []struct {
		name    string
		args    []string
		pwd     string
		wantErr error
	}{
		{name: "no username", args: []string{"resetpassword"}, pwd: "lol"},
		{name: "no password", args: []string{"resetpassword", "--username", usr.Username}, wantErr: errEmptyPassword},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@test.cd"}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.pwd, tt.args...)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case len(tt.args) == 1:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				saved := getUser(t, usr.Username)
				assert.NoError(t, saved.CheckPassword(tt.pwd))
			}
		})
	}
}

const fixtureYAML = `
users:
  - name: Sales Rep
    username: rep
    email: rep@test.cd
    password: s3cret!pwd
    roles: [sales:]
tags:
  - name: vip
    color: red
accounts:
  - id: 6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a01
    name: Acme
    industry: technology
    created_by: rep
    tags: [vip]
  - id: 6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a02
    name: Acme Europe
    parent: 6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a01
    created_by: rep
contacts:
  - id: 6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a03
    first_name: Jane
    last_name: Doe
    email: Jane@Acme.io
    account: 6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a01
    country: Angola
    created_by: rep@test.cd
projects:
  - name: Festival
    start_date: "2026-06-01"
    end_date: "2026-06-03"
equipment:
  - name: Stage
    category: staging
crew:
  - name: Bob
    role: rigger
transportation:
  - name: Van
    vehicle_type: van
    capacity: 8
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_commandLine_loadData(t *testing.T) {
	testutil.ResetDB(t, db)
	ctx := context.Background()

	_, err := execute(t, "", "loaddata")
	assert.Error(t, err)

	_, err = execute(t, "", "loaddata", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	// an unknown tag rolls the whole file back
	_, err = execute(t, "", "loaddata", writeFixture(t, `
users:
  - username: ghost
    email: ghost@test.cd
accounts:
  - name: Ghost Corp
    created_by: ghost
    tags: [nope]
`))
	assert.EqualError(t, err, `accounts[0]: unknown tag "nope"`)
	_, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "ghost"})
	assert.True(t, core.IsNotFound(err))

	out, err := execute(t, "", "loaddata", writeFixture(t, fixtureYAML))
	require.NoError(t, err)
	assert.Equal(t, "users: 1\ntags: 1\naccounts: 2\ncontacts: 1\nprojects: 1\nequipment: 1\ncrew: 1\ntransportation: 1\n", out)

	rep := getUser(t, "rep")
	assert.Equal(t, []string{user.RoleSales}, rep.Roles)
	assert.NoError(t, rep.CheckPassword("s3cret!pwd"))

	acc, err := cli.crmRepo.GetAccount(ctx, "6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a02")
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Level)
	assert.Equal(t, "customer", acc.AccountType)
	assert.Equal(t, rep.ID, acc.CreatedByID)

	c, err := cli.crmRepo.GetContact(ctx, "6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a03")
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.io", c.Email)
	assert.Equal(t, "active", c.Status)
	assert.Equal(t, "Angola", c.Country)

	// loading the same users twice violates their unique username
	_, err = execute(t, "", "loaddata", writeFixture(t, fixtureYAML))
	assert.Error(t, err)
}

func Test_commandLine_jobs(t *testing.T) {
	testutil.ResetDB(t, db)
	ctx := context.Background()

	_, err := execute(t, "", "loaddata", writeFixture(t, fixtureYAML))
	require.NoError(t, err)
	rep := getUser(t, "rep")

	subject, description := "Broken", "It broke"
	contact, account := "6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a03", "6f1d7e7c-3c4b-4d1e-9a6a-2f6f1f8f3a01"
	ticket, err := cli.supportSvc.CreateTicket(ctx, rep.ID, support.SupportTicketInput{
		Subject:     &subject,
		Description: &description,
		ContactID:   &contact,
		AccountID:   &account,
		DueBy:       core.Optional[null.Time]{Set: true, Value: null.TimeFrom(time.Now().Add(-time.Hour))},
	})
	require.NoError(t, err)
	assert.False(t, ticket.IsOverdue)

	out, err := execute(t, "", "flagoverdue")
	require.NoError(t, err)
	assert.Equal(t, "1 ticket(s) updated\n", out)

	ticket, err = cli.supportSvc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, ticket.IsOverdue)

	out, err = execute(t, "", "flagoverdue")
	require.NoError(t, err)
	assert.Equal(t, "0 ticket(s) updated\n", out)

	out, err = execute(t, "", "sendreports")
	require.NoError(t, err)
	assert.Equal(t, "0 report(s) sent\n", out)

	_, err = execute(t, "", "sendreports", "extra")
	assert.Error(t, err)
}


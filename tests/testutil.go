// Package testutil holds the helpers shared by the integration tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/user"
	"github.com/eventuais/eventuais/storage/database"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresPassword = "postgres"
)

// tables wiped between tests; content_type holds seeded rows and is kept.
var tables = []string{
	`"user"`, "tag", "account", "contact", "opportunity", "activity", "custom_field", "custom_field_value",
	"social_profile", "campaign", "marketing_email", "campaign_recipient", "segment", "support_ticket",
	"ticket_message", "report", "dashboard", "dashboard_item", "project", "equipment", "crew",
	"transportation", "project_resource_allocation", "task", "comment",
}

// StartPostgres runs a throwaway postgres container and points a test config at it.
func StartPostgres(ctx context.Context) (*core.Config, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": postgresPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "starting postgres container")
	}
	terminate := func() {
		if err := pgC.Terminate(context.Background()); err != nil {
			fmt.Printf("terminating postgres container: %v\n", err)
		}
	}

	host, err := pgC.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, errors.Wrap(err, "getting container host")
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		return nil, nil, errors.Wrap(err, "getting container port")
	}

	conf := core.NewTestConfig()
	conf.Database.Engine = "postgres"
	conf.Database.Host = host
	conf.Database.Port = port.Int()
	conf.Database.AdminUser = "postgres"
	conf.Database.AdminPassword = postgresPassword
	conf.Database.User = "eventuais"
	conf.Database.Password = "eventuais"
	conf.Database.Name = "eventuais_test"
	conf.Database.DisableTLS = true
	return conf, terminate, nil
}

// PrepareDB creates, opens and migrates the test database.
func PrepareDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ResetDB empties every application table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " CASCADE"); err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

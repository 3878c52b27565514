package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/eventuais/eventuais/core"
	appfs "github.com/eventuais/eventuais/fs"
)

const migrationsDir = "migrations"

func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	return sqlx.Open(conf.Database.Engine, dsn(dbName, admin, conf))
}

// Open opens the application database and waits for it to accept connections.
func Open(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(ctx context.Context, db core.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping canceled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sqlx.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	if err := db.GetContext(ctx, &found, query, args...); err != nil {
		return false, err
	}
	return found, nil
}

func createAppUser(ctx context.Context, db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s",
			pq.QuoteIdentifier(conf.Database.User), pq.QuoteLiteral(conf.Database.Password))
		if _, err = db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(ctx context.Context, db *sqlx.DB, conf *core.Config) error {
	found, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the application role and database using the admin credentials.
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	// connect as admin
	adminDB, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = Ping(ctx, adminDB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(ctx, adminDB, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(ctx, appDB, conf)
}

// Migrate runs a goose command ("up", "down", "status", "redo"...) against the embedded migrations.
func Migrate(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations: %s", command)
	}
	return nil
}

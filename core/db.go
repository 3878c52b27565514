package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		PingContext(ctx context.Context) error
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// WithTx runs fn inside a transaction, committing on success and rolling back otherwise.
func WithTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

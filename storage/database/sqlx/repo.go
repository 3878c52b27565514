package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgres error codes
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
	pqCheckViolation      = "23514"
	pqInvalidText         = "22P02"
)

// uniqueFields maps unique constraints to the field reported on violation.
var uniqueFields = map[string]string{
	"user_username_key":              "username",
	"user_email_key":                 "email",
	"tag_name_key":                   "name",
	"custom_field_name_key":          "name",
	"custom_field_value_field_key":   "field",
	"social_profile_platform_key":    "platform",
	"marketing_email_sequence_key":   "sequence_order",
	"campaign_recipient_contact_key": "contact",
	"dashboard_item_position_key":    "position_x",
}

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, exec, dest, query, args...)
}

func getOne(ctx context.Context, exec core.DBExecutor, dest interface{}, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, exec, dest, query, args...)
}

func execQuery(ctx context.Context, exec core.DBExecutor, qb sq.Sqlizer) (int64, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func count(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) (int, error) {
	var n int
	err := getOne(ctx, exec, &n, psql.Select("COUNT(*)").FromSelect(qb, "q"))
	return n, err
}

func joinCols(cols []string) string {
	return strings.Join(cols, ", ")
}

// insertNamed inserts a struct through its `db` tags.
func insertNamed(ctx context.Context, exec core.DBExecutor, table string, cols []string, arg interface{}) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", table, joinCols(cols), strings.Join(cols, ", :"))
	_, err := sqlx.NamedExecContext(ctx, exec, query, arg)
	return err
}

// updateNamed updates the row identified by `:id` through the `db` tags of arg.
func updateNamed(ctx context.Context, exec core.DBExecutor, table string, cols []string, arg interface{}) (int64, error) {
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = :"+col)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", table, strings.Join(sets, ", "))
	res, err := sqlx.NamedExecContext(ctx, exec, query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func deleteByID(ctx context.Context, exec core.DBExecutor, table string, id interface{}) (int64, error) {
	return execQuery(ctx, exec, psql.Delete(table).Where(sq.Eq{"id": id}))
}

// trapErr maps driver errors to domain errors:
// no rows to a NotFoundError, FK violations to an invalid reference on the FK field,
// unique violations to an "already exists" error on the constrained field.
func trapErr(err error, resource, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return core.NewNotFoundError(resource)
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return core.InvalidRefError(fkField(pqErr.Table, pqErr.Constraint))
		case pqUniqueViolation:
			if field, ok := uniqueFields[pqErr.Constraint]; ok {
				return core.AlreadyExistsError(field)
			}
			return core.AlreadyExistsError("value")
		case pqCheckViolation:
			return core.NewValidationError(errors.Errorf("invalid value: %s", pqErr.Constraint))
		case pqInvalidText:
			if resource == "" { // list filters
				return core.NewValidationError(errors.New("invalid filter value"))
			}
			return core.NewNotFoundError(resource)
		}
	}
	return errors.Wrap(err, msg)
}

// fkField derives the API field name from a default FK constraint name: "<table>_<col>_id_fkey".
func fkField(table, constraint string) string {
	field := strings.TrimSuffix(strings.TrimPrefix(constraint, table+"_"), "_fkey")
	field = strings.TrimSuffix(field, "_id")
	if field == "tag" {
		return "tag_ids"
	}
	return field
}

func notFound(n int64, resource string) error {
	if n == 0 {
		return core.NewNotFoundError(resource)
	}
	return nil
}

// orderBy translates API orderings into SQL using a whitelist of columns; unknown fields are ignored.
func orderBy(ordering []core.DBOrdering, columns map[string]string, defaults ...string) []string {
	clauses := make([]string, 0, len(ordering)+len(defaults))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		clauses = append(clauses, defaults...)
	}
	return clauses
}

// search matches term case-insensitively against any of columns.
func search(term string, columns ...string) sq.Sqlizer {
	pattern := "%" + escapeLike(term) + "%"
	or := make(sq.Or, 0, len(columns))
	for _, col := range columns {
		or = append(or, sq.ILike{col: pattern})
	}
	return or
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// userName is the display name of the user aliased as alias.
func userName(alias, as string) string {
	return fmt.Sprintf("COALESCE(NULLIF(%[1]s.name, ''), %[1]s.username, %[1]s.email) AS %[2]s", alias, as)
}

// eqIfSet adds an equality condition to qb for every non-empty value.
func eqIfSet(qb sq.SelectBuilder, conds map[string]string) sq.SelectBuilder {
	for col, val := range conds {
		if val != "" {
			qb = qb.Where(sq.Eq{col: val})
		}
	}
	return qb
}

func boolIfSet(qb sq.SelectBuilder, col string, val *bool) sq.SelectBuilder {
	if val != nil {
		qb = qb.Where(sq.Eq{col: *val})
	}
	return qb
}

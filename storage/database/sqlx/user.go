package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/user"
)

var (
	userCols = []string{
		"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login",
	}
	userOrdering = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"created_at": "created_at",
		"is_active":  "is_active",
	}
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    usr.LastLogin,
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	roles := []string(row.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin,
	}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.toRow(usr)
	if err := insertNamed(ctx, repo.getExec(exec), `"user"`, userCols, row); err != nil {
		return user.User{}, trapErr(err, "user", "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	qb := psql.Select(userCols...).From(`"user"`)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			qb = qb.Where(search(filter.Search, "name", "username", "email"))
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roles := make(sq.Or, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)", escapeLike(role)+"%"))
			}
			qb = qb.Where(roles)
		}
		qb = boolIfSet(qb, "is_active", filter.IsActive)
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	qb = qb.OrderBy(orderBy(ordering, userOrdering, "created_at ASC")...)

	var rows []userRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, qb); err != nil {
		return nil, trapErr(err, "", "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	qb := psql.Select(userCols...).From(`"user"`).Limit(1)

	switch {
	case filter.ID != "":
		qb = qb.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		qb = qb.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		qb = qb.Where(sq.Eq{"email": filter.Email})
	case len(filter.UsernameOrEmail) > 0:
		uname := filter.UsernameOrEmail[0]
		email := uname
		if len(filter.UsernameOrEmail) > 1 && filter.UsernameOrEmail[1] != "" {
			email = filter.UsernameOrEmail[1]
		}
		qb = qb.Where(sq.Or{sq.Eq{"username": uname}, sq.Eq{"email": email}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getOne(ctx, repo.getExec(exec), &row, qb); err != nil {
		return user.User{}, trapErr(err, "user", "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) FilterExistingIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]string, error) {
	var found []string
	qb := psql.Select("id").From(`"user"`).Where("id = ANY(?)", pq.Array(ids))
	if err := selectAll(ctx, repo.getExec(exec), &found, qb); err != nil {
		return nil, trapErr(err, "", "filtering user ids")
	}
	existing := make(map[string]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}
	out := make([]string, 0, len(found))
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.toRow(usr)
	n, err := updateNamed(ctx, repo.getExec(exec), `"user"`, userCols[1:], row)
	if err != nil {
		return user.User{}, trapErr(err, "user", "updating user")
	}
	if err = notFound(n, "user"); err != nil {
		return user.User{}, err
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := execQuery(ctx, repo.getExec(exec), psql.Delete(`"user"`).Where("id = ANY(?)", pq.Array(ids)))
	return errors.Wrap(err, "deleting users")
}

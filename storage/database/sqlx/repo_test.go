package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core"
)

func Test_orderBy(t *testing.T) {
	columns := map[string]string{"name": "a.name", "created_at": "a.created_at"}

	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "defaults", want: []string{"a.created_at DESC"}},
		{name: "unknown fields fall back to defaults", ordering: []core.DBOrdering{{Field: "password"}}, want: []string{"a.created_at DESC"}},
		{
			name:     "known fields in order",
			ordering: []core.DBOrdering{{Field: "name", Ascending: true}, {Field: "lol"}, {Field: "created_at"}},
			want:     []string{"a.name ASC", "a.created_at DESC"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderBy(tt.ordering, columns, "a.created_at DESC"))
		})
	}
}

func Test_search(t *testing.T) {
	query, args, err := search("50%_off", "a.name", "a.email").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(a.name ILIKE ? OR a.email ILIKE ?)", query)
	assert.Equal(t, []interface{}{`%50\%\_off%`, `%50\%\_off%`}, args)
}

func Test_fkField(t *testing.T) {
	assert.Equal(t, "account", fkField("contact", "contact_account_id_fkey"))
	assert.Equal(t, "assigned_to", fkField("support_ticket", "support_ticket_assigned_to_id_fkey"))
	assert.Equal(t, "tag_ids", fkField("account_tags", "account_tags_tag_id_fkey"))
}

func fieldErrors(t *testing.T, err error) []core.FieldError {
	t.Helper()
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func Test_trapErr(t *testing.T) {
	assert.NoError(t, trapErr(nil, "account", "getting account"))

	err := trapErr(errors.Wrap(sql.ErrNoRows, "scan"), "account", "getting account")
	assert.True(t, core.IsNotFound(err))
	assert.EqualError(t, err, "account not found")

	err = trapErr(&pq.Error{Code: pqUniqueViolation, Constraint: "user_email_key"}, "user", "creating user")
	assert.Equal(t, []core.FieldError{{Field: "email", Error: "an object with this email already exists"}}, fieldErrors(t, err))

	err = trapErr(&pq.Error{Code: pqForeignKeyViolation, Table: "contact", Constraint: "contact_account_id_fkey"}, "contact", "creating contact")
	assert.Equal(t, []core.FieldError{{Field: "account", Error: "invalid reference: object does not exist"}}, fieldErrors(t, err))

	err = trapErr(&pq.Error{Code: pqInvalidText}, "", "querying contacts")
	assert.EqualError(t, err, "invalid filter value")

	err = trapErr(&pq.Error{Code: pqInvalidText}, "contact", "getting contact")
	assert.True(t, core.IsNotFound(err))

	err = trapErr(errors.New("boom"), "contact", "getting contact")
	assert.EqualError(t, err, "getting contact: boom")
}

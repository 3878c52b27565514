package sqlxrepos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core/crm"
)

func Test_criteriaSQL(t *testing.T) {
	tests := []struct {
		name      string
		criteria  string
		wantSQL   string
		wantArgs  []interface{}
		wantEmpty bool
	}{
		{name: "no conditions", criteria: `{"match": "all"}`, wantEmpty: true},
		{
			name:     "eq",
			criteria: `{"conditions": [{"field": "country", "op": "eq", "value": "Angola"}]}`,
			wantSQL:  "(c.country = ?)",
			wantArgs: []interface{}{"Angola"},
		},
		{
			name: "all",
			criteria: `{"match": "all", "conditions": [
				{"field": "email", "op": "icontains", "value": "@acme"},
				{"field": "status", "op": "in", "value": ["active", "lead"]}
			]}`,
			wantSQL:  "(c.email ILIKE ? AND c.status IN (?,?))",
			wantArgs: []interface{}{"%@acme%", "active", "lead"},
		},
		{
			name: "any",
			criteria: `{"match": "any", "conditions": [
				{"field": "first_name", "op": "startswith", "value": "Jo"},
				{"field": "account", "op": "isnull", "value": false},
				{"field": "city", "op": "isnull", "value": true}
			]}`,
			wantSQL:  "(c.first_name LIKE ? OR c.account_id IS NOT NULL OR c.city = ?)",
			wantArgs: []interface{}{"Jo%", ""},
		},
		{
			name:     "dates",
			criteria: `{"conditions": [{"field": "created_at", "op": "gte", "value": "2024-06-03"}]}`,
			wantSQL:  "(c.created_at >= ?)",
			wantArgs: []interface{}{time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:     "tags",
			criteria: `{"conditions": [{"field": "tag", "op": "eq", "value": 2}, {"field": "tag", "op": "isnull", "value": true}]}`,
			wantSQL: "(EXISTS (SELECT 1 FROM contact_tags ct WHERE ct.contact_id = c.id AND ct.tag_id = ?)" +
				" AND NOT EXISTS (SELECT 1 FROM contact_tags ct WHERE ct.contact_id = c.id))",
			wantArgs: []interface{}{2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := crm.ParseCriteria([]byte(tt.criteria))
			require.NoError(t, err)

			cond, err := criteriaSQL(c, "c")
			require.NoError(t, err)
			if tt.wantEmpty {
				assert.Nil(t, cond)
				return
			}
			query, args, err := cond.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func Test_criteriaSQL_tagOperator(t *testing.T) {
	c := &crm.Criteria{Match: crm.MatchAll, Conditions: []crm.Condition{{Field: "tag", Op: "gt", Value: float64(1)}}}
	_, err := criteriaSQL(c, "c")
	assert.EqualError(t, err, `operator "gt" does not apply to tags`)
}

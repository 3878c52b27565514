package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core"
)

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "empty", raw: ""},
		{name: "null", raw: "null"},
		{name: "no conditions", raw: `{"match": "any"}`},
		{name: "not an object", raw: `[1, 2]`, wantErr: "criteria must be a JSON object with match and conditions"},
		{name: "bad match", raw: `{"match": "some"}`, wantErr: "match must be one of: all, any"},
		{
			name:    "unknown field",
			raw:     `{"conditions": [{"field": "salary", "op": "eq", "value": "1"}]}`,
			wantErr: `condition 0: unknown field "salary"`,
		},
		{
			name:    "unknown operator",
			raw:     `{"conditions": [{"field": "city", "op": "like", "value": "Luanda"}]}`,
			wantErr: `condition 0: unknown operator "like"`,
		},
		{
			name:    "string field expects string",
			raw:     `{"conditions": [{"field": "city", "op": "eq", "value": 3}]}`,
			wantErr: "condition 0: expected a string value",
		},
		{
			name:    "contains on bool",
			raw:     `{"conditions": [{"field": "email_opt_out", "op": "contains", "value": "t"}]}`,
			wantErr: "condition 0: contains only applies to text fields",
		},
		{
			name:    "ordering on uuid",
			raw:     `{"conditions": [{"field": "account", "op": "gt", "value": "7c5e0bb4-5d6f-4f8e-8f52-3b9c9e7c1a10"}]}`,
			wantErr: "condition 0: gt does not apply to account",
		},
		{
			name:    "bad uuid",
			raw:     `{"conditions": [{"field": "assigned_to", "op": "eq", "value": "lol"}]}`,
			wantErr: "condition 0: expected a valid UUID",
		},
		{
			name:    "isnull expects bool",
			raw:     `{"conditions": [{"field": "account", "op": "isnull", "value": "yes"}]}`,
			wantErr: "condition 0: isnull expects a boolean value",
		},
		{
			name:    "empty in",
			raw:     `{"conditions": [{"field": "status", "op": "in", "value": []}]}`,
			wantErr: "condition 0: in expects a non-empty list",
		},
		{
			name:    "bad date",
			raw:     `{"conditions": [{"field": "created_at", "op": "gte", "value": "03/06/2024"}]}`,
			wantErr: "condition 0: expected a date (YYYY-MM-DD) or an RFC 3339 timestamp",
		},
		{
			name:    "fractional tag",
			raw:     `{"conditions": [{"field": "tag", "op": "eq", "value": 1.5}]}`,
			wantErr: "condition 0: expected an integer",
		},
		{
			name: "valid",
			raw: `{"match": "all", "conditions": [
				{"field": "country", "op": "eq", "value": "Angola"},
				{"field": "email", "op": "icontains", "value": "@acme"},
				{"field": "status", "op": "in", "value": ["active", "lead"]},
				{"field": "created_at", "op": "gte", "value": "2024-06-03"},
				{"field": "created_at", "op": "lt", "value": "2024-06-03T10:00:00Z"},
				{"field": "account", "op": "isnull", "value": false},
				{"field": "email_opt_out", "op": "eq", "value": false},
				{"field": "tag", "op": "in", "value": [1, "2"]}
			]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCriteria([]byte(tt.raw))
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				var verr *core.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, []core.FieldError{{Field: "criteria", Error: tt.wantErr}}, verr.Fields)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, []string{MatchAll, MatchAny}, c.Match)
		})
	}
}

func TestParseCriteria_defaultsToMatchAll(t *testing.T) {
	c, err := ParseCriteria([]byte(`{"conditions": [{"field": "city", "op": "eq", "value": "Luanda"}]}`))
	require.NoError(t, err)
	assert.Equal(t, MatchAll, c.Match)
	assert.Len(t, c.Conditions, 1)
}

func TestCriteriaInt(t *testing.T) {
	n, err := CriteriaInt(float64(4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = CriteriaInt("12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = CriteriaInt("twelve")
	assert.Error(t, err)
	_, err = CriteriaInt(true)
	assert.Error(t, err)
}

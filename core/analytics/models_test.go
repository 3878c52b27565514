package analytics

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

func TestReportIsDue(t *testing.T) {
	now := time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC)
	ranAgo := func(d time.Duration) null.Time { return null.TimeFrom(now.Add(-d)) }

	tests := []struct {
		name      string
		enabled   bool
		frequency string
		lastRun   null.Time
		want      bool
	}{
		{name: "disabled", enabled: false, frequency: FrequencyDaily, want: false},
		{name: "never run", enabled: true, frequency: FrequencyWeekly, want: true},
		{name: "unknown frequency", enabled: true, frequency: "hourly", want: false},
		{name: "daily fresh", enabled: true, frequency: FrequencyDaily, lastRun: ranAgo(23 * time.Hour), want: false},
		{name: "daily stale", enabled: true, frequency: FrequencyDaily, lastRun: ranAgo(24 * time.Hour), want: true},
		{name: "weekly fresh", enabled: true, frequency: FrequencyWeekly, lastRun: ranAgo(6 * 24 * time.Hour), want: false},
		{name: "weekly stale", enabled: true, frequency: FrequencyWeekly, lastRun: ranAgo(8 * 24 * time.Hour), want: true},
		{name: "monthly fresh", enabled: true, frequency: FrequencyMonthly, lastRun: ranAgo(29 * 24 * time.Hour), want: false},
		{name: "monthly stale", enabled: true, frequency: FrequencyMonthly, lastRun: ranAgo(30 * 24 * time.Hour), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report{ScheduleEnabled: tt.enabled, ScheduleFrequency: tt.frequency, LastRunAt: tt.lastRun}
			assert.Equal(t, tt.want, r.isDue(now))
		})
	}
}

func TestActorAccess(t *testing.T) {
	owner := Actor{ID: "owner"}
	other := Actor{ID: "other"}
	admin := Actor{ID: "admin", IsAdmin: true}

	assert.True(t, owner.canSee("owner", false, nil))
	assert.False(t, other.canSee("owner", false, nil))
	assert.True(t, other.canSee("owner", true, nil))
	assert.True(t, other.canSee("owner", false, core.StringList{"x", "other"}))
	assert.False(t, admin.canSee("owner", false, nil))
	assert.True(t, admin.canSee("owner", true, nil))

	assert.True(t, owner.canModify("owner"))
	assert.True(t, admin.canModify("owner"))
	assert.False(t, other.canModify("owner"))
}

func TestReportColumns(t *testing.T) {
	t.Run("all columns by default", func(t *testing.T) {
		r := Report{QueryParams: types.JSONText(`{"entity": "task"}`)}
		entity, cols, err := r.Columns()
		require.NoError(t, err)
		assert.Equal(t, "task", entity)
		assert.Equal(t, CustomEntities["task"], cols)
	})

	t.Run("display columns", func(t *testing.T) {
		r := Report{QueryParams: types.JSONText(`{"entity": "contact"}`), DisplayColumns: core.StringList{"last_name", "email"}}
		_, cols, err := r.Columns()
		require.NoError(t, err)
		assert.Equal(t, []string{"last_name", "email"}, cols)
	})

	t.Run("unknown entity", func(t *testing.T) {
		r := Report{QueryParams: types.JSONText(`{"entity": "user"}`)}
		_, _, err := r.Columns()
		assertFieldError(t, err, "query_params")
	})

	t.Run("unknown column", func(t *testing.T) {
		r := Report{QueryParams: types.JSONText(`{"entity": "contact"}`), DisplayColumns: core.StringList{"password"}}
		_, _, err := r.Columns()
		assertFieldError(t, err, "display_columns")
	})
}

func TestReportCheck(t *testing.T) {
	base := func() Report {
		return Report{
			ReportType:  TypeCustom,
			QueryParams: types.JSONText(`{"entity": "opportunity"}`),
			Filters:     types.JSONText(`[]`),
		}
	}

	tests := []struct {
		name      string
		modify    func(r *Report)
		wantField string
	}{
		{name: "valid", modify: func(r *Report) {}},
		{name: "non custom skips entity", modify: func(r *Report) {
			r.ReportType = TypeSales
			r.QueryParams = types.JSONText(`{}`)
		}},
		{name: "query params not an object", modify: func(r *Report) { r.QueryParams = types.JSONText(`[1]`) }, wantField: "query_params"},
		{name: "filters not a list", modify: func(r *Report) { r.Filters = types.JSONText(`{"a": 1}`) }, wantField: "filters"},
		{name: "filter on unknown field", modify: func(r *Report) {
			r.Filters = types.JSONText(`[{"field": "secret", "operator": "eq", "value": 1}]`)
		}, wantField: "filters"},
		{name: "filter with unknown operator", modify: func(r *Report) {
			r.Filters = types.JSONText(`[{"field": "stage", "operator": "regex", "value": "x"}]`)
		}, wantField: "filters"},
		{name: "valid filter", modify: func(r *Report) {
			r.Filters = types.JSONText(`[{"field": "amount", "operator": "gte", "value": 1000}]`)
		}},
		{name: "unknown sort column", modify: func(r *Report) { r.SortBy = "owner" }, wantField: "sort_by"},
		{name: "schedule without frequency", modify: func(r *Report) { r.ScheduleEnabled = true }, wantField: "schedule_frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.modify(&r)
			err := r.check()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assertFieldError(t, err, tt.wantField)
		})
	}
}

func TestFormatRows(t *testing.T) {
	data := []map[string]interface{}{
		{"stage": "won", "count": 2},
		{"stage": "lost", "count": 1},
	}
	assert.Equal(t, []string{"count: 2, stage: won", "count: 1, stage: lost"}, formatRows(data, 10))
	assert.Len(t, formatRows(data, 1), 1)
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	require.NotEmpty(t, verr.Fields)
	assert.Equal(t, field, verr.Fields[0].Field)
}

package sqlxrepos

import (
	"strings"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core/analytics"
)

func Test_reportQuery_salesInPipelineOrder(t *testing.T) {
	qb, err := reportQuery(analytics.Report{ReportType: analytics.TypeSales})
	require.NoError(t, err)
	query, _, err := qb.ToSql()
	require.NoError(t, err)

	orderBy := query[strings.Index(query, "ORDER BY"):]
	assert.True(t, strings.HasPrefix(orderBy, "ORDER BY CASE stage WHEN 'prospecting' THEN 0 WHEN 'qualification' THEN 1"), orderBy)
	assert.Contains(t, orderBy, "WHEN 'closed_lost' THEN 8 ELSE 9 END")
}

func Test_reportQuery_dateRange(t *testing.T) {
	qb, err := reportQuery(analytics.Report{
		ReportType:  analytics.TypeContact,
		QueryParams: types.JSONText(`{"date_from": "2024-01-01", "date_to": "2024-01-31"}`),
	})
	require.NoError(t, err)
	query, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE created_at >= $1 AND created_at < $2")
	require.Len(t, args, 2)
}

func Test_reportQuery_unknownType(t *testing.T) {
	_, err := reportQuery(analytics.Report{ReportType: "forecast"})
	assert.EqualError(t, err, "unknown report type")
}

package tests

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/user"
	testutil "github.com/eventuais/eventuais/tests"
)

func Test_analyticsApi_reportVisibility(t *testing.T) {
	testutil.ResetDB(t, db)

	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleSales}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleSales}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	ownerToken, otherToken, adminToken := getToken(t, owner), getToken(t, other), getToken(t, admin)

	private := create(t, "/api/crm/reports", ownerToken, echo.Map{"name": "Pipeline", "report_type": analytics.TypeSales})
	public := create(t, "/api/crm/reports", ownerToken, echo.Map{"name": "Contacts", "report_type": analytics.TypeContact, "is_public": true})

	list := func(token string) []string {
		var reports []object
		rec := do(t, http.MethodGet, "/api/crm/reports", token, nil, &reports)
		require.Equal(t, http.StatusOK, rec.Code)
		return ids(reports)
	}

	t.Run("visibility", func(t *testing.T) {
		assert.ElementsMatch(t, []string{private, public}, list(ownerToken))
		assert.ElementsMatch(t, []string{public}, list(otherToken))
		assert.ElementsMatch(t, []string{public}, list(adminToken))

		rec := do(t, http.MethodGet, "/api/crm/reports/"+private, otherToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = do(t, http.MethodGet, "/api/crm/reports/"+private, adminToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("admins modify visible reports", func(t *testing.T) {
		var got analytics.Report
		rec := do(t, http.MethodPatch, "/api/crm/reports/"+public, adminToken, echo.Map{"description": "reviewed"}, &got)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "reviewed", got.Description)
	})
	t.Run("only owners and admins share", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/api/crm/reports/"+public+"/share", otherToken, echo.Map{"user_ids": []string{other.ID}}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var herr httpErr
		rec = do(t, http.MethodPost, "/api/crm/reports/"+private+"/share", ownerToken, echo.Map{}, &herr)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "user_ids list is required", herr.Error)

		var res analytics.ShareResult
		rec = do(t, http.MethodPost, "/api/crm/reports/"+private+"/share", ownerToken, echo.Map{"user_ids": []string{other.ID, "lol"}}, &res)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, res.SharedWithCount)

		assert.ElementsMatch(t, []string{private, public}, list(otherToken))
	})
	t.Run("shared users cannot modify", func(t *testing.T) {
		rec := do(t, http.MethodPatch, "/api/crm/reports/"+private, otherToken, echo.Map{"name": "Mine now"}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(t, http.MethodDelete, "/api/crm/reports/"+private, otherToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("run report", func(t *testing.T) {
		create(t, "/api/crm/contacts", ownerToken, echo.Map{"first_name": "Ada", "last_name": "L"})
		create(t, "/api/crm/contacts", ownerToken, echo.Map{"first_name": "Bob", "last_name": "M", "status": "lead"})

		var run analytics.ReportRun
		rec := do(t, http.MethodPost, "/api/crm/reports/"+public+"/run_report", otherToken, nil, &run)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, run.Cached)
		assert.Equal(t, 2, run.Results.Count)

		// cached until refreshed
		create(t, "/api/crm/contacts", ownerToken, echo.Map{"first_name": "Cid", "last_name": "N", "status": "inactive"})
		rec = do(t, http.MethodPost, "/api/crm/reports/"+public+"/run_report", otherToken, nil, &run)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, run.Cached)
		assert.Equal(t, 2, run.Results.Count)

		run = analytics.ReportRun{}
		rec = do(t, http.MethodPost, "/api/crm/reports/"+public+"/run_report?refresh=true", otherToken, nil, &run)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, run.Cached)
		assert.Equal(t, 3, run.Results.Count)
	})
}

func Test_analyticsApi_dashboards(t *testing.T) {
	testutil.ResetDB(t, db)

	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleSales}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleSales}, true)
	ownerToken, otherToken := getToken(t, owner), getToken(t, other)

	report := create(t, "/api/crm/reports", ownerToken, echo.Map{"name": "Pipeline", "report_type": analytics.TypeSales})
	dash := create(t, "/api/crm/dashboards", ownerToken, echo.Map{"name": "Sales"})
	item := create(t, "/api/crm/dashboard-items", ownerToken, echo.Map{"dashboard": dash, "report": report, "width": 6, "height": 4})

	t.Run("private dashboards are hidden", func(t *testing.T) {
		rec := do(t, http.MethodGet, "/api/crm/dashboards/"+dash, otherToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = do(t, http.MethodGet, "/api/crm/dashboard-items/"+item, otherToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("items of a dashboard", func(t *testing.T) {
		var items []object
		rec := do(t, http.MethodGet, "/api/crm/dashboard-items?dashboard="+dash, ownerToken, nil, &items)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{item}, ids(items))
	})
	t.Run("shared dashboards are visible", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/api/crm/dashboards/"+dash+"/share", ownerToken, echo.Map{"user_ids": []string{other.ID}}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = do(t, http.MethodGet, "/api/crm/dashboards/"+dash, otherToken, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

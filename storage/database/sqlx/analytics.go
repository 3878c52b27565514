package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/crm"
)

const customReportMaxRows = 1000

var (
	reportCols = []string{
		"id", "name", "description", "report_type", "query_params", "chart_type", "display_columns", "filters",
		"sort_by", "sort_direction", "created_by_id", "is_public", "schedule_enabled", "schedule_frequency",
		"schedule_recipients", "created_at", "updated_at", "last_run_at",
	}
	reportOrdering = map[string]string{
		"name":        "r.name",
		"created_at":  "r.created_at",
		"last_run_at": "r.last_run_at",
	}

	dashboardCols     = []string{"id", "name", "description", "layout", "created_by_id", "is_public", "created_at", "updated_at"}
	dashboardOrdering = map[string]string{
		"name":       "d.name",
		"created_at": "d.created_at",
	}

	dashboardItemCols = []string{"id", "dashboard_id", "report_id", "position_x", "position_y", "width", "height", "custom_title"}
)

type analyticsRepository struct {
	repository
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(exec core.DBExecutor) *analyticsRepository {
	return &analyticsRepository{repository{exec: exec}}
}

// sharedWith aggregates the ids of the users an object is shared with into a JSON array.
func sharedWith(table, fk, alias string) string {
	return fmt.Sprintf(
		"(SELECT COALESCE(json_agg(s.user_id ORDER BY s.user_id), '[]') FROM %s s WHERE s.%s = %s.id) AS shared_with",
		table, fk, alias)
}

// visibleTo restricts objects to those public, created by or shared with the viewer.
// A nil viewer lists everything.
func visibleTo(qb sq.SelectBuilder, viewer *analytics.Actor, alias, shareTable, fk string) sq.SelectBuilder {
	if viewer == nil {
		return qb
	}
	return qb.Where(sq.Or{
		sq.Eq{alias + ".is_public": true},
		sq.Eq{alias + ".created_by_id": viewer.ID},
		sq.Expr(fmt.Sprintf("EXISTS (SELECT 1 FROM %s s WHERE s.%s = %s.id AND s.user_id = ?)", shareTable, fk, alias), viewer.ID),
	})
}

// replaceShares sets the users an object is shared with; unknown users are skipped.
func replaceShares(ctx context.Context, exec core.DBExecutor, table, fk, id string, userIDs []string) error {
	if _, err := execQuery(ctx, exec, psql.Delete(table).Where(sq.Eq{fk: id})); err != nil {
		return errors.Wrapf(err, "clearing %s", table)
	}
	_, _, err := addShares(ctx, exec, table, fk, id, userIDs)
	return err
}

// addShares shares an object with the existing users among userIDs.
func addShares(ctx context.Context, exec core.DBExecutor, table, fk, id string, userIDs []string) (found, total int, err error) {
	if len(userIDs) > 0 {
		err = getOne(ctx, exec, &found, psql.Select("COUNT(*)").From(`"user"`).Where("id = ANY(?)", pq.Array(userIDs)))
		if err != nil {
			return 0, 0, errors.Wrap(err, "counting users")
		}
		query := fmt.Sprintf(
			`INSERT INTO %s (%s, user_id) SELECT $1, u.id FROM "user" u WHERE u.id = ANY($2) ON CONFLICT DO NOTHING`,
			table, fk)
		if _, err = exec.ExecContext(ctx, query, id, pq.Array(userIDs)); err != nil {
			return 0, 0, errors.Wrapf(err, "inserting %s", table)
		}
	}
	err = getOne(ctx, exec, &total, psql.Select("COUNT(*)").From(table).Where(sq.Eq{fk: id}))
	return found, total, errors.Wrapf(err, "counting %s", table)
}

// Reports

func selectReports() sq.SelectBuilder {
	return psql.Select("r.*", userName("cu", "created_by_name"), sharedWith("report_shared_with", "report_id", "r")).
		From("report r").
		Join(`"user" cu ON cu.id = r.created_by_id`)
}

func (repo analyticsRepository) CreateReport(ctx context.Context, r analytics.Report, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "report", reportCols, r), "report", "inserting report")
}

func (repo analyticsRepository) UpdateReport(ctx context.Context, r analytics.Report, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "report", reportCols[1:], r)
	if err != nil {
		return trapErr(err, "report", "updating report")
	}
	return notFound(n, "report")
}

func (repo analyticsRepository) DeleteReport(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "report", id)
	if err != nil {
		return trapErr(err, "report", "deleting report")
	}
	return notFound(n, "report")
}

func (repo analyticsRepository) GetReport(ctx context.Context, id string, exec ...core.DBExecutor) (analytics.Report, error) {
	var r analytics.Report
	err := getOne(ctx, repo.getExec(exec), &r, selectReports().Where(sq.Eq{"r.id": id}))
	return r, trapErr(err, "report", "finding report")
}

func (repo analyticsRepository) QueryReports(ctx context.Context, filter analytics.ReportFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]analytics.Report, error) {
	qb := selectReports()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "r.name", "r.description"))
	}
	qb = eqIfSet(qb, map[string]string{
		"r.report_type":   filter.ReportType,
		"r.created_by_id": filter.CreatedBy,
	})
	qb = boolIfSet(qb, "r.is_public", filter.IsPublic)
	qb = boolIfSet(qb, "r.schedule_enabled", filter.ScheduleEnabled)
	qb = visibleTo(qb, filter.Viewer, "r", "report_shared_with", "report_id")
	qb = qb.OrderBy(orderBy(ordering, reportOrdering, "r.created_at DESC")...)

	reports := make([]analytics.Report, 0)
	if err := selectAll(ctx, repo.getExec(exec), &reports, qb); err != nil {
		return nil, trapErr(err, "", "querying reports")
	}
	return reports, nil
}

func (repo analyticsRepository) SetReportSharedWith(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) error {
	return replaceShares(ctx, repo.getExec(exec), "report_shared_with", "report_id", id, userIDs)
}

func (repo analyticsRepository) ShareReport(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) (int, int, error) {
	return addShares(ctx, repo.getExec(exec), "report_shared_with", "report_id", id, userIDs)
}

func (repo analyticsRepository) TouchReportRun(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	n, err := execQuery(ctx, repo.getExec(exec), psql.Update("report").Set("last_run_at", at).Where(sq.Eq{"id": id}))
	if err != nil {
		return trapErr(err, "report", "updating report last run")
	}
	return notFound(n, "report")
}

func (repo analyticsRepository) ReportData(ctx context.Context, r analytics.Report, exec ...core.DBExecutor) ([]map[string]interface{}, error) {
	qb, err := reportQuery(r)
	if err != nil {
		return nil, err
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building report query")
	}
	rows, err := repo.getExec(exec).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, trapErr(err, "", "running report")
	}
	defer rows.Close()
	return mapRows(rows)
}

// reportQuery builds the aggregate query of a report type, narrowed to the query_params date range.
func reportQuery(r analytics.Report) (sq.SelectBuilder, error) {
	params, err := r.Params()
	if err != nil {
		return sq.SelectBuilder{}, err
	}

	var qb sq.SelectBuilder
	switch r.ReportType {
	case analytics.TypeSales:
		qb = psql.Select("stage", "COUNT(*) AS count",
			"COALESCE(SUM(amount), 0)::float8 AS total_amount",
			"COALESCE(ROUND(AVG(amount), 2), 0)::float8 AS avg_amount",
			"ROUND(AVG(probability), 2)::float8 AS avg_probability").
			From("opportunity").GroupBy("stage").OrderBy(rank("stage", crm.OpportunityStages))
	case analytics.TypeActivity:
		qb = psql.Select("activity_type", "is_completed", "COUNT(*) AS count").
			From("activity").GroupBy("activity_type", "is_completed").OrderBy("activity_type", "is_completed")
	case analytics.TypeContact:
		qb = psql.Select("status", "COUNT(*) AS count").
			From("contact").GroupBy("status").OrderBy("status")
	case analytics.TypeCampaign:
		qb = psql.Select("id::text AS campaign_id", "name", "status", "sent_count", "open_count", "click_count",
			"bounce_count", "unsubscribe_count",
			rate("open_count", "open_rate"), rate("click_count", "click_rate"), rate("bounce_count", "bounce_rate")).
			From("campaign").OrderBy("created_at DESC")
	case analytics.TypeSupport:
		qb = psql.Select("status", "priority", "COUNT(*) AS count").
			From("support_ticket").GroupBy("status", "priority").OrderBy("status", "priority")
	case analytics.TypeCustom:
		if qb, err = customReportQuery(r); err != nil {
			return sq.SelectBuilder{}, err
		}
	default:
		return sq.SelectBuilder{}, core.NewFieldError("report_type", "unknown report type")
	}

	if !params.DateFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": params.DateFrom.Time})
	}
	if !params.DateTo.IsZero() {
		qb = qb.Where(sq.Lt{"created_at": params.DateTo.AddDate(0, 0, 1)})
	}
	return qb, nil
}

// rate is the percentage of sent emails counted in col.
func rate(col, as string) string {
	return fmt.Sprintf("CASE WHEN sent_count > 0 THEN ROUND(%s * 100.0 / sent_count, 2)::float8 ELSE 0 END AS %s", col, as)
}

// customReportQuery selects whitelisted columns of an entity; entity names match their tables.
func customReportQuery(r analytics.Report) (sq.SelectBuilder, error) {
	entity, cols, err := r.Columns()
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	allowed := analytics.CustomEntities[entity]
	qb := psql.Select(cols...).From(entity).Limit(customReportMaxRows)

	filters, err := r.ParsedFilters()
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	for _, f := range filters {
		cond, err := reportFilterSQL(f, allowed)
		if err != nil {
			return sq.SelectBuilder{}, err
		}
		qb = qb.Where(cond)
	}

	if r.SortBy != "" {
		if !containsStr(allowed, r.SortBy) {
			return sq.SelectBuilder{}, core.NewFieldError("sort_by", "unknown column: "+r.SortBy)
		}
		qb = qb.OrderBy(core.DBOrdering{Field: r.SortBy, Ascending: r.SortDirection == "asc"}.String())
	}
	return qb, nil
}

func reportFilterSQL(f analytics.Filter, allowed []string) (sq.Sqlizer, error) {
	if !containsStr(allowed, f.Field) {
		return nil, core.NewFieldError("filters", "unknown filter field: "+f.Field)
	}
	switch f.Operator {
	case "", analytics.OpEq:
		return sq.Eq{f.Field: f.Value}, nil
	case analytics.OpNe:
		return sq.NotEq{f.Field: f.Value}, nil
	case analytics.OpGt:
		return sq.Gt{f.Field: f.Value}, nil
	case analytics.OpGte:
		return sq.GtOrEq{f.Field: f.Value}, nil
	case analytics.OpLt:
		return sq.Lt{f.Field: f.Value}, nil
	case analytics.OpLte:
		return sq.LtOrEq{f.Field: f.Value}, nil
	case analytics.OpIContains:
		return sq.ILike{f.Field + "::text": "%" + escapeLike(fmt.Sprint(f.Value)) + "%"}, nil
	}
	return nil, core.NewFieldError("filters", "unknown filter operator: "+f.Operator)
}

// mapRows reads rows into maps, decoding raw bytes (numerics, uuids) as strings.
func mapRows(rows *sqlx.Rows) ([]map[string]interface{}, error) {
	data := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrap(err, "scanning report row")
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		data = append(data, row)
	}
	return data, errors.Wrap(rows.Err(), "reading report rows")
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Dashboards

func selectDashboards() sq.SelectBuilder {
	return psql.Select("d.*", userName("cu", "created_by_name"), sharedWith("dashboard_shared_with", "dashboard_id", "d")).
		From("dashboard d").
		Join(`"user" cu ON cu.id = d.created_by_id`)
}

func (repo analyticsRepository) queryDashboards(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) ([]analytics.Dashboard, error) {
	dashboards := make([]analytics.Dashboard, 0)
	if err := selectAll(ctx, exec, &dashboards, qb); err != nil {
		return nil, trapErr(err, "", "querying dashboards")
	}
	if len(dashboards) == 0 {
		return dashboards, nil
	}

	ids := make([]string, 0, len(dashboards))
	for _, d := range dashboards {
		ids = append(ids, d.ID)
	}
	items := make([]analytics.DashboardItem, 0)
	if err := selectAll(ctx, exec, &items, selectDashboardItems().Where("i.dashboard_id = ANY(?)", pq.Array(ids))); err != nil {
		return nil, errors.Wrap(err, "loading dashboard items")
	}
	byDashboard := make(map[string][]analytics.DashboardItem, len(dashboards))
	for _, it := range items {
		byDashboard[it.DashboardID] = append(byDashboard[it.DashboardID], it)
	}
	for i := range dashboards {
		dashboards[i].Items = byDashboard[dashboards[i].ID]
		if dashboards[i].Items == nil {
			dashboards[i].Items = []analytics.DashboardItem{}
		}
	}
	return dashboards, nil
}

func (repo analyticsRepository) CreateDashboard(ctx context.Context, d analytics.Dashboard, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "dashboard", dashboardCols, d), "dashboard", "inserting dashboard")
}

func (repo analyticsRepository) UpdateDashboard(ctx context.Context, d analytics.Dashboard, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "dashboard", dashboardCols[1:], d)
	if err != nil {
		return trapErr(err, "dashboard", "updating dashboard")
	}
	return notFound(n, "dashboard")
}

func (repo analyticsRepository) DeleteDashboard(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "dashboard", id)
	if err != nil {
		return trapErr(err, "dashboard", "deleting dashboard")
	}
	return notFound(n, "dashboard")
}

func (repo analyticsRepository) GetDashboard(ctx context.Context, id string, exec ...core.DBExecutor) (analytics.Dashboard, error) {
	dashboards, err := repo.queryDashboards(ctx, repo.getExec(exec), selectDashboards().Where(sq.Eq{"d.id": id}))
	if err != nil {
		return analytics.Dashboard{}, trapErr(err, "dashboard", "finding dashboard")
	}
	if len(dashboards) == 0 {
		return analytics.Dashboard{}, analytics.ErrDashboardNotFound
	}
	return dashboards[0], nil
}

func (repo analyticsRepository) QueryDashboards(ctx context.Context, filter analytics.DashboardFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]analytics.Dashboard, error) {
	qb := selectDashboards()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "d.name", "d.description"))
	}
	qb = eqIfSet(qb, map[string]string{"d.created_by_id": filter.CreatedBy})
	qb = boolIfSet(qb, "d.is_public", filter.IsPublic)
	qb = visibleTo(qb, filter.Viewer, "d", "dashboard_shared_with", "dashboard_id")
	qb = qb.OrderBy(orderBy(ordering, dashboardOrdering, "d.name ASC")...)
	return repo.queryDashboards(ctx, repo.getExec(exec), qb)
}

func (repo analyticsRepository) SetDashboardSharedWith(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) error {
	return replaceShares(ctx, repo.getExec(exec), "dashboard_shared_with", "dashboard_id", id, userIDs)
}

func (repo analyticsRepository) ShareDashboard(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) (int, int, error) {
	return addShares(ctx, repo.getExec(exec), "dashboard_shared_with", "dashboard_id", id, userIDs)
}

// Dashboard items

func selectDashboardItems() sq.SelectBuilder {
	return psql.Select("i.*", "r.name AS report_name").
		From("dashboard_item i").
		Join("report r ON r.id = i.report_id").
		OrderBy("i.position_y", "i.position_x")
}

func (repo analyticsRepository) CreateDashboardItem(ctx context.Context, it analytics.DashboardItem, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "dashboard_item", dashboardItemCols, it), "dashboard item", "inserting dashboard item")
}

func (repo analyticsRepository) UpdateDashboardItem(ctx context.Context, it analytics.DashboardItem, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "dashboard_item", dashboardItemCols[1:], it)
	if err != nil {
		return trapErr(err, "dashboard item", "updating dashboard item")
	}
	return notFound(n, "dashboard item")
}

func (repo analyticsRepository) DeleteDashboardItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "dashboard_item", id)
	if err != nil {
		return trapErr(err, "dashboard item", "deleting dashboard item")
	}
	return notFound(n, "dashboard item")
}

func (repo analyticsRepository) GetDashboardItem(ctx context.Context, id string, exec ...core.DBExecutor) (analytics.DashboardItem, error) {
	var it analytics.DashboardItem
	err := getOne(ctx, repo.getExec(exec), &it, selectDashboardItems().Where(sq.Eq{"i.id": id}))
	return it, trapErr(err, "dashboard item", "finding dashboard item")
}

func (repo analyticsRepository) QueryDashboardItems(ctx context.Context, filter analytics.DashboardItemFilter, exec ...core.DBExecutor) ([]analytics.DashboardItem, error) {
	qb := eqIfSet(selectDashboardItems(), map[string]string{
		"i.dashboard_id": filter.Dashboard,
		"i.report_id":    filter.Report,
	})
	if filter.Viewer != nil {
		qb = visibleTo(qb.Join("dashboard d ON d.id = i.dashboard_id"), filter.Viewer, "d", "dashboard_shared_with", "dashboard_id")
	}

	items := make([]analytics.DashboardItem, 0)
	if err := selectAll(ctx, repo.getExec(exec), &items, qb); err != nil {
		return nil, trapErr(err, "", "querying dashboard items")
	}
	return items, nil
}

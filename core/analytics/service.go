package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
)

const (
	scheduledReportTemplate = "scheduled_report"
	scheduledReportMaxRows  = 50
)

var (
	ErrReportNotFound        = core.NewNotFoundError("report")
	ErrDashboardNotFound     = core.NewNotFoundError("dashboard")
	ErrDashboardItemNotFound = core.NewNotFoundError("dashboard item")

	ErrUserIDsRequired = core.NewValidationError(errors.New("user_ids list is required"))
)

type (
	Repository interface {
		CreateReport(ctx context.Context, r Report, exec ...core.DBExecutor) error
		UpdateReport(ctx context.Context, r Report, exec ...core.DBExecutor) error
		DeleteReport(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetReport(ctx context.Context, id string, exec ...core.DBExecutor) (Report, error)
		QueryReports(ctx context.Context, filter ReportFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Report, error)
		SetReportSharedWith(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) error
		// ShareReport adds the existing users among userIDs to the report's shares.
		// It returns how many users were found and the new total of shares.
		ShareReport(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) (found, total int, err error)
		TouchReportRun(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		ReportData(ctx context.Context, r Report, exec ...core.DBExecutor) ([]map[string]interface{}, error)

		CreateDashboard(ctx context.Context, d Dashboard, exec ...core.DBExecutor) error
		UpdateDashboard(ctx context.Context, d Dashboard, exec ...core.DBExecutor) error
		DeleteDashboard(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetDashboard(ctx context.Context, id string, exec ...core.DBExecutor) (Dashboard, error)
		QueryDashboards(ctx context.Context, filter DashboardFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Dashboard, error)
		SetDashboardSharedWith(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) error
		ShareDashboard(ctx context.Context, id string, userIDs []string, exec ...core.DBExecutor) (found, total int, err error)

		CreateDashboardItem(ctx context.Context, it DashboardItem, exec ...core.DBExecutor) error
		UpdateDashboardItem(ctx context.Context, it DashboardItem, exec ...core.DBExecutor) error
		DeleteDashboardItem(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetDashboardItem(ctx context.Context, id string, exec ...core.DBExecutor) (DashboardItem, error)
		QueryDashboardItems(ctx context.Context, filter DashboardItemFilter, exec ...core.DBExecutor) ([]DashboardItem, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		cache    core.Cache
		mailSvc  core.EmailService
		conf     *core.Config
		validate *validator.Validate
		logger   core.Logger
	}
)

// NewService returns the analytics service. cache may be nil, which disables result caching.
func NewService(db core.DB, repo Repository, cache core.Cache, mailSvc core.EmailService, conf *core.Config,
	validate *validator.Validate, logger core.Logger) *Service {
	return &Service{db: db, repo: repo, cache: cache, mailSvc: mailSvc, conf: conf, validate: validate, logger: logger}
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func reportCacheKey(id string) string {
	return "report:" + id
}

// Reports

func (svc *Service) CreateReport(ctx context.Context, actor Actor, in ReportInput) (Report, error) {
	now := core.Now()
	r := Report{
		ID:            uuid.NewString(),
		QueryParams:   types.JSONText("{}"),
		Filters:       types.JSONText("[]"),
		SortDirection: "desc",
		CreatedByID:   actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	in.Apply(&r)
	if err := svc.validateReport(r); err != nil {
		return Report{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateReport(ctx, r, tx); err != nil {
			return err
		}
		if in.SharedWith != nil {
			return svc.repo.SetReportSharedWith(ctx, r.ID, validUUIDs(*in.SharedWith), tx)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return svc.repo.GetReport(ctx, r.ID)
}

func (svc *Service) validateReport(r Report) error {
	if err := svc.validate.Struct(r); err != nil {
		return err
	}
	return r.check()
}

func (svc *Service) UpdateReport(ctx context.Context, actor Actor, r Report, in ReportInput) (Report, error) {
	if !actor.canModify(r.CreatedByID) {
		return Report{}, core.ErrForbidden
	}
	in.Apply(&r)
	if err := svc.validateReport(r); err != nil {
		return Report{}, err
	}
	r.UpdatedAt = core.Now()

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.UpdateReport(ctx, r, tx); err != nil {
			return err
		}
		if in.SharedWith != nil {
			return svc.repo.SetReportSharedWith(ctx, r.ID, validUUIDs(*in.SharedWith), tx)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	svc.forget(ctx, r.ID)
	return svc.repo.GetReport(ctx, r.ID)
}

func (svc *Service) DeleteReport(ctx context.Context, actor Actor, r Report) error {
	if !actor.canModify(r.CreatedByID) {
		return core.ErrForbidden
	}
	if err := svc.repo.DeleteReport(ctx, r.ID); err != nil {
		return err
	}
	svc.forget(ctx, r.ID)
	return nil
}

// GetReport returns the report if actor may see it.
func (svc *Service) GetReport(ctx context.Context, actor Actor, id string) (Report, error) {
	if !validUUID(id) {
		return Report{}, ErrReportNotFound
	}
	r, err := svc.repo.GetReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !actor.canSee(r.CreatedByID, r.IsPublic, r.SharedWith) {
		return Report{}, ErrReportNotFound
	}
	return r, nil
}

// QueryReports lists the reports visible to actor.
func (svc *Service) QueryReports(ctx context.Context, actor Actor, filter ReportFilter, ordering []core.DBOrdering) ([]Report, error) {
	filter.Viewer = &actor
	return svc.repo.QueryReports(ctx, filter, ordering)
}

func (svc *Service) ShareReport(ctx context.Context, actor Actor, r Report, userIDs []string) (ShareResult, error) {
	if !actor.canModify(r.CreatedByID) {
		return ShareResult{}, core.ErrForbidden
	}
	if len(userIDs) == 0 {
		return ShareResult{}, ErrUserIDsRequired
	}
	found, total, err := svc.repo.ShareReport(ctx, r.ID, validUUIDs(userIDs))
	if err != nil {
		return ShareResult{}, err
	}
	return ShareResult{Message: fmt.Sprintf("Shared report with %d users.", found), SharedWithCount: total}, nil
}

// RunReport executes the report, serving a cached result unless refresh is set.
// A cached result leaves last_run_at untouched.
func (svc *Service) RunReport(ctx context.Context, r Report, refresh bool) (ReportRun, error) {
	key := reportCacheKey(r.ID)
	if !refresh && svc.cache != nil {
		raw, ok, err := svc.cache.Get(ctx, key)
		if err != nil {
			svc.logger.Warn("reading cached report", err)
		} else if ok {
			var run ReportRun
			if err := json.Unmarshal(raw, &run); err == nil {
				run.Cached = true
				return run, nil
			}
		}
	}

	data, err := svc.repo.ReportData(ctx, r)
	if err != nil {
		return ReportRun{}, err
	}
	now := core.Now()
	if err := svc.repo.TouchReportRun(ctx, r.ID, now); err != nil {
		return ReportRun{}, err
	}
	run := ReportRun{
		ReportID:   r.ID,
		ReportName: r.Name,
		ExecutedAt: now,
		Results:    ResultSet{Data: data, Count: len(data)},
	}

	if svc.cache != nil {
		raw, err := json.Marshal(run)
		if err == nil {
			err = svc.cache.Set(ctx, key, raw, svc.conf.Redis.ReportTTL)
		}
		if err != nil {
			svc.logger.Warn("caching report", err)
		}
	}
	return run, nil
}

func (svc *Service) forget(ctx context.Context, reportID string) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, reportCacheKey(reportID)); err != nil {
		svc.logger.Warn("evicting cached report", err)
	}
}

type scheduledReportData struct {
	ReportID   string
	ReportName string
	ExecutedAt string
	Count      int
	Rows       []string
}

// SendScheduledReports runs every report due at now and emails it to its schedule recipients.
// It returns the number of reports delivered.
func (svc *Service) SendScheduledReports(ctx context.Context, now time.Time) (int, error) {
	enabled := true
	reports, err := svc.repo.QueryReports(ctx, ReportFilter{ScheduleEnabled: &enabled}, nil)
	if err != nil {
		return 0, err
	}

	messages := make([]*core.EmailMessage, 0)
	for _, r := range reports {
		if !r.isDue(now) {
			continue
		}
		to := recipientAddresses(r.ScheduleRecipients)
		if len(to) == 0 {
			continue
		}
		run, err := svc.RunReport(ctx, r, true)
		if err != nil {
			svc.logger.Error("running scheduled report", err, map[string]interface{}{"report_id": r.ID})
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           to,
			Subject:      "Scheduled report: " + r.Name,
			TemplateName: scheduledReportTemplate,
			TemplateData: scheduledReportData{
				ReportID:   r.ID,
				ReportName: r.Name,
				ExecutedAt: run.ExecutedAt.Format(time.RFC1123),
				Count:      run.Results.Count,
				Rows:       formatRows(run.Results.Data, scheduledReportMaxRows),
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
		svc.logger.Info("scheduled reports sent", map[string]interface{}{"count": len(messages)})
	}
	return len(messages), nil
}

func recipientAddresses(recipients []string) []mail.Address {
	to := make([]mail.Address, 0, len(recipients))
	for _, rcpt := range core.UniqueStrings(recipients) {
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			continue
		}
		to = append(to, *addr)
	}
	return to
}

// formatRows renders at most max rows as "key: value" lines with sorted keys.
func formatRows(data []map[string]interface{}, max int) []string {
	if len(data) > max {
		data = data[:max]
	}
	rows := make([]string, 0, len(data))
	for _, row := range data {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, row[k]))
		}
		rows = append(rows, strings.Join(parts, ", "))
	}
	return rows
}

// Dashboards

func (svc *Service) CreateDashboard(ctx context.Context, actor Actor, in DashboardInput) (Dashboard, error) {
	now := core.Now()
	d := Dashboard{ID: uuid.NewString(), Layout: types.JSONText("{}"), CreatedByID: actor.ID, CreatedAt: now, UpdatedAt: now}
	in.Apply(&d)
	if err := svc.validateDashboard(d); err != nil {
		return Dashboard{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateDashboard(ctx, d, tx); err != nil {
			return err
		}
		if in.SharedWith != nil {
			return svc.repo.SetDashboardSharedWith(ctx, d.ID, validUUIDs(*in.SharedWith), tx)
		}
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	return svc.repo.GetDashboard(ctx, d.ID)
}

func (svc *Service) validateDashboard(d Dashboard) error {
	if err := svc.validate.Struct(d); err != nil {
		return err
	}
	return d.check()
}

func (svc *Service) UpdateDashboard(ctx context.Context, actor Actor, d Dashboard, in DashboardInput) (Dashboard, error) {
	if !actor.canModify(d.CreatedByID) {
		return Dashboard{}, core.ErrForbidden
	}
	in.Apply(&d)
	if err := svc.validateDashboard(d); err != nil {
		return Dashboard{}, err
	}
	d.UpdatedAt = core.Now()

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.UpdateDashboard(ctx, d, tx); err != nil {
			return err
		}
		if in.SharedWith != nil {
			return svc.repo.SetDashboardSharedWith(ctx, d.ID, validUUIDs(*in.SharedWith), tx)
		}
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	return svc.repo.GetDashboard(ctx, d.ID)
}

func (svc *Service) DeleteDashboard(ctx context.Context, actor Actor, d Dashboard) error {
	if !actor.canModify(d.CreatedByID) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteDashboard(ctx, d.ID)
}

// GetDashboard returns the dashboard with its items if actor may see it.
func (svc *Service) GetDashboard(ctx context.Context, actor Actor, id string) (Dashboard, error) {
	if !validUUID(id) {
		return Dashboard{}, ErrDashboardNotFound
	}
	d, err := svc.repo.GetDashboard(ctx, id)
	if err != nil {
		return Dashboard{}, err
	}
	if !actor.canSee(d.CreatedByID, d.IsPublic, d.SharedWith) {
		return Dashboard{}, ErrDashboardNotFound
	}
	return d, nil
}

func (svc *Service) QueryDashboards(ctx context.Context, actor Actor, filter DashboardFilter, ordering []core.DBOrdering) ([]Dashboard, error) {
	filter.Viewer = &actor
	return svc.repo.QueryDashboards(ctx, filter, ordering)
}

func (svc *Service) ShareDashboard(ctx context.Context, actor Actor, d Dashboard, userIDs []string) (ShareResult, error) {
	if !actor.canModify(d.CreatedByID) {
		return ShareResult{}, core.ErrForbidden
	}
	if len(userIDs) == 0 {
		return ShareResult{}, ErrUserIDsRequired
	}
	found, total, err := svc.repo.ShareDashboard(ctx, d.ID, validUUIDs(userIDs))
	if err != nil {
		return ShareResult{}, err
	}
	return ShareResult{Message: fmt.Sprintf("Shared dashboard with %d users.", found), SharedWithCount: total}, nil
}

// Dashboard items

// checkItemRefs requires a dashboard actor may modify and a report actor may see.
func (svc *Service) checkItemRefs(ctx context.Context, actor Actor, it DashboardItem) error {
	d, err := svc.repo.GetDashboard(ctx, it.DashboardID)
	if core.IsNotFound(err) {
		return core.InvalidRefError("dashboard")
	}
	if err != nil {
		return err
	}
	if !actor.canModify(d.CreatedByID) {
		return core.ErrForbidden
	}

	r, err := svc.repo.GetReport(ctx, it.ReportID)
	if core.IsNotFound(err) {
		return core.InvalidRefError("report")
	}
	if err != nil {
		return err
	}
	if !actor.canSee(r.CreatedByID, r.IsPublic, r.SharedWith) {
		return core.InvalidRefError("report")
	}
	return nil
}

func (svc *Service) CreateDashboardItem(ctx context.Context, actor Actor, in DashboardItemInput) (DashboardItem, error) {
	it := DashboardItem{ID: uuid.NewString(), Width: 1, Height: 1}
	in.Apply(&it)
	if err := svc.validate.Struct(it); err != nil {
		return DashboardItem{}, err
	}
	if err := svc.checkItemRefs(ctx, actor, it); err != nil {
		return DashboardItem{}, err
	}
	if err := svc.repo.CreateDashboardItem(ctx, it); err != nil {
		return DashboardItem{}, err
	}
	return svc.repo.GetDashboardItem(ctx, it.ID)
}

func (svc *Service) UpdateDashboardItem(ctx context.Context, actor Actor, it DashboardItem, in DashboardItemInput) (DashboardItem, error) {
	if err := svc.checkItemOwner(ctx, actor, it); err != nil {
		return DashboardItem{}, err
	}
	in.Apply(&it)
	if err := svc.validate.Struct(it); err != nil {
		return DashboardItem{}, err
	}
	if err := svc.checkItemRefs(ctx, actor, it); err != nil {
		return DashboardItem{}, err
	}
	if err := svc.repo.UpdateDashboardItem(ctx, it); err != nil {
		return DashboardItem{}, err
	}
	return svc.repo.GetDashboardItem(ctx, it.ID)
}

func (svc *Service) DeleteDashboardItem(ctx context.Context, actor Actor, it DashboardItem) error {
	if err := svc.checkItemOwner(ctx, actor, it); err != nil {
		return err
	}
	return svc.repo.DeleteDashboardItem(ctx, it.ID)
}

func (svc *Service) checkItemOwner(ctx context.Context, actor Actor, it DashboardItem) error {
	d, err := svc.repo.GetDashboard(ctx, it.DashboardID)
	if err != nil {
		return err
	}
	if !actor.canModify(d.CreatedByID) {
		return core.ErrForbidden
	}
	return nil
}

// GetDashboardItem returns the item if actor may see its dashboard.
func (svc *Service) GetDashboardItem(ctx context.Context, actor Actor, id string) (DashboardItem, error) {
	if !validUUID(id) {
		return DashboardItem{}, ErrDashboardItemNotFound
	}
	it, err := svc.repo.GetDashboardItem(ctx, id)
	if err != nil {
		return DashboardItem{}, err
	}
	d, err := svc.repo.GetDashboard(ctx, it.DashboardID)
	if err != nil {
		return DashboardItem{}, err
	}
	if !actor.canSee(d.CreatedByID, d.IsPublic, d.SharedWith) {
		return DashboardItem{}, ErrDashboardItemNotFound
	}
	return it, nil
}

func (svc *Service) QueryDashboardItems(ctx context.Context, actor Actor, filter DashboardItemFilter) ([]DashboardItem, error) {
	filter.Viewer = &actor
	return svc.repo.QueryDashboardItems(ctx, filter)
}

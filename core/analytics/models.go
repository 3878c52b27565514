package analytics

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

// report types
const (
	TypeSales    = "sales"
	TypeActivity = "activity"
	TypeContact  = "contact"
	TypeCampaign = "campaign"
	TypeSupport  = "support"
	TypeCustom   = "custom"
)

// schedule frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

var (
	ReportTypes = core.Choices{
		{Value: TypeSales, Label: "Sales Report"},
		{Value: TypeActivity, Label: "Activity Report"},
		{Value: TypeContact, Label: "Contact Report"},
		{Value: TypeCampaign, Label: "Campaign Report"},
		{Value: TypeSupport, Label: "Support Report"},
		{Value: TypeCustom, Label: "Custom Report"},
	}

	ScheduleFrequencies = core.Choices{
		{Value: FrequencyDaily, Label: "Daily"},
		{Value: FrequencyWeekly, Label: "Weekly"},
		{Value: FrequencyMonthly, Label: "Monthly"},
	}

	schedulePeriods = map[string]time.Duration{
		FrequencyDaily:   24 * time.Hour,
		FrequencyWeekly:  7 * 24 * time.Hour,
		FrequencyMonthly: 30 * 24 * time.Hour,
	}

	// CustomEntities lists the columns custom reports may select per entity.
	CustomEntities = map[string][]string{
		"account": {
			"id", "name", "account_type", "industry", "website", "phone", "email", "city", "state", "country",
			"annual_revenue", "employee_count", "created_at", "updated_at",
		},
		"contact": {
			"id", "first_name", "last_name", "title", "email", "phone", "mobile", "city", "state", "country",
			"status", "email_opt_out", "created_at", "updated_at",
		},
		"opportunity": {
			"id", "name", "stage", "amount", "probability", "expected_close_date", "next_step", "created_at", "updated_at",
		},
		"campaign": {
			"id", "name", "status", "start_date", "end_date", "sent_count", "open_count", "click_count", "bounce_count",
			"unsubscribe_count", "created_at",
		},
		"support_ticket": {
			"id", "subject", "status", "priority", "category", "due_by", "resolved_at", "is_overdue", "created_at", "updated_at",
		},
		"project": {"id", "name", "start_date", "end_date", "status", "created_at"},
		"task":    {"id", "title", "status", "priority", "created_at", "updated_at"},
	}
)

// Actor is the user on whose behalf reports and dashboards are accessed.
// Admin rights widen what an actor may modify, never what it may see.
type Actor struct {
	ID      string
	IsAdmin bool
}

func (a Actor) canSee(createdBy string, isPublic bool, sharedWith core.StringList) bool {
	if isPublic || createdBy == a.ID {
		return true
	}
	for _, id := range sharedWith {
		if id == a.ID {
			return true
		}
	}
	return false
}

func (a Actor) canModify(createdBy string) bool {
	return a.IsAdmin || createdBy == a.ID
}

type Report struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name" validate:"required,max=255"`
	Description        string          `db:"description" json:"description"`
	ReportType         string          `db:"report_type" json:"report_type" validate:"required,oneof=sales activity contact campaign support custom"`
	QueryParams        types.JSONText  `db:"query_params" json:"query_params"`
	ChartType          string          `db:"chart_type" json:"chart_type" validate:"max=50"`
	DisplayColumns     core.StringList `db:"display_columns" json:"display_columns"`
	Filters            types.JSONText  `db:"filters" json:"filters"`
	SortBy             string          `db:"sort_by" json:"sort_by" validate:"max=100"`
	SortDirection      string          `db:"sort_direction" json:"sort_direction" validate:"required,oneof=asc desc"`
	CreatedByID        string          `db:"created_by_id" json:"created_by"`
	IsPublic           bool            `db:"is_public" json:"is_public"`
	ScheduleEnabled    bool            `db:"schedule_enabled" json:"schedule_enabled"`
	ScheduleFrequency  string          `db:"schedule_frequency" json:"schedule_frequency" validate:"omitempty,oneof=daily weekly monthly"`
	ScheduleRecipients core.StringList `db:"schedule_recipients" json:"schedule_recipients" validate:"dive,email"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
	LastRunAt          null.Time       `db:"last_run_at" json:"last_run_at"`

	SharedWith    core.StringList `db:"shared_with" json:"shared_with"`
	CreatedByName string          `db:"created_by_name" json:"created_by_name"`
}

func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		alias
		ReportTypeDisplay string `json:"report_type_display"`
	}{alias(r), ReportTypes.Label(r.ReportType)})
}

// isDue reports whether a scheduled report should be delivered at now.
// Reports that never ran are always due.
func (r Report) isDue(now time.Time) bool {
	period, ok := schedulePeriods[r.ScheduleFrequency]
	if !r.ScheduleEnabled || !ok {
		return false
	}
	if !r.LastRunAt.Valid {
		return true
	}
	return now.Sub(r.LastRunAt.Time) >= period
}

// Params decodes query_params.
func (r Report) Params() (QueryParams, error) {
	var p QueryParams
	if len(r.QueryParams) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(r.QueryParams, &p); err != nil {
		return p, core.NewFieldError("query_params", "invalid query parameters")
	}
	return p, nil
}

// ParsedFilters decodes the filters list.
func (r Report) ParsedFilters() ([]Filter, error) {
	var ff []Filter
	if len(r.Filters) == 0 {
		return ff, nil
	}
	if err := json.Unmarshal(r.Filters, &ff); err != nil {
		return nil, core.NewFieldError("filters", "filters must be a list of {field, operator, value} objects")
	}
	return ff, nil
}

// Columns resolves the columns a custom report selects, in display order.
// An empty display_columns selects every column of the entity.
func (r Report) Columns() (entity string, cols []string, err error) {
	p, err := r.Params()
	if err != nil {
		return "", nil, err
	}
	allowed, ok := CustomEntities[p.Entity]
	if !ok {
		return "", nil, core.NewFieldError("query_params", "entity must be one of: account, contact, opportunity, campaign, support_ticket, project, task")
	}
	if len(r.DisplayColumns) == 0 {
		return p.Entity, allowed, nil
	}
	for _, col := range r.DisplayColumns {
		if !contains(allowed, col) {
			return "", nil, core.NewFieldError("display_columns", "unknown column: "+col)
		}
	}
	return p.Entity, r.DisplayColumns, nil
}

// QueryParams are the report settings kept in query_params.
type QueryParams struct {
	Entity   string    `json:"entity"`
	DateFrom core.Date `json:"date_from"`
	DateTo   core.Date `json:"date_to"`
}

// filter operators
const (
	OpEq        = "eq"
	OpNe        = "ne"
	OpGt        = "gt"
	OpGte       = "gte"
	OpLt        = "lt"
	OpLte       = "lte"
	OpIContains = "icontains"
)

// Filter narrows the rows of a custom report.
type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

func (f Filter) validate(allowed []string) error {
	if !contains(allowed, f.Field) {
		return core.NewFieldError("filters", "unknown filter field: "+f.Field)
	}
	switch f.Operator {
	case "", OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIContains:
		return nil
	}
	return core.NewFieldError("filters", "unknown filter operator: "+f.Operator)
}

type ReportInput struct {
	Name               *string          `json:"name"`
	Description        *string          `json:"description"`
	ReportType         *string          `json:"report_type"`
	QueryParams        *json.RawMessage `json:"query_params"`
	ChartType          *string          `json:"chart_type"`
	DisplayColumns     *core.StringList `json:"display_columns"`
	Filters            *json.RawMessage `json:"filters"`
	SortBy             *string          `json:"sort_by"`
	SortDirection      *string          `json:"sort_direction"`
	IsPublic           *bool            `json:"is_public"`
	ScheduleEnabled    *bool            `json:"schedule_enabled"`
	ScheduleFrequency  *string          `json:"schedule_frequency"`
	ScheduleRecipients *core.StringList `json:"schedule_recipients"`
	SharedWith         *[]string        `json:"shared_with"`
}

func (in ReportInput) Apply(r *Report) {
	core.Assign(&r.Name, in.Name)
	core.Assign(&r.Description, in.Description)
	core.Assign(&r.ReportType, in.ReportType)
	core.Assign(&r.ChartType, in.ChartType)
	core.Assign(&r.DisplayColumns, in.DisplayColumns)
	core.Assign(&r.SortBy, in.SortBy)
	core.Assign(&r.SortDirection, in.SortDirection)
	core.Assign(&r.IsPublic, in.IsPublic)
	core.Assign(&r.ScheduleEnabled, in.ScheduleEnabled)
	core.Assign(&r.ScheduleFrequency, in.ScheduleFrequency)
	core.Assign(&r.ScheduleRecipients, in.ScheduleRecipients)
	if in.QueryParams != nil {
		r.QueryParams = types.JSONText(*in.QueryParams)
	}
	if in.Filters != nil {
		r.Filters = types.JSONText(*in.Filters)
	}
	r.Name = core.CleanString(r.Name)
	r.SortDirection = core.CleanString(r.SortDirection, true)
}

// check enforces the rules that span several report fields.
func (r Report) check() error {
	if len(r.QueryParams) > 0 {
		var obj map[string]interface{}
		if err := json.Unmarshal(r.QueryParams, &obj); err != nil || obj == nil {
			return core.NewFieldError("query_params", "query_params must be an object")
		}
	}
	if len(r.Filters) > 0 {
		if _, err := r.ParsedFilters(); err != nil {
			return err
		}
	}
	if r.ScheduleEnabled && r.ScheduleFrequency == "" {
		return core.NewFieldError("schedule_frequency", "schedule_frequency is required when scheduling is enabled")
	}
	if r.ReportType != TypeCustom {
		return nil
	}
	entity, _, err := r.Columns()
	if err != nil {
		return err
	}
	allowed := CustomEntities[entity]
	ff, _ := r.ParsedFilters()
	for _, f := range ff {
		if err := f.validate(allowed); err != nil {
			return err
		}
	}
	if r.SortBy != "" && !contains(allowed, r.SortBy) {
		return core.NewFieldError("sort_by", "unknown column: "+r.SortBy)
	}
	return nil
}

type ReportFilter struct {
	Search          string
	ReportType      string
	CreatedBy       string
	IsPublic        *bool
	ScheduleEnabled *bool
	Viewer          *Actor // nil lists every report
}

// ReportRun is the outcome of running a report.
type ReportRun struct {
	ReportID   string    `json:"report_id"`
	ReportName string    `json:"report_name"`
	ExecutedAt time.Time `json:"executed_at"`
	Results    ResultSet `json:"results"`
	Cached     bool      `json:"cached"`
}

type ResultSet struct {
	Data  []map[string]interface{} `json:"data"`
	Count int                      `json:"count"`
}

type ShareResult struct {
	Message         string `json:"message"`
	SharedWithCount int    `json:"shared_with_count"`
}

type Dashboard struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name" validate:"required,max=255"`
	Description string         `db:"description" json:"description"`
	Layout      types.JSONText `db:"layout" json:"layout"`
	CreatedByID string         `db:"created_by_id" json:"created_by"`
	IsPublic    bool           `db:"is_public" json:"is_public"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`

	SharedWith    core.StringList `db:"shared_with" json:"shared_with"`
	CreatedByName string          `db:"created_by_name" json:"created_by_name"`
	Items         []DashboardItem `db:"-" json:"items"`
}

type DashboardInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Layout      *json.RawMessage `json:"layout"`
	IsPublic    *bool            `json:"is_public"`
	SharedWith  *[]string        `json:"shared_with"`
}

func (in DashboardInput) Apply(d *Dashboard) {
	core.Assign(&d.Name, in.Name)
	core.Assign(&d.Description, in.Description)
	core.Assign(&d.IsPublic, in.IsPublic)
	if in.Layout != nil {
		d.Layout = types.JSONText(*in.Layout)
	}
	d.Name = core.CleanString(d.Name)
}

func (d Dashboard) check() error {
	if len(d.Layout) > 0 {
		var obj map[string]interface{}
		if err := json.Unmarshal(d.Layout, &obj); err != nil || obj == nil {
			return core.NewFieldError("layout", "layout must be an object")
		}
	}
	return nil
}

type DashboardFilter struct {
	Search    string
	CreatedBy string
	IsPublic  *bool
	Viewer    *Actor
}

type DashboardItem struct {
	ID          string `db:"id" json:"id"`
	DashboardID string `db:"dashboard_id" json:"dashboard" validate:"required,uuid"`
	ReportID    string `db:"report_id" json:"report" validate:"required,uuid"`
	PositionX   int    `db:"position_x" json:"position_x" validate:"min=0,max=32767"`
	PositionY   int    `db:"position_y" json:"position_y" validate:"min=0,max=32767"`
	Width       int    `db:"width" json:"width" validate:"min=1,max=32767"`
	Height      int    `db:"height" json:"height" validate:"min=1,max=32767"`
	CustomTitle string `db:"custom_title" json:"custom_title" validate:"max=255"`

	ReportName string `db:"report_name" json:"report_name"`
}

type DashboardItemInput struct {
	DashboardID *string `json:"dashboard"`
	ReportID    *string `json:"report"`
	PositionX   *int    `json:"position_x"`
	PositionY   *int    `json:"position_y"`
	Width       *int    `json:"width"`
	Height      *int    `json:"height"`
	CustomTitle *string `json:"custom_title"`
}

func (in DashboardItemInput) Apply(it *DashboardItem) {
	core.Assign(&it.DashboardID, in.DashboardID)
	core.Assign(&it.ReportID, in.ReportID)
	core.Assign(&it.PositionX, in.PositionX)
	core.Assign(&it.PositionY, in.PositionY)
	core.Assign(&it.Width, in.Width)
	core.Assign(&it.Height, in.Height)
	core.Assign(&it.CustomTitle, in.CustomTitle)
	it.CustomTitle = core.CleanString(it.CustomTitle)
}

type DashboardItemFilter struct {
	Dashboard string
	Report    string
	Viewer    *Actor
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

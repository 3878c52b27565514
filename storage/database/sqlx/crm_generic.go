package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

var (
	activityCols = []string{
		"id", "content_type_id", "object_id", "activity_type", "subject", "description", "start_date", "end_date",
		"due_date", "completion_date", "is_completed", "performed_by_id", "assigned_to_id", "created_by_id",
		"created_at", "updated_at",
	}
	activityOrdering = map[string]string{
		"start_date": "act.start_date",
		"due_date":   "act.due_date",
		"created_at": "act.created_at",
	}

	customFieldCols = []string{
		"id", "name", "field_type", "description", "content_type_id", "choices", "is_required", "default_value",
		"created_at", "updated_at",
	}
	customFieldOrdering = map[string]string{
		"name":       "cf.name",
		"created_at": "cf.created_at",
	}
	customFieldValueCols = []string{"id", "field_id", "content_type_id", "object_id", "value", "created_at", "updated_at"}

	socialProfileCols     = []string{"id", "content_type_id", "object_id", "platform", "url", "username", "created_at", "updated_at"}
	socialProfileOrdering = map[string]string{
		"platform":   "sp.platform",
		"created_at": "sp.created_at",
	}
)

// Activities

func selectActivities() sq.SelectBuilder {
	return psql.Select("act.*", "ct.model AS content_type_name", userName("pu", "performed_by_name"),
		userName("au", "assigned_to_name"), userName("cu", "created_by_name")).
		From("activity act").
		Join("content_type ct ON ct.id = act.content_type_id").
		Join(`"user" pu ON pu.id = act.performed_by_id`).
		LeftJoin(`"user" au ON au.id = act.assigned_to_id`).
		Join(`"user" cu ON cu.id = act.created_by_id`)
}

func (repo crmRepository) CreateActivity(ctx context.Context, a crm.Activity, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "activity", activityCols, a), "activity", "inserting activity")
}

func (repo crmRepository) UpdateActivity(ctx context.Context, a crm.Activity, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "activity", activityCols[1:], a)
	if err != nil {
		return trapErr(err, "activity", "updating activity")
	}
	return notFound(n, "activity")
}

func (repo crmRepository) DeleteActivity(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "activity", id)
	if err != nil {
		return trapErr(err, "activity", "deleting activity")
	}
	return notFound(n, "activity")
}

func (repo crmRepository) GetActivity(ctx context.Context, id string, exec ...core.DBExecutor) (crm.Activity, error) {
	var a crm.Activity
	err := getOne(ctx, repo.getExec(exec), &a, selectActivities().Where(sq.Eq{"act.id": id}))
	return a, trapErr(err, "activity", "finding activity")
}

func (repo crmRepository) QueryActivities(ctx context.Context, filter crm.ActivityFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.Activity, error) {
	qb := selectActivities()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "act.subject", "act.description"))
	}
	qb = eqIfSet(qb, map[string]string{
		"act.activity_type":   filter.ActivityType,
		"act.created_by_id":   filter.CreatedBy,
		"act.assigned_to_id":  filter.AssignedTo,
		"act.content_type_id": filter.ContentType,
		"act.object_id":       filter.ObjectID,
	})
	qb = boolIfSet(qb, "act.is_completed", filter.IsCompleted)
	if !filter.DueBefore.IsZero() {
		qb = qb.Where(sq.Lt{"act.due_date": filter.DueBefore})
	}
	qb = qb.OrderBy(orderBy(ordering, activityOrdering, "act.start_date DESC")...)

	activities := make([]crm.Activity, 0)
	if err := selectAll(ctx, repo.getExec(exec), &activities, qb); err != nil {
		return nil, trapErr(err, "", "querying activities")
	}
	return activities, nil
}

// Custom fields

func selectCustomFields() sq.SelectBuilder {
	return psql.Select("cf.*", "ct.model AS content_type_name").
		From("custom_field cf").
		Join("content_type ct ON ct.id = cf.content_type_id")
}

func (repo crmRepository) CreateCustomField(ctx context.Context, cf crm.CustomField, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "custom_field", customFieldCols, cf), "custom field", "inserting custom field")
}

func (repo crmRepository) UpdateCustomField(ctx context.Context, cf crm.CustomField, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "custom_field", customFieldCols[1:], cf)
	if err != nil {
		return trapErr(err, "custom field", "updating custom field")
	}
	return notFound(n, "custom field")
}

func (repo crmRepository) DeleteCustomField(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "custom_field", id)
	if err != nil {
		return trapErr(err, "custom field", "deleting custom field")
	}
	return notFound(n, "custom field")
}

func (repo crmRepository) GetCustomField(ctx context.Context, id string, exec ...core.DBExecutor) (crm.CustomField, error) {
	var cf crm.CustomField
	err := getOne(ctx, repo.getExec(exec), &cf, selectCustomFields().Where(sq.Eq{"cf.id": id}))
	return cf, trapErr(err, "custom field", "finding custom field")
}

func (repo crmRepository) QueryCustomFields(ctx context.Context, filter crm.CustomFieldFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.CustomField, error) {
	qb := selectCustomFields()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "cf.name", "cf.description"))
	}
	qb = eqIfSet(qb, map[string]string{
		"cf.field_type":      filter.FieldType,
		"cf.content_type_id": filter.ContentType,
	})
	qb = boolIfSet(qb, "cf.is_required", filter.IsRequired)
	qb = qb.OrderBy(orderBy(ordering, customFieldOrdering, "ct.model ASC", "cf.name ASC")...)

	fields := make([]crm.CustomField, 0)
	if err := selectAll(ctx, repo.getExec(exec), &fields, qb); err != nil {
		return nil, trapErr(err, "", "querying custom fields")
	}
	return fields, nil
}

func selectCustomFieldValues() sq.SelectBuilder {
	return psql.Select("v.*", "cf.name AS field_name", "cf.field_type").
		From("custom_field_value v").
		Join("custom_field cf ON cf.id = v.field_id")
}

func (repo crmRepository) CreateCustomFieldValue(ctx context.Context, v crm.CustomFieldValue, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "custom_field_value", customFieldValueCols, v),
		"custom field value", "inserting custom field value")
}

func (repo crmRepository) UpdateCustomFieldValue(ctx context.Context, v crm.CustomFieldValue, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "custom_field_value", customFieldValueCols[1:], v)
	if err != nil {
		return trapErr(err, "custom field value", "updating custom field value")
	}
	return notFound(n, "custom field value")
}

func (repo crmRepository) DeleteCustomFieldValue(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "custom_field_value", id)
	if err != nil {
		return trapErr(err, "custom field value", "deleting custom field value")
	}
	return notFound(n, "custom field value")
}

func (repo crmRepository) GetCustomFieldValue(ctx context.Context, id string, exec ...core.DBExecutor) (crm.CustomFieldValue, error) {
	var v crm.CustomFieldValue
	err := getOne(ctx, repo.getExec(exec), &v, selectCustomFieldValues().Where(sq.Eq{"v.id": id}))
	return v, trapErr(err, "custom field value", "finding custom field value")
}

func (repo crmRepository) QueryCustomFieldValues(ctx context.Context, filter crm.CustomFieldValueFilter, exec ...core.DBExecutor) ([]crm.CustomFieldValue, error) {
	qb := eqIfSet(selectCustomFieldValues(), map[string]string{
		"v.field_id":        filter.Field,
		"v.content_type_id": filter.ContentType,
		"v.object_id":       filter.ObjectID,
	}).OrderBy("cf.name ASC")

	values := make([]crm.CustomFieldValue, 0)
	if err := selectAll(ctx, repo.getExec(exec), &values, qb); err != nil {
		return nil, trapErr(err, "", "querying custom field values")
	}
	return values, nil
}

// Social profiles

func (repo crmRepository) CreateSocialProfile(ctx context.Context, sp crm.SocialProfile, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "social_profile", socialProfileCols, sp),
		"social profile", "inserting social profile")
}

func (repo crmRepository) UpdateSocialProfile(ctx context.Context, sp crm.SocialProfile, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "social_profile", socialProfileCols[1:], sp)
	if err != nil {
		return trapErr(err, "social profile", "updating social profile")
	}
	return notFound(n, "social profile")
}

func (repo crmRepository) DeleteSocialProfile(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "social_profile", id)
	if err != nil {
		return trapErr(err, "social profile", "deleting social profile")
	}
	return notFound(n, "social profile")
}

func (repo crmRepository) GetSocialProfile(ctx context.Context, id string, exec ...core.DBExecutor) (crm.SocialProfile, error) {
	var sp crm.SocialProfile
	err := getOne(ctx, repo.getExec(exec), &sp, psql.Select("*").From("social_profile").Where(sq.Eq{"id": id}))
	return sp, trapErr(err, "social profile", "finding social profile")
}

func (repo crmRepository) QuerySocialProfiles(ctx context.Context, filter crm.SocialProfileFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.SocialProfile, error) {
	qb := psql.Select("sp.*").From("social_profile sp")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "sp.url", "sp.username"))
	}
	qb = eqIfSet(qb, map[string]string{
		"sp.platform":        filter.Platform,
		"sp.content_type_id": filter.ContentType,
		"sp.object_id":       filter.ObjectID,
	})
	qb = qb.OrderBy(orderBy(ordering, socialProfileOrdering, "sp.platform ASC")...)

	profiles := make([]crm.SocialProfile, 0)
	if err := selectAll(ctx, repo.getExec(exec), &profiles, qb); err != nil {
		return nil, trapErr(err, "", "querying social profiles")
	}
	return profiles, nil
}

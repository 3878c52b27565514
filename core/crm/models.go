package crm

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

type Tag struct {
	ID    int    `db:"id" json:"id"`
	Name  string `db:"name" json:"name" validate:"required,max=100"`
	Color string `db:"color" json:"color" validate:"max=20"`
}

type TagInput struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (in TagInput) Apply(t *Tag) {
	core.Assign(&t.Name, in.Name)
	core.Assign(&t.Color, in.Color)
	t.Name = core.CleanString(t.Name)
}

type TagFilter struct {
	Search string
}

// ContentType identifies a model that generic relations can point to.
type ContentType struct {
	ID       int    `db:"id" json:"id"`
	AppLabel string `db:"app_label" json:"app_label"`
	Model    string `db:"model" json:"model"`
}

func (ct ContentType) MarshalJSON() ([]byte, error) {
	type alias ContentType
	return json.Marshal(struct {
		alias
		Name string `json:"name"`
	}{alias(ct), ct.Model})
}

// Key is the "app_label.model" natural key.
func (ct ContentType) Key() string { return ct.AppLabel + "." + ct.Model }

type ContentTypeFilter struct {
	Search   string
	AppLabel string
	Model    string
}

type Activity struct {
	ID             string      `db:"id" json:"id"`
	ContentTypeID  int         `db:"content_type_id" json:"content_type" validate:"required"`
	ObjectID       string      `db:"object_id" json:"object_id" validate:"required,uuid"`
	ActivityType   string      `db:"activity_type" json:"activity_type" validate:"required,oneof=call email meeting task note other"`
	Subject        string      `db:"subject" json:"subject" validate:"required,max=255"`
	Description    string      `db:"description" json:"description"`
	StartDate      time.Time   `db:"start_date" json:"start_date" validate:"required"`
	EndDate        null.Time   `db:"end_date" json:"end_date"`
	DueDate        null.Time   `db:"due_date" json:"due_date"`
	CompletionDate null.Time   `db:"completion_date" json:"completion_date"`
	IsCompleted    bool        `db:"is_completed" json:"is_completed"`
	PerformedByID  string      `db:"performed_by_id" json:"performed_by" validate:"required"`
	AssignedToID   null.String `db:"assigned_to_id" json:"assigned_to"`
	CreatedByID    string      `db:"created_by_id" json:"created_by"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`

	ContentTypeName string      `db:"content_type_name" json:"content_type_name"`
	PerformedByName string      `db:"performed_by_name" json:"performed_by_name"`
	AssignedToName  null.String `db:"assigned_to_name" json:"assigned_to_name"`
	CreatedByName   string      `db:"created_by_name" json:"created_by_name"`
}

func (a Activity) MarshalJSON() ([]byte, error) {
	type alias Activity
	return json.Marshal(struct {
		alias
		ActivityTypeDisplay string `json:"activity_type_display"`
	}{alias(a), ActivityTypes.Label(a.ActivityType)})
}

// IsOverdue reports whether a pending activity is past its due date.
func (a Activity) IsOverdue(now time.Time) bool {
	return !a.IsCompleted && a.DueDate.Valid && a.DueDate.Time.Before(now)
}

type ActivityInput struct {
	ContentTypeID  *int                       `json:"content_type"`
	ObjectID       *string                    `json:"object_id"`
	ActivityType   *string                    `json:"activity_type"`
	Subject        *string                    `json:"subject"`
	Description    *string                    `json:"description"`
	StartDate      *time.Time                 `json:"start_date"`
	EndDate        core.Optional[null.Time]   `json:"end_date"`
	DueDate        core.Optional[null.Time]   `json:"due_date"`
	CompletionDate core.Optional[null.Time]   `json:"completion_date"`
	IsCompleted    *bool                      `json:"is_completed"`
	PerformedByID  *string                    `json:"performed_by"`
	AssignedToID   core.Optional[null.String] `json:"assigned_to"`
}

func (in ActivityInput) Apply(a *Activity) {
	core.Assign(&a.ContentTypeID, in.ContentTypeID)
	core.Assign(&a.ObjectID, in.ObjectID)
	core.Assign(&a.ActivityType, in.ActivityType)
	core.Assign(&a.Subject, in.Subject)
	core.Assign(&a.Description, in.Description)
	core.Assign(&a.StartDate, in.StartDate)
	in.EndDate.Assign(&a.EndDate)
	in.DueDate.Assign(&a.DueDate)
	in.CompletionDate.Assign(&a.CompletionDate)
	core.Assign(&a.IsCompleted, in.IsCompleted)
	core.Assign(&a.PerformedByID, in.PerformedByID)
	in.AssignedToID.Assign(&a.AssignedToID)
	a.Subject = core.CleanString(a.Subject)
}

type ActivityFilter struct {
	Search       string
	ActivityType string
	IsCompleted  *bool
	CreatedBy    string
	AssignedTo   string
	ContentType  string
	ObjectID     string
	// DueBefore keeps pending activities due before the given time.
	DueBefore time.Time
}

type CustomField struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name" validate:"required,max=100"`
	FieldType     string         `db:"field_type" json:"field_type" validate:"required,oneof=text textarea number date datetime boolean select multiselect url email phone"`
	Description   string         `db:"description" json:"description"`
	ContentTypeID int            `db:"content_type_id" json:"content_type" validate:"required"`
	Choices       types.JSONText `db:"choices" json:"choices"`
	IsRequired    bool           `db:"is_required" json:"is_required"`
	DefaultValue  string         `db:"default_value" json:"default_value"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	ContentTypeName string `db:"content_type_name" json:"content_type_name"`
}

func (cf CustomField) MarshalJSON() ([]byte, error) {
	type alias CustomField
	a := alias(cf)
	if len(a.Choices) == 0 {
		a.Choices = types.JSONText("[]")
	}
	return json.Marshal(struct {
		alias
		FieldTypeDisplay string `json:"field_type_display"`
	}{a, FieldTypes.Label(cf.FieldType)})
}

// ChoiceList decodes the JSON choices; invalid choices yield nil.
func (cf CustomField) ChoiceList() []string {
	if len(cf.Choices) == 0 {
		return nil
	}
	var choices []string
	if err := json.Unmarshal(cf.Choices, &choices); err != nil {
		return nil
	}
	return choices
}

type CustomFieldInput struct {
	Name          *string                 `json:"name"`
	FieldType     *string                 `json:"field_type"`
	Description   *string                 `json:"description"`
	ContentTypeID *int                    `json:"content_type"`
	Choices       core.Optional[[]string] `json:"choices"`
	IsRequired    *bool                   `json:"is_required"`
	DefaultValue  *string                 `json:"default_value"`
}

func (in CustomFieldInput) Apply(cf *CustomField) {
	core.Assign(&cf.Name, in.Name)
	core.Assign(&cf.FieldType, in.FieldType)
	core.Assign(&cf.Description, in.Description)
	core.Assign(&cf.ContentTypeID, in.ContentTypeID)
	if in.Choices.Set {
		choices := in.Choices.Value
		if choices == nil {
			choices = []string{}
		}
		cf.Choices, _ = json.Marshal(choices)
	}
	core.Assign(&cf.IsRequired, in.IsRequired)
	core.Assign(&cf.DefaultValue, in.DefaultValue)
	cf.Name = core.CleanString(cf.Name)
}

type CustomFieldFilter struct {
	Search      string
	FieldType   string
	IsRequired  *bool
	ContentType string
}

type CustomFieldValue struct {
	ID            string    `db:"id" json:"id"`
	FieldID       string    `db:"field_id" json:"field" validate:"required,uuid"`
	ContentTypeID int       `db:"content_type_id" json:"content_type" validate:"required"`
	ObjectID      string    `db:"object_id" json:"object_id" validate:"required,uuid"`
	Value         string    `db:"value" json:"value"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	FieldName string `db:"field_name" json:"field_name"`
	FieldType string `db:"field_type" json:"field_type"`
}

type CustomFieldValueInput struct {
	FieldID       *string `json:"field"`
	ContentTypeID *int    `json:"content_type"`
	ObjectID      *string `json:"object_id"`
	Value         *string `json:"value"`
}

func (in CustomFieldValueInput) Apply(v *CustomFieldValue) {
	core.Assign(&v.FieldID, in.FieldID)
	core.Assign(&v.ContentTypeID, in.ContentTypeID)
	core.Assign(&v.ObjectID, in.ObjectID)
	core.Assign(&v.Value, in.Value)
}

type CustomFieldValueFilter struct {
	Field       string
	ContentType string
	ObjectID    string
}

type SocialProfile struct {
	ID            string    `db:"id" json:"id"`
	ContentTypeID int       `db:"content_type_id" json:"content_type" validate:"required"`
	ObjectID      string    `db:"object_id" json:"object_id" validate:"required,uuid"`
	Platform      string    `db:"platform" json:"platform" validate:"required,oneof=linkedin twitter facebook instagram youtube github other"`
	URL           string    `db:"url" json:"url" validate:"required,url,max=200"`
	Username      string    `db:"username" json:"username" validate:"max=100"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (sp SocialProfile) MarshalJSON() ([]byte, error) {
	type alias SocialProfile
	return json.Marshal(struct {
		alias
		PlatformDisplay string `json:"platform_display"`
	}{alias(sp), Platforms.Label(sp.Platform)})
}

type SocialProfileInput struct {
	ContentTypeID *int    `json:"content_type"`
	ObjectID      *string `json:"object_id"`
	Platform      *string `json:"platform"`
	URL           *string `json:"url"`
	Username      *string `json:"username"`
}

func (in SocialProfileInput) Apply(sp *SocialProfile) {
	core.Assign(&sp.ContentTypeID, in.ContentTypeID)
	core.Assign(&sp.ObjectID, in.ObjectID)
	core.Assign(&sp.Platform, in.Platform)
	core.Assign(&sp.URL, in.URL)
	core.Assign(&sp.Username, in.Username)
}

type SocialProfileFilter struct {
	Search      string
	Platform    string
	ContentType string
	ObjectID    string
}

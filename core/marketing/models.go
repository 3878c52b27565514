package marketing

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

// campaign statuses
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// recipient statuses, which are also the trackable events
const (
	RecipientPending      = "pending"
	RecipientSent         = "sent"
	RecipientOpened       = "opened"
	RecipientClicked      = "clicked"
	RecipientBounced      = "bounced"
	RecipientUnsubscribed = "unsubscribed"
)

var (
	CampaignStatuses = core.Choices{
		{Value: StatusDraft, Label: "Draft"},
		{Value: StatusScheduled, Label: "Scheduled"},
		{Value: StatusActive, Label: "Active"},
		{Value: StatusPaused, Label: "Paused"},
		{Value: StatusCompleted, Label: "Completed"},
		{Value: StatusCancelled, Label: "Cancelled"},
	}

	// RecipientStatuses are listed in delivery order.
	RecipientStatuses = core.Choices{
		{Value: RecipientPending, Label: "Pending"},
		{Value: RecipientSent, Label: "Sent"},
		{Value: RecipientOpened, Label: "Opened"},
		{Value: RecipientClicked, Label: "Clicked"},
		{Value: RecipientBounced, Label: "Bounced"},
		{Value: RecipientUnsubscribed, Label: "Unsubscribed"},
	}
)

type Campaign struct {
	ID               string      `db:"id" json:"id"`
	Name             string      `db:"name" json:"name" validate:"required,max=255"`
	Description      string      `db:"description" json:"description"`
	Status           string      `db:"status" json:"status" validate:"required,oneof=draft scheduled active paused completed cancelled"`
	StartDate        null.Time   `db:"start_date" json:"start_date"`
	EndDate          null.Time   `db:"end_date" json:"end_date"`
	SentCount        int         `db:"sent_count" json:"sent_count"`
	OpenCount        int         `db:"open_count" json:"open_count"`
	ClickCount       int         `db:"click_count" json:"click_count"`
	BounceCount      int         `db:"bounce_count" json:"bounce_count"`
	UnsubscribeCount int         `db:"unsubscribe_count" json:"unsubscribe_count"`
	AssignedToID     null.String `db:"assigned_to_id" json:"assigned_to" validate:"omitempty,uuid"`
	CreatedByID      string      `db:"created_by_id" json:"created_by"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
	Tags             []crm.Tag   `db:"-" json:"tags"`

	AssignedToName null.String `db:"assigned_to_name" json:"assigned_to_name"`
	CreatedByName  string      `db:"created_by_name" json:"created_by_name"`
	EmailCount     int         `db:"email_count" json:"email_count"`
	RecipientCount int         `db:"recipient_count" json:"recipient_count"`
}

func (c Campaign) MarshalJSON() ([]byte, error) {
	type alias Campaign
	return json.Marshal(struct {
		alias
		StatusDisplay string `json:"status_display"`
	}{alias(c), CampaignStatuses.Label(c.Status)})
}

// Sendable reports whether emails can still go out for the campaign.
func (c Campaign) Sendable() bool {
	return c.Status != StatusCompleted && c.Status != StatusCancelled
}

type CampaignInput struct {
	Name         *string                    `json:"name"`
	Description  *string                    `json:"description"`
	Status       *string                    `json:"status"`
	StartDate    core.Optional[null.Time]   `json:"start_date"`
	EndDate      core.Optional[null.Time]   `json:"end_date"`
	AssignedToID core.Optional[null.String] `json:"assigned_to"`
	TagIDs       *[]int                     `json:"tag_ids"`
}

func (in CampaignInput) Apply(c *Campaign) {
	core.Assign(&c.Name, in.Name)
	core.Assign(&c.Description, in.Description)
	core.Assign(&c.Status, in.Status)
	in.StartDate.Assign(&c.StartDate)
	in.EndDate.Assign(&c.EndDate)
	in.AssignedToID.Assign(&c.AssignedToID)
	c.Name = core.CleanString(c.Name)
}

type CampaignFilter struct {
	Search     string
	Status     string
	AssignedTo string
	Tag        string
}

// Counter names a campaign statistic.
type Counter string

const (
	CounterSent        Counter = "sent_count"
	CounterOpen        Counter = "open_count"
	CounterClick       Counter = "click_count"
	CounterBounce      Counter = "bounce_count"
	CounterUnsubscribe Counter = "unsubscribe_count"
)

type MarketingEmail struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name" validate:"required,max=255"`
	Subject       string    `db:"subject" json:"subject" validate:"required,max=255"`
	HTMLContent   string    `db:"html_content" json:"html_content" validate:"required"`
	TextContent   string    `db:"text_content" json:"text_content"`
	CampaignID    string    `db:"campaign_id" json:"campaign" validate:"required,uuid"`
	SequenceOrder int       `db:"sequence_order" json:"sequence_order" validate:"min=0,max=32767"`
	DelayDays     int       `db:"delay_days" json:"delay_days" validate:"min=0,max=32767"`
	CreatedByID   string    `db:"created_by_id" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	CampaignName string `db:"campaign_name" json:"campaign_name"`
}

type MarketingEmailInput struct {
	Name          *string `json:"name"`
	Subject       *string `json:"subject"`
	HTMLContent   *string `json:"html_content"`
	TextContent   *string `json:"text_content"`
	CampaignID    *string `json:"campaign"`
	SequenceOrder *int    `json:"sequence_order"`
	DelayDays     *int    `json:"delay_days"`
}

func (in MarketingEmailInput) Apply(e *MarketingEmail) {
	core.Assign(&e.Name, in.Name)
	core.Assign(&e.Subject, in.Subject)
	core.Assign(&e.HTMLContent, in.HTMLContent)
	core.Assign(&e.TextContent, in.TextContent)
	core.Assign(&e.CampaignID, in.CampaignID)
	core.Assign(&e.SequenceOrder, in.SequenceOrder)
	core.Assign(&e.DelayDays, in.DelayDays)
	e.Name = core.CleanString(e.Name)
	e.Subject = core.CleanString(e.Subject)
}

type MarketingEmailFilter struct {
	Search        string
	Campaign      string
	SequenceOrder string
}

type CampaignRecipient struct {
	ID         string    `db:"id" json:"id"`
	CampaignID string    `db:"campaign_id" json:"campaign" validate:"required,uuid"`
	ContactID  string    `db:"contact_id" json:"contact" validate:"required,uuid"`
	Status     string    `db:"status" json:"status" validate:"required,oneof=pending sent opened clicked bounced unsubscribed"`
	SentAt     null.Time `db:"sent_at" json:"sent_at"`
	OpenedAt   null.Time `db:"opened_at" json:"opened_at"`
	ClickedAt  null.Time `db:"clicked_at" json:"clicked_at"`
	// BouncedAt and UnsubscribedAt mark the first time each event was tracked.
	BouncedAt      null.Time `db:"bounced_at" json:"bounced_at"`
	UnsubscribedAt null.Time `db:"unsubscribed_at" json:"unsubscribed_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	ContactName        string `db:"contact_name" json:"contact_name"`
	ContactEmail       string `db:"contact_email" json:"contact_email"`
	ContactEmailOptOut bool   `db:"contact_email_opt_out" json:"-"`
}

func (r CampaignRecipient) MarshalJSON() ([]byte, error) {
	type alias CampaignRecipient
	return json.Marshal(struct {
		alias
		StatusDisplay string `json:"status_display"`
	}{alias(r), RecipientStatuses.Label(r.Status)})
}

// Reachable reports whether campaign emails can be delivered to the recipient's contact.
func (r CampaignRecipient) Reachable() bool {
	return r.ContactEmail != "" && !r.ContactEmailOptOut
}

type CampaignRecipientInput struct {
	CampaignID *string                  `json:"campaign"`
	ContactID  *string                  `json:"contact"`
	Status     *string                  `json:"status"`
	SentAt     core.Optional[null.Time] `json:"sent_at"`
	OpenedAt   core.Optional[null.Time] `json:"opened_at"`
	ClickedAt  core.Optional[null.Time] `json:"clicked_at"`
}

func (in CampaignRecipientInput) Apply(r *CampaignRecipient) {
	core.Assign(&r.CampaignID, in.CampaignID)
	core.Assign(&r.ContactID, in.ContactID)
	core.Assign(&r.Status, in.Status)
	in.SentAt.Assign(&r.SentAt)
	in.OpenedAt.Assign(&r.OpenedAt)
	in.ClickedAt.Assign(&r.ClickedAt)
}

type CampaignRecipientFilter struct {
	Search   string
	Campaign string
	Contact  string
	Status   string
}

// AddContactsResult is the outcome of adding contacts to a campaign.
type AddContactsResult struct {
	Message  string `json:"message"`
	Added    int    `json:"added"`
	Existing int    `json:"existing"`
}

// SendResult is the outcome of a campaign send.
type SendResult struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
}

type Segment struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name" validate:"required,max=255"`
	Description  string         `db:"description" json:"description"`
	Criteria     types.JSONText `db:"criteria" json:"criteria"`
	ContactCount int            `db:"contact_count" json:"contact_count"`
	IsDynamic    bool           `db:"is_dynamic" json:"is_dynamic"`
	CreatedByID  string         `db:"created_by_id" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`

	CreatedByName string `db:"created_by_name" json:"created_by_name"`
}

// ParsedCriteria decodes the stored criteria.
func (s Segment) ParsedCriteria() (*crm.Criteria, error) {
	return crm.ParseCriteria(s.Criteria)
}

type SegmentInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Criteria    *json.RawMessage `json:"criteria"`
	IsDynamic   *bool            `json:"is_dynamic"`
}

func (in SegmentInput) Apply(s *Segment) {
	core.Assign(&s.Name, in.Name)
	core.Assign(&s.Description, in.Description)
	if in.Criteria != nil {
		s.Criteria = types.JSONText(*in.Criteria)
	}
	core.Assign(&s.IsDynamic, in.IsDynamic)
	s.Name = core.CleanString(s.Name)
}

type SegmentFilter struct {
	Search    string
	IsDynamic *bool
	CreatedBy string
}

// SegmentContactsResult is the outcome of a static membership change.
type SegmentContactsResult struct {
	Message string `json:"message"`
	Added   *int   `json:"added,omitempty"`
	Removed *int   `json:"removed,omitempty"`
}

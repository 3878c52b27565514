package support

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

// ticket statuses
const (
	StatusNew      = "new"
	StatusOpen     = "open"
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusClosed   = "closed"
)

var (
	TicketStatuses = core.Choices{
		{Value: StatusNew, Label: "New"},
		{Value: StatusOpen, Label: "Open"},
		{Value: StatusPending, Label: "Pending"},
		{Value: StatusResolved, Label: "Resolved"},
		{Value: StatusClosed, Label: "Closed"},
	}

	TicketPriorities = core.Choices{
		{Value: "low", Label: "Low"},
		{Value: "medium", Label: "Medium"},
		{Value: "high", Label: "High"},
		{Value: "urgent", Label: "Urgent"},
	}
)

type SupportTicket struct {
	ID           string      `db:"id" json:"id"`
	Subject      string      `db:"subject" json:"subject" validate:"required,max=255"`
	Description  string      `db:"description" json:"description" validate:"required"`
	Status       string      `db:"status" json:"status" validate:"required,oneof=new open pending resolved closed"`
	Priority     string      `db:"priority" json:"priority" validate:"required,oneof=low medium high urgent"`
	Category     string      `db:"category" json:"category" validate:"max=100"`
	ContactID    string      `db:"contact_id" json:"contact" validate:"required,uuid"`
	AccountID    string      `db:"account_id" json:"account" validate:"required,uuid"`
	AssignedToID null.String `db:"assigned_to_id" json:"assigned_to" validate:"omitempty,uuid"`
	CreatedByID  string      `db:"created_by_id" json:"created_by"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
	ResolvedAt   null.Time   `db:"resolved_at" json:"resolved_at"`
	DueBy        null.Time   `db:"due_by" json:"due_by"`
	IsOverdue    bool        `db:"is_overdue" json:"is_overdue"`
	Tags         []crm.Tag   `db:"-" json:"tags"`

	ContactName    string      `db:"contact_name" json:"contact_name"`
	AccountName    string      `db:"account_name" json:"account_name"`
	AssignedToName null.String `db:"assigned_to_name" json:"assigned_to_name"`
	MessageCount   int         `db:"message_count" json:"message_count"`
}

func (t SupportTicket) MarshalJSON() ([]byte, error) {
	type alias SupportTicket
	return json.Marshal(struct {
		alias
		StatusDisplay   string `json:"status_display"`
		PriorityDisplay string `json:"priority_display"`
	}{alias(t), TicketStatuses.Label(t.Status), TicketPriorities.Label(t.Priority)})
}

// IsOpen reports whether the ticket still awaits resolution.
func (t SupportTicket) IsOpen() bool {
	return t.Status != StatusResolved && t.Status != StatusClosed
}

// setStatus changes the status, stamping resolved_at on the transition into resolved.
func (t *SupportTicket) setStatus(status string, now time.Time) {
	if status == StatusResolved && t.Status != StatusResolved {
		t.ResolvedAt = null.TimeFrom(now)
	}
	t.Status = status
}

type SupportTicketInput struct {
	Subject      *string                    `json:"subject"`
	Description  *string                    `json:"description"`
	Status       *string                    `json:"status"`
	Priority     *string                    `json:"priority"`
	Category     *string                    `json:"category"`
	ContactID    *string                    `json:"contact"`
	AccountID    *string                    `json:"account"`
	AssignedToID core.Optional[null.String] `json:"assigned_to"`
	ResolvedAt   core.Optional[null.Time]   `json:"resolved_at"`
	DueBy        core.Optional[null.Time]   `json:"due_by"`
	IsOverdue    *bool                      `json:"is_overdue"`
	TagIDs       *[]int                     `json:"tag_ids"`
}

func (in SupportTicketInput) Apply(t *SupportTicket) {
	core.Assign(&t.Subject, in.Subject)
	core.Assign(&t.Description, in.Description)
	core.Assign(&t.Priority, in.Priority)
	core.Assign(&t.Category, in.Category)
	core.Assign(&t.ContactID, in.ContactID)
	core.Assign(&t.AccountID, in.AccountID)
	in.AssignedToID.Assign(&t.AssignedToID)
	in.ResolvedAt.Assign(&t.ResolvedAt)
	in.DueBy.Assign(&t.DueBy)
	core.Assign(&t.IsOverdue, in.IsOverdue)
	t.Subject = core.CleanString(t.Subject)
	t.Category = core.CleanString(t.Category)
}

type SupportTicketFilter struct {
	Search     string
	Status     string
	Priority   string
	Category   string
	Contact    string
	Account    string
	AssignedTo string
	IsOverdue  *bool
	Tag        string
}

type TicketMessage struct {
	ID         string      `db:"id" json:"id"`
	TicketID   string      `db:"ticket_id" json:"ticket" validate:"required,uuid"`
	Content    string      `db:"content" json:"content" validate:"required"`
	IsCustomer bool        `db:"is_customer" json:"is_customer"`
	SenderID   null.String `db:"sender_id" json:"sender"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`

	SenderUserName null.String `db:"sender_name" json:"-"`
}

// SenderName names who wrote the message.
func (m TicketMessage) SenderName() string {
	switch {
	case m.IsCustomer:
		return "Customer"
	case m.SenderUserName.Valid:
		return m.SenderUserName.String
	}
	return "Unknown"
}

func (m TicketMessage) MarshalJSON() ([]byte, error) {
	type alias TicketMessage
	return json.Marshal(struct {
		alias
		SenderName string `json:"sender_name"`
	}{alias(m), m.SenderName()})
}

type TicketMessageInput struct {
	TicketID   *string `json:"ticket"`
	Content    *string `json:"content"`
	IsCustomer *bool   `json:"is_customer"`
}

func (in TicketMessageInput) Apply(m *TicketMessage) {
	core.Assign(&m.TicketID, in.TicketID)
	core.Assign(&m.Content, in.Content)
	core.Assign(&m.IsCustomer, in.IsCustomer)
	m.Content = core.CleanString(m.Content)
}

type TicketMessageFilter struct {
	Ticket     string
	IsCustomer *bool
	Sender     string
}

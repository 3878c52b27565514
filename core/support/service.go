package support

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

var (
	ErrTicketNotFound  = core.NewNotFoundError("support ticket")
	ErrMessageNotFound = core.NewNotFoundError("ticket message")

	ErrContentRequired = core.NewValidationError(errors.New("Message content is required"))
	ErrStatusRequired  = core.NewValidationError(errors.New("Status is required"))
	ErrInvalidStatus   = core.NewValidationError(errors.New("Invalid status value"))
)

type (
	Repository interface {
		CreateTicket(ctx context.Context, t SupportTicket, exec ...core.DBExecutor) error
		UpdateTicket(ctx context.Context, t SupportTicket, exec ...core.DBExecutor) error
		DeleteTicket(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTicket(ctx context.Context, id string, exec ...core.DBExecutor) (SupportTicket, error)
		QueryTickets(ctx context.Context, filter SupportTicketFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]SupportTicket, error)
		SetTicketTags(ctx context.Context, id string, tagIDs []int, exec ...core.DBExecutor) error
		TouchTicket(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error
		// FlagOverdueTickets sets is_overdue on open tickets past due and clears it on the others.
		// It returns the number of tickets whose flag changed.
		FlagOverdueTickets(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error)

		CreateMessage(ctx context.Context, m TicketMessage, exec ...core.DBExecutor) error
		UpdateMessage(ctx context.Context, m TicketMessage, exec ...core.DBExecutor) error
		DeleteMessage(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (TicketMessage, error)
		QueryMessages(ctx context.Context, filter TicketMessageFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]TicketMessage, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(db core.DB, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate}
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Tickets

func (svc *Service) CreateTicket(ctx context.Context, userID string, in SupportTicketInput) (SupportTicket, error) {
	now := core.Now()
	t := SupportTicket{
		ID:          uuid.NewString(),
		Status:      StatusNew,
		Priority:    "medium",
		CreatedByID: userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	in.Apply(&t)
	if in.Status != nil {
		t.setStatus(*in.Status, now)
	}
	if err := svc.validate.Struct(t); err != nil {
		return SupportTicket{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateTicket(ctx, t, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetTicketTags(ctx, t.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return SupportTicket{}, err
	}
	return svc.repo.GetTicket(ctx, t.ID)
}

func (svc *Service) UpdateTicket(ctx context.Context, t SupportTicket, in SupportTicketInput) (SupportTicket, error) {
	now := core.Now()
	in.Apply(&t)
	if in.Status != nil {
		t.setStatus(*in.Status, now)
	}
	if err := svc.validate.Struct(t); err != nil {
		return SupportTicket{}, err
	}
	t.UpdatedAt = now

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.UpdateTicket(ctx, t, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetTicketTags(ctx, t.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return SupportTicket{}, err
	}
	return svc.repo.GetTicket(ctx, t.ID)
}

func (svc *Service) DeleteTicket(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrTicketNotFound
	}
	return svc.repo.DeleteTicket(ctx, id)
}

func (svc *Service) GetTicket(ctx context.Context, id string) (SupportTicket, error) {
	if !validUUID(id) {
		return SupportTicket{}, ErrTicketNotFound
	}
	return svc.repo.GetTicket(ctx, id)
}

func (svc *Service) QueryTickets(ctx context.Context, filter SupportTicketFilter, ordering []core.DBOrdering) ([]SupportTicket, error) {
	return svc.repo.QueryTickets(ctx, filter, ordering)
}

func (svc *Service) TicketMessages(ctx context.Context, id string) ([]TicketMessage, error) {
	return svc.repo.QueryMessages(ctx, TicketMessageFilter{Ticket: id}, nil)
}

// ChangeStatus moves the ticket to status.
func (svc *Service) ChangeStatus(ctx context.Context, t SupportTicket, status string) (SupportTicket, error) {
	if status == "" {
		return SupportTicket{}, ErrStatusRequired
	}
	if !TicketStatuses.Has(status) {
		return SupportTicket{}, ErrInvalidStatus
	}
	now := core.Now()
	t.setStatus(status, now)
	t.UpdatedAt = now
	if err := svc.repo.UpdateTicket(ctx, t); err != nil {
		return SupportTicket{}, err
	}
	return svc.repo.GetTicket(ctx, t.ID)
}

// AddMessage posts a message on the ticket. Customer messages have no sender.
func (svc *Service) AddMessage(ctx context.Context, userID string, t SupportTicket, content string, isCustomer bool) (TicketMessage, error) {
	content = core.CleanString(content)
	if content == "" {
		return TicketMessage{}, ErrContentRequired
	}
	ticketID := t.ID
	return svc.CreateMessage(ctx, userID, TicketMessageInput{TicketID: &ticketID, Content: &content, IsCustomer: &isCustomer})
}

// FlagOverdue refreshes the overdue flag of every ticket.
func (svc *Service) FlagOverdue(ctx context.Context, now time.Time) (int, error) {
	return svc.repo.FlagOverdueTickets(ctx, now.UTC())
}

// Messages

func (svc *Service) CreateMessage(ctx context.Context, userID string, in TicketMessageInput) (TicketMessage, error) {
	now := core.Now()
	m := TicketMessage{ID: uuid.NewString(), CreatedAt: now}
	in.Apply(&m)
	if !m.IsCustomer {
		m.SenderID = null.StringFrom(userID)
	}
	if err := svc.validate.Struct(m); err != nil {
		return TicketMessage{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateMessage(ctx, m, tx); err != nil {
			return err
		}
		return svc.repo.TouchTicket(ctx, m.TicketID, now, tx)
	})
	if err != nil {
		return TicketMessage{}, err
	}
	return svc.repo.GetMessage(ctx, m.ID)
}

func (svc *Service) UpdateMessage(ctx context.Context, m TicketMessage, in TicketMessageInput) (TicketMessage, error) {
	in.Apply(&m)
	if m.IsCustomer {
		m.SenderID = null.String{}
	}
	if err := svc.validate.Struct(m); err != nil {
		return TicketMessage{}, err
	}
	if err := svc.repo.UpdateMessage(ctx, m); err != nil {
		return TicketMessage{}, err
	}
	return svc.repo.GetMessage(ctx, m.ID)
}

func (svc *Service) DeleteMessage(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrMessageNotFound
	}
	return svc.repo.DeleteMessage(ctx, id)
}

func (svc *Service) GetMessage(ctx context.Context, id string) (TicketMessage, error) {
	if !validUUID(id) {
		return TicketMessage{}, ErrMessageNotFound
	}
	return svc.repo.GetMessage(ctx, id)
}

func (svc *Service) QueryMessages(ctx context.Context, filter TicketMessageFilter, ordering []core.DBOrdering) ([]TicketMessage, error) {
	return svc.repo.QueryMessages(ctx, filter, ordering)
}

package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/support"
)

var (
	ticketCols = []string{
		"id", "subject", "description", "status", "priority", "category", "contact_id", "account_id", "assigned_to_id",
		"created_by_id", "created_at", "updated_at", "resolved_at", "due_by", "is_overdue",
	}
	ticketOrdering = map[string]string{
		"created_at":  "t.created_at",
		"updated_at":  "t.updated_at",
		"due_by":      "t.due_by",
		"resolved_at": "t.resolved_at",
	}

	ticketMessageCols     = []string{"id", "ticket_id", "content", "is_customer", "sender_id", "created_at"}
	ticketMessageOrdering = map[string]string{"created_at": "m.created_at"}
)

type supportRepository struct {
	repository
}

var _ support.Repository = (*supportRepository)(nil) // interface compliance check

func NewSupportRepository(exec core.DBExecutor) *supportRepository {
	return &supportRepository{repository{exec: exec}}
}

func selectTickets() sq.SelectBuilder {
	return psql.Select("t.*", "c.first_name || ' ' || c.last_name AS contact_name", "acc.name AS account_name",
		userName("au", "assigned_to_name"),
		"(SELECT COUNT(*) FROM ticket_message m WHERE m.ticket_id = t.id) AS message_count").
		From("support_ticket t").
		Join("contact c ON c.id = t.contact_id").
		Join("account acc ON acc.id = t.account_id").
		LeftJoin(`"user" au ON au.id = t.assigned_to_id`)
}

func (repo supportRepository) queryTickets(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) ([]support.SupportTicket, error) {
	tickets := make([]support.SupportTicket, 0)
	if err := selectAll(ctx, exec, &tickets, qb); err != nil {
		return nil, trapErr(err, "", "querying support tickets")
	}
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	tags, err := loadTags(ctx, exec, crm.TagSupportTicket, ids)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].Tags = tags[tickets[i].ID]
	}
	return tickets, nil
}

func (repo supportRepository) CreateTicket(ctx context.Context, t support.SupportTicket, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "support_ticket", ticketCols, t), "support ticket", "inserting support ticket")
}

func (repo supportRepository) UpdateTicket(ctx context.Context, t support.SupportTicket, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "support_ticket", ticketCols[1:], t)
	if err != nil {
		return trapErr(err, "support ticket", "updating support ticket")
	}
	return notFound(n, "support ticket")
}

func (repo supportRepository) DeleteTicket(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "support_ticket", id)
	if err != nil {
		return trapErr(err, "support ticket", "deleting support ticket")
	}
	return notFound(n, "support ticket")
}

func (repo supportRepository) GetTicket(ctx context.Context, id string, exec ...core.DBExecutor) (support.SupportTicket, error) {
	tickets, err := repo.queryTickets(ctx, repo.getExec(exec), selectTickets().Where(sq.Eq{"t.id": id}))
	if err != nil {
		return support.SupportTicket{}, trapErr(err, "support ticket", "finding support ticket")
	}
	if len(tickets) == 0 {
		return support.SupportTicket{}, support.ErrTicketNotFound
	}
	return tickets[0], nil
}

func (repo supportRepository) QueryTickets(ctx context.Context, filter support.SupportTicketFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]support.SupportTicket, error) {
	qb := selectTickets()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "t.subject", "t.description", "t.category"))
	}
	qb = eqIfSet(qb, map[string]string{
		"t.status":         filter.Status,
		"t.priority":       filter.Priority,
		"t.category":       filter.Category,
		"t.contact_id":     filter.Contact,
		"t.account_id":     filter.Account,
		"t.assigned_to_id": filter.AssignedTo,
	})
	qb = boolIfSet(qb, "t.is_overdue", filter.IsOverdue)
	if filter.Tag != "" {
		qb = qb.Where(hasTag(crm.TagSupportTicket, "t", filter.Tag))
	}
	qb = qb.OrderBy(orderBy(ordering, ticketOrdering, "t.created_at DESC")...)
	return repo.queryTickets(ctx, repo.getExec(exec), qb)
}

func (repo supportRepository) SetTicketTags(ctx context.Context, id string, tagIDs []int, exec ...core.DBExecutor) error {
	return setTags(ctx, repo.getExec(exec), crm.TagSupportTicket, id, tagIDs)
}

func (repo supportRepository) TouchTicket(ctx context.Context, id string, now time.Time, exec ...core.DBExecutor) error {
	n, err := execQuery(ctx, repo.getExec(exec), psql.Update("support_ticket").Set("updated_at", now).Where(sq.Eq{"id": id}))
	if err != nil {
		return trapErr(err, "support ticket", "touching support ticket")
	}
	return notFound(n, "support ticket")
}

func (repo supportRepository) FlagOverdueTickets(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error) {
	overdue := sq.And{
		sq.NotEq{"status": []string{support.StatusResolved, support.StatusClosed}},
		sq.NotEq{"due_by": nil},
		sq.Lt{"due_by": now},
	}
	overdueSQL, args, err := overdue.ToSql()
	if err != nil {
		return 0, err
	}
	qb := psql.Update("support_ticket").
		Set("is_overdue", sq.Expr(overdueSQL, args...)).
		Where(sq.Expr("is_overdue IS DISTINCT FROM ("+overdueSQL+")", args...))
	n, err := execQuery(ctx, repo.getExec(exec), qb)
	return int(n), trapErr(err, "", "flagging overdue tickets")
}

// Messages

func selectTicketMessages() sq.SelectBuilder {
	return psql.Select("m.*", "COALESCE(NULLIF(s.name, ''), s.username, s.email) AS sender_name").
		From("ticket_message m").
		LeftJoin(`"user" s ON s.id = m.sender_id`)
}

func (repo supportRepository) CreateMessage(ctx context.Context, m support.TicketMessage, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "ticket_message", ticketMessageCols, m), "ticket message", "inserting ticket message")
}

func (repo supportRepository) UpdateMessage(ctx context.Context, m support.TicketMessage, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "ticket_message", ticketMessageCols[1:], m)
	if err != nil {
		return trapErr(err, "ticket message", "updating ticket message")
	}
	return notFound(n, "ticket message")
}

func (repo supportRepository) DeleteMessage(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "ticket_message", id)
	if err != nil {
		return trapErr(err, "ticket message", "deleting ticket message")
	}
	return notFound(n, "ticket message")
}

func (repo supportRepository) GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (support.TicketMessage, error) {
	var m support.TicketMessage
	err := getOne(ctx, repo.getExec(exec), &m, selectTicketMessages().Where(sq.Eq{"m.id": id}))
	return m, trapErr(err, "ticket message", "finding ticket message")
}

func (repo supportRepository) QueryMessages(ctx context.Context, filter support.TicketMessageFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]support.TicketMessage, error) {
	qb := eqIfSet(selectTicketMessages(), map[string]string{
		"m.ticket_id": filter.Ticket,
		"m.sender_id": filter.Sender,
	})
	qb = boolIfSet(qb, "m.is_customer", filter.IsCustomer)
	qb = qb.OrderBy(orderBy(ordering, ticketMessageOrdering, "m.created_at ASC")...)

	messages := make([]support.TicketMessage, 0)
	if err := selectAll(ctx, repo.getExec(exec), &messages, qb); err != nil {
		return nil, trapErr(err, "", "querying ticket messages")
	}
	return messages, nil
}

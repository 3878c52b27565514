package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core/support"
)

type (
	AddMessageRequest struct {
		Content    string `json:"content"`
		IsCustomer bool   `json:"is_customer"`
	}

	ChangeStatusRequest struct {
		Status string `json:"status"`
	}
)

type supportApi struct {
	svc *support.Service
}

func registerSupportAPI(g *echo.Group, deps *Deps) {
	api := supportApi{svc: deps.SupportSvc}

	tg := g.Group("/support-tickets")
	tg.GET("", api.queryTickets)
	tg.POST("", api.createTicket)
	tg.GET("/my_tickets", api.myTickets)
	tdg := tg.Group("/:id", objectMiddleware(byID(api.svc.GetTicket)))
	tdg.GET("", retrieve[support.SupportTicket])
	tdg.PUT("", api.updateTicket)
	tdg.PATCH("", api.updateTicket)
	tdg.DELETE("", api.destroyTicket)
	tdg.GET("/messages", api.ticketMessages)
	tdg.POST("/add_message", api.addMessage)
	tdg.POST("/change_status", api.changeStatus)

	mg := g.Group("/ticket-messages")
	mg.GET("", api.queryMessages)
	mg.POST("", api.createMessage)
	mdg := mg.Group("/:id", objectMiddleware(byID(api.svc.GetMessage)))
	mdg.GET("", retrieve[support.TicketMessage])
	mdg.PUT("", api.updateMessage)
	mdg.PATCH("", api.updateMessage)
	mdg.DELETE("", api.destroyMessage)
}

// Tickets

func ticketFilter(ctx echo.Context) (support.SupportTicketFilter, error) {
	isOverdue, err := queryBool(ctx, "is_overdue")
	if err != nil {
		return support.SupportTicketFilter{}, err
	}
	return support.SupportTicketFilter{
		Search:     querySearch(ctx),
		Status:     ctx.QueryParam("status"),
		Priority:   ctx.QueryParam("priority"),
		Category:   ctx.QueryParam("category"),
		Contact:    ctx.QueryParam("contact"),
		Account:    ctx.QueryParam("account"),
		AssignedTo: ctx.QueryParam("assigned_to"),
		IsOverdue:  isOverdue,
		Tag:        ctx.QueryParam("tag"),
	}, nil
}

func (api *supportApi) queryTickets(ctx echo.Context) error {
	filter, err := ticketFilter(ctx)
	if err != nil {
		return err
	}
	tickets, err := api.svc.QueryTickets(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying tickets")
	}
	return render(ctx, orEmpty(tickets))
}

func (api *supportApi) myTickets(ctx echo.Context) error {
	filter, err := ticketFilter(ctx)
	if err != nil {
		return err
	}
	if filter.AssignedTo, err = contextUserID(ctx); err != nil {
		return err
	}
	tickets, err := api.svc.QueryTickets(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying my tickets")
	}
	return render(ctx, orEmpty(tickets))
}

func (api *supportApi) createTicket(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data support.SupportTicketInput
	if err = bind(ctx, &data, "SupportTicketInput"); err != nil {
		return err
	}
	t, err := api.svc.CreateTicket(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating ticket")
	}
	return renderCreated(ctx, t)
}

func (api *supportApi) updateTicket(ctx echo.Context) error {
	t, err := ctxObject[support.SupportTicket](ctx)
	if err != nil {
		return err
	}
	var data support.SupportTicketInput
	if err = bind(ctx, &data, "SupportTicketInput"); err != nil {
		return err
	}
	if t, err = api.svc.UpdateTicket(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating ticket")
	}
	return render(ctx, t)
}

func (api *supportApi) destroyTicket(ctx echo.Context) error {
	t, err := ctxObject[support.SupportTicket](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTicket(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting ticket")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *supportApi) ticketMessages(ctx echo.Context) error {
	t, err := ctxObject[support.SupportTicket](ctx)
	if err != nil {
		return err
	}
	msgs, err := api.svc.TicketMessages(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "querying ticket messages")
	}
	return render(ctx, orEmpty(msgs))
}

func (api *supportApi) addMessage(ctx echo.Context) error {
	t, err := ctxObject[support.SupportTicket](ctx)
	if err != nil {
		return err
	}
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data AddMessageRequest
	if err = bind(ctx, &data, "AddMessageRequest"); err != nil {
		return err
	}
	m, err := api.svc.AddMessage(ctx.Request().Context(), userID, t, data.Content, data.IsCustomer)
	if err != nil {
		return errors.Wrap(err, "adding ticket message")
	}
	return renderCreated(ctx, m)
}

func (api *supportApi) changeStatus(ctx echo.Context) error {
	t, err := ctxObject[support.SupportTicket](ctx)
	if err != nil {
		return err
	}
	var data ChangeStatusRequest
	if err = bind(ctx, &data, "ChangeStatusRequest"); err != nil {
		return err
	}
	if t, err = api.svc.ChangeStatus(ctx.Request().Context(), t, data.Status); err != nil {
		return errors.Wrap(err, "changing ticket status")
	}
	return render(ctx, t)
}

// Messages

func (api *supportApi) queryMessages(ctx echo.Context) error {
	isCustomer, err := queryBool(ctx, "is_customer")
	if err != nil {
		return err
	}
	filter := support.TicketMessageFilter{
		Ticket:     ctx.QueryParam("ticket"),
		IsCustomer: isCustomer,
		Sender:     ctx.QueryParam("sender"),
	}
	msgs, err := api.svc.QueryMessages(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying ticket messages")
	}
	return render(ctx, orEmpty(msgs))
}

func (api *supportApi) createMessage(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data support.TicketMessageInput
	if err = bind(ctx, &data, "TicketMessageInput"); err != nil {
		return err
	}
	m, err := api.svc.CreateMessage(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating ticket message")
	}
	return renderCreated(ctx, m)
}

func (api *supportApi) updateMessage(ctx echo.Context) error {
	m, err := ctxObject[support.TicketMessage](ctx)
	if err != nil {
		return err
	}
	var data support.TicketMessageInput
	if err = bind(ctx, &data, "TicketMessageInput"); err != nil {
		return err
	}
	if m, err = api.svc.UpdateMessage(ctx.Request().Context(), m, data); err != nil {
		return errors.Wrap(err, "updating ticket message")
	}
	return render(ctx, m)
}

func (api *supportApi) destroyMessage(ctx echo.Context) error {
	m, err := ctxObject[support.TicketMessage](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteMessage(ctx.Request().Context(), m.ID); err != nil {
		return errors.Wrap(err, "deleting ticket message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

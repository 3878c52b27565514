package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core/crm"
)

type accountApi struct {
	svc *crm.Service
}

func registerAccountAPI(g *echo.Group, deps *Deps) {
	api := accountApi{svc: deps.CRMSvc}

	ag := g.Group("/accounts")
	ag.GET("", api.queryAccounts)
	ag.POST("", api.createAccount)
	ag.GET("/my_accounts", api.myAccounts)
	adg := ag.Group("/:id", objectMiddleware(byID(api.svc.GetAccount)))
	adg.GET("", api.retrieveAccount)
	adg.PUT("", api.updateAccount)
	adg.PATCH("", api.updateAccount)
	adg.DELETE("", api.destroyAccount)
	adg.GET("/contacts", api.accountContacts)
	adg.GET("/opportunities", api.accountOpportunities)
	adg.GET("/activities", api.accountActivities)
	adg.GET("/children", api.accountChildren)
	adg.GET("/ancestors", api.accountAncestors)
	adg.GET("/descendants", api.accountDescendants)

	cg := g.Group("/contacts")
	cg.GET("", api.queryContacts)
	cg.POST("", api.createContact)
	cg.GET("/my_contacts", api.myContacts)
	cdg := cg.Group("/:id", objectMiddleware(byID(api.svc.GetContact)))
	cdg.GET("", api.retrieveContact)
	cdg.PUT("", api.updateContact)
	cdg.PATCH("", api.updateContact)
	cdg.DELETE("", api.destroyContact)
	cdg.GET("/opportunities", api.contactOpportunities)
	cdg.GET("/activities", api.contactActivities)
	cdg.GET("/subordinates", api.contactSubordinates)

	og := g.Group("/opportunities")
	og.GET("", api.queryOpportunities)
	og.POST("", api.createOpportunity)
	og.GET("/my_opportunities", api.myOpportunities)
	og.GET("/pipeline", api.pipeline)
	odg := og.Group("/:id", objectMiddleware(byID(api.svc.GetOpportunity)))
	odg.GET("", retrieve[crm.Opportunity])
	odg.PUT("", api.updateOpportunity)
	odg.PATCH("", api.updateOpportunity)
	odg.DELETE("", api.destroyOpportunity)
	odg.GET("/activities", api.opportunityActivities)
}

func detailed(ctx echo.Context) (bool, error) {
	b, err := queryBool(ctx, "detailed")
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

// Accounts

func accountFilter(ctx echo.Context) crm.AccountFilter {
	return crm.AccountFilter{
		Search:      querySearch(ctx),
		AccountType: ctx.QueryParam("account_type"),
		Industry:    ctx.QueryParam("industry"),
		AssignedTo:  ctx.QueryParam("assigned_to"),
		Parent:      ctx.QueryParam("parent"),
		Tag:         ctx.QueryParam("tag"),
	}
}

func (api *accountApi) queryAccounts(ctx echo.Context) error {
	accs, err := api.svc.QueryAccounts(ctx.Request().Context(), accountFilter(ctx), bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	return render(ctx, orEmpty(accs))
}

func (api *accountApi) myAccounts(ctx echo.Context) error {
	filter := accountFilter(ctx)
	var err error
	if filter.AssignedTo, err = contextUserID(ctx); err != nil {
		return err
	}
	accs, err := api.svc.QueryAccounts(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying my accounts")
	}
	return render(ctx, orEmpty(accs))
}

func (api *accountApi) retrieveAccount(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	detail, err := detailed(ctx)
	if err != nil {
		return err
	}
	if !detail {
		return render(ctx, acc)
	}
	d, err := api.svc.GetAccountDetail(ctx.Request().Context(), acc)
	if err != nil {
		return errors.Wrap(err, "getting account detail")
	}
	return render(ctx, d)
}

func (api *accountApi) createAccount(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data crm.AccountInput
	if err = bind(ctx, &data, "AccountInput"); err != nil {
		return err
	}
	acc, err := api.svc.CreateAccount(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	return renderCreated(ctx, acc)
}

func (api *accountApi) updateAccount(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	var data crm.AccountInput
	if err = bind(ctx, &data, "AccountInput"); err != nil {
		return err
	}
	if acc, err = api.svc.UpdateAccount(ctx.Request().Context(), acc, data); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return render(ctx, acc)
}

func (api *accountApi) destroyAccount(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAccount(ctx.Request().Context(), acc.ID); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) accountContacts(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	contacts, err := api.svc.QueryContacts(ctx.Request().Context(), crm.ContactFilter{Account: acc.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying account contacts")
	}
	return render(ctx, orEmpty(contacts))
}

func (api *accountApi) accountOpportunities(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	opps, err := api.svc.QueryOpportunities(ctx.Request().Context(), crm.OpportunityFilter{Account: acc.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying account opportunities")
	}
	return render(ctx, orEmpty(opps))
}

func (api *accountApi) accountActivities(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	acts, err := api.svc.ObjectActivities(ctx.Request().Context(), crm.ContentTypeAccount, acc.ID)
	if err != nil {
		return errors.Wrap(err, "querying account activities")
	}
	return render(ctx, orEmpty(acts))
}

func (api *accountApi) accountChildren(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	accs, err := api.svc.AccountChildren(ctx.Request().Context(), acc.ID)
	if err != nil {
		return errors.Wrap(err, "querying account children")
	}
	return render(ctx, orEmpty(accs))
}

func (api *accountApi) accountAncestors(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	accs, err := api.svc.AccountAncestors(ctx.Request().Context(), acc.ID)
	if err != nil {
		return errors.Wrap(err, "querying account ancestors")
	}
	return render(ctx, orEmpty(accs))
}

func (api *accountApi) accountDescendants(ctx echo.Context) error {
	acc, err := ctxObject[crm.Account](ctx)
	if err != nil {
		return err
	}
	accs, err := api.svc.AccountDescendants(ctx.Request().Context(), acc.ID)
	if err != nil {
		return errors.Wrap(err, "querying account descendants")
	}
	return render(ctx, orEmpty(accs))
}

// Contacts

func contactFilter(ctx echo.Context) crm.ContactFilter {
	return crm.ContactFilter{
		Search:     querySearch(ctx),
		Status:     ctx.QueryParam("status"),
		Account:    ctx.QueryParam("account"),
		AssignedTo: ctx.QueryParam("assigned_to"),
		Parent:     ctx.QueryParam("parent"),
		Tag:        ctx.QueryParam("tag"),
	}
}

func (api *accountApi) queryContacts(ctx echo.Context) error {
	contacts, err := api.svc.QueryContacts(ctx.Request().Context(), contactFilter(ctx), bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying contacts")
	}
	return render(ctx, orEmpty(contacts))
}

func (api *accountApi) myContacts(ctx echo.Context) error {
	filter := contactFilter(ctx)
	var err error
	if filter.AssignedTo, err = contextUserID(ctx); err != nil {
		return err
	}
	contacts, err := api.svc.QueryContacts(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying my contacts")
	}
	return render(ctx, orEmpty(contacts))
}

func (api *accountApi) retrieveContact(ctx echo.Context) error {
	c, err := ctxObject[crm.Contact](ctx)
	if err != nil {
		return err
	}
	detail, err := detailed(ctx)
	if err != nil {
		return err
	}
	if !detail {
		return render(ctx, c)
	}
	d, err := api.svc.GetContactDetail(ctx.Request().Context(), c)
	if err != nil {
		return errors.Wrap(err, "getting contact detail")
	}
	return render(ctx, d)
}

func (api *accountApi) createContact(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data crm.ContactInput
	if err = bind(ctx, &data, "ContactInput"); err != nil {
		return err
	}
	c, err := api.svc.CreateContact(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating contact")
	}
	return renderCreated(ctx, c)
}

func (api *accountApi) updateContact(ctx echo.Context) error {
	c, err := ctxObject[crm.Contact](ctx)
	if err != nil {
		return err
	}
	var data crm.ContactInput
	if err = bind(ctx, &data, "ContactInput"); err != nil {
		return err
	}
	if c, err = api.svc.UpdateContact(ctx.Request().Context(), c, data); err != nil {
		return errors.Wrap(err, "updating contact")
	}
	return render(ctx, c)
}

func (api *accountApi) destroyContact(ctx echo.Context) error {
	c, err := ctxObject[crm.Contact](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteContact(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting contact")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) contactOpportunities(ctx echo.Context) error {
	c, err := ctxObject[crm.Contact](ctx)
	if err != nil {
		return err
	}
	opps, err := api.svc.QueryOpportunities(ctx.Request().Context(), crm.OpportunityFilter{PrimaryContact: c.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying contact opportunities")
	}
	return render(ctx, orEmpty(opps))
}

func (api *accountApi) contactActivities(ctx echo.Context) error {
	c, err := ctxObject[crm.Contact](ctx)
	if err != nil {
		return err
	}
	acts, err := api.svc.ObjectActivities(ctx.Request().Context(), crm.ContentTypeContact, c.ID)
	if err != nil {
		return errors.Wrap(err, "querying contact activities")
	}
	return render(ctx, orEmpty(acts))
}

func (api *accountApi) contactSubordinates(ctx echo.Context) error {
	c, err := ctxObject[crm.Contact](ctx)
	if err != nil {
		return err
	}
	contacts, err := api.svc.ContactSubordinates(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying contact subordinates")
	}
	return render(ctx, orEmpty(contacts))
}

// Opportunities

func opportunityFilter(ctx echo.Context) crm.OpportunityFilter {
	return crm.OpportunityFilter{
		Search:         querySearch(ctx),
		Stage:          ctx.QueryParam("stage"),
		Account:        ctx.QueryParam("account"),
		PrimaryContact: ctx.QueryParam("primary_contact"),
		AssignedTo:     ctx.QueryParam("assigned_to"),
		Tag:            ctx.QueryParam("tag"),
	}
}

func (api *accountApi) queryOpportunities(ctx echo.Context) error {
	opps, err := api.svc.QueryOpportunities(ctx.Request().Context(), opportunityFilter(ctx), bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying opportunities")
	}
	return render(ctx, orEmpty(opps))
}

func (api *accountApi) myOpportunities(ctx echo.Context) error {
	filter := opportunityFilter(ctx)
	var err error
	if filter.AssignedTo, err = contextUserID(ctx); err != nil {
		return err
	}
	opps, err := api.svc.QueryOpportunities(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying my opportunities")
	}
	return render(ctx, orEmpty(opps))
}

func (api *accountApi) pipeline(ctx echo.Context) error {
	stages, err := api.svc.Pipeline(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing pipeline")
	}
	return render(ctx, orEmpty(stages))
}

func (api *accountApi) createOpportunity(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data crm.OpportunityInput
	if err = bind(ctx, &data, "OpportunityInput"); err != nil {
		return err
	}
	o, err := api.svc.CreateOpportunity(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating opportunity")
	}
	return renderCreated(ctx, o)
}

func (api *accountApi) updateOpportunity(ctx echo.Context) error {
	o, err := ctxObject[crm.Opportunity](ctx)
	if err != nil {
		return err
	}
	var data crm.OpportunityInput
	if err = bind(ctx, &data, "OpportunityInput"); err != nil {
		return err
	}
	if o, err = api.svc.UpdateOpportunity(ctx.Request().Context(), o, data); err != nil {
		return errors.Wrap(err, "updating opportunity")
	}
	return render(ctx, o)
}

func (api *accountApi) destroyOpportunity(ctx echo.Context) error {
	o, err := ctxObject[crm.Opportunity](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteOpportunity(ctx.Request().Context(), o.ID); err != nil {
		return errors.Wrap(err, "deleting opportunity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) opportunityActivities(ctx echo.Context) error {
	o, err := ctxObject[crm.Opportunity](ctx)
	if err != nil {
		return err
	}
	acts, err := api.svc.ObjectActivities(ctx.Request().Context(), crm.ContentTypeOpportunity, o.ID)
	if err != nil {
		return errors.Wrap(err, "querying opportunity activities")
	}
	return render(ctx, orEmpty(acts))
}

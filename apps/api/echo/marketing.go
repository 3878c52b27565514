package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/marketing"
)

var (
	errCampaignIDParamRequired = core.NewValidationError(errors.New("campaign_id parameter is required"))
	errHttpCampaignNotFound    = echo.NewHTTPError(http.StatusNotFound, "Campaign not found")
)

type (
	AddRecipientsRequest struct {
		CampaignID string   `json:"campaign_id"`
		ContactIDs []string `json:"contact_ids"`
	}

	TrackRequest struct {
		Event string `json:"event"`
	}
)

type marketingApi struct {
	svc *marketing.Service
}

func registerMarketingAPI(g *echo.Group, deps *Deps) {
	api := marketingApi{svc: deps.MarketingSvc}

	cg := g.Group("/campaigns")
	cg.GET("", api.queryCampaigns)
	cg.POST("", api.createCampaign)
	cg.GET("/my_campaigns", api.myCampaigns)
	cdg := cg.Group("/:id", objectMiddleware(byID(api.svc.GetCampaign)))
	cdg.GET("", retrieve[marketing.Campaign])
	cdg.PUT("", api.updateCampaign)
	cdg.PATCH("", api.updateCampaign)
	cdg.DELETE("", api.destroyCampaign)
	cdg.GET("/emails", api.campaignEmails)
	cdg.GET("/recipients", api.campaignRecipients)
	cdg.POST("/send", api.sendCampaign)

	eg := g.Group("/marketing-emails")
	eg.GET("", api.queryEmails)
	eg.POST("", api.createEmail)
	eg.GET("/by_campaign", api.emailsByCampaign)
	edg := eg.Group("/:id", objectMiddleware(byID(api.svc.GetMarketingEmail)))
	edg.GET("", retrieve[marketing.MarketingEmail])
	edg.PUT("", api.updateEmail)
	edg.PATCH("", api.updateEmail)
	edg.DELETE("", api.destroyEmail)

	rg := g.Group("/campaign-recipients")
	rg.GET("", api.queryRecipients)
	rg.POST("", api.createRecipient)
	rg.POST("/add_contacts", api.addContacts)
	rdg := rg.Group("/:id", objectMiddleware(byID(api.svc.GetRecipient)))
	rdg.GET("", retrieve[marketing.CampaignRecipient])
	rdg.PUT("", api.updateRecipient)
	rdg.PATCH("", api.updateRecipient)
	rdg.DELETE("", api.destroyRecipient)
	rdg.POST("/track", api.track)

	sg := g.Group("/segments")
	sg.GET("", api.querySegments)
	sg.POST("", api.createSegment)
	sdg := sg.Group("/:id", objectMiddleware(byID(api.svc.GetSegment)))
	sdg.GET("", retrieve[marketing.Segment])
	sdg.PUT("", api.updateSegment)
	sdg.PATCH("", api.updateSegment)
	sdg.DELETE("", api.destroySegment)
	sdg.GET("/contacts", api.segmentContacts)
	sdg.POST("/add_contacts", api.addSegmentContacts)
	sdg.POST("/remove_contacts", api.removeSegmentContacts)
	sdg.POST("/refresh", api.refreshSegment)
}

// Campaigns

func campaignFilter(ctx echo.Context) marketing.CampaignFilter {
	return marketing.CampaignFilter{
		Search:     querySearch(ctx),
		Status:     ctx.QueryParam("status"),
		AssignedTo: ctx.QueryParam("assigned_to"),
		Tag:        ctx.QueryParam("tag"),
	}
}

func (api *marketingApi) queryCampaigns(ctx echo.Context) error {
	campaigns, err := api.svc.QueryCampaigns(ctx.Request().Context(), campaignFilter(ctx), bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying campaigns")
	}
	return render(ctx, orEmpty(campaigns))
}

func (api *marketingApi) myCampaigns(ctx echo.Context) error {
	filter := campaignFilter(ctx)
	var err error
	if filter.AssignedTo, err = contextUserID(ctx); err != nil {
		return err
	}
	campaigns, err := api.svc.QueryCampaigns(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying my campaigns")
	}
	return render(ctx, orEmpty(campaigns))
}

func (api *marketingApi) createCampaign(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data marketing.CampaignInput
	if err = bind(ctx, &data, "CampaignInput"); err != nil {
		return err
	}
	c, err := api.svc.CreateCampaign(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating campaign")
	}
	return renderCreated(ctx, c)
}

func (api *marketingApi) updateCampaign(ctx echo.Context) error {
	c, err := ctxObject[marketing.Campaign](ctx)
	if err != nil {
		return err
	}
	var data marketing.CampaignInput
	if err = bind(ctx, &data, "CampaignInput"); err != nil {
		return err
	}
	if c, err = api.svc.UpdateCampaign(ctx.Request().Context(), c, data); err != nil {
		return errors.Wrap(err, "updating campaign")
	}
	return render(ctx, c)
}

func (api *marketingApi) destroyCampaign(ctx echo.Context) error {
	c, err := ctxObject[marketing.Campaign](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCampaign(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting campaign")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *marketingApi) campaignEmails(ctx echo.Context) error {
	c, err := ctxObject[marketing.Campaign](ctx)
	if err != nil {
		return err
	}
	emails, err := api.svc.CampaignEmails(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying campaign emails")
	}
	return render(ctx, orEmpty(emails))
}

func (api *marketingApi) campaignRecipients(ctx echo.Context) error {
	c, err := ctxObject[marketing.Campaign](ctx)
	if err != nil {
		return err
	}
	recipients, err := api.svc.CampaignRecipients(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying campaign recipients")
	}
	return render(ctx, orEmpty(recipients))
}

func (api *marketingApi) sendCampaign(ctx echo.Context) error {
	c, err := ctxObject[marketing.Campaign](ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.SendCampaign(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "sending campaign")
	}
	return render(ctx, res)
}

// Marketing emails

func (api *marketingApi) queryEmails(ctx echo.Context) error {
	filter := marketing.MarketingEmailFilter{
		Search:        querySearch(ctx),
		Campaign:      ctx.QueryParam("campaign"),
		SequenceOrder: ctx.QueryParam("sequence_order"),
	}
	emails, err := api.svc.QueryMarketingEmails(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying marketing emails")
	}
	return render(ctx, orEmpty(emails))
}

func (api *marketingApi) emailsByCampaign(ctx echo.Context) error {
	campaignID := ctx.QueryParam("campaign_id")
	if campaignID == "" {
		return errCampaignIDParamRequired
	}
	emails, err := api.svc.QueryMarketingEmails(ctx.Request().Context(), marketing.MarketingEmailFilter{Campaign: campaignID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying marketing emails by campaign")
	}
	return render(ctx, orEmpty(emails))
}

func (api *marketingApi) createEmail(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data marketing.MarketingEmailInput
	if err = bind(ctx, &data, "MarketingEmailInput"); err != nil {
		return err
	}
	e, err := api.svc.CreateMarketingEmail(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating marketing email")
	}
	return renderCreated(ctx, e)
}

func (api *marketingApi) updateEmail(ctx echo.Context) error {
	e, err := ctxObject[marketing.MarketingEmail](ctx)
	if err != nil {
		return err
	}
	var data marketing.MarketingEmailInput
	if err = bind(ctx, &data, "MarketingEmailInput"); err != nil {
		return err
	}
	if e, err = api.svc.UpdateMarketingEmail(ctx.Request().Context(), e, data); err != nil {
		return errors.Wrap(err, "updating marketing email")
	}
	return render(ctx, e)
}

func (api *marketingApi) destroyEmail(ctx echo.Context) error {
	e, err := ctxObject[marketing.MarketingEmail](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteMarketingEmail(ctx.Request().Context(), e.ID); err != nil {
		return errors.Wrap(err, "deleting marketing email")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Campaign recipients

func (api *marketingApi) queryRecipients(ctx echo.Context) error {
	filter := marketing.CampaignRecipientFilter{
		Search:   querySearch(ctx),
		Campaign: ctx.QueryParam("campaign"),
		Contact:  ctx.QueryParam("contact"),
		Status:   ctx.QueryParam("status"),
	}
	recipients, err := api.svc.QueryRecipients(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying campaign recipients")
	}
	return render(ctx, orEmpty(recipients))
}

func (api *marketingApi) createRecipient(ctx echo.Context) error {
	var data marketing.CampaignRecipientInput
	if err := bind(ctx, &data, "CampaignRecipientInput"); err != nil {
		return err
	}
	r, err := api.svc.CreateRecipient(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating campaign recipient")
	}
	return renderCreated(ctx, r)
}

func (api *marketingApi) updateRecipient(ctx echo.Context) error {
	r, err := ctxObject[marketing.CampaignRecipient](ctx)
	if err != nil {
		return err
	}
	var data marketing.CampaignRecipientInput
	if err = bind(ctx, &data, "CampaignRecipientInput"); err != nil {
		return err
	}
	if r, err = api.svc.UpdateRecipient(ctx.Request().Context(), r, data); err != nil {
		return errors.Wrap(err, "updating campaign recipient")
	}
	return render(ctx, r)
}

func (api *marketingApi) destroyRecipient(ctx echo.Context) error {
	r, err := ctxObject[marketing.CampaignRecipient](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteRecipient(ctx.Request().Context(), r.ID); err != nil {
		return errors.Wrap(err, "deleting campaign recipient")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *marketingApi) addContacts(ctx echo.Context) error {
	var data AddRecipientsRequest
	if err := bind(ctx, &data, "AddRecipientsRequest"); err != nil {
		return err
	}
	res, err := api.svc.AddContacts(ctx.Request().Context(), data.CampaignID, data.ContactIDs)
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpCampaignNotFound
		}
		return errors.Wrap(err, "adding campaign recipients")
	}
	return render(ctx, res)
}

func (api *marketingApi) track(ctx echo.Context) error {
	r, err := ctxObject[marketing.CampaignRecipient](ctx)
	if err != nil {
		return err
	}
	var data TrackRequest
	if err = bind(ctx, &data, "TrackRequest"); err != nil {
		return err
	}
	if r, err = api.svc.TrackEvent(ctx.Request().Context(), r.ID, data.Event); err != nil {
		return errors.Wrap(err, "tracking recipient event")
	}
	return render(ctx, r)
}

// Segments

func (api *marketingApi) querySegments(ctx echo.Context) error {
	isDynamic, err := queryBool(ctx, "is_dynamic")
	if err != nil {
		return err
	}
	filter := marketing.SegmentFilter{
		Search:    querySearch(ctx),
		IsDynamic: isDynamic,
		CreatedBy: ctx.QueryParam("created_by"),
	}
	segments, err := api.svc.QuerySegments(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying segments")
	}
	return render(ctx, orEmpty(segments))
}

func (api *marketingApi) createSegment(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data marketing.SegmentInput
	if err = bind(ctx, &data, "SegmentInput"); err != nil {
		return err
	}
	s, err := api.svc.CreateSegment(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating segment")
	}
	return renderCreated(ctx, s)
}

func (api *marketingApi) updateSegment(ctx echo.Context) error {
	s, err := ctxObject[marketing.Segment](ctx)
	if err != nil {
		return err
	}
	var data marketing.SegmentInput
	if err = bind(ctx, &data, "SegmentInput"); err != nil {
		return err
	}
	if s, err = api.svc.UpdateSegment(ctx.Request().Context(), s, data); err != nil {
		return errors.Wrap(err, "updating segment")
	}
	return render(ctx, s)
}

func (api *marketingApi) destroySegment(ctx echo.Context) error {
	s, err := ctxObject[marketing.Segment](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSegment(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting segment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *marketingApi) segmentContacts(ctx echo.Context) error {
	s, err := ctxObject[marketing.Segment](ctx)
	if err != nil {
		return err
	}
	contacts, err := api.svc.SegmentContacts(ctx.Request().Context(), s, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying segment contacts")
	}
	return render(ctx, orEmpty(contacts))
}

func (api *marketingApi) addSegmentContacts(ctx echo.Context) error {
	s, err := ctxObject[marketing.Segment](ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = bind(ctx, &data, "IDsRequest"); err != nil {
		return err
	}
	res, err := api.svc.AddSegmentContacts(ctx.Request().Context(), s, data.ContactIDs)
	if err != nil {
		return errors.Wrap(err, "adding segment contacts")
	}
	return render(ctx, res)
}

func (api *marketingApi) removeSegmentContacts(ctx echo.Context) error {
	s, err := ctxObject[marketing.Segment](ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = bind(ctx, &data, "IDsRequest"); err != nil {
		return err
	}
	res, err := api.svc.RemoveSegmentContacts(ctx.Request().Context(), s, data.ContactIDs)
	if err != nil {
		return errors.Wrap(err, "removing segment contacts")
	}
	return render(ctx, res)
}

func (api *marketingApi) refreshSegment(ctx echo.Context) error {
	s, err := ctxObject[marketing.Segment](ctx)
	if err != nil {
		return err
	}
	if s, err = api.svc.RefreshSegment(ctx.Request().Context(), s); err != nil {
		return errors.Wrap(err, "refreshing segment")
	}
	return render(ctx, s)
}

package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

var (
	errModelRequired       = core.NewValidationError(errors.New("model parameter is required"))
	errObjectParamsMissing = core.NewValidationError(errors.New("object_id and content_type_id parameters are required"))
)

type crmApi struct {
	svc *crm.Service
}

func registerCRMAPI(g *echo.Group, deps *Deps) {
	api := crmApi{svc: deps.CRMSvc}

	tg := g.Group("/tags")
	tg.GET("", api.queryTags)
	tg.POST("", api.createTag)
	tdg := tg.Group("/:id", objectMiddleware(byIntID(api.svc.GetTag, crm.ErrTagNotFound)))
	tdg.GET("", retrieve[crm.Tag])
	tdg.PUT("", api.updateTag)
	tdg.PATCH("", api.updateTag)
	tdg.DELETE("", api.destroyTag)

	ctg := g.Group("/content-types")
	ctg.GET("", api.queryContentTypes)
	ctg.GET("/crm_models", api.crmModels)
	ctg.GET("/:id", retrieve[crm.ContentType],
		objectMiddleware(byIntID(api.svc.GetContentType, crm.ErrContentTypeNotFound)))

	ag := g.Group("/activities")
	ag.GET("", api.queryActivities)
	ag.POST("", api.createActivity)
	ag.GET("/my_activities", api.myActivities)
	ag.GET("/overdue", api.overdueActivities)
	adg := ag.Group("/:id", objectMiddleware(byID(api.svc.GetActivity)))
	adg.GET("", retrieve[crm.Activity])
	adg.PUT("", api.updateActivity)
	adg.PATCH("", api.updateActivity)
	adg.DELETE("", api.destroyActivity)

	fg := g.Group("/custom-fields")
	fg.GET("", api.queryCustomFields)
	fg.POST("", api.createCustomField)
	fg.GET("/for_model", api.customFieldsForModel)
	fdg := fg.Group("/:id", objectMiddleware(byID(api.svc.GetCustomField)))
	fdg.GET("", retrieve[crm.CustomField])
	fdg.PUT("", api.updateCustomField)
	fdg.PATCH("", api.updateCustomField)
	fdg.DELETE("", api.destroyCustomField)

	vg := g.Group("/custom-field-values")
	vg.GET("", api.queryCustomFieldValues)
	vg.POST("", api.createCustomFieldValue)
	vg.GET("/for_object", api.customFieldValuesForObject)
	vdg := vg.Group("/:id", objectMiddleware(byID(api.svc.GetCustomFieldValue)))
	vdg.GET("", retrieve[crm.CustomFieldValue])
	vdg.PUT("", api.updateCustomFieldValue)
	vdg.PATCH("", api.updateCustomFieldValue)
	vdg.DELETE("", api.destroyCustomFieldValue)

	sg := g.Group("/social-profiles")
	sg.GET("", api.querySocialProfiles)
	sg.POST("", api.createSocialProfile)
	sdg := sg.Group("/:id", objectMiddleware(byID(api.svc.GetSocialProfile)))
	sdg.GET("", retrieve[crm.SocialProfile])
	sdg.PUT("", api.updateSocialProfile)
	sdg.PATCH("", api.updateSocialProfile)
	sdg.DELETE("", api.destroySocialProfile)
}

// Tags

func (api *crmApi) queryTags(ctx echo.Context) error {
	tags, err := api.svc.QueryTags(ctx.Request().Context(), crm.TagFilter{Search: querySearch(ctx)}, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying tags")
	}
	return render(ctx, orEmpty(tags))
}

func (api *crmApi) createTag(ctx echo.Context) error {
	var data crm.TagInput
	if err := bind(ctx, &data, "TagInput"); err != nil {
		return err
	}
	t, err := api.svc.CreateTag(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating tag")
	}
	return renderCreated(ctx, t)
}

func (api *crmApi) updateTag(ctx echo.Context) error {
	t, err := ctxObject[crm.Tag](ctx)
	if err != nil {
		return err
	}
	var data crm.TagInput
	if err = bind(ctx, &data, "TagInput"); err != nil {
		return err
	}
	if t, err = api.svc.UpdateTag(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating tag")
	}
	return render(ctx, t)
}

func (api *crmApi) destroyTag(ctx echo.Context) error {
	t, err := ctxObject[crm.Tag](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTag(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting tag")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Content types

func (api *crmApi) queryContentTypes(ctx echo.Context) error {
	filter := crm.ContentTypeFilter{
		Search:   querySearch(ctx),
		AppLabel: ctx.QueryParam("app_label"),
		Model:    ctx.QueryParam("model"),
	}
	cts, err := api.svc.QueryContentTypes(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying content types")
	}
	return render(ctx, orEmpty(cts))
}

func (api *crmApi) crmModels(ctx echo.Context) error {
	cts, err := api.svc.QueryContentTypes(ctx.Request().Context(), crm.ContentTypeFilter{AppLabel: crm.AppLabel})
	if err != nil {
		return errors.Wrap(err, "querying crm content types")
	}
	return render(ctx, orEmpty(cts))
}

// Activities

func activityFilter(ctx echo.Context) (crm.ActivityFilter, error) {
	isCompleted, err := queryBool(ctx, "is_completed")
	if err != nil {
		return crm.ActivityFilter{}, err
	}
	return crm.ActivityFilter{
		Search:       querySearch(ctx),
		ActivityType: ctx.QueryParam("activity_type"),
		IsCompleted:  isCompleted,
		CreatedBy:    ctx.QueryParam("created_by"),
		AssignedTo:   ctx.QueryParam("assigned_to"),
		ContentType:  ctx.QueryParam("content_type"),
		ObjectID:     ctx.QueryParam("object_id"),
	}, nil
}

func (api *crmApi) queryActivities(ctx echo.Context) error {
	filter, err := activityFilter(ctx)
	if err != nil {
		return err
	}
	acts, err := api.svc.QueryActivities(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return render(ctx, orEmpty(acts))
}

func (api *crmApi) myActivities(ctx echo.Context) error {
	filter, err := activityFilter(ctx)
	if err != nil {
		return err
	}
	if filter.AssignedTo, err = contextUserID(ctx); err != nil {
		return err
	}
	acts, err := api.svc.QueryActivities(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying my activities")
	}
	return render(ctx, orEmpty(acts))
}

func (api *crmApi) overdueActivities(ctx echo.Context) error {
	filter, err := activityFilter(ctx)
	if err != nil {
		return err
	}
	acts, err := api.svc.OverdueActivities(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying overdue activities")
	}
	return render(ctx, orEmpty(acts))
}

func (api *crmApi) createActivity(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data crm.ActivityInput
	if err = bind(ctx, &data, "ActivityInput"); err != nil {
		return err
	}
	a, err := api.svc.CreateActivity(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return renderCreated(ctx, a)
}

func (api *crmApi) updateActivity(ctx echo.Context) error {
	a, err := ctxObject[crm.Activity](ctx)
	if err != nil {
		return err
	}
	var data crm.ActivityInput
	if err = bind(ctx, &data, "ActivityInput"); err != nil {
		return err
	}
	if a, err = api.svc.UpdateActivity(ctx.Request().Context(), a, data); err != nil {
		return errors.Wrap(err, "updating activity")
	}
	return render(ctx, a)
}

func (api *crmApi) destroyActivity(ctx echo.Context) error {
	a, err := ctxObject[crm.Activity](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteActivity(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Custom fields

func (api *crmApi) queryCustomFields(ctx echo.Context) error {
	isRequired, err := queryBool(ctx, "is_required")
	if err != nil {
		return err
	}
	filter := crm.CustomFieldFilter{
		Search:      querySearch(ctx),
		FieldType:   ctx.QueryParam("field_type"),
		IsRequired:  isRequired,
		ContentType: ctx.QueryParam("content_type"),
	}
	fields, err := api.svc.QueryCustomFields(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying custom fields")
	}
	return render(ctx, orEmpty(fields))
}

func (api *crmApi) customFieldsForModel(ctx echo.Context) error {
	model := ctx.QueryParam("model")
	if model == "" {
		return errModelRequired
	}
	appLabel := ctx.QueryParam("app_label")
	if appLabel == "" {
		appLabel = crm.AppLabel
	}

	fields, err := api.svc.CustomFieldsForModel(ctx.Request().Context(), appLabel, model)
	if err != nil {
		if core.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Model %s not found in app %s", model, appLabel))
		}
		return errors.Wrap(err, "querying custom fields for model")
	}
	return render(ctx, orEmpty(fields))
}

func (api *crmApi) createCustomField(ctx echo.Context) error {
	var data crm.CustomFieldInput
	if err := bind(ctx, &data, "CustomFieldInput"); err != nil {
		return err
	}
	cf, err := api.svc.CreateCustomField(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating custom field")
	}
	return renderCreated(ctx, cf)
}

func (api *crmApi) updateCustomField(ctx echo.Context) error {
	cf, err := ctxObject[crm.CustomField](ctx)
	if err != nil {
		return err
	}
	var data crm.CustomFieldInput
	if err = bind(ctx, &data, "CustomFieldInput"); err != nil {
		return err
	}
	if cf, err = api.svc.UpdateCustomField(ctx.Request().Context(), cf, data); err != nil {
		return errors.Wrap(err, "updating custom field")
	}
	return render(ctx, cf)
}

func (api *crmApi) destroyCustomField(ctx echo.Context) error {
	cf, err := ctxObject[crm.CustomField](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCustomField(ctx.Request().Context(), cf.ID); err != nil {
		return errors.Wrap(err, "deleting custom field")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Custom field values

func (api *crmApi) queryCustomFieldValues(ctx echo.Context) error {
	filter := crm.CustomFieldValueFilter{
		Field:       ctx.QueryParam("field"),
		ContentType: ctx.QueryParam("content_type"),
	}
	vals, err := api.svc.QueryCustomFieldValues(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying custom field values")
	}
	return render(ctx, orEmpty(vals))
}

func (api *crmApi) customFieldValuesForObject(ctx echo.Context) error {
	objectID := ctx.QueryParam("object_id")
	contentType := ctx.QueryParam("content_type_id")
	if objectID == "" || contentType == "" {
		return errObjectParamsMissing
	}
	if _, err := strconv.Atoi(contentType); err != nil {
		return core.NewFieldError("content_type_id", "enter a whole number")
	}

	filter := crm.CustomFieldValueFilter{ContentType: contentType, ObjectID: objectID}
	vals, err := api.svc.QueryCustomFieldValues(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying custom field values for object")
	}
	return render(ctx, orEmpty(vals))
}

func (api *crmApi) createCustomFieldValue(ctx echo.Context) error {
	var data crm.CustomFieldValueInput
	if err := bind(ctx, &data, "CustomFieldValueInput"); err != nil {
		return err
	}
	v, err := api.svc.CreateCustomFieldValue(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating custom field value")
	}
	return renderCreated(ctx, v)
}

func (api *crmApi) updateCustomFieldValue(ctx echo.Context) error {
	v, err := ctxObject[crm.CustomFieldValue](ctx)
	if err != nil {
		return err
	}
	var data crm.CustomFieldValueInput
	if err = bind(ctx, &data, "CustomFieldValueInput"); err != nil {
		return err
	}
	if v, err = api.svc.UpdateCustomFieldValue(ctx.Request().Context(), v, data); err != nil {
		return errors.Wrap(err, "updating custom field value")
	}
	return render(ctx, v)
}

func (api *crmApi) destroyCustomFieldValue(ctx echo.Context) error {
	v, err := ctxObject[crm.CustomFieldValue](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCustomFieldValue(ctx.Request().Context(), v.ID); err != nil {
		return errors.Wrap(err, "deleting custom field value")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Social profiles

func (api *crmApi) querySocialProfiles(ctx echo.Context) error {
	filter := crm.SocialProfileFilter{
		Search:      querySearch(ctx),
		Platform:    ctx.QueryParam("platform"),
		ContentType: ctx.QueryParam("content_type"),
		ObjectID:    ctx.QueryParam("object_id"),
	}
	profiles, err := api.svc.QuerySocialProfiles(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying social profiles")
	}
	return render(ctx, orEmpty(profiles))
}

func (api *crmApi) createSocialProfile(ctx echo.Context) error {
	var data crm.SocialProfileInput
	if err := bind(ctx, &data, "SocialProfileInput"); err != nil {
		return err
	}
	sp, err := api.svc.CreateSocialProfile(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating social profile")
	}
	return renderCreated(ctx, sp)
}

func (api *crmApi) updateSocialProfile(ctx echo.Context) error {
	sp, err := ctxObject[crm.SocialProfile](ctx)
	if err != nil {
		return err
	}
	var data crm.SocialProfileInput
	if err = bind(ctx, &data, "SocialProfileInput"); err != nil {
		return err
	}
	if sp, err = api.svc.UpdateSocialProfile(ctx.Request().Context(), sp, data); err != nil {
		return errors.Wrap(err, "updating social profile")
	}
	return render(ctx, sp)
}

func (api *crmApi) destroySocialProfile(ctx echo.Context) error {
	sp, err := ctxObject[crm.SocialProfile](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSocialProfile(ctx.Request().Context(), sp.ID); err != nil {
		return errors.Wrap(err, "deleting social profile")
	}
	return ctx.NoContent(http.StatusNoContent)
}

package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core/analytics"
)

type analyticsApi struct {
	svc *analytics.Service
}

// byActor adapts a lookup that checks the visibility of the object for the current user.
func byActor[T any](get func(context.Context, analytics.Actor, string) (T, error)) getter[T] {
	return func(ctx echo.Context, id string) (T, error) {
		actor, err := contextActor(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		return get(ctx.Request().Context(), actor, id)
	}
}

func registerAnalyticsAPI(g *echo.Group, deps *Deps) {
	api := analyticsApi{svc: deps.AnalyticsSvc}

	rg := g.Group("/reports")
	rg.GET("", api.queryReports)
	rg.POST("", api.createReport)
	rdg := rg.Group("/:id", objectMiddleware(byActor(api.svc.GetReport)))
	rdg.GET("", retrieve[analytics.Report])
	rdg.PUT("", api.updateReport)
	rdg.PATCH("", api.updateReport)
	rdg.DELETE("", api.destroyReport)
	rdg.POST("/run_report", api.runReport)
	rdg.POST("/share", api.shareReport)

	dg := g.Group("/dashboards")
	dg.GET("", api.queryDashboards)
	dg.POST("", api.createDashboard)
	ddg := dg.Group("/:id", objectMiddleware(byActor(api.svc.GetDashboard)))
	ddg.GET("", retrieve[analytics.Dashboard])
	ddg.PUT("", api.updateDashboard)
	ddg.PATCH("", api.updateDashboard)
	ddg.DELETE("", api.destroyDashboard)
	ddg.POST("/share", api.shareDashboard)

	ig := g.Group("/dashboard-items")
	ig.GET("", api.queryItems)
	ig.POST("", api.createItem)
	idg := ig.Group("/:id", objectMiddleware(byActor(api.svc.GetDashboardItem)))
	idg.GET("", retrieve[analytics.DashboardItem])
	idg.PUT("", api.updateItem)
	idg.PATCH("", api.updateItem)
	idg.DELETE("", api.destroyItem)
}

// Reports

func (api *analyticsApi) queryReports(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	isPublic, err := queryBool(ctx, "is_public")
	if err != nil {
		return err
	}
	scheduled, err := queryBool(ctx, "schedule_enabled")
	if err != nil {
		return err
	}
	filter := analytics.ReportFilter{
		Search:          querySearch(ctx),
		ReportType:      ctx.QueryParam("report_type"),
		CreatedBy:       ctx.QueryParam("created_by"),
		IsPublic:        isPublic,
		ScheduleEnabled: scheduled,
	}
	reports, err := api.svc.QueryReports(ctx.Request().Context(), actor, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	return render(ctx, orEmpty(reports))
}

func (api *analyticsApi) createReport(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data analytics.ReportInput
	if err = bind(ctx, &data, "ReportInput"); err != nil {
		return err
	}
	r, err := api.svc.CreateReport(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	return renderCreated(ctx, r)
}

func (api *analyticsApi) updateReport(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	r, err := ctxObject[analytics.Report](ctx)
	if err != nil {
		return err
	}
	var data analytics.ReportInput
	if err = bind(ctx, &data, "ReportInput"); err != nil {
		return err
	}
	if r, err = api.svc.UpdateReport(ctx.Request().Context(), actor, r, data); err != nil {
		return errors.Wrap(err, "updating report")
	}
	return render(ctx, r)
}

func (api *analyticsApi) destroyReport(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	r, err := ctxObject[analytics.Report](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteReport(ctx.Request().Context(), actor, r); err != nil {
		return errors.Wrap(err, "deleting report")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *analyticsApi) runReport(ctx echo.Context) error {
	r, err := ctxObject[analytics.Report](ctx)
	if err != nil {
		return err
	}
	refresh, err := queryBool(ctx, "refresh")
	if err != nil {
		return err
	}
	run, err := api.svc.RunReport(ctx.Request().Context(), r, refresh != nil && *refresh)
	if err != nil {
		return errors.Wrap(err, "running report")
	}
	return render(ctx, run)
}

func (api *analyticsApi) shareReport(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	r, err := ctxObject[analytics.Report](ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = bind(ctx, &data, "IDsRequest"); err != nil {
		return err
	}
	res, err := api.svc.ShareReport(ctx.Request().Context(), actor, r, data.UserIDs)
	if err != nil {
		return errors.Wrap(err, "sharing report")
	}
	return render(ctx, res)
}

// Dashboards

func (api *analyticsApi) queryDashboards(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	isPublic, err := queryBool(ctx, "is_public")
	if err != nil {
		return err
	}
	filter := analytics.DashboardFilter{
		Search:    querySearch(ctx),
		CreatedBy: ctx.QueryParam("created_by"),
		IsPublic:  isPublic,
	}
	dashboards, err := api.svc.QueryDashboards(ctx.Request().Context(), actor, filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying dashboards")
	}
	return render(ctx, orEmpty(dashboards))
}

func (api *analyticsApi) createDashboard(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data analytics.DashboardInput
	if err = bind(ctx, &data, "DashboardInput"); err != nil {
		return err
	}
	d, err := api.svc.CreateDashboard(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating dashboard")
	}
	return renderCreated(ctx, d)
}

func (api *analyticsApi) updateDashboard(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	d, err := ctxObject[analytics.Dashboard](ctx)
	if err != nil {
		return err
	}
	var data analytics.DashboardInput
	if err = bind(ctx, &data, "DashboardInput"); err != nil {
		return err
	}
	if d, err = api.svc.UpdateDashboard(ctx.Request().Context(), actor, d, data); err != nil {
		return errors.Wrap(err, "updating dashboard")
	}
	return render(ctx, d)
}

func (api *analyticsApi) destroyDashboard(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	d, err := ctxObject[analytics.Dashboard](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteDashboard(ctx.Request().Context(), actor, d); err != nil {
		return errors.Wrap(err, "deleting dashboard")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *analyticsApi) shareDashboard(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	d, err := ctxObject[analytics.Dashboard](ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = bind(ctx, &data, "IDsRequest"); err != nil {
		return err
	}
	res, err := api.svc.ShareDashboard(ctx.Request().Context(), actor, d, data.UserIDs)
	if err != nil {
		return errors.Wrap(err, "sharing dashboard")
	}
	return render(ctx, res)
}

// Dashboard items

func (api *analyticsApi) queryItems(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	filter := analytics.DashboardItemFilter{
		Dashboard: ctx.QueryParam("dashboard"),
		Report:    ctx.QueryParam("report"),
	}
	items, err := api.svc.QueryDashboardItems(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying dashboard items")
	}
	return render(ctx, orEmpty(items))
}

func (api *analyticsApi) createItem(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data analytics.DashboardItemInput
	if err = bind(ctx, &data, "DashboardItemInput"); err != nil {
		return err
	}
	it, err := api.svc.CreateDashboardItem(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating dashboard item")
	}
	return renderCreated(ctx, it)
}

func (api *analyticsApi) updateItem(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	it, err := ctxObject[analytics.DashboardItem](ctx)
	if err != nil {
		return err
	}
	var data analytics.DashboardItemInput
	if err = bind(ctx, &data, "DashboardItemInput"); err != nil {
		return err
	}
	if it, err = api.svc.UpdateDashboardItem(ctx.Request().Context(), actor, it, data); err != nil {
		return errors.Wrap(err, "updating dashboard item")
	}
	return render(ctx, it)
}

func (api *analyticsApi) destroyItem(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	it, err := ctxObject[analytics.DashboardItem](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteDashboardItem(ctx.Request().Context(), actor, it); err != nil {
		return errors.Wrap(err, "deleting dashboard item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

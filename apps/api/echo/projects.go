package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core/project"
)

type projectApi struct {
	svc *project.Service
}

func registerProjectAPI(g *echo.Group, deps *Deps) {
	api := projectApi{svc: deps.ProjectSvc}

	pg := g.Group("/projects")
	pg.GET("", api.queryProjects)
	pg.POST("", api.createProject)
	pdg := pg.Group("/:id", objectMiddleware(byID(api.svc.GetProject)))
	pdg.GET("", retrieve[project.Project])
	pdg.PUT("", api.updateProject)
	pdg.PATCH("", api.updateProject)
	pdg.DELETE("", api.destroyProject)
	pdg.GET("/tasks", api.projectTasks)
	pdg.GET("/allocations", api.projectAllocations)

	eg := g.Group("/equipment")
	eg.GET("", api.queryEquipment)
	eg.POST("", api.createEquipment)
	edg := eg.Group("/:id", objectMiddleware(byID(api.svc.GetEquipment)))
	edg.GET("", retrieve[project.Equipment])
	edg.PUT("", api.updateEquipment)
	edg.PATCH("", api.updateEquipment)
	edg.DELETE("", api.destroyEquipment)

	cg := g.Group("/crew")
	cg.GET("", api.queryCrew)
	cg.POST("", api.createCrew)
	cdg := cg.Group("/:id", objectMiddleware(byID(api.svc.GetCrew)))
	cdg.GET("", retrieve[project.Crew])
	cdg.PUT("", api.updateCrew)
	cdg.PATCH("", api.updateCrew)
	cdg.DELETE("", api.destroyCrew)

	tg := g.Group("/transportation")
	tg.GET("", api.queryTransportation)
	tg.POST("", api.createTransportation)
	tdg := tg.Group("/:id", objectMiddleware(byID(api.svc.GetTransportation)))
	tdg.GET("", retrieve[project.Transportation])
	tdg.PUT("", api.updateTransportation)
	tdg.PATCH("", api.updateTransportation)
	tdg.DELETE("", api.destroyTransportation)

	ag := g.Group("/allocations")
	ag.GET("", api.queryAllocations)
	ag.POST("", api.createAllocation)
	adg := ag.Group("/:id", objectMiddleware(byID(api.svc.GetAllocation)))
	adg.GET("", retrieve[project.Allocation])
	adg.PUT("", api.updateAllocation)
	adg.PATCH("", api.updateAllocation)
	adg.DELETE("", api.destroyAllocation)

	kg := g.Group("/tasks")
	kg.GET("", api.queryTasks)
	kg.POST("", api.createTask)
	kdg := kg.Group("/:id", objectMiddleware(byID(api.svc.GetTask)))
	kdg.GET("", retrieve[project.Task])
	kdg.PUT("", api.updateTask)
	kdg.PATCH("", api.updateTask)
	kdg.DELETE("", api.destroyTask)
	kdg.GET("/comments", api.taskComments)

	mg := g.Group("/comments")
	mg.GET("", api.queryComments)
	mg.POST("", api.createComment)
	mdg := mg.Group("/:id", objectMiddleware(byID(api.svc.GetComment)))
	mdg.GET("", retrieve[project.Comment])
	mdg.PUT("", api.updateComment)
	mdg.PATCH("", api.updateComment)
	mdg.DELETE("", api.destroyComment)
}

// Projects

func (api *projectApi) queryProjects(ctx echo.Context) error {
	filter := project.ProjectFilter{Search: querySearch(ctx), Status: ctx.QueryParam("status")}
	projects, err := api.svc.QueryProjects(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return render(ctx, orEmpty(projects))
}

func (api *projectApi) createProject(ctx echo.Context) error {
	var data project.ProjectInput
	if err := bind(ctx, &data, "ProjectInput"); err != nil {
		return err
	}
	p, err := api.svc.CreateProject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return renderCreated(ctx, p)
}

func (api *projectApi) updateProject(ctx echo.Context) error {
	p, err := ctxObject[project.Project](ctx)
	if err != nil {
		return err
	}
	var data project.ProjectInput
	if err = bind(ctx, &data, "ProjectInput"); err != nil {
		return err
	}
	if p, err = api.svc.UpdateProject(ctx.Request().Context(), p, data); err != nil {
		return errors.Wrap(err, "updating project")
	}
	return render(ctx, p)
}

func (api *projectApi) destroyProject(ctx echo.Context) error {
	p, err := ctxObject[project.Project](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteProject(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) projectTasks(ctx echo.Context) error {
	p, err := ctxObject[project.Project](ctx)
	if err != nil {
		return err
	}
	tasks, err := api.svc.ProjectTasks(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "querying project tasks")
	}
	return render(ctx, orEmpty(tasks))
}

func (api *projectApi) projectAllocations(ctx echo.Context) error {
	p, err := ctxObject[project.Project](ctx)
	if err != nil {
		return err
	}
	allocs, err := api.svc.ProjectAllocations(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "querying project allocations")
	}
	return render(ctx, orEmpty(allocs))
}

// Equipment

func (api *projectApi) queryEquipment(ctx echo.Context) error {
	filter := project.EquipmentFilter{Search: querySearch(ctx), Category: ctx.QueryParam("category")}
	equipment, err := api.svc.QueryEquipment(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying equipment")
	}
	return render(ctx, orEmpty(equipment))
}

func (api *projectApi) createEquipment(ctx echo.Context) error {
	var data project.EquipmentInput
	if err := bind(ctx, &data, "EquipmentInput"); err != nil {
		return err
	}
	e, err := api.svc.CreateEquipment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating equipment")
	}
	return renderCreated(ctx, e)
}

func (api *projectApi) updateEquipment(ctx echo.Context) error {
	e, err := ctxObject[project.Equipment](ctx)
	if err != nil {
		return err
	}
	var data project.EquipmentInput
	if err = bind(ctx, &data, "EquipmentInput"); err != nil {
		return err
	}
	if e, err = api.svc.UpdateEquipment(ctx.Request().Context(), e, data); err != nil {
		return errors.Wrap(err, "updating equipment")
	}
	return render(ctx, e)
}

func (api *projectApi) destroyEquipment(ctx echo.Context) error {
	e, err := ctxObject[project.Equipment](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteEquipment(ctx.Request().Context(), e.ID); err != nil {
		return errors.Wrap(err, "deleting equipment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Crew

func (api *projectApi) queryCrew(ctx echo.Context) error {
	filter := project.CrewFilter{Search: querySearch(ctx), Role: ctx.QueryParam("role")}
	crew, err := api.svc.QueryCrew(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying crew")
	}
	return render(ctx, orEmpty(crew))
}

func (api *projectApi) createCrew(ctx echo.Context) error {
	var data project.CrewInput
	if err := bind(ctx, &data, "CrewInput"); err != nil {
		return err
	}
	c, err := api.svc.CreateCrew(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating crew")
	}
	return renderCreated(ctx, c)
}

func (api *projectApi) updateCrew(ctx echo.Context) error {
	c, err := ctxObject[project.Crew](ctx)
	if err != nil {
		return err
	}
	var data project.CrewInput
	if err = bind(ctx, &data, "CrewInput"); err != nil {
		return err
	}
	if c, err = api.svc.UpdateCrew(ctx.Request().Context(), c, data); err != nil {
		return errors.Wrap(err, "updating crew")
	}
	return render(ctx, c)
}

func (api *projectApi) destroyCrew(ctx echo.Context) error {
	c, err := ctxObject[project.Crew](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCrew(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting crew")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Transportation

func (api *projectApi) queryTransportation(ctx echo.Context) error {
	filter := project.TransportationFilter{Search: querySearch(ctx), VehicleType: ctx.QueryParam("vehicle_type")}
	vehicles, err := api.svc.QueryTransportation(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying transportation")
	}
	return render(ctx, orEmpty(vehicles))
}

func (api *projectApi) createTransportation(ctx echo.Context) error {
	var data project.TransportationInput
	if err := bind(ctx, &data, "TransportationInput"); err != nil {
		return err
	}
	t, err := api.svc.CreateTransportation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating transportation")
	}
	return renderCreated(ctx, t)
}

func (api *projectApi) updateTransportation(ctx echo.Context) error {
	t, err := ctxObject[project.Transportation](ctx)
	if err != nil {
		return err
	}
	var data project.TransportationInput
	if err = bind(ctx, &data, "TransportationInput"); err != nil {
		return err
	}
	if t, err = api.svc.UpdateTransportation(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating transportation")
	}
	return render(ctx, t)
}

func (api *projectApi) destroyTransportation(ctx echo.Context) error {
	t, err := ctxObject[project.Transportation](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTransportation(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting transportation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Allocations

func (api *projectApi) queryAllocations(ctx echo.Context) error {
	filter := project.AllocationFilter{Project: ctx.QueryParam("project")}
	for _, kind := range []project.ResourceKind{project.KindEquipment, project.KindCrew, project.KindTransportation} {
		if id := ctx.QueryParam(string(kind)); id != "" {
			filter.ResourceKind, filter.ResourceID = kind, id
		}
	}
	allocs, err := api.svc.QueryAllocations(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying allocations")
	}
	return render(ctx, orEmpty(allocs))
}

func (api *projectApi) createAllocation(ctx echo.Context) error {
	var data project.AllocationInput
	if err := bind(ctx, &data, "AllocationInput"); err != nil {
		return err
	}
	a, err := api.svc.CreateAllocation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating allocation")
	}
	return renderCreated(ctx, a)
}

func (api *projectApi) updateAllocation(ctx echo.Context) error {
	a, err := ctxObject[project.Allocation](ctx)
	if err != nil {
		return err
	}
	var data project.AllocationInput
	if err = bind(ctx, &data, "AllocationInput"); err != nil {
		return err
	}
	if a, err = api.svc.UpdateAllocation(ctx.Request().Context(), a, data); err != nil {
		return errors.Wrap(err, "updating allocation")
	}
	return render(ctx, a)
}

func (api *projectApi) destroyAllocation(ctx echo.Context) error {
	a, err := ctxObject[project.Allocation](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteAllocation(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting allocation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Tasks

func (api *projectApi) queryTasks(ctx echo.Context) error {
	filter := project.TaskFilter{
		Search:   querySearch(ctx),
		Project:  ctx.QueryParam("project"),
		Assignee: ctx.QueryParam("assignee"),
		Status:   ctx.QueryParam("status"),
		Priority: ctx.QueryParam("priority"),
	}
	tasks, err := api.svc.QueryTasks(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return render(ctx, orEmpty(tasks))
}

func (api *projectApi) createTask(ctx echo.Context) error {
	var data project.TaskInput
	if err := bind(ctx, &data, "TaskInput"); err != nil {
		return err
	}
	t, err := api.svc.CreateTask(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return renderCreated(ctx, t)
}

func (api *projectApi) updateTask(ctx echo.Context) error {
	t, err := ctxObject[project.Task](ctx)
	if err != nil {
		return err
	}
	var data project.TaskInput
	if err = bind(ctx, &data, "TaskInput"); err != nil {
		return err
	}
	if t, err = api.svc.UpdateTask(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating task")
	}
	return render(ctx, t)
}

func (api *projectApi) destroyTask(ctx echo.Context) error {
	t, err := ctxObject[project.Task](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTask(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) taskComments(ctx echo.Context) error {
	t, err := ctxObject[project.Task](ctx)
	if err != nil {
		return err
	}
	comments, err := api.svc.TaskComments(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "querying task comments")
	}
	return render(ctx, orEmpty(comments))
}

// Comments

func (api *projectApi) queryComments(ctx echo.Context) error {
	filter := project.CommentFilter{Task: ctx.QueryParam("task"), Author: ctx.QueryParam("author")}
	comments, err := api.svc.QueryComments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	return render(ctx, orEmpty(comments))
}

func (api *projectApi) createComment(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	var data project.CommentInput
	if err = bind(ctx, &data, "CommentInput"); err != nil {
		return err
	}
	c, err := api.svc.CreateComment(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating comment")
	}
	return renderCreated(ctx, c)
}

func (api *projectApi) updateComment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	c, err := ctxObject[project.Comment](ctx)
	if err != nil {
		return err
	}
	var data project.CommentInput
	if err = bind(ctx, &data, "CommentInput"); err != nil {
		return err
	}
	if c, err = api.svc.UpdateComment(ctx.Request().Context(), claims.Subject, claims.IsAdmin, c, data); err != nil {
		return errors.Wrap(err, "updating comment")
	}
	return render(ctx, c)
}

func (api *projectApi) destroyComment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	c, err := ctxObject[project.Comment](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteComment(ctx.Request().Context(), claims.Subject, claims.IsAdmin, c); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

package sqlxrepos

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/project"
)

var (
	projectCols     = []string{"id", "name", "description", "start_date", "end_date", "status", "created_at", "updated_at"}
	projectOrdering = map[string]string{
		"name":       "p.name",
		"start_date": "p.start_date",
		"end_date":   "p.end_date",
		"created_at": "p.created_at",
	}

	resourceCols       = []string{"id", "name", "type", "description", "created_at", "updated_at"}
	equipmentCols      = append(append([]string{}, resourceCols...), "model_number", "category")
	crewCols           = append(append([]string{}, resourceCols...), "role", "skills")
	transportationCols = append(append([]string{}, resourceCols...), "vehicle_type", "capacity")
	resourceOrdering   = map[string]string{
		"name":       "r.name",
		"created_at": "r.created_at",
	}

	allocationCols = []string{
		"id", "project_id", "equipment_id", "crew_id", "transportation_id", "allocation_start", "allocation_end",
		"created_at", "updated_at",
	}

	taskCols     = []string{"id", "project_id", "title", "description", "assignee_id", "status", "priority", "created_at", "updated_at"}
	taskOrdering = map[string]string{
		"created_at": "t.created_at",
		"priority":   rank("t.priority", project.TaskPriorities),
		"status":     rank("t.status", project.TaskStatuses),
	}

	commentCols = []string{"id", "task_id", "author_id", "content", "created_at", "updated_at"}
)

// rank orders a choice column by the position of its value in choices.
func rank(col string, choices core.Choices) string {
	expr := "CASE " + col
	for i, c := range choices {
		expr += fmt.Sprintf(" WHEN '%s' THEN %d", c.Value, i)
	}
	return expr + fmt.Sprintf(" ELSE %d END", len(choices))
}

// resourceTables whitelists the tables LockResource may touch.
var resourceTables = map[project.ResourceKind]string{
	project.KindEquipment:      "equipment",
	project.KindCrew:           "crew",
	project.KindTransportation: "transportation",
}

type projectRepository struct {
	repository
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(exec core.DBExecutor) *projectRepository {
	return &projectRepository{repository{exec: exec}}
}

// Projects

func (repo projectRepository) CreateProject(ctx context.Context, p project.Project, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "project", projectCols, p), "project", "inserting project")
}

func (repo projectRepository) UpdateProject(ctx context.Context, p project.Project, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "project", projectCols[1:], p)
	if err != nil {
		return trapErr(err, "project", "updating project")
	}
	return notFound(n, "project")
}

func (repo projectRepository) DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "project", id)
	if err != nil {
		return trapErr(err, "project", "deleting project")
	}
	return notFound(n, "project")
}

func (repo projectRepository) GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (project.Project, error) {
	var p project.Project
	err := getOne(ctx, repo.getExec(exec), &p, psql.Select("p.*").From("project p").Where(sq.Eq{"p.id": id}))
	return p, trapErr(err, "project", "finding project")
}

func (repo projectRepository) QueryProjects(ctx context.Context, filter project.ProjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Project, error) {
	qb := psql.Select("p.*").From("project p")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "p.name", "p.description"))
	}
	qb = eqIfSet(qb, map[string]string{"p.status": filter.Status})
	qb = qb.OrderBy(orderBy(ordering, projectOrdering, "p.start_date DESC", "p.name ASC")...)

	projects := make([]project.Project, 0)
	if err := selectAll(ctx, repo.getExec(exec), &projects, qb); err != nil {
		return nil, trapErr(err, "", "querying projects")
	}
	return projects, nil
}

// Resources

func (repo projectRepository) CreateEquipment(ctx context.Context, e project.Equipment, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "equipment", equipmentCols, e), "equipment", "inserting equipment")
}

func (repo projectRepository) UpdateEquipment(ctx context.Context, e project.Equipment, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "equipment", equipmentCols[1:], e)
	if err != nil {
		return trapErr(err, "equipment", "updating equipment")
	}
	return notFound(n, "equipment")
}

func (repo projectRepository) DeleteEquipment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "equipment", id)
	if err != nil {
		return trapErr(err, "equipment", "deleting equipment")
	}
	return notFound(n, "equipment")
}

func (repo projectRepository) GetEquipment(ctx context.Context, id string, exec ...core.DBExecutor) (project.Equipment, error) {
	var e project.Equipment
	err := getOne(ctx, repo.getExec(exec), &e, psql.Select("r.*").From("equipment r").Where(sq.Eq{"r.id": id}))
	return e, trapErr(err, "equipment", "finding equipment")
}

func (repo projectRepository) QueryEquipment(ctx context.Context, filter project.EquipmentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Equipment, error) {
	qb := psql.Select("r.*").From("equipment r")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "r.name", "r.model_number", "r.category"))
	}
	qb = eqIfSet(qb, map[string]string{"r.category": filter.Category})
	qb = qb.OrderBy(orderBy(ordering, resourceOrdering, "r.name ASC")...)

	equipment := make([]project.Equipment, 0)
	if err := selectAll(ctx, repo.getExec(exec), &equipment, qb); err != nil {
		return nil, trapErr(err, "", "querying equipment")
	}
	return equipment, nil
}

func (repo projectRepository) CreateCrew(ctx context.Context, c project.Crew, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "crew", crewCols, c), "crew", "inserting crew")
}

func (repo projectRepository) UpdateCrew(ctx context.Context, c project.Crew, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "crew", crewCols[1:], c)
	if err != nil {
		return trapErr(err, "crew", "updating crew")
	}
	return notFound(n, "crew")
}

func (repo projectRepository) DeleteCrew(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "crew", id)
	if err != nil {
		return trapErr(err, "crew", "deleting crew")
	}
	return notFound(n, "crew")
}

func (repo projectRepository) GetCrew(ctx context.Context, id string, exec ...core.DBExecutor) (project.Crew, error) {
	var c project.Crew
	err := getOne(ctx, repo.getExec(exec), &c, psql.Select("r.*").From("crew r").Where(sq.Eq{"r.id": id}))
	return c, trapErr(err, "crew", "finding crew")
}

func (repo projectRepository) QueryCrew(ctx context.Context, filter project.CrewFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Crew, error) {
	qb := psql.Select("r.*").From("crew r")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "r.name", "r.role", "r.skills"))
	}
	qb = eqIfSet(qb, map[string]string{"r.role": filter.Role})
	qb = qb.OrderBy(orderBy(ordering, resourceOrdering, "r.name ASC")...)

	crew := make([]project.Crew, 0)
	if err := selectAll(ctx, repo.getExec(exec), &crew, qb); err != nil {
		return nil, trapErr(err, "", "querying crew")
	}
	return crew, nil
}

func (repo projectRepository) CreateTransportation(ctx context.Context, t project.Transportation, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "transportation", transportationCols, t), "transportation", "inserting transportation")
}

func (repo projectRepository) UpdateTransportation(ctx context.Context, t project.Transportation, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "transportation", transportationCols[1:], t)
	if err != nil {
		return trapErr(err, "transportation", "updating transportation")
	}
	return notFound(n, "transportation")
}

func (repo projectRepository) DeleteTransportation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "transportation", id)
	if err != nil {
		return trapErr(err, "transportation", "deleting transportation")
	}
	return notFound(n, "transportation")
}

func (repo projectRepository) GetTransportation(ctx context.Context, id string, exec ...core.DBExecutor) (project.Transportation, error) {
	var t project.Transportation
	err := getOne(ctx, repo.getExec(exec), &t, psql.Select("r.*").From("transportation r").Where(sq.Eq{"r.id": id}))
	return t, trapErr(err, "transportation", "finding transportation")
}

func (repo projectRepository) QueryTransportation(ctx context.Context, filter project.TransportationFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Transportation, error) {
	qb := psql.Select("r.*").From("transportation r")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "r.name", "r.vehicle_type"))
	}
	qb = eqIfSet(qb, map[string]string{"r.vehicle_type": filter.VehicleType})
	qb = qb.OrderBy(orderBy(ordering, resourceOrdering, "r.name ASC")...)

	vehicles := make([]project.Transportation, 0)
	if err := selectAll(ctx, repo.getExec(exec), &vehicles, qb); err != nil {
		return nil, trapErr(err, "", "querying transportation")
	}
	return vehicles, nil
}

// Allocations

func (repo projectRepository) LockResource(ctx context.Context, kind project.ResourceKind, id string, exec core.DBExecutor) error {
	table, ok := resourceTables[kind]
	if !ok {
		return project.ErrNoResource
	}
	var locked string
	err := getOne(ctx, exec, &locked, psql.Select("id").From(table).Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
	if err != nil {
		if core.IsNotFound(trapErr(err, table, "")) {
			return core.InvalidRefError(string(kind))
		}
		return trapErr(err, table, "locking "+table)
	}
	return nil
}

func selectAllocations() sq.SelectBuilder {
	return psql.Select("al.*", "p.name AS project_name", "COALESCE(e.name, cr.name, tr.name) AS resource_name").
		From("project_resource_allocation al").
		Join("project p ON p.id = al.project_id").
		LeftJoin("equipment e ON e.id = al.equipment_id").
		LeftJoin("crew cr ON cr.id = al.crew_id").
		LeftJoin("transportation tr ON tr.id = al.transportation_id")
}

func (repo projectRepository) CreateAllocation(ctx context.Context, a project.Allocation, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "project_resource_allocation", allocationCols, a), "allocation", "inserting allocation")
}

func (repo projectRepository) UpdateAllocation(ctx context.Context, a project.Allocation, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "project_resource_allocation", allocationCols[1:], a)
	if err != nil {
		return trapErr(err, "allocation", "updating allocation")
	}
	return notFound(n, "allocation")
}

func (repo projectRepository) DeleteAllocation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "project_resource_allocation", id)
	if err != nil {
		return trapErr(err, "allocation", "deleting allocation")
	}
	return notFound(n, "allocation")
}

func (repo projectRepository) GetAllocation(ctx context.Context, id string, exec ...core.DBExecutor) (project.Allocation, error) {
	var a project.Allocation
	err := getOne(ctx, repo.getExec(exec), &a, selectAllocations().Where(sq.Eq{"al.id": id}))
	return a, trapErr(err, "allocation", "finding allocation")
}

func (repo projectRepository) QueryAllocations(ctx context.Context, filter project.AllocationFilter, exec ...core.DBExecutor) ([]project.Allocation, error) {
	qb := eqIfSet(selectAllocations(), map[string]string{"al.project_id": filter.Project})
	if filter.ResourceKind != "" {
		if _, ok := resourceTables[filter.ResourceKind]; !ok {
			return nil, project.ErrNoResource
		}
		qb = qb.Where(sq.Eq{"al." + string(filter.ResourceKind) + "_id": filter.ResourceID})
	}
	qb = qb.OrderBy("al.allocation_start ASC")

	allocations := make([]project.Allocation, 0)
	if err := selectAll(ctx, repo.getExec(exec), &allocations, qb); err != nil {
		return nil, trapErr(err, "", "querying allocations")
	}
	return allocations, nil
}

// Tasks

func selectTasks() sq.SelectBuilder {
	return psql.Select("t.*", userName("au", "assignee_name"),
		"(SELECT COUNT(*) FROM comment c WHERE c.task_id = t.id) AS comment_count").
		From("task t").
		LeftJoin(`"user" au ON au.id = t.assignee_id`)
}

func (repo projectRepository) CreateTask(ctx context.Context, t project.Task, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "task", taskCols, t), "task", "inserting task")
}

func (repo projectRepository) UpdateTask(ctx context.Context, t project.Task, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "task", taskCols[1:], t)
	if err != nil {
		return trapErr(err, "task", "updating task")
	}
	return notFound(n, "task")
}

func (repo projectRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "task", id)
	if err != nil {
		return trapErr(err, "task", "deleting task")
	}
	return notFound(n, "task")
}

func (repo projectRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (project.Task, error) {
	var t project.Task
	err := getOne(ctx, repo.getExec(exec), &t, selectTasks().Where(sq.Eq{"t.id": id}))
	return t, trapErr(err, "task", "finding task")
}

func (repo projectRepository) QueryTasks(ctx context.Context, filter project.TaskFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Task, error) {
	qb := selectTasks()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "t.title", "t.description"))
	}
	qb = eqIfSet(qb, map[string]string{
		"t.project_id":  filter.Project,
		"t.assignee_id": filter.Assignee,
		"t.status":      filter.Status,
		"t.priority":    filter.Priority,
	})
	qb = qb.OrderBy(orderBy(ordering, taskOrdering, "t.created_at DESC")...)

	tasks := make([]project.Task, 0)
	if err := selectAll(ctx, repo.getExec(exec), &tasks, qb); err != nil {
		return nil, trapErr(err, "", "querying tasks")
	}
	return tasks, nil
}

// Comments

func selectComments() sq.SelectBuilder {
	return psql.Select("c.*", userName("a", "author_name")).
		From("comment c").
		Join(`"user" a ON a.id = c.author_id`)
}

func (repo projectRepository) CreateComment(ctx context.Context, c project.Comment, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "comment", commentCols, c), "comment", "inserting comment")
}

func (repo projectRepository) UpdateComment(ctx context.Context, c project.Comment, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "comment", commentCols[1:], c)
	if err != nil {
		return trapErr(err, "comment", "updating comment")
	}
	return notFound(n, "comment")
}

func (repo projectRepository) DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "comment", id)
	if err != nil {
		return trapErr(err, "comment", "deleting comment")
	}
	return notFound(n, "comment")
}

func (repo projectRepository) GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (project.Comment, error) {
	var c project.Comment
	err := getOne(ctx, repo.getExec(exec), &c, selectComments().Where(sq.Eq{"c.id": id}))
	return c, trapErr(err, "comment", "finding comment")
}

func (repo projectRepository) QueryComments(ctx context.Context, filter project.CommentFilter, exec ...core.DBExecutor) ([]project.Comment, error) {
	qb := eqIfSet(selectComments(), map[string]string{
		"c.task_id":   filter.Task,
		"c.author_id": filter.Author,
	})
	qb = qb.OrderBy("c.created_at ASC")

	comments := make([]project.Comment, 0)
	if err := selectAll(ctx, repo.getExec(exec), &comments, qb); err != nil {
		return nil, trapErr(err, "", "querying comments")
	}
	return comments, nil
}

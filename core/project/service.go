package project

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/eventuais/eventuais/core"
)

var (
	ErrProjectNotFound        = core.NewNotFoundError("project")
	ErrEquipmentNotFound      = core.NewNotFoundError("equipment")
	ErrCrewNotFound           = core.NewNotFoundError("crew")
	ErrTransportationNotFound = core.NewNotFoundError("transportation")
	ErrAllocationNotFound     = core.NewNotFoundError("allocation")
	ErrTaskNotFound           = core.NewNotFoundError("task")
	ErrCommentNotFound        = core.NewNotFoundError("comment")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project, exec ...core.DBExecutor) error
		UpdateProject(ctx context.Context, p Project, exec ...core.DBExecutor) error
		DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (Project, error)
		QueryProjects(ctx context.Context, filter ProjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Project, error)

		CreateEquipment(ctx context.Context, e Equipment, exec ...core.DBExecutor) error
		UpdateEquipment(ctx context.Context, e Equipment, exec ...core.DBExecutor) error
		DeleteEquipment(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetEquipment(ctx context.Context, id string, exec ...core.DBExecutor) (Equipment, error)
		QueryEquipment(ctx context.Context, filter EquipmentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Equipment, error)

		CreateCrew(ctx context.Context, c Crew, exec ...core.DBExecutor) error
		UpdateCrew(ctx context.Context, c Crew, exec ...core.DBExecutor) error
		DeleteCrew(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetCrew(ctx context.Context, id string, exec ...core.DBExecutor) (Crew, error)
		QueryCrew(ctx context.Context, filter CrewFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Crew, error)

		CreateTransportation(ctx context.Context, t Transportation, exec ...core.DBExecutor) error
		UpdateTransportation(ctx context.Context, t Transportation, exec ...core.DBExecutor) error
		DeleteTransportation(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTransportation(ctx context.Context, id string, exec ...core.DBExecutor) (Transportation, error)
		QueryTransportation(ctx context.Context, filter TransportationFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Transportation, error)

		// LockResource takes a row lock on the resource until the transaction ends; exec must be a transaction.
		LockResource(ctx context.Context, kind ResourceKind, id string, exec core.DBExecutor) error
		CreateAllocation(ctx context.Context, a Allocation, exec ...core.DBExecutor) error
		UpdateAllocation(ctx context.Context, a Allocation, exec ...core.DBExecutor) error
		DeleteAllocation(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetAllocation(ctx context.Context, id string, exec ...core.DBExecutor) (Allocation, error)
		QueryAllocations(ctx context.Context, filter AllocationFilter, exec ...core.DBExecutor) ([]Allocation, error)

		CreateTask(ctx context.Context, t Task, exec ...core.DBExecutor) error
		UpdateTask(ctx context.Context, t Task, exec ...core.DBExecutor) error
		DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		QueryTasks(ctx context.Context, filter TaskFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Task, error)

		CreateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) error
		UpdateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) error
		DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (Comment, error)
		QueryComments(ctx context.Context, filter CommentFilter, exec ...core.DBExecutor) ([]Comment, error)
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

// Projects

func (svc *Service) CreateProject(ctx context.Context, in ProjectInput) (Project, error) {
	now := core.Now()
	p := Project{ID: uuid.NewString(), Status: StatusPlanned, CreatedAt: now, UpdatedAt: now}
	in.Apply(&p)
	if err := svc.validate.Struct(p); err != nil {
		return Project{}, err
	}
	if err := p.check(); err != nil {
		return Project{}, err
	}
	if err := svc.repo.CreateProject(ctx, p); err != nil {
		return Project{}, err
	}
	return svc.repo.GetProject(ctx, p.ID)
}

func (svc *Service) UpdateProject(ctx context.Context, p Project, in ProjectInput) (Project, error) {
	in.Apply(&p)
	if err := svc.validate.Struct(p); err != nil {
		return Project{}, err
	}
	if err := p.check(); err != nil {
		return Project{}, err
	}
	p.UpdatedAt = core.Now()
	if err := svc.repo.UpdateProject(ctx, p); err != nil {
		return Project{}, err
	}
	return svc.repo.GetProject(ctx, p.ID)
}

func (svc *Service) DeleteProject(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrProjectNotFound
	}
	return svc.repo.DeleteProject(ctx, id)
}

func (svc *Service) GetProject(ctx context.Context, id string) (Project, error) {
	if !validUUID(id) {
		return Project{}, ErrProjectNotFound
	}
	return svc.repo.GetProject(ctx, id)
}

func (svc *Service) QueryProjects(ctx context.Context, filter ProjectFilter, ordering []core.DBOrdering) ([]Project, error) {
	return svc.repo.QueryProjects(ctx, filter, ordering)
}

func (svc *Service) ProjectTasks(ctx context.Context, id string) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, TaskFilter{Project: id}, nil)
}

func (svc *Service) ProjectAllocations(ctx context.Context, id string) ([]Allocation, error) {
	return svc.repo.QueryAllocations(ctx, AllocationFilter{Project: id})
}

// Resources

func newResource() Resource {
	now := core.Now()
	return Resource{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

func (svc *Service) CreateEquipment(ctx context.Context, in EquipmentInput) (Equipment, error) {
	e := Equipment{Resource: newResource()}
	in.Apply(&e)
	if err := svc.validate.Struct(e); err != nil {
		return Equipment{}, err
	}
	if err := svc.repo.CreateEquipment(ctx, e); err != nil {
		return Equipment{}, err
	}
	return svc.repo.GetEquipment(ctx, e.ID)
}

func (svc *Service) UpdateEquipment(ctx context.Context, e Equipment, in EquipmentInput) (Equipment, error) {
	in.Apply(&e)
	if err := svc.validate.Struct(e); err != nil {
		return Equipment{}, err
	}
	e.UpdatedAt = core.Now()
	if err := svc.repo.UpdateEquipment(ctx, e); err != nil {
		return Equipment{}, err
	}
	return svc.repo.GetEquipment(ctx, e.ID)
}

func (svc *Service) DeleteEquipment(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrEquipmentNotFound
	}
	return svc.repo.DeleteEquipment(ctx, id)
}

func (svc *Service) GetEquipment(ctx context.Context, id string) (Equipment, error) {
	if !validUUID(id) {
		return Equipment{}, ErrEquipmentNotFound
	}
	return svc.repo.GetEquipment(ctx, id)
}

func (svc *Service) QueryEquipment(ctx context.Context, filter EquipmentFilter, ordering []core.DBOrdering) ([]Equipment, error) {
	return svc.repo.QueryEquipment(ctx, filter, ordering)
}

func (svc *Service) CreateCrew(ctx context.Context, in CrewInput) (Crew, error) {
	c := Crew{Resource: newResource()}
	in.Apply(&c)
	if err := svc.validate.Struct(c); err != nil {
		return Crew{}, err
	}
	if err := svc.repo.CreateCrew(ctx, c); err != nil {
		return Crew{}, err
	}
	return svc.repo.GetCrew(ctx, c.ID)
}

func (svc *Service) UpdateCrew(ctx context.Context, c Crew, in CrewInput) (Crew, error) {
	in.Apply(&c)
	if err := svc.validate.Struct(c); err != nil {
		return Crew{}, err
	}
	c.UpdatedAt = core.Now()
	if err := svc.repo.UpdateCrew(ctx, c); err != nil {
		return Crew{}, err
	}
	return svc.repo.GetCrew(ctx, c.ID)
}

func (svc *Service) DeleteCrew(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrCrewNotFound
	}
	return svc.repo.DeleteCrew(ctx, id)
}

func (svc *Service) GetCrew(ctx context.Context, id string) (Crew, error) {
	if !validUUID(id) {
		return Crew{}, ErrCrewNotFound
	}
	return svc.repo.GetCrew(ctx, id)
}

func (svc *Service) QueryCrew(ctx context.Context, filter CrewFilter, ordering []core.DBOrdering) ([]Crew, error) {
	return svc.repo.QueryCrew(ctx, filter, ordering)
}

func (svc *Service) CreateTransportation(ctx context.Context, in TransportationInput) (Transportation, error) {
	t := Transportation{Resource: newResource()}
	in.Apply(&t)
	if err := svc.validate.Struct(t); err != nil {
		return Transportation{}, err
	}
	if err := svc.repo.CreateTransportation(ctx, t); err != nil {
		return Transportation{}, err
	}
	return svc.repo.GetTransportation(ctx, t.ID)
}

func (svc *Service) UpdateTransportation(ctx context.Context, t Transportation, in TransportationInput) (Transportation, error) {
	in.Apply(&t)
	if err := svc.validate.Struct(t); err != nil {
		return Transportation{}, err
	}
	t.UpdatedAt = core.Now()
	if err := svc.repo.UpdateTransportation(ctx, t); err != nil {
		return Transportation{}, err
	}
	return svc.repo.GetTransportation(ctx, t.ID)
}

func (svc *Service) DeleteTransportation(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrTransportationNotFound
	}
	return svc.repo.DeleteTransportation(ctx, id)
}

func (svc *Service) GetTransportation(ctx context.Context, id string) (Transportation, error) {
	if !validUUID(id) {
		return Transportation{}, ErrTransportationNotFound
	}
	return svc.repo.GetTransportation(ctx, id)
}

func (svc *Service) QueryTransportation(ctx context.Context, filter TransportationFilter, ordering []core.DBOrdering) ([]Transportation, error) {
	return svc.repo.QueryTransportation(ctx, filter, ordering)
}

// Allocations

// saveAllocation checks the allocation rules and writes a in one transaction.
// The resource row stays locked until commit, so concurrent bookings of one resource run one after the other
// and each sees the allocations committed before it.
func (svc *Service) saveAllocation(ctx context.Context, a Allocation, write func(context.Context, Allocation, ...core.DBExecutor) error) error {
	if err := svc.validate.Struct(a); err != nil {
		return err
	}
	if err := a.check(); err != nil {
		return err
	}
	kind, resourceID := a.Resource()

	return core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.LockResource(ctx, kind, resourceID, tx); err != nil {
			return err
		}
		existing, err := svc.repo.QueryAllocations(ctx, AllocationFilter{ResourceKind: kind, ResourceID: resourceID}, tx)
		if err != nil {
			return err
		}
		if a.conflicts(existing) {
			return ErrResourceAllocated
		}
		return write(ctx, a, tx)
	})
}

func (svc *Service) CreateAllocation(ctx context.Context, in AllocationInput) (Allocation, error) {
	now := core.Now()
	a := Allocation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.Apply(&a)
	if err := svc.saveAllocation(ctx, a, svc.repo.CreateAllocation); err != nil {
		return Allocation{}, err
	}
	return svc.repo.GetAllocation(ctx, a.ID)
}

func (svc *Service) UpdateAllocation(ctx context.Context, a Allocation, in AllocationInput) (Allocation, error) {
	in.Apply(&a)
	a.UpdatedAt = core.Now()
	if err := svc.saveAllocation(ctx, a, svc.repo.UpdateAllocation); err != nil {
		return Allocation{}, err
	}
	return svc.repo.GetAllocation(ctx, a.ID)
}

func (svc *Service) DeleteAllocation(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrAllocationNotFound
	}
	return svc.repo.DeleteAllocation(ctx, id)
}

func (svc *Service) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	if !validUUID(id) {
		return Allocation{}, ErrAllocationNotFound
	}
	return svc.repo.GetAllocation(ctx, id)
}

func (svc *Service) QueryAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error) {
	return svc.repo.QueryAllocations(ctx, filter)
}

// Tasks

func (svc *Service) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	now := core.Now()
	t := Task{ID: uuid.NewString(), Status: TaskToDo, Priority: PriorityMedium, CreatedAt: now, UpdatedAt: now}
	in.Apply(&t)
	if err := svc.validate.Struct(t); err != nil {
		return Task{}, err
	}
	if err := svc.repo.CreateTask(ctx, t); err != nil {
		return Task{}, err
	}
	return svc.repo.GetTask(ctx, t.ID)
}

func (svc *Service) UpdateTask(ctx context.Context, t Task, in TaskInput) (Task, error) {
	in.Apply(&t)
	if err := svc.validate.Struct(t); err != nil {
		return Task{}, err
	}
	t.UpdatedAt = core.Now()
	if err := svc.repo.UpdateTask(ctx, t); err != nil {
		return Task{}, err
	}
	return svc.repo.GetTask(ctx, t.ID)
}

func (svc *Service) DeleteTask(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrTaskNotFound
	}
	return svc.repo.DeleteTask(ctx, id)
}

func (svc *Service) GetTask(ctx context.Context, id string) (Task, error) {
	if !validUUID(id) {
		return Task{}, ErrTaskNotFound
	}
	return svc.repo.GetTask(ctx, id)
}

func (svc *Service) QueryTasks(ctx context.Context, filter TaskFilter, ordering []core.DBOrdering) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, filter, ordering)
}

func (svc *Service) TaskComments(ctx context.Context, id string) ([]Comment, error) {
	return svc.repo.QueryComments(ctx, CommentFilter{Task: id})
}

// Comments

func (svc *Service) CreateComment(ctx context.Context, authorID string, in CommentInput) (Comment, error) {
	now := core.Now()
	c := Comment{ID: uuid.NewString(), AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
	in.Apply(&c)
	if err := svc.validate.Struct(c); err != nil {
		return Comment{}, err
	}
	if err := svc.repo.CreateComment(ctx, c); err != nil {
		return Comment{}, err
	}
	return svc.repo.GetComment(ctx, c.ID)
}

// canEdit reports whether the user may change or delete the comment.
func canEdit(c Comment, userID string, isAdmin bool) bool {
	return isAdmin || c.AuthorID == userID
}

func (svc *Service) UpdateComment(ctx context.Context, userID string, isAdmin bool, c Comment, in CommentInput) (Comment, error) {
	if !canEdit(c, userID, isAdmin) {
		return Comment{}, core.ErrForbidden
	}
	in.Apply(&c)
	if err := svc.validate.Struct(c); err != nil {
		return Comment{}, err
	}
	c.UpdatedAt = core.Now()
	if err := svc.repo.UpdateComment(ctx, c); err != nil {
		return Comment{}, err
	}
	return svc.repo.GetComment(ctx, c.ID)
}

func (svc *Service) DeleteComment(ctx context.Context, userID string, isAdmin bool, c Comment) error {
	if !canEdit(c, userID, isAdmin) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteComment(ctx, c.ID)
}

func (svc *Service) GetComment(ctx context.Context, id string) (Comment, error) {
	if !validUUID(id) {
		return Comment{}, ErrCommentNotFound
	}
	return svc.repo.GetComment(ctx, id)
}

func (svc *Service) QueryComments(ctx context.Context, filter CommentFilter) ([]Comment, error) {
	return svc.repo.QueryComments(ctx, filter)
}

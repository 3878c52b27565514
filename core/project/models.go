package project

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

// project statuses
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// task statuses & priorities
const (
	TaskToDo       = "to_do"
	TaskInProgress = "in_progress"
	TaskDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	ProjectStatuses = core.Choices{
		{Value: StatusPlanned, Label: "Planned"},
		{Value: StatusInProgress, Label: "In Progress"},
		{Value: StatusCompleted, Label: "Completed"},
	}

	// TaskStatuses and TaskPriorities are listed in ascending order.
	TaskStatuses = core.Choices{
		{Value: TaskToDo, Label: "To Do"},
		{Value: TaskInProgress, Label: "In Progress"},
		{Value: TaskDone, Label: "Done"},
	}
	TaskPriorities = core.Choices{
		{Value: PriorityLow, Label: "Low"},
		{Value: PriorityMedium, Label: "Medium"},
		{Value: PriorityHigh, Label: "High"},
	}

	ResourceKinds = core.Choices{
		{Value: string(KindEquipment), Label: "Equipment"},
		{Value: string(KindCrew), Label: "Crew"},
		{Value: string(KindTransportation), Label: "Transportation"},
	}
)

// allocation rule violations, checked in this order
var (
	ErrNoResource        = core.NewValidationError(errors.New("At least one resource must be provided."))
	ErrManyResources     = core.NewValidationError(errors.New("Only one resource type can be allocated at a time."))
	ErrEndBeforeStart    = core.NewValidationError(errors.New("End time must be after start time."))
	ErrResourceAllocated = core.NewValidationError(errors.New("This resource is already allocated during the requested time period."))
)

type Project struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name" validate:"required,max=255"`
	Description string    `db:"description" json:"description"`
	StartDate   core.Date `db:"start_date" json:"start_date" validate:"required"`
	EndDate     core.Date `db:"end_date" json:"end_date" validate:"required"`
	Status      string    `db:"status" json:"status" validate:"required,oneof=planned in_progress completed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (p Project) check() error {
	if p.EndDate.Before(p.StartDate.Time) {
		return core.NewFieldError("end_date", "End date must not be before the start date.")
	}
	return nil
}

type ProjectInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *core.Date `json:"start_date"`
	EndDate     *core.Date `json:"end_date"`
	Status      *string    `json:"status"`
}

func (in ProjectInput) Apply(p *Project) {
	core.Assign(&p.Name, in.Name)
	core.Assign(&p.Description, in.Description)
	core.Assign(&p.StartDate, in.StartDate)
	core.Assign(&p.EndDate, in.EndDate)
	core.Assign(&p.Status, in.Status)
	p.Name = core.CleanString(p.Name)
}

type ProjectFilter struct {
	Search string
	Status string
}

// ResourceKind names a bookable resource table.
type ResourceKind string

const (
	KindEquipment      ResourceKind = "equipment"
	KindCrew           ResourceKind = "crew"
	KindTransportation ResourceKind = "transportation"
)

// Resource holds the fields shared by every resource kind.
type Resource struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name" validate:"required,max=255"`
	Type        ResourceKind `db:"type" json:"type"`
	Description string       `db:"description" json:"description"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

type ResourceInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (in ResourceInput) apply(r *Resource) {
	core.Assign(&r.Name, in.Name)
	core.Assign(&r.Description, in.Description)
	r.Name = core.CleanString(r.Name)
}

type Equipment struct {
	Resource
	ModelNumber string `db:"model_number" json:"model_number" validate:"max=100"`
	Category    string `db:"category" json:"category" validate:"required,max=100"`
}

type EquipmentInput struct {
	ResourceInput
	ModelNumber *string `json:"model_number"`
	Category    *string `json:"category"`
}

func (in EquipmentInput) Apply(e *Equipment) {
	in.ResourceInput.apply(&e.Resource)
	core.Assign(&e.ModelNumber, in.ModelNumber)
	core.Assign(&e.Category, in.Category)
	e.Category = core.CleanString(e.Category)
	e.Type = KindEquipment
}

type EquipmentFilter struct {
	Search   string
	Category string
}

type Crew struct {
	Resource
	Role   string `db:"role" json:"role" validate:"required,max=100"`
	Skills string `db:"skills" json:"skills"`
}

type CrewInput struct {
	ResourceInput
	Role   *string `json:"role"`
	Skills *string `json:"skills"`
}

func (in CrewInput) Apply(c *Crew) {
	in.ResourceInput.apply(&c.Resource)
	core.Assign(&c.Role, in.Role)
	core.Assign(&c.Skills, in.Skills)
	c.Role = core.CleanString(c.Role)
	c.Type = KindCrew
}

type CrewFilter struct {
	Search string
	Role   string
}

type Transportation struct {
	Resource
	VehicleType string `db:"vehicle_type" json:"vehicle_type" validate:"required,max=100"`
	Capacity    int    `db:"capacity" json:"capacity" validate:"min=0"`
}

type TransportationInput struct {
	ResourceInput
	VehicleType *string `json:"vehicle_type"`
	Capacity    *int    `json:"capacity"`
}

func (in TransportationInput) Apply(t *Transportation) {
	in.ResourceInput.apply(&t.Resource)
	core.Assign(&t.VehicleType, in.VehicleType)
	core.Assign(&t.Capacity, in.Capacity)
	t.VehicleType = core.CleanString(t.VehicleType)
	t.Type = KindTransportation
}

type TransportationFilter struct {
	Search      string
	VehicleType string
}

// Allocation books one resource for a project over [AllocationStart, AllocationEnd).
type Allocation struct {
	ID               string      `db:"id" json:"id"`
	ProjectID        string      `db:"project_id" json:"project" validate:"required,uuid"`
	EquipmentID      null.String `db:"equipment_id" json:"equipment" validate:"omitempty,uuid"`
	CrewID           null.String `db:"crew_id" json:"crew" validate:"omitempty,uuid"`
	TransportationID null.String `db:"transportation_id" json:"transportation" validate:"omitempty,uuid"`
	AllocationStart  time.Time   `db:"allocation_start" json:"allocation_start" validate:"required"`
	AllocationEnd    time.Time   `db:"allocation_end" json:"allocation_end" validate:"required"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`

	ProjectName  string      `db:"project_name" json:"project_name"`
	ResourceName null.String `db:"resource_name" json:"resource_name"`
}

func (a Allocation) MarshalJSON() ([]byte, error) {
	type alias Allocation
	kind, _ := a.Resource()
	var resourceType *ResourceKind
	if kind != "" {
		resourceType = &kind
	}
	return json.Marshal(struct {
		alias
		ResourceType *ResourceKind `json:"resource_type"`
	}{alias(a), resourceType})
}

// Resource returns the kind and id of the first resource set.
func (a Allocation) Resource() (ResourceKind, string) {
	switch {
	case a.EquipmentID.Valid:
		return KindEquipment, a.EquipmentID.String
	case a.CrewID.Valid:
		return KindCrew, a.CrewID.String
	case a.TransportationID.Valid:
		return KindTransportation, a.TransportationID.String
	}
	return "", ""
}

func (a Allocation) resourceCount() int {
	n := 0
	for _, id := range []null.String{a.EquipmentID, a.CrewID, a.TransportationID} {
		if id.Valid {
			n++
		}
	}
	return n
}

// Overlaps reports whether a and other share any instant; the ranges are half-open.
func (a Allocation) Overlaps(other Allocation) bool {
	return a.AllocationStart.Before(other.AllocationEnd) && a.AllocationEnd.After(other.AllocationStart)
}

// check applies the allocation rules that need no other allocation.
func (a Allocation) check() error {
	switch n := a.resourceCount(); {
	case n == 0:
		return ErrNoResource
	case n > 1:
		return ErrManyResources
	}
	if !a.AllocationStart.Before(a.AllocationEnd) {
		return ErrEndBeforeStart
	}
	return nil
}

// conflicts reports whether a overlaps any of the existing allocations of its resource,
// ignoring a itself.
func (a Allocation) conflicts(existing []Allocation) bool {
	for _, other := range existing {
		if other.ID == a.ID {
			continue
		}
		if a.Overlaps(other) {
			return true
		}
	}
	return false
}

type AllocationInput struct {
	ProjectID        *string                    `json:"project"`
	EquipmentID      core.Optional[null.String] `json:"equipment"`
	CrewID           core.Optional[null.String] `json:"crew"`
	TransportationID core.Optional[null.String] `json:"transportation"`
	AllocationStart  *time.Time                 `json:"allocation_start"`
	AllocationEnd    *time.Time                 `json:"allocation_end"`
}

func (in AllocationInput) Apply(a *Allocation) {
	core.Assign(&a.ProjectID, in.ProjectID)
	in.EquipmentID.Assign(&a.EquipmentID)
	in.CrewID.Assign(&a.CrewID)
	in.TransportationID.Assign(&a.TransportationID)
	core.Assign(&a.AllocationStart, in.AllocationStart)
	core.Assign(&a.AllocationEnd, in.AllocationEnd)
	a.AllocationStart = a.AllocationStart.UTC()
	a.AllocationEnd = a.AllocationEnd.UTC()
}

type AllocationFilter struct {
	Project      string
	ResourceKind ResourceKind
	ResourceID   string
}

type Task struct {
	ID          string      `db:"id" json:"id"`
	ProjectID   string      `db:"project_id" json:"project" validate:"required,uuid"`
	Title       string      `db:"title" json:"title" validate:"required,max=255"`
	Description string      `db:"description" json:"description"`
	AssigneeID  null.String `db:"assignee_id" json:"assignee" validate:"omitempty,uuid"`
	Status      string      `db:"status" json:"status" validate:"required,oneof=to_do in_progress done"`
	Priority    string      `db:"priority" json:"priority" validate:"required,oneof=low medium high"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`

	AssigneeName null.String `db:"assignee_name" json:"assignee_name"`
	CommentCount int         `db:"comment_count" json:"comment_count"`
}

type TaskInput struct {
	ProjectID   *string                    `json:"project"`
	Title       *string                    `json:"title"`
	Description *string                    `json:"description"`
	AssigneeID  core.Optional[null.String] `json:"assignee"`
	Status      *string                    `json:"status"`
	Priority    *string                    `json:"priority"`
}

func (in TaskInput) Apply(t *Task) {
	core.Assign(&t.ProjectID, in.ProjectID)
	core.Assign(&t.Title, in.Title)
	core.Assign(&t.Description, in.Description)
	in.AssigneeID.Assign(&t.AssigneeID)
	core.Assign(&t.Status, in.Status)
	core.Assign(&t.Priority, in.Priority)
	t.Title = core.CleanString(t.Title)
}

type TaskFilter struct {
	Search   string
	Project  string
	Assignee string
	Status   string
	Priority string
}

type Comment struct {
	ID        string    `db:"id" json:"id"`
	TaskID    string    `db:"task_id" json:"task" validate:"required,uuid"`
	AuthorID  string    `db:"author_id" json:"author"`
	Content   string    `db:"content" json:"content" validate:"required"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	AuthorName null.String `db:"author_name" json:"author_name"`
}

type CommentInput struct {
	TaskID  *string `json:"task"`
	Content *string `json:"content"`
}

func (in CommentInput) Apply(c *Comment) {
	core.Assign(&c.TaskID, in.TaskID)
	core.Assign(&c.Content, in.Content)
	c.Content = core.CleanString(c.Content)
}

type CommentFilter struct {
	Task   string
	Author string
}

package crm

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

type Address struct {
	AddressLine1 string `db:"address_line1" json:"address_line1" validate:"max=255"`
	AddressLine2 string `db:"address_line2" json:"address_line2" validate:"max=255"`
	City         string `db:"city" json:"city" validate:"max=100"`
	State        string `db:"state" json:"state" validate:"max=100"`
	PostalCode   string `db:"postal_code" json:"postal_code" validate:"max=20"`
	Country      string `db:"country" json:"country" validate:"max=100"`
}

type AddressInput struct {
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	PostalCode   *string `json:"postal_code"`
	Country      *string `json:"country"`
}

func (in AddressInput) Apply(a *Address) {
	core.Assign(&a.AddressLine1, in.AddressLine1)
	core.Assign(&a.AddressLine2, in.AddressLine2)
	core.Assign(&a.City, in.City)
	core.Assign(&a.State, in.State)
	core.Assign(&a.PostalCode, in.PostalCode)
	core.Assign(&a.Country, in.Country)
}

type Account struct {
	ID               string      `db:"id" json:"id"`
	Name             string      `db:"name" json:"name" validate:"required,max=255"`
	AccountType      string      `db:"account_type" json:"account_type" validate:"required,oneof=customer partner vendor prospect competitor other"`
	Industry         null.String `db:"industry" json:"industry" validate:"omitempty,oneof=technology finance healthcare education manufacturing retail entertainment other"`
	Website          string      `db:"website" json:"website" validate:"omitempty,url,max=200"`
	ParentID         null.String `db:"parent_id" json:"parent" validate:"omitempty,uuid"`
	Level            int         `db:"level" json:"level"`
	PrimaryContactID null.String `db:"primary_contact_id" json:"primary_contact" validate:"omitempty,uuid"`
	Phone            string      `db:"phone" json:"phone" validate:"omitempty,phone"`
	Email            string      `db:"email" json:"email" validate:"omitempty,email,max=254"`
	Address
	AssignedToID  null.String `db:"assigned_to_id" json:"assigned_to" validate:"omitempty,uuid"`
	Description   string      `db:"description" json:"description"`
	AnnualRevenue null.String `db:"annual_revenue" json:"annual_revenue" validate:"omitempty,decimal"`
	EmployeeCount null.Int    `db:"employee_count" json:"employee_count" validate:"omitempty,min=0"`
	CreatedByID   string      `db:"created_by_id" json:"created_by"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
	Tags          []Tag       `db:"-" json:"tags"`

	ParentName     null.String `db:"parent_name" json:"parent_name"`
	AssignedToName null.String `db:"assigned_to_name" json:"assigned_to_name"`
	CreatedByName  string      `db:"created_by_name" json:"created_by_name"`
}

func (a Account) MarshalJSON() ([]byte, error) {
	type alias Account
	return json.Marshal(struct {
		alias
		AccountTypeDisplay string      `json:"account_type_display"`
		IndustryDisplay    null.String `json:"industry_display"`
	}{
		alias:              alias(a),
		AccountTypeDisplay: AccountTypes.Label(a.AccountType),
		IndustryDisplay:    null.NewString(Industries.Label(a.Industry.String), a.Industry.Valid),
	})
}

// AccountDetail is an account with its related objects.
type AccountDetail struct {
	Account
	Contacts       []Contact       `json:"contacts"`
	Opportunities  []Opportunity   `json:"opportunities"`
	Activities     []Activity      `json:"activities"`
	SocialProfiles []SocialProfile `json:"social_profiles"`
}

func (d AccountDetail) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(d.Account)
	if err != nil {
		return nil, err
	}
	return core.MergeJSON(base, map[string]interface{}{
		"contacts":        d.Contacts,
		"opportunities":   d.Opportunities,
		"activities":      d.Activities,
		"social_profiles": d.SocialProfiles,
	})
}

type AccountInput struct {
	Name             *string                    `json:"name"`
	AccountType      *string                    `json:"account_type"`
	Industry         core.Optional[null.String] `json:"industry"`
	Website          *string                    `json:"website"`
	ParentID         core.Optional[null.String] `json:"parent"`
	PrimaryContactID core.Optional[null.String] `json:"primary_contact"`
	Phone            *string                    `json:"phone"`
	Email            *string                    `json:"email"`
	AddressInput
	AssignedToID  core.Optional[null.String] `json:"assigned_to"`
	Description   *string                    `json:"description"`
	AnnualRevenue core.Optional[null.String] `json:"annual_revenue"`
	EmployeeCount core.Optional[null.Int]    `json:"employee_count"`
	TagIDs        *[]int                     `json:"tag_ids"`
}

func (in AccountInput) Apply(a *Account) {
	core.Assign(&a.Name, in.Name)
	core.Assign(&a.AccountType, in.AccountType)
	in.Industry.Assign(&a.Industry)
	core.Assign(&a.Website, in.Website)
	in.ParentID.Assign(&a.ParentID)
	in.PrimaryContactID.Assign(&a.PrimaryContactID)
	core.Assign(&a.Phone, in.Phone)
	core.Assign(&a.Email, in.Email)
	in.AddressInput.Apply(&a.Address)
	in.AssignedToID.Assign(&a.AssignedToID)
	core.Assign(&a.Description, in.Description)
	in.AnnualRevenue.Assign(&a.AnnualRevenue)
	in.EmployeeCount.Assign(&a.EmployeeCount)
	a.Name = core.CleanString(a.Name)
	a.Email = core.CleanString(a.Email, true /* lower */)
}

type AccountFilter struct {
	Search      string
	AccountType string
	Industry    string
	AssignedTo  string
	Parent      string
	Tag         string
}

type Contact struct {
	ID                string      `db:"id" json:"id"`
	FirstName         string      `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName          string      `db:"last_name" json:"last_name" validate:"required,max=100"`
	Title             string      `db:"title" json:"title" validate:"max=100"`
	ParentID          null.String `db:"parent_id" json:"parent" validate:"omitempty,uuid"`
	Level             int         `db:"level" json:"level"`
	AccountID         null.String `db:"account_id" json:"account" validate:"omitempty,uuid"`
	Email             string      `db:"email" json:"email" validate:"omitempty,email,max=254"`
	Phone             string      `db:"phone" json:"phone" validate:"omitempty,phone"`
	Mobile            string      `db:"mobile" json:"mobile" validate:"omitempty,phone"`
	UseAccountAddress bool        `db:"use_account_address" json:"use_account_address"`
	Address
	Status        string      `db:"status" json:"status" validate:"required,oneof=active inactive lead"`
	AssignedToID  null.String `db:"assigned_to_id" json:"assigned_to" validate:"omitempty,uuid"`
	Description   string      `db:"description" json:"description"`
	DateOfBirth   core.Date   `db:"date_of_birth" json:"date_of_birth"`
	EmailOptOut   bool        `db:"email_opt_out" json:"email_opt_out"`
	PhoneOptOut   bool        `db:"phone_opt_out" json:"phone_opt_out"`
	CreatedByID   string      `db:"created_by_id" json:"created_by"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
	Tags          []Tag       `db:"-" json:"tags"`

	AccountName    null.String `db:"account_name" json:"account_name"`
	ParentName     null.String `db:"parent_name" json:"parent_name"`
	AssignedToName null.String `db:"assigned_to_name" json:"assigned_to_name"`
	CreatedByName  string      `db:"created_by_name" json:"created_by_name"`
}

func (c Contact) FullName() string {
	return core.CleanString(c.FirstName + " " + c.LastName)
}

func (c Contact) MarshalJSON() ([]byte, error) {
	type alias Contact
	return json.Marshal(struct {
		alias
		FullName      string `json:"full_name"`
		StatusDisplay string `json:"status_display"`
	}{alias(c), c.FullName(), ContactStatuses.Label(c.Status)})
}

type ContactDetail struct {
	Contact
	Opportunities  []Opportunity   `json:"opportunities"`
	Activities     []Activity      `json:"activities"`
	SocialProfiles []SocialProfile `json:"social_profiles"`
}

func (d ContactDetail) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(d.Contact)
	if err != nil {
		return nil, err
	}
	return core.MergeJSON(base, map[string]interface{}{
		"opportunities":   d.Opportunities,
		"activities":      d.Activities,
		"social_profiles": d.SocialProfiles,
	})
}

type ContactInput struct {
	FirstName         *string                    `json:"first_name"`
	LastName          *string                    `json:"last_name"`
	Title             *string                    `json:"title"`
	ParentID          core.Optional[null.String] `json:"parent"`
	AccountID         core.Optional[null.String] `json:"account"`
	Email             *string                    `json:"email"`
	Phone             *string                    `json:"phone"`
	Mobile            *string                    `json:"mobile"`
	UseAccountAddress *bool                      `json:"use_account_address"`
	AddressInput
	Status       *string                    `json:"status"`
	AssignedToID core.Optional[null.String] `json:"assigned_to"`
	Description  *string                    `json:"description"`
	DateOfBirth  core.Optional[core.Date]   `json:"date_of_birth"`
	EmailOptOut  *bool                      `json:"email_opt_out"`
	PhoneOptOut  *bool                      `json:"phone_opt_out"`
	TagIDs       *[]int                     `json:"tag_ids"`
}

func (in ContactInput) Apply(c *Contact) {
	core.Assign(&c.FirstName, in.FirstName)
	core.Assign(&c.LastName, in.LastName)
	core.Assign(&c.Title, in.Title)
	in.ParentID.Assign(&c.ParentID)
	in.AccountID.Assign(&c.AccountID)
	core.Assign(&c.Email, in.Email)
	core.Assign(&c.Phone, in.Phone)
	core.Assign(&c.Mobile, in.Mobile)
	core.Assign(&c.UseAccountAddress, in.UseAccountAddress)
	in.AddressInput.Apply(&c.Address)
	core.Assign(&c.Status, in.Status)
	in.AssignedToID.Assign(&c.AssignedToID)
	core.Assign(&c.Description, in.Description)
	in.DateOfBirth.Assign(&c.DateOfBirth)
	core.Assign(&c.EmailOptOut, in.EmailOptOut)
	core.Assign(&c.PhoneOptOut, in.PhoneOptOut)
	c.FirstName = core.CleanString(c.FirstName)
	c.LastName = core.CleanString(c.LastName)
	c.Email = core.CleanString(c.Email, true /* lower */)
}

type ContactFilter struct {
	Search     string
	Status     string
	Account    string
	AssignedTo string
	Parent     string
	Tag        string
	IDs        []string
	// Criteria restricts contacts to those matching a segment definition.
	Criteria *Criteria
	// Segment restricts contacts to the static members of a segment.
	Segment string
}

type Opportunity struct {
	ID                string      `db:"id" json:"id"`
	Name              string      `db:"name" json:"name" validate:"required,max=255"`
	AccountID         string      `db:"account_id" json:"account" validate:"required,uuid"`
	PrimaryContactID  null.String `db:"primary_contact_id" json:"primary_contact" validate:"omitempty,uuid"`
	Stage             string      `db:"stage" json:"stage" validate:"required,oneof=prospecting qualification needs_analysis value_proposition decision_makers proposal negotiation closed_won closed_lost"`
	Amount            null.String `db:"amount" json:"amount" validate:"omitempty,decimal"`
	Probability       int         `db:"probability" json:"probability" validate:"min=0,max=100"`
	ExpectedCloseDate core.Date   `db:"expected_close_date" json:"expected_close_date" validate:"required"`
	NextStep          string      `db:"next_step" json:"next_step" validate:"max=255"`
	Description       string      `db:"description" json:"description"`
	AssignedToID      null.String `db:"assigned_to_id" json:"assigned_to" validate:"omitempty,uuid"`
	CreatedByID       string      `db:"created_by_id" json:"created_by"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
	Tags              []Tag       `db:"-" json:"tags"`

	AccountName        string      `db:"account_name" json:"account_name"`
	PrimaryContactName null.String `db:"primary_contact_name" json:"primary_contact_name"`
	AssignedToName     null.String `db:"assigned_to_name" json:"assigned_to_name"`
	CreatedByName      string      `db:"created_by_name" json:"created_by_name"`
}

func (o Opportunity) MarshalJSON() ([]byte, error) {
	type alias Opportunity
	return json.Marshal(struct {
		alias
		StageDisplay string `json:"stage_display"`
	}{alias(o), OpportunityStages.Label(o.Stage)})
}

type OpportunityInput struct {
	Name              *string                    `json:"name"`
	AccountID         *string                    `json:"account"`
	PrimaryContactID  core.Optional[null.String] `json:"primary_contact"`
	Stage             *string                    `json:"stage"`
	Amount            core.Optional[null.String] `json:"amount"`
	Probability       *int                       `json:"probability"`
	ExpectedCloseDate *core.Date                 `json:"expected_close_date"`
	NextStep          *string                    `json:"next_step"`
	Description       *string                    `json:"description"`
	AssignedToID      core.Optional[null.String] `json:"assigned_to"`
	TagIDs            *[]int                     `json:"tag_ids"`
}

func (in OpportunityInput) Apply(o *Opportunity) {
	core.Assign(&o.Name, in.Name)
	core.Assign(&o.AccountID, in.AccountID)
	in.PrimaryContactID.Assign(&o.PrimaryContactID)
	core.Assign(&o.Stage, in.Stage)
	in.Amount.Assign(&o.Amount)
	core.Assign(&o.Probability, in.Probability)
	core.Assign(&o.ExpectedCloseDate, in.ExpectedCloseDate)
	core.Assign(&o.NextStep, in.NextStep)
	core.Assign(&o.Description, in.Description)
	in.AssignedToID.Assign(&o.AssignedToID)
	o.Name = core.CleanString(o.Name)
}

type OpportunityFilter struct {
	Search         string
	Stage          string
	Account        string
	PrimaryContact string
	AssignedTo     string
	Tag            string
}

// PipelineStage aggregates the opportunities of one stage.
type PipelineStage struct {
	Stage          string      `db:"stage" json:"stage"`
	Count          int         `db:"count" json:"count"`
	TotalAmount    null.String `db:"total_amount" json:"total_amount"`
	AvgAmount      null.String `db:"avg_amount" json:"avg_amount"`
	AvgProbability null.String `db:"avg_probability" json:"avg_probability"`
}

func (ps PipelineStage) MarshalJSON() ([]byte, error) {
	type alias PipelineStage
	return json.Marshal(struct {
		alias
		StageDisplay string `json:"stage_display"`
	}{alias(ps), OpportunityStages.Label(ps.Stage)})
}

package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventuais/eventuais/core"
)

// Roles
const (
	// Admin
	RoleAdmin        = "admin:"
	RoleAdminOwner   = "admin:owner"
	RoleAdminManager = "admin:manager"

	// Staff
	RoleSales     = "sales:"
	RoleMarketing = "marketing:"
	RoleSupport   = "support:"
	RoleProject   = "project:"
)

var (
	AdminRoles = []string{RoleAdmin, RoleAdminOwner, RoleAdminManager}
	StaffRoles = []string{RoleSales, RoleMarketing, RoleSupport, RoleProject}
	AllRoles   = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:   30,
		RoleAdminManager: 29,
		RoleAdmin:        21,

		// Staff: 20 - 11
		RoleSales:     11,
		RoleMarketing: 11,
		RoleSupport:   11,
		RoleProject:   11,
	}

	Roles = []Role{
		{Name: "Sales", Value: RoleSales},
		{Name: "Marketing", Value: RoleMarketing},
		{Name: "Support", Value: RoleSupport},
		{Name: "Project", Value: RoleProject},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Manager", Value: RoleAdminManager},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, len(AdminRoles)+len(StaffRoles))
	all = append(all, AdminRoles...)
	all = append(all, StaffRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

// DisplayName is the name shown next to the objects a user owns.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required,max=255"`
	Username        string   `json:"username" validate:"omitempty,min=3,max=150,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email,max=254"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name" validate:"max=255"`
	Username        string   `json:"username" validate:"omitempty,min=3,max=150,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email,max=254"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Roles == nil {
		uu.Roles = origUsr.Roles
	}
	return validate.Struct(uu)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single user; the first non-empty criterion wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}

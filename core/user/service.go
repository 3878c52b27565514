package user

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("user")
	errInvalidResetToken = "invalid or expired password reset link"

	pwdTexts = map[string]string{
		pwdMinLenTag:     pwdMinLenText,
		pwdNoSpaceTag:    pwdNoSpaceText,
		pwdNotAllNumTag:  pwdNotAllNumText,
		pwdComplexityTag: pwdComplexityText,
		pwdAttrSimTag:    pwdAttrSimText,
		pwdNoCommonTag:   pwdNoCommonText,
	}
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// FilterExistingIDs returns the subset of ids that belong to existing users.
		FilterExistingIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]string, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	secretKey = []byte(conf.SecretKey)
	if conf.PasswordResetTimeoutDelta > 0 {
		passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	}
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
	}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	now := core.Now()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

// ExistingIDs drops the ids that do not belong to any user, keeping the order of the others.
func (svc *Service) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return valid, nil
	}
	return svc.repo.FilterExistingIDs(ctx, valid)
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if err := uu.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Roles = uu.Roles
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(core.Now())
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword applies the password policy to pwd before saving it.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if tag := checkPassword(pwd, usr.Name, usr.Username, usr.Email); tag != "" {
		return User{}, core.NewFieldError("password", pwdTexts[tag])
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	return svc.repo.DeleteUsersByID(ctx, valid)
}

// RequestPasswordReset mails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.DisplayName(),
			"UID":   EncodeUID(usr),
			"Token": makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := data.Validate(svc.validate); err != nil {
		return err
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errors.New(errInvalidResetToken))
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(errors.New(errInvalidResetToken))
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(errors.New(errInvalidResetToken))
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/user"
)

var errNoPermsToSetRoles = "not enough rights to set these roles"

type userApi struct {
	conf     *core.Config
	svc      *user.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := userApi{
		conf:     deps.Conf,
		svc:      deps.UserSvc,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", retrieve[user.User])
	dg.PUT("", api.update)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data, "NewUser"); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewFieldError("roles", errNoPermsToSetRoles)
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return renderCreated(ctx, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bind(ctx, &data, "LoginRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.conf, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return render(ctx, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bind(ctx, &data, "PasswordResetRequest"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return render(ctx, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bind(ctx, &data, "ResetUserPassword"); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return render(ctx, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return render(ctx, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return render(ctx, []user.User{})
	}
	filter.Clean()

	users, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return render(ctx, orEmpty(users))
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := ctxObject[user.User](ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err := bind(ctx, &data, "UpdateUser"); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive` and `Roles` can only be changed by admin
		// `Username` and `Email` can only be changed by admin for now
		if data.IsActive != nil || data.Roles != nil || data.Username != "" || data.Email != "" {
			return errHttpForbidden
		}
	}

	// ctxUser cannot set a role > their own max role
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewFieldError("roles", errNoPermsToSetRoles)
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return render(ctx, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := ctxObject[user.User](ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := bind(ctx, &query, "DestroyMultipleRequest"); err != nil {
		return err
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	for _, id := range query.IDs {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return render(ctx, user.Roles)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return render(ctx, LoginResponse{Token: token})
}

func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(objectKey, usr)
					return next(ctx)
				} else if !core.IsNotFound(err) {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

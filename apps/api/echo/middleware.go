package echoapi

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
)

const objectKey = "object"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// getter loads the object named by an `:id` path parameter.
type getter[T any] func(ctx echo.Context, id string) (T, error)

// byID adapts a service lookup to a getter.
func byID[T any](get func(context.Context, string) (T, error)) getter[T] {
	return func(ctx echo.Context, id string) (T, error) {
		return get(ctx.Request().Context(), id)
	}
}

// byIntID adapts a lookup of an integer primary key; malformed ids are not found.
func byIntID[T any](get func(context.Context, int) (T, error), notFound error) getter[T] {
	return func(ctx echo.Context, id string) (T, error) {
		n, err := strconv.Atoi(id)
		if err != nil {
			var zero T
			return zero, notFound
		}
		return get(ctx.Request().Context(), n)
	}
}

// objectMiddleware loads the object of detail routes and stores it in the context.
func objectMiddleware[T any](get getter[T]) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return err
				}
				return errors.Wrap(err, "loading object")
			}
			ctx.Set(objectKey, obj)
			return next(ctx)
		}
	}
}

func ctxObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(objectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}

// retrieve renders the object loaded by objectMiddleware.
func retrieve[T any](ctx echo.Context) error {
	obj, err := ctxObject[T](ctx)
	if err != nil {
		return err
	}
	return render(ctx, obj)
}

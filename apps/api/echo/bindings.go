package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return ordering.Orderings
}

// queryBool reads an optional boolean query parameter.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "enter a valid boolean")
	}
	return &b, nil
}

// querySearch reads the `search` query parameter.
func querySearch(ctx echo.Context) string {
	return core.CleanString(ctx.QueryParam("search"))
}

// bind decodes the request into dst; what names dst in errors.
func bind(ctx echo.Context, dst interface{}, what string) error {
	if err := ctx.Bind(dst); err != nil {
		return errors.Wrap(err, "binding to "+what)
	}
	return nil
}

func render(ctx echo.Context, data interface{}) error {
	return ctx.JSON(http.StatusOK, data)
}

func renderCreated(ctx echo.Context, data interface{}) error {
	return ctx.JSON(http.StatusCreated, data)
}

// IDsRequest carries the ids of bulk actions.
type IDsRequest struct {
	ContactIDs []string `json:"contact_ids"`
	UserIDs    []string `json:"user_ids"`
}

// orEmpty renders nil lists as [].
func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

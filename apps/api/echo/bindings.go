package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/selah/core"
)

const (
	orderingParam = "ordering"
	limitParam    = "limit"
	offsetParam   = "offset"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPagination reads `?limit=&offset=`; invalid values fall back to the defaults.
func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	page.Limit, _ = strconv.Atoi(ctx.QueryParam(limitParam))
	page.Offset, _ = strconv.Atoi(ctx.QueryParam(offsetParam))
	page.Clean()
	return page
}

// intParam parses a positive integer path parameter.
func intParam(ctx echo.Context, name string) (int, error) {
	n, err := strconv.Atoi(ctx.Param(name))
	if err != nil || n < 1 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a positive integer"})
	}
	return n, nil
}

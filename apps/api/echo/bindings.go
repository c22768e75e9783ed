package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-curriculum/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the comma separated `ordering` query param, keeping allowed fields only.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	ord.Orderings = core.ParseOrdering(val, allowed...)
}

package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// WindowParams selects a slice of an already loaded list.
type WindowParams struct {
	Offset int
	Limit  int
}

// GetWindowParams reads ?offset= and ?limit= from the request. A missing or
// invalid limit means "everything from offset".
func GetWindowParams(c echo.Context) WindowParams {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	if offset < 0 {
		offset = 0
	}
	if limit < 0 || limit > 500 {
		limit = 0
	}

	return WindowParams{Offset: offset, Limit: limit}
}

// Bounds clamps the window to a list of n items and returns [start, end).
func (p WindowParams) Bounds(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}

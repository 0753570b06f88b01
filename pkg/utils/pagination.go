package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams extracts pagination parameters from request.
// defaultSize is used when the limit query param is absent or out of range.
func GetPaginationParams(c echo.Context, defaultSize, maxSize int) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("limit"))

	if page <= 0 {
		page = 1
	}

	if pageSize <= 0 || pageSize > maxSize {
		pageSize = defaultSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

// Window slices a fully fetched list down to the requested page.
func Window[T any](items []T, p PaginationParams) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

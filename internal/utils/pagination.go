// internal/utils/pagination.go
package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type PaginationParams struct {
	Page       int
	ResPerPage int
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.ResPerPage
}

// GetPaginationParams reads ?page=N. The page size is fixed by configuration.
func GetPaginationParams(c *gin.Context, resPerPage int) PaginationParams {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	if resPerPage < 1 {
		resPerPage = 1
	}
	return PaginationParams{Page: page, ResPerPage: resPerPage}
}

// Page builds the listing envelope {count, resPerPage, <key>}.
func Page(key string, items interface{}, count int64, params PaginationParams) gin.H {
	return gin.H{
		"count":      count,
		"resPerPage": params.ResPerPage,
		key:          items,
	}
}

func SetPaginationHeaders(c *gin.Context, count int64, params PaginationParams) {
	totalPages := (count + int64(params.ResPerPage) - 1) / int64(params.ResPerPage)
	c.Header("X-Total-Count", strconv.FormatInt(count, 10))
	c.Header("X-Page", strconv.Itoa(params.Page))
	c.Header("X-Per-Page", strconv.Itoa(params.ResPerPage))
	c.Header("X-Total-Pages", strconv.FormatInt(totalPages, 10))
}

// internal/utils/pagination.go
package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginationParams struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Sort  string `json:"sort"`
	Order string `json:"order"`
}

// ListQuery is the query string shared by the settlement list endpoints.
// Status is left as text; each endpoint checks it against its own enum.
type ListQuery struct {
	PaginationParams
	VendorID string
	Status   string
}

type PaginationResult struct {
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
	Data       interface{} `json:"data"`
}

// Normalize fills defaults and clamps out-of-range values.
func (p PaginationParams) Normalize() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > MaxPageSize {
		p.Limit = DefaultPageSize
	}
	if p.Sort == "" {
		p.Sort = "created_at"
	}
	p.Order = strings.ToLower(p.Order)
	if p.Order != "asc" && p.Order != "desc" {
		p.Order = "desc"
	}
	return p
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	return PaginationParams{
		Page:  page,
		Limit: limit,
		Sort:  c.Query("sort"),
		Order: c.Query("order"),
	}.Normalize()
}

func GetListQuery(c *gin.Context) ListQuery {
	return ListQuery{
		PaginationParams: GetPaginationParams(c),
		VendorID:         strings.TrimSpace(c.Query("vendor_id")),
		Status:           strings.ToLower(strings.TrimSpace(c.Query("status"))),
	}
}

func ApplyPagination(db *gorm.DB, params PaginationParams) *gorm.DB {
	return db.Offset(params.Offset()).Limit(params.Limit)
}

// ApplySort orders by params.Sort when it is one of allowedSortFields and
// by created_at otherwise. id breaks ties so pages are stable.
func ApplySort(db *gorm.DB, params PaginationParams, allowedSortFields []string) *gorm.DB {
	sortField := "created_at"
	for _, field := range allowedSortFields {
		if field == params.Sort {
			sortField = field
			break
		}
	}

	order := "desc"
	if params.Order == "asc" {
		order = "asc"
	}

	return db.Order(sortField + " " + order).Order("id " + order)
}

func CreatePaginationResult(data interface{}, total int64, params PaginationParams) PaginationResult {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}

	return PaginationResult{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		Data:       data,
	}
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.Limit))
	c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
}

package search

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"taquilla/models"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// Paginate returns one page of list. The page number is clamped into
// [1, TotalPages] and TotalPages is at least 1.
func Paginate[T any](list []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(list)
	totalPages := max((total+pageSize-1)/pageSize, 1)
	page = min(max(page, 1), totalPages)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	items := slices.Clone(list[start:end])
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// Query is a full browse request: filters, order and page.
type Query struct {
	Filters  Filters
	Sort     SortKey
	Page     int
	PageSize int
}

// ParseQuery reads a browse request from the query string.
func ParseQuery(q url.Values) (Query, error) {
	f, err := ParseFilters(q)
	if err != nil {
		return Query{}, err
	}
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	size, _ := strconv.Atoi(strings.TrimSpace(q.Get("pageSize")))
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Query{
		Filters:  f,
		Sort:     SortKey(strings.TrimSpace(q.Get("sort"))),
		Page:     page,
		PageSize: size,
	}, nil
}

// Run filters, sorts and paginates list in that order.
func Run(list []models.SearchEvent, q Query, favorites IDSet) Page[models.SearchEvent] {
	filtered := ApplyFilters(list, q.Filters, favorites)
	return Paginate(SortEvents(filtered, q.Sort), q.Page, q.PageSize)
}

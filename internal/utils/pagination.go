// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page describes one page of a list. Page numbers start at 1.
type Page struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Offset returns the index of the first item on the page.
func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

// NewPage clamps page into [1, TotalPages] for total items split into pages
// of size. An empty list has one empty page.
func NewPage(page, size, total int) Page {
	if size < 1 {
		size = 1
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	return Page{Page: page, PageSize: size, Total: total, TotalPages: pages}
}

// Paginate returns the items of the requested page together with its Page.
func Paginate[T any](items []T, page, size int) ([]T, Page) {
	p := NewPage(page, size, len(items))
	start := p.Offset()
	end := min(start+p.PageSize, len(items))
	if start >= end {
		return []T{}, p
	}
	return items[start:end], p
}

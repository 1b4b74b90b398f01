// Package catalog filters, sorts and pages the course list for the browse views.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/SAP-F-2025/course-portal/internal/models"
)

const (
	DefaultSize = 12
	MaxSize     = 100
)

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortTitle     SortOrder = "title"
	SortRating    SortOrder = "rating"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortTitle, SortRating:
		return true
	}
	return false
}

// Query is bound from the browse page's query string.
type Query struct {
	Search   string    `form:"q"`
	Category string    `form:"category"`
	MinPrice string    `form:"min_price"`
	MaxPrice string    `form:"max_price"`
	FreeOnly bool      `form:"free"`
	Sort     SortOrder `form:"sort"`
	Page     int       `form:"page"`
	Size     int       `form:"size"`
}

type Page struct {
	Items      []models.Course `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	Pages      int             `json:"pages"`
	Categories []string        `json:"categories"`
	Query      Query           `json:"-"`
}

func (p Page) HasPrev() bool { return p.Page > 1 }
func (p Page) HasNext() bool { return p.Page < p.Pages }

// Normalize fills defaults and clamps paging.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	if !q.Sort.Valid() {
		q.Sort = SortNewest
	}
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Size <= 0:
		q.Size = DefaultSize
	case q.Size > MaxSize:
		q.Size = MaxSize
	}
	return q
}

type bounds struct {
	min, max int64
	hasMin   bool
	hasMax   bool
}

func (q Query) bounds() (bounds, error) {
	var b bounds
	if s := strings.TrimSpace(q.MinPrice); s != "" {
		v, err := models.ToMinorUnits(json.Number(s))
		if err != nil {
			return b, fmt.Errorf("min_price: %w", err)
		}
		b.min, b.hasMin = v, true
	}
	if s := strings.TrimSpace(q.MaxPrice); s != "" {
		v, err := models.ToMinorUnits(json.Number(s))
		if err != nil {
			return b, fmt.Errorf("max_price: %w", err)
		}
		b.max, b.hasMax = v, true
	}
	if b.hasMin && b.hasMax && b.min > b.max {
		return b, fmt.Errorf("%w: min_price is above max_price", models.ErrInvalidAmount)
	}
	return b, nil
}

// Apply returns the requested page of courses. The input slice is not modified.
// Courses whose price cannot be read never match a price filter.
func Apply(courses []models.Course, q Query) (Page, error) {
	q = q.Normalize()
	b, err := q.bounds()
	if err != nil {
		return Page{Query: q, Page: q.Page, Size: q.Size}, err
	}

	needle := strings.ToLower(q.Search)
	priced := b.hasMin || b.hasMax || q.FreeOnly

	matched := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		if q.Category != "" && !strings.EqualFold(c.Category, q.Category) {
			continue
		}
		if needle != "" && !matches(c, needle) {
			continue
		}
		if priced {
			price, ok := c.PriceMinor()
			if !ok {
				continue
			}
			if q.FreeOnly && price != 0 {
				continue
			}
			if b.hasMin && price < b.min {
				continue
			}
			if b.hasMax && price > b.max {
				continue
			}
		}
		matched = append(matched, c)
	}

	sortCourses(matched, q.Sort)

	page := Page{
		Total:      len(matched),
		Page:       q.Page,
		Size:       q.Size,
		Pages:      (len(matched) + q.Size - 1) / q.Size,
		Categories: Categories(courses),
		Query:      q,
	}
	start := (q.Page - 1) * q.Size
	if start >= len(matched) {
		page.Items = []models.Course{}
		return page, nil
	}
	end := start + q.Size
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = matched[start:end]
	return page, nil
}

// Categories lists the distinct categories in display order.
func Categories(courses []models.Course) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range courses {
		name := strings.TrimSpace(c.Category)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func matches(c models.Course, needle string) bool {
	return strings.Contains(strings.ToLower(c.Title), needle) ||
		strings.Contains(strings.ToLower(c.Description), needle) ||
		strings.Contains(strings.ToLower(c.Category), needle)
}

func sortCourses(courses []models.Course, order SortOrder) {
	price := func(c models.Course) int64 {
		v, ok := c.PriceMinor()
		if !ok {
			return -1
		}
		return v
	}

	var less func(a, b models.Course) bool
	switch order {
	case SortPriceAsc:
		less = func(a, b models.Course) bool { return price(a) < price(b) }
	case SortPriceDesc:
		less = func(a, b models.Course) bool { return price(a) > price(b) }
	case SortTitle:
		less = func(a, b models.Course) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortRating:
		less = func(a, b models.Course) bool { return a.Rating > b.Rating }
	default:
		less = func(a, b models.Course) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(courses, func(i, j int) bool { return less(courses[i], courses[j]) })
}

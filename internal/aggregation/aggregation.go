// Package aggregation computes per-region company statistics and the
// category/type partitions shown next to the map.
//
// Every function is pure and total: empty or nil input yields zero counts and
// empty (non-nil) slices.
package aggregation

import (
	"strings"

	"github.com/stwalsh4118/subsoil/internal/models"
)

// Category is a mineral class marker searched for inside Company.Category.
type Category string

const (
	// CategoryA marks solid minerals (ТПИ).
	CategoryA Category = "ТПИ"
	// CategoryB marks common minerals (ОПИ).
	CategoryB Category = "ОПИ"
)

// ParseCategory accepts the marker itself or its Latin alias, in any case.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(CategoryA), "TPI", "A":
		return CategoryA, true
	case string(CategoryB), "OPI", "B":
		return CategoryB, true
	}
	return "", false
}

// Matches reports whether the free-form category label contains the marker,
// ignoring case.
func (c Category) Matches(label string) bool {
	if c == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(label), strings.ToUpper(string(c)))
}

// TypeCounts tallies company records by type.
type TypeCounts struct {
	Extraction  int `json:"extraction"`
	Exploration int `json:"exploration"`
}

// CategoryCounts holds distinct company titles per category.
type CategoryCounts struct {
	A int `json:"tpi"`
	B int `json:"opi"`
}

// RegionStats is the summary for one company list.
type RegionStats struct {
	Records         int            `json:"records"`
	UniqueCompanies int            `json:"unique_companies"`
	Types           TypeCounts     `json:"types"`
	Categories      CategoryCounts `json:"categories"`
}

// UniqueCompanyTitleCount counts distinct titles; records sharing a title
// collapse even when their locations differ.
func UniqueCompanyTitleCount(companies []models.Company) int {
	seen := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		seen[c.CompanyTitle] = struct{}{}
	}
	return len(seen)
}

// CountByType tallies records per type. Unknown types are skipped.
func CountByType(companies []models.Company) TypeCounts {
	var counts TypeCounts
	for _, c := range companies {
		switch c.Type {
		case models.TypeExtraction:
			counts.Extraction++
		case models.TypeExploration:
			counts.Exploration++
		}
	}
	return counts
}

// UniqueCountByCategory counts distinct titles per category. A record whose
// label carries both markers counts in both; one with neither counts in none.
func UniqueCountByCategory(companies []models.Company) CategoryCounts {
	a := make(map[string]struct{})
	b := make(map[string]struct{})
	for _, c := range companies {
		if CategoryA.Matches(c.Category) {
			a[c.CompanyTitle] = struct{}{}
		}
		if CategoryB.Matches(c.Category) {
			b[c.CompanyTitle] = struct{}{}
		}
	}
	return CategoryCounts{A: len(a), B: len(b)}
}

// FilterByType keeps records of type t in input order.
func FilterByType(companies []models.Company, t models.CompanyType) []models.Company {
	out := make([]models.Company, 0)
	for _, c := range companies {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// FilterByCategory keeps records whose label matches the category, in input order.
func FilterByCategory(companies []models.Company, category Category) []models.Company {
	out := make([]models.Company, 0)
	for _, c := range companies {
		if category.Matches(c.Category) {
			out = append(out, c)
		}
	}
	return out
}

// Summarize computes all statistics for one company list.
func Summarize(companies []models.Company) RegionStats {
	return RegionStats{
		Records:         len(companies),
		UniqueCompanies: UniqueCompanyTitleCount(companies),
		Types:           CountByType(companies),
		Categories:      UniqueCountByCategory(companies),
	}
}

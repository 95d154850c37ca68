package config

import (
	"slices"

	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// Category represents an issue category configuration
type Category struct {
	ID          string
	Name        string
	Description string
}

// Priority represents a priority level configuration
type Priority struct {
	ID          string
	Name        string
	Description string
}

// Department represents a responsible department configuration
type Department struct {
	ID          string
	Name        string
	Description string
}

// Taxonomy holds the allowed classification values
type Taxonomy struct {
	Categories  []Category
	Priorities  []Priority
	Departments []Department
}

// HasCategory reports whether id is a configured category
func (t *Taxonomy) HasCategory(id types.CategoryID) bool {
	return slices.ContainsFunc(t.Categories, func(c Category) bool { return c.ID == string(id) })
}

// HasPriority reports whether id is a configured priority
func (t *Taxonomy) HasPriority(id types.PriorityID) bool {
	return slices.ContainsFunc(t.Priorities, func(p Priority) bool { return p.ID == string(id) })
}

// HasDepartment reports whether id is a configured department
func (t *Taxonomy) HasDepartment(id types.DepartmentID) bool {
	return slices.ContainsFunc(t.Departments, func(d Department) bool { return d.ID == string(id) })
}

// DefaultTaxonomy returns the built-in civic issue taxonomy
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		Categories: []Category{
			{ID: "pothole", Name: "Pothole"},
			{ID: "broken_streetlight", Name: "Broken streetlight"},
			{ID: "broken_street_sign", Name: "Broken street sign"},
			{ID: "excessive_dumping", Name: "Excessive dumping"},
			{ID: "illegal_graffiti", Name: "Illegal graffiti"},
			{ID: "vandalism", Name: "Vandalism"},
			{ID: "overgrown_grass", Name: "Overgrown grass"},
			{ID: "unplowed_area", Name: "Unplowed area"},
			{ID: "icy_street", Name: "Icy street"},
			{ID: "icy_sidewalk", Name: "Icy sidewalk"},
			{ID: "malfunctioning_waterfountain", Name: "Malfunctioning water fountain"},
			{ID: "other", Name: "Other"},
		},
		Priorities: []Priority{
			{ID: "low", Name: "Low", Description: "Cosmetic or minor inconvenience"},
			{ID: "medium", Name: "Medium", Description: "Should be addressed within weeks"},
			{ID: "high", Name: "High", Description: "Should be addressed within days"},
			{ID: "critical", Name: "Critical", Description: "Immediate risk to safety"},
		},
		Departments: []Department{
			{ID: "public-works", Name: "Public Works"},
			{ID: "transportation", Name: "Transportation"},
			{ID: "parks", Name: "Parks and Recreation"},
			{ID: "sanitation", Name: "Sanitation"},
			{ID: "utilities", Name: "Utilities"},
			{ID: "code-enforcement", Name: "Code Enforcement"},
		},
	}
}

package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

var idPattern = regexp.MustCompile(`^[a-z0-9]+([_-][a-z0-9]+)*$`)

func validateID(kind, id string) error {
	if id == "" {
		return goerr.New(kind+" ID cannot be empty")
	}
	if !idPattern.MatchString(id) {
		return goerr.New(kind+" ID must be lowercase alphanumeric with hyphens or underscores", goerr.V("id", id))
	}
	return nil
}

// CategoryID represents a unique identifier for an issue category
type CategoryID string

// Validate checks if the CategoryID is valid
func (c CategoryID) Validate() error {
	return validateID("category", string(c))
}

// String returns the string representation of CategoryID
func (c CategoryID) String() string {
	return string(c)
}

// PriorityID represents a unique identifier for a priority level
type PriorityID string

// Validate checks if the PriorityID is valid
func (p PriorityID) Validate() error {
	return validateID("priority", string(p))
}

func (p PriorityID) String() string {
	return string(p)
}

// DepartmentID represents a unique identifier for a responsible department
type DepartmentID string

// Validate checks if the DepartmentID is valid
func (d DepartmentID) Validate() error {
	return validateID("department", string(d))
}

func (d DepartmentID) String() string {
	return string(d)
}

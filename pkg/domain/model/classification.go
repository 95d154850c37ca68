package model

import (
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// Classification holds the triage result. Empty strings mean absent.
type Classification struct {
	Category   types.CategoryID
	Priority   types.PriorityID
	Department types.DepartmentID
}

// IsComplete reports whether all three fields are present
func (c Classification) IsComplete() bool {
	return c.Category != "" && c.Priority != "" && c.Department != ""
}

// IsEmpty reports whether no field is present
func (c Classification) IsEmpty() bool {
	return c.Category == "" && c.Priority == "" && c.Department == ""
}

// Merge returns c with every field present in newer replacing the old value
func (c Classification) Merge(newer Classification) Classification {
	if newer.Category != "" {
		c.Category = newer.Category
	}
	if newer.Priority != "" {
		c.Priority = newer.Priority
	}
	if newer.Department != "" {
		c.Department = newer.Department
	}
	return c
}

// PriorAnswer is an answered clarification question fed back to the classifier
type PriorAnswer struct {
	Round      int
	QuestionID types.QuestionID
	Question   string
	Answer     string
}

// ClassifyInput is what the triage classifier sees for one round
type ClassifyInput struct {
	IssueID      types.IssueID
	Description  string
	Location     *Location
	Images       []Image
	PriorAnswers []PriorAnswer
}

// ClassifyResult is the classifier output for one round. Questions are only
// meaningful when Classification is incomplete.
type ClassifyResult struct {
	Classification Classification
	Questions      []ClarificationQuestion
}

// NeedsClarification reports whether the classifier asked for more input
func (r *ClassifyResult) NeedsClarification() bool {
	return !r.Classification.IsComplete() && len(r.Questions) > 0
}

package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// IssueID is a UUID-based identifier for Issue
type IssueID string

// NewIssueID generates a new UUID v4 IssueID
func NewIssueID() IssueID {
	return IssueID(uuid.New().String())
}

// Validate checks if the IssueID is a well-formed UUID
func (id IssueID) Validate() error {
	if id == "" {
		return goerr.New("issue ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return goerr.Wrap(err, "issue ID must be a UUID", goerr.V("id", id))
	}
	return nil
}

func (id IssueID) String() string {
	return string(id)
}

// ImageID is a UUID-based identifier for Image
type ImageID string

// NewImageID generates a new UUID v4 ImageID
func NewImageID() ImageID {
	return ImageID(uuid.New().String())
}

func (id ImageID) String() string {
	return string(id)
}

// EventID is a UUID-based identifier for an issue event
type EventID string

// NewEventID generates a new UUID v4 EventID
func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func (id EventID) String() string {
	return string(id)
}

// QuestionID identifies a clarification question within a single issue
type QuestionID string

func (id QuestionID) String() string {
	return string(id)
}

package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// Error kinds shared by every layer. Callers match them with errors.Is.
var (
	ErrValidation            = goerr.New("validation failed")
	ErrConflict              = goerr.New("conflicting state transition")
	ErrNotFound              = goerr.New("issue not found")
	ErrIssueBusy             = goerr.New("issue is busy, retry later")
	ErrClassifierUnavailable = goerr.New("triage classifier unavailable")
	ErrStore                 = goerr.New("issue store failure")
)

// Context keys for error values
const (
	IssueIDKey    = "issue_id"
	StatusKey     = "status"
	TriageKey     = "triage_state"
	QuestionIDKey = "question_id"
)

// ValidationError describes which inputs were rejected. It unwraps to
// ErrValidation so it can be matched with errors.Is after goerr wrapping.
type ValidationError struct {
	Message string
	// Fields lists offending request fields (e.g. "description", "photos")
	Fields []string
	// Missing lists pending questions that received no answer
	Missing []types.QuestionID
	// Invalid lists answers that are not acceptable for their question
	Invalid []types.QuestionID
}

// NewFieldError creates a ValidationError for the given request fields
func NewFieldError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if len(e.Fields) > 0 {
		sb.WriteString(": fields=")
		sb.WriteString(strings.Join(e.Fields, ","))
	}
	if ids := e.QuestionIDs(); len(ids) > 0 {
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = string(id)
		}
		sb.WriteString(": question_ids=")
		sb.WriteString(strings.Join(strs, ","))
	}
	return sb.String()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// QuestionIDs returns missing ids followed by invalid ids
func (e *ValidationError) QuestionIDs() []types.QuestionID {
	ids := make([]types.QuestionID, 0, len(e.Missing)+len(e.Invalid))
	ids = append(ids, e.Missing...)
	ids = append(ids, e.Invalid...)
	return ids
}

// HasProblems reports whether anything was rejected
func (e *ValidationError) HasProblems() bool {
	return len(e.Fields) > 0 || len(e.Missing) > 0 || len(e.Invalid) > 0
}

package types

import "fmt"

// QuestionType represents the answer format of a clarification question
type QuestionType string

const (
	QuestionTypeText   QuestionType = "text"
	QuestionTypeChoice QuestionType = "choice"
)

// IsValid checks if the question type is valid
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionTypeText, QuestionTypeChoice:
		return true
	default:
		return false
	}
}

func (t QuestionType) String() string {
	return string(t)
}

// ParseQuestionType parses a string into a QuestionType
func ParseQuestionType(s string) (QuestionType, error) {
	qt := QuestionType(s)
	if !qt.IsValid() {
		return "", fmt.Errorf("invalid question type: %s", s)
	}
	return qt, nil
}

package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// ClarificationQuestion is a follow-up question generated by the classifier.
// Choices is non-empty iff Type is choice.
type ClarificationQuestion struct {
	ID       types.QuestionID
	Question string
	Type     types.QuestionType
	Choices  []string
}

// Validate checks the question shape
func (q ClarificationQuestion) Validate() error {
	if q.ID == "" {
		return goerr.New("question ID is required")
	}
	if strings.TrimSpace(q.Question) == "" {
		return goerr.New("question text is required", goerr.V(QuestionIDKey, q.ID))
	}
	switch q.Type {
	case types.QuestionTypeChoice:
		if len(q.Choices) == 0 {
			return goerr.New("choice question requires choices", goerr.V(QuestionIDKey, q.ID))
		}
	case types.QuestionTypeText:
		if len(q.Choices) > 0 {
			return goerr.New("text question must not have choices", goerr.V(QuestionIDKey, q.ID))
		}
	default:
		return goerr.New("invalid question type", goerr.V(QuestionIDKey, q.ID), goerr.V("type", q.Type))
	}
	return nil
}

// Accepts reports whether answer is an acceptable answer for the question.
// Choice answers must match one of the choices exactly.
func (q ClarificationQuestion) Accepts(answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	if q.Type == types.QuestionTypeChoice {
		return slices.Contains(q.Choices, answer)
	}
	return true
}

func copyQuestions(qs []ClarificationQuestion) []ClarificationQuestion {
	if qs == nil {
		return nil
	}
	out := make([]ClarificationQuestion, len(qs))
	for i, q := range qs {
		out[i] = q
		if q.Choices != nil {
			out[i].Choices = slices.Clone(q.Choices)
		}
	}
	return out
}

// NormalizeQuestions repairs classifier output so every question satisfies
// Validate: ids are filled and made unique, blank texts are dropped, and
// the type is derived from the presence of choices.
func NormalizeQuestions(qs []ClarificationQuestion) []ClarificationQuestion {
	out := make([]ClarificationQuestion, 0, len(qs))
	seen := make(map[types.QuestionID]bool, len(qs))

	for _, q := range qs {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}

		choices := make([]string, 0, len(q.Choices))
		for _, c := range q.Choices {
			if strings.TrimSpace(c) != "" && !slices.Contains(choices, c) {
				choices = append(choices, c)
			}
		}

		n := ClarificationQuestion{
			ID:       types.QuestionID(strings.TrimSpace(string(q.ID))),
			Question: text,
			Type:     types.QuestionTypeText,
		}
		if q.Type == types.QuestionTypeChoice && len(choices) > 0 {
			n.Type = types.QuestionTypeChoice
			n.Choices = choices
		}

		if n.ID == "" {
			n.ID = types.QuestionID(fmt.Sprintf("q%d", len(out)+1))
		}
		base := n.ID
		for i := 2; seen[n.ID]; i++ {
			n.ID = types.QuestionID(fmt.Sprintf("%s-%d", base, i))
		}
		seen[n.ID] = true

		out = append(out, n)
	}

	return out
}

package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// TriageStage is the workflow stage of an issue. Exactly one of Created,
// Classifying, AwaitingClarification or Triaged; clarification questions
// only exist inside AwaitingClarification.
type TriageStage interface {
	State() types.TriageState
	isTriageStage()
}

// Created is the initial stage, before the first classifier round
type Created struct{}

func (Created) State() types.TriageState { return types.TriageStateCreated }
func (Created) isTriageStage()           {}

// Classifying means a classifier round is running. Round counts the
// clarification rounds already answered.
type Classifying struct {
	Round int
}

func (Classifying) State() types.TriageState { return types.TriageStateClassifying }
func (Classifying) isTriageStage()           {}

// AwaitingClarification holds the pending questions of clarification round Round (1-based)
type AwaitingClarification struct {
	Round     int
	Questions []ClarificationQuestion
}

func (AwaitingClarification) State() types.TriageState {
	return types.TriageStateAwaitingClarification
}
func (AwaitingClarification) isTriageStage() {}

// ValidateAnswers checks that every pending question has an acceptable
// answer. It returns nil or a *ValidationError listing missing and invalid ids.
// Blank answers count as missing. Answers for unknown question ids are
// reported as invalid.
func (a AwaitingClarification) ValidateAnswers(answers map[types.QuestionID]string) *ValidationError {
	verr := &ValidationError{Message: "follow-up answers rejected"}

	pending := make(map[types.QuestionID]bool, len(a.Questions))
	for _, q := range a.Questions {
		pending[q.ID] = true
		answer, ok := answers[q.ID]
		switch {
		case !ok || strings.TrimSpace(answer) == "":
			verr.Missing = append(verr.Missing, q.ID)
		case !q.Accepts(answer):
			verr.Invalid = append(verr.Invalid, q.ID)
		}
	}

	unknown := make([]types.QuestionID, 0)
	for id := range answers {
		if !pending[id] {
			unknown = append(unknown, id)
		}
	}
	sortQuestionIDs(unknown)
	verr.Invalid = append(verr.Invalid, unknown...)

	if !verr.HasProblems() {
		return nil
	}
	return verr
}

// Answered converts a validated answer set into prior answers for this round
func (a AwaitingClarification) Answered(answers map[types.QuestionID]string) []PriorAnswer {
	out := make([]PriorAnswer, 0, len(a.Questions))
	for _, q := range a.Questions {
		out = append(out, PriorAnswer{
			Round:      a.Round,
			QuestionID: q.ID,
			Question:   q.Question,
			Answer:     answers[q.ID],
		})
	}
	return out
}

// Triaged is the final stage; classification is settled (or intentionally absent)
type Triaged struct {
	Outcome types.TriageOutcome
}

func (Triaged) State() types.TriageState { return types.TriageStateTriaged }
func (Triaged) isTriageStage()           {}

// NewTriageStage rebuilds a stage from its flattened storage form
func NewTriageStage(state types.TriageState, round int, outcome types.TriageOutcome, questions []ClarificationQuestion) (TriageStage, error) {
	switch state {
	case types.TriageStateCreated, "":
		return Created{}, nil
	case types.TriageStateClassifying:
		return Classifying{Round: round}, nil
	case types.TriageStateAwaitingClarification:
		if len(questions) == 0 {
			return nil, goerr.New("awaiting clarification without questions")
		}
		return AwaitingClarification{Round: round, Questions: copyQuestions(questions)}, nil
	case types.TriageStateTriaged:
		if !outcome.IsValid() {
			return nil, goerr.New("invalid triage outcome", goerr.V("outcome", outcome))
		}
		return Triaged{Outcome: outcome}, nil
	default:
		return nil, goerr.New("invalid triage state", goerr.V("state", state))
	}
}

// FlattenTriageStage is the inverse of NewTriageStage
func FlattenTriageStage(stage TriageStage) (state types.TriageState, round int, outcome types.TriageOutcome, questions []ClarificationQuestion) {
	switch s := stage.(type) {
	case Classifying:
		return s.State(), s.Round, "", nil
	case AwaitingClarification:
		return s.State(), s.Round, "", copyQuestions(s.Questions)
	case Triaged:
		return s.State(), 0, s.Outcome, nil
	default:
		return types.TriageStateCreated, 0, "", nil
	}
}

func copyStage(stage TriageStage) TriageStage {
	if a, ok := stage.(AwaitingClarification); ok {
		return AwaitingClarification{Round: a.Round, Questions: copyQuestions(a.Questions)}
	}
	return stage
}

// Package document holds the storage form of issues shared by the
// persistent repositories.
package document

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

type Location struct {
	Latitude  float64 `firestore:"latitude" json:"latitude"`
	Longitude float64 `firestore:"longitude" json:"longitude"`
}

type Image struct {
	ID          string `firestore:"id" json:"id"`
	URL         string `firestore:"url" json:"url"`
	ContentType string `firestore:"content_type" json:"content_type"`
	Size        int64  `firestore:"size" json:"size"`
}

type Question struct {
	ID       string   `firestore:"id" json:"id"`
	Question string   `firestore:"question" json:"question"`
	Type     string   `firestore:"type" json:"type"`
	Choices  []string `firestore:"choices,omitempty" json:"choices,omitempty"`
}

type Answer struct {
	Round      int    `firestore:"round" json:"round"`
	QuestionID string `firestore:"question_id" json:"question_id"`
	Question   string `firestore:"question" json:"question"`
	Answer     string `firestore:"answer" json:"answer"`
}

type Event struct {
	ID        string            `firestore:"id" json:"id"`
	Type      string            `firestore:"type" json:"type"`
	Message   string            `firestore:"message" json:"message"`
	Data      map[string]string `firestore:"data,omitempty" json:"data,omitempty"`
	Answers   []Answer          `firestore:"answers,omitempty" json:"answers,omitempty"`
	CreatedAt time.Time         `firestore:"created_at" json:"created_at"`
}

// Issue is the stored form of model.Issue with the triage stage flattened
type Issue struct {
	ID          string     `firestore:"id" json:"id"`
	Description string     `firestore:"description" json:"description"`
	Location    *Location  `firestore:"location,omitempty" json:"location,omitempty"`
	Images      []Image    `firestore:"images" json:"images"`
	Category    string     `firestore:"category" json:"category"`
	Priority    string     `firestore:"priority" json:"priority"`
	Department  string     `firestore:"department" json:"department"`
	Status      string     `firestore:"status" json:"status"`
	TriageState string     `firestore:"triage_state" json:"triage_state"`
	TriageRound int        `firestore:"triage_round" json:"triage_round"`
	Outcome     string     `firestore:"triage_outcome" json:"triage_outcome"`
	Questions   []Question `firestore:"clarification_questions" json:"clarification_questions"`
	Events      []Event    `firestore:"events" json:"events"`
	Version     int64      `firestore:"version" json:"version"`
	CreatedAt   time.Time  `firestore:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `firestore:"updated_at" json:"updated_at"`
}

func FromModel(issue *model.Issue) *Issue {
	state, round, outcome, questions := model.FlattenTriageStage(issue.Triage)

	doc := &Issue{
		ID:          issue.ID.String(),
		Description: issue.Description,
		Images:      make([]Image, 0, len(issue.Images)),
		Category:    string(issue.Classification.Category),
		Priority:    string(issue.Classification.Priority),
		Department:  string(issue.Classification.Department),
		Status:      issue.Status.String(),
		TriageState: state.String(),
		TriageRound: round,
		Outcome:     string(outcome),
		Questions:   make([]Question, 0, len(questions)),
		Events:      make([]Event, 0, len(issue.Events)),
		Version:     issue.Version,
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
	}

	if issue.Location != nil {
		doc.Location = &Location{
			Latitude:  issue.Location.Latitude,
			Longitude: issue.Location.Longitude,
		}
	}
	for _, img := range issue.Images {
		doc.Images = append(doc.Images, Image{
			ID:          img.ID.String(),
			URL:         img.URL,
			ContentType: img.ContentType,
			Size:        img.Size,
		})
	}
	for _, q := range questions {
		doc.Questions = append(doc.Questions, Question{
			ID:       string(q.ID),
			Question: q.Question,
			Type:     q.Type.String(),
			Choices:  q.Choices,
		})
	}
	for _, ev := range issue.Events {
		e := Event{
			ID:        ev.ID.String(),
			Type:      ev.Type.String(),
			Message:   ev.Message,
			Data:      ev.Data,
			CreatedAt: ev.CreatedAt,
		}
		for _, a := range ev.Answers {
			e.Answers = append(e.Answers, Answer{
				Round:      a.Round,
				QuestionID: string(a.QuestionID),
				Question:   a.Question,
				Answer:     a.Answer,
			})
		}
		doc.Events = append(doc.Events, e)
	}

	return doc
}

func (d *Issue) ToModel() (*model.Issue, error) {
	questions := make([]model.ClarificationQuestion, 0, len(d.Questions))
	for _, q := range d.Questions {
		questions = append(questions, model.ClarificationQuestion{
			ID:       types.QuestionID(q.ID),
			Question: q.Question,
			Type:     types.QuestionType(q.Type),
			Choices:  q.Choices,
		})
	}

	stage, err := model.NewTriageStage(types.TriageState(d.TriageState), d.TriageRound, types.TriageOutcome(d.Outcome), questions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to restore triage stage", goerr.V(model.IssueIDKey, d.ID))
	}

	issue := &model.Issue{
		ID:          types.IssueID(d.ID),
		Description: d.Description,
		Classification: model.Classification{
			Category:   types.CategoryID(d.Category),
			Priority:   types.PriorityID(d.Priority),
			Department: types.DepartmentID(d.Department),
		},
		Status:    types.IssueStatus(d.Status),
		Triage:    stage,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}

	if d.Location != nil {
		issue.Location = &model.Location{
			Latitude:  d.Location.Latitude,
			Longitude: d.Location.Longitude,
		}
	}
	for _, img := range d.Images {
		issue.Images = append(issue.Images, model.Image{
			ID:          types.ImageID(img.ID),
			URL:         img.URL,
			ContentType: img.ContentType,
			Size:        img.Size,
		})
	}
	for _, e := range d.Events {
		ev := model.Event{
			ID:        types.EventID(e.ID),
			Type:      types.EventType(e.Type),
			Message:   e.Message,
			Data:      e.Data,
			CreatedAt: e.CreatedAt,
		}
		for _, a := range e.Answers {
			ev.Answers = append(ev.Answers, model.PriorAnswer{
				Round:      a.Round,
				QuestionID: types.QuestionID(a.QuestionID),
				Question:   a.Question,
				Answer:     a.Answer,
			})
		}
		issue.Events = append(issue.Events, ev)
	}

	return issue, nil
}

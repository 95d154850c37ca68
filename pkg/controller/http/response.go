package http

import (
	"time"

	"github.com/secmon-lab/citypulse/pkg/domain/model"
)

type questionResponse struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Choices  []string `json:"choices,omitempty"`
}

type imageResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type answerResponse struct {
	Round      int    `json:"round"`
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

type eventResponse struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Answers   []answerResponse  `json:"answers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// issueResponse is the full issue representation. Absent classification
// fields and location are omitted.
type issueResponse struct {
	ID                     string             `json:"id"`
	Description            string             `json:"description"`
	Status                 string             `json:"status"`
	TriageState            string             `json:"triage_state"`
	TriageOutcome          string             `json:"triage_outcome,omitempty"`
	ClarificationRound     int                `json:"clarification_round,omitempty"`
	Latitude               *float64           `json:"latitude,omitempty"`
	Longitude              *float64           `json:"longitude,omitempty"`
	Category               string             `json:"category,omitempty"`
	Priority               string             `json:"priority,omitempty"`
	Department             string             `json:"department,omitempty"`
	Images                 []imageResponse    `json:"images"`
	ClarificationQuestions []questionResponse `json:"clarification_questions,omitempty"`
	Events                 []eventResponse    `json:"events"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// createIssueResponse is the short form returned on creation
type createIssueResponse struct {
	ID                     string             `json:"id"`
	Status                 string             `json:"status"`
	TriageState            string             `json:"triage_state"`
	ClarificationQuestions []questionResponse `json:"clarification_questions,omitempty"`
	Images                 []imageResponse    `json:"images,omitempty"`
}

func toQuestionResponses(qs []model.ClarificationQuestion) []questionResponse {
	if len(qs) == 0 {
		return nil
	}
	out := make([]questionResponse, len(qs))
	for i, q := range qs {
		out[i] = questionResponse{
			ID:       q.ID.String(),
			Question: q.Question,
			Type:     q.Type.String(),
			Choices:  q.Choices,
		}
	}
	return out
}

func toImageResponses(images []model.Image) []imageResponse {
	out := make([]imageResponse, len(images))
	for i, img := range images {
		out[i] = imageResponse{
			ID:          img.ID.String(),
			URL:         img.URL,
			ContentType: img.ContentType,
			Size:        img.Size,
		}
	}
	return out
}

func toEventResponses(events []model.Event) []eventResponse {
	out := make([]eventResponse, len(events))
	for i, ev := range events {
		out[i] = eventResponse{
			ID:        ev.ID.String(),
			Type:      ev.Type.String(),
			Message:   ev.Message,
			Data:      ev.Data,
			CreatedAt: ev.CreatedAt,
		}
		for _, a := range ev.Answers {
			out[i].Answers = append(out[i].Answers, answerResponse{
				Round:      a.Round,
				QuestionID: a.QuestionID.String(),
				Question:   a.Question,
				Answer:     a.Answer,
			})
		}
	}
	return out
}

func toIssueResponse(issue *model.Issue) issueResponse {
	resp := issueResponse{
		ID:                     issue.ID.String(),
		Description:            issue.Description,
		Status:                 issue.Status.String(),
		TriageState:            issue.TriageState().String(),
		Category:               issue.Classification.Category.String(),
		Priority:               issue.Classification.Priority.String(),
		Department:             issue.Classification.Department.String(),
		Images:                 toImageResponses(issue.Images),
		ClarificationQuestions: toQuestionResponses(issue.ClarificationQuestions()),
		Events:                 toEventResponses(issue.Events),
		CreatedAt:              issue.CreatedAt,
		UpdatedAt:              issue.UpdatedAt,
	}

	switch stage := issue.Triage.(type) {
	case model.AwaitingClarification:
		resp.ClarificationRound = stage.Round
	case model.Triaged:
		resp.TriageOutcome = stage.Outcome.String()
	}

	if loc := issue.Location; loc != nil {
		lat, lng := loc.Latitude, loc.Longitude
		resp.Latitude = &lat
		resp.Longitude = &lng
	}
	return resp
}

func toCreateIssueResponse(issue *model.Issue) createIssueResponse {
	resp := createIssueResponse{
		ID:                     issue.ID.String(),
		Status:                 issue.Status.String(),
		TriageState:            issue.TriageState().String(),
		ClarificationQuestions: toQuestionResponses(issue.ClarificationQuestions()),
	}
	if len(issue.Images) > 0 {
		resp.Images = toImageResponses(issue.Images)
	}
	return resp
}

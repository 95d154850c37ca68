package model

import (
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// MaxImagesPerIssue is the maximum number of photos attached to one issue
const MaxImagesPerIssue = 5

// Location is a reported position. Absent locations are nil pointers.
type Location struct {
	Latitude  float64
	Longitude float64
}

// NewLocation validates the coordinate range. NaN and infinities are rejected.
func NewLocation(lat, lng float64) (*Location, error) {
	if !isFinite(lat) || lat < -90 || lat > 90 {
		return nil, NewFieldError("latitude out of range", "lat")
	}
	if !isFinite(lng) || lng < -180 || lng > 180 {
		return nil, NewFieldError("longitude out of range", "lng")
	}
	return &Location{Latitude: lat, Longitude: lng}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Image is a photo owned by exactly one issue
type Image struct {
	ID          types.ImageID
	URL         string
	ContentType string
	Size        int64
}

// Event is an append-only lifecycle record
type Event struct {
	ID        types.EventID
	Type      types.EventType
	Message   string
	Data      map[string]string
	Answers   []PriorAnswer // set only on followup_submitted
	CreatedAt time.Time
}

// Issue is a reported civic problem and its full lifecycle state
type Issue struct {
	ID             types.IssueID
	Description    string
	Location       *Location
	Images         []Image
	Classification Classification
	Status         types.IssueStatus
	Triage         TriageStage
	Events         []Event
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewIssue creates an issue in the Created stage with a creation event
func NewIssue(description string, location *Location, images []Image, now time.Time) (*Issue, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, goerr.Wrap(NewFieldError("description is required", "description"), "invalid issue")
	}
	if len(images) > MaxImagesPerIssue {
		return nil, goerr.Wrap(NewFieldError("too many photos", "photos"), "invalid issue",
			goerr.V("count", len(images)))
	}

	issue := &Issue{
		ID:          types.NewIssueID(),
		Description: description,
		Location:    location,
		Images:      slices.Clone(images),
		Status:      types.IssueStatusOpen,
		Triage:      Created{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	issue.AppendEvent(types.EventTypeCreated, "issue reported", map[string]string{
		"images": strconv.Itoa(len(images)),
	}, now)

	return issue, nil
}

// AttachImages sets the photos of a freshly created issue. Photos are
// fixed once the issue leaves the Created stage.
func (x *Issue) AttachImages(images []Image) error {
	if _, ok := x.Triage.(Created); !ok {
		return goerr.Wrap(ErrConflict, "images can only be attached at creation", goerr.V(IssueIDKey, x.ID))
	}
	if len(images) > MaxImagesPerIssue {
		return goerr.Wrap(NewFieldError("too many photos", "photos"), "invalid issue",
			goerr.V("count", len(images)))
	}

	x.Images = slices.Clone(images)
	for i := range x.Events {
		if x.Events[i].Type == types.EventTypeCreated {
			if x.Events[i].Data == nil {
				x.Events[i].Data = map[string]string{}
			}
			x.Events[i].Data["images"] = strconv.Itoa(len(images))
		}
	}
	return nil
}

// TriageState returns the discriminator of the current stage
func (x *Issue) TriageState() types.TriageState {
	if x.Triage == nil {
		return types.TriageStateCreated
	}
	return x.Triage.State()
}

// ClarificationQuestions returns the pending questions, or nil when none are pending
func (x *Issue) ClarificationQuestions() []ClarificationQuestion {
	if a, ok := x.Triage.(AwaitingClarification); ok {
		return a.Questions
	}
	return nil
}

// PriorAnswers collects every answered clarification from follow-up events, in order
func (x *Issue) PriorAnswers() []PriorAnswer {
	var out []PriorAnswer
	for _, ev := range x.Events {
		if ev.Type == types.EventTypeFollowUpSubmitted {
			out = append(out, ev.Answers...)
		}
	}
	return out
}

// AppendEvent records a lifecycle event
func (x *Issue) AppendEvent(typ types.EventType, msg string, data map[string]string, now time.Time) *Event {
	x.Events = append(x.Events, Event{
		ID:        types.NewEventID(),
		Type:      typ,
		Message:   msg,
		Data:      data,
		CreatedAt: now,
	})
	return &x.Events[len(x.Events)-1]
}

// Validate checks the issue invariants
func (x *Issue) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid issue ID")
	}
	if strings.TrimSpace(x.Description) == "" {
		return goerr.New("issue description is empty", goerr.V(IssueIDKey, x.ID))
	}
	if len(x.Images) > MaxImagesPerIssue {
		return goerr.New("too many images", goerr.V(IssueIDKey, x.ID), goerr.V("count", len(x.Images)))
	}
	if !x.Status.IsValid() {
		return goerr.New("invalid issue status", goerr.V(IssueIDKey, x.ID), goerr.V(StatusKey, x.Status))
	}

	switch s := x.Triage.(type) {
	case AwaitingClarification:
		if len(s.Questions) == 0 {
			return goerr.New("awaiting clarification without questions", goerr.V(IssueIDKey, x.ID))
		}
		if x.Classification.IsComplete() {
			return goerr.New("questions pending on a fully classified issue", goerr.V(IssueIDKey, x.ID))
		}
		if x.Status == types.IssueStatusResolved {
			return goerr.New("questions pending on a resolved issue", goerr.V(IssueIDKey, x.ID))
		}
		ids := make(map[types.QuestionID]bool, len(s.Questions))
		for _, q := range s.Questions {
			if err := q.Validate(); err != nil {
				return goerr.Wrap(err, "invalid clarification question", goerr.V(IssueIDKey, x.ID))
			}
			if ids[q.ID] {
				return goerr.New("duplicate question ID", goerr.V(IssueIDKey, x.ID), goerr.V(QuestionIDKey, q.ID))
			}
			ids[q.ID] = true
		}
	case Created, Classifying, Triaged:
	case nil:
		return goerr.New("issue has no triage stage", goerr.V(IssueIDKey, x.ID))
	}

	return nil
}

// Clone returns a deep copy
func (x *Issue) Clone() *Issue {
	if x == nil {
		return nil
	}
	c := *x
	if x.Location != nil {
		loc := *x.Location
		c.Location = &loc
	}
	c.Images = slices.Clone(x.Images)
	c.Triage = copyStage(x.Triage)
	if x.Events != nil {
		c.Events = make([]Event, len(x.Events))
		for i, ev := range x.Events {
			c.Events[i] = ev
			c.Events[i].Data = maps.Clone(ev.Data)
			c.Events[i].Answers = slices.Clone(ev.Answers)
		}
	}
	return &c
}

func sortQuestionIDs(ids []types.QuestionID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

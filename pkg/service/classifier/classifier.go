package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/model/config"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
)

// Client classifies issues with an LLM
type Client struct {
	llmClient gollem.LLMClient
	taxonomy  *config.Taxonomy
}

var _ interfaces.Classifier = &Client{}

// Option is a functional option for Client configuration
type Option func(*Client)

// WithTaxonomy lists the allowed categories, priorities and departments in the prompt
func WithTaxonomy(taxonomy *config.Taxonomy) Option {
	return func(c *Client) {
		c.taxonomy = taxonomy
	}
}

// New creates a classifier backed by the given LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (*Client, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &Client{
		llmClient: llmClient,
		taxonomy:  config.DefaultTaxonomy(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type llmQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Choices  []string `json:"choices"`
}

type llmResponse struct {
	Category           string        `json:"category"`
	Priority           string        `json:"priority"`
	Department         string        `json:"department"`
	NeedsClarification bool          `json:"needs_clarification"`
	Questions          []llmQuestion `json:"questions"`
}

// Classify runs one classification round. Every failure is reported as
// model.ErrClassifierUnavailable so the caller can fall back.
func (c *Client) Classify(ctx context.Context, input model.ClassifyInput) (*model.ClassifyResult, error) {
	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(responseSchema()),
		gollem.WithSessionSystemPrompt(buildSystemPrompt(c.taxonomy)),
	)
	if err != nil {
		return nil, goerr.Wrap(model.ErrClassifierUnavailable, "failed to create LLM session",
			goerr.V("cause", err.Error()), goerr.V(model.IssueIDKey, input.IssueID))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(input)))
	if err != nil {
		return nil, goerr.Wrap(model.ErrClassifierUnavailable, "failed to generate classification",
			goerr.V("cause", err.Error()), goerr.V(model.IssueIDKey, input.IssueID))
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.Wrap(model.ErrClassifierUnavailable, "empty classification response",
			goerr.V(model.IssueIDKey, input.IssueID))
	}

	var out llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &out); err != nil {
		return nil, goerr.Wrap(model.ErrClassifierUnavailable, "failed to parse classification response",
			goerr.V("cause", err.Error()), goerr.V("response", resp.Texts[0]))
	}

	return out.toResult(), nil
}

func (r *llmResponse) toResult() *model.ClassifyResult {
	result := &model.ClassifyResult{
		Classification: model.Classification{
			Category:   types.CategoryID(normalizeID(r.Category)),
			Priority:   types.PriorityID(normalizeID(r.Priority)),
			Department: types.DepartmentID(normalizeID(r.Department)),
		},
	}

	// Questions only count when the model asked for them
	if r.NeedsClarification || !result.Classification.IsComplete() {
		for _, q := range r.Questions {
			result.Questions = append(result.Questions, model.ClarificationQuestion{
				ID:       types.QuestionID(q.ID),
				Question: q.Question,
				Type:     types.QuestionType(strings.ToLower(strings.TrimSpace(q.Type))),
				Choices:  q.Choices,
			})
		}
	}

	return result
}

func normalizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "null" || s == "none" || s == "unknown" {
		return ""
	}
	return s
}

func responseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "IssueClassification",
		Description: "Triage result for a civic issue report",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"category": {
				Type:        gollem.TypeString,
				Description: "Category ID from the taxonomy. Empty string if it cannot be determined.",
				Required:    true,
			},
			"priority": {
				Type:        gollem.TypeString,
				Description: "Priority ID from the taxonomy. Empty string if it cannot be determined.",
				Required:    true,
			},
			"department": {
				Type:        gollem.TypeString,
				Description: "Department ID from the taxonomy. Empty string if it cannot be determined.",
				Required:    true,
			},
			"needs_clarification": {
				Type:        gollem.TypeBoolean,
				Description: "True when the report lacks information needed to fill every field",
				Required:    true,
			},
			"questions": {
				Type:        gollem.TypeArray,
				Description: "Follow-up questions for the reporter. Empty unless needs_clarification is true.",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"id": {
							Type:        gollem.TypeString,
							Description: "Short identifier unique within this response, e.g. q1",
							Required:    true,
						},
						"question": {
							Type:        gollem.TypeString,
							Description: "Question text shown to the reporter",
							Required:    true,
						},
						"type": {
							Type:        gollem.TypeString,
							Description: "text for free-form answers, choice for multiple choice",
							Enum:        []string{"text", "choice"},
							Required:    true,
						},
						"choices": {
							Type:        gollem.TypeArray,
							Description: "Answer options. Required for choice questions, empty for text questions.",
							Items:       &gollem.Parameter{Type: gollem.TypeString},
						},
					},
				},
			},
		},
	}
}

func buildSystemPrompt(taxonomy *config.Taxonomy) string {
	var sb strings.Builder
	sb.WriteString("You are a triage assistant for a city's public issue reporting service.\n")
	sb.WriteString("Residents report problems such as potholes, broken streetlights or graffiti. ")
	sb.WriteString("Classify each report into a category, a priority and the responsible department.\n\n")

	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Use only IDs listed below. Leave a field as an empty string if you cannot decide.\n")
	sb.WriteString("2. If any field is empty, set needs_clarification to true and ask at most 3 short questions that would let you decide.\n")
	sb.WriteString("3. Prefer choice questions with a few clear options when the answer space is small.\n")
	sb.WriteString("4. Previous answers from the reporter are authoritative. Never ask the same question twice.\n")
	sb.WriteString("5. Safety hazards (exposed wires, flooding, blocked roads) deserve high or critical priority.\n\n")

	if taxonomy != nil {
		sb.WriteString("## Categories:\n\n")
		for _, c := range taxonomy.Categories {
			writeEntry(&sb, c.ID, c.Name, c.Description)
		}
		sb.WriteString("\n## Priorities:\n\n")
		for _, p := range taxonomy.Priorities {
			writeEntry(&sb, p.ID, p.Name, p.Description)
		}
		sb.WriteString("\n## Departments:\n\n")
		for _, d := range taxonomy.Departments {
			writeEntry(&sb, d.ID, d.Name, d.Description)
		}
	}

	return sb.String()
}

func writeEntry(sb *strings.Builder, id, name, desc string) {
	fmt.Fprintf(sb, "- `%s`: %s", id, name)
	if desc != "" {
		fmt.Fprintf(sb, " (%s)", desc)
	}
	sb.WriteString("\n")
}

func buildUserPrompt(input model.ClassifyInput) string {
	var sb strings.Builder
	sb.WriteString("## Report:\n\n")
	sb.WriteString(input.Description)
	sb.WriteString("\n\n")

	if input.Location != nil {
		fmt.Fprintf(&sb, "**Location:** %.6f, %.6f\n\n", input.Location.Latitude, input.Location.Longitude)
	}

	if len(input.Images) > 0 {
		sb.WriteString("## Photos:\n\n")
		for _, img := range input.Images {
			fmt.Fprintf(&sb, "- %s (%s)\n", img.URL, img.ContentType)
		}
		sb.WriteString("\n")
	}

	if len(input.PriorAnswers) > 0 {
		sb.WriteString("## Previous clarifications:\n\n")
		for _, a := range input.PriorAnswers {
			fmt.Fprintf(&sb, "- [round %d] Q: %s\n  A: %s\n", a.Round, a.Question, a.Answer)
		}
	}

	return sb.String()
}

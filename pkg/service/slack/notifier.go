package slack

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/slack-go/slack"
)

// maxDescriptionBytes keeps the section block well under Slack's 3000 character limit
const maxDescriptionBytes = 2000

// Notifier posts a message to a channel when an issue reaches the triaged stage
type Notifier struct {
	svc       Service
	channelID string
	baseURL   string
}

var _ interfaces.Notifier = &Notifier{}

// NotifierOption is a functional option for Notifier configuration
type NotifierOption func(*Notifier)

// WithBaseURL sets the public API base URL used to link the issue
func WithBaseURL(url string) NotifierOption {
	return func(n *Notifier) {
		n.baseURL = strings.TrimRight(url, "/")
	}
}

// NewNotifier creates a notifier posting to channelID
func NewNotifier(svc Service, channelID string, opts ...NotifierOption) (*Notifier, error) {
	if svc == nil {
		return nil, goerr.New("Slack service is required")
	}
	if channelID == "" {
		return nil, goerr.New("Slack channel ID is required")
	}

	n := &Notifier{svc: svc, channelID: channelID}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyTriaged implements interfaces.Notifier
func (n *Notifier) NotifyTriaged(ctx context.Context, issue *model.Issue) error {
	blocks := n.buildTriagedBlocks(issue)
	text := fmt.Sprintf("Issue triaged: %s", escapeMrkdwn(truncateToMaxBytes(issue.Description, 120)))

	if _, err := n.svc.PostMessage(ctx, n.channelID, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to notify triaged issue", goerr.V(model.IssueIDKey, issue.ID))
	}
	return nil
}

func outcomeLabel(issue *model.Issue) string {
	triaged, ok := issue.Triage.(model.Triaged)
	if !ok {
		return issue.TriageState().String()
	}
	switch triaged.Outcome {
	case types.TriageOutcomeClassified:
		return "Classified"
	case types.TriageOutcomeDegraded:
		return "Needs manual triage (classifier unavailable)"
	case types.TriageOutcomeForced:
		return "Classified after max clarification rounds"
	case types.TriageOutcomeClosed:
		return "Closed before triage finished"
	default:
		return triaged.Outcome.String()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return escapeMrkdwn(s)
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeMrkdwn neutralizes control sequences such as <!channel> and links in
// text that did not come from us
func escapeMrkdwn(s string) string {
	return mrkdwnEscaper.Replace(s)
}

func (n *Notifier) buildTriagedBlocks(issue *model.Issue) []slack.Block {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "New issue triaged", false, false))

	desc := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.PlainTextType, truncateToMaxBytes(issue.Description, maxDescriptionBytes), false, false),
		nil, nil,
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Category:*\n"+orDash(issue.Classification.Category.String()), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Priority:*\n"+orDash(issue.Classification.Priority.String()), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Department:*\n"+orDash(issue.Classification.Department.String()), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Triage:*\n"+outcomeLabel(issue), false, false),
	}
	if issue.Location != nil {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Location:*\n%.5f, %.5f", issue.Location.Latitude, issue.Location.Longitude), false, false))
	}
	if len(issue.Images) > 0 {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Photos:*\n%d", len(issue.Images)), false, false))
	}
	details := slack.NewSectionBlock(nil, fields, nil)

	ref := fmt.Sprintf("Issue `%s`", issue.ID)
	if n.baseURL != "" {
		ref = fmt.Sprintf("<%s/v1/issues/%s|Issue %s>", n.baseURL, issue.ID, issue.ID)
	}
	footer := slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, ref, false, false))

	return []slack.Block{header, desc, details, footer}
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8 sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const ellipsis = "..."
	cut := maxBytes - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

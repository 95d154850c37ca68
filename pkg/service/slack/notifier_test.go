package slack_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citypulse/pkg/domain/model"
	"github.com/secmon-lab/citypulse/pkg/domain/types"
	"github.com/secmon-lab/citypulse/pkg/service/slack"
	slackapi "github.com/slack-go/slack"
)

type postedMessage struct {
	ChannelID string
	Blocks    []slackapi.Block
	Text      string
}

type mockSlackService struct {
	posted  []postedMessage
	postErr error
}

func (m *mockSlackService) PostMessage(ctx context.Context, channelID string, blocks []slackapi.Block, text string) (string, error) {
	if m.postErr != nil {
		return "", m.postErr
	}
	m.posted = append(m.posted, postedMessage{ChannelID: channelID, Blocks: blocks, Text: text})
	return "1700000000.000100", nil
}

func (m *mockSlackService) GetChannelName(ctx context.Context, channelID string) (string, error) {
	return "triage", nil
}

func triagedIssue(t *testing.T) *model.Issue {
	t.Helper()
	loc, err := model.NewLocation(51.5074, -0.1278)
	gt.NoError(t, err).Required()
	issue, err := model.NewIssue("Streetlight out on Baker Street", loc, nil, time.Now().UTC())
	gt.NoError(t, err).Required()
	issue.Classification = model.Classification{
		Category:   "broken_streetlight",
		Priority:   "medium",
		Department: "utilities",
	}
	issue.Triage = model.Triaged{Outcome: types.TriageOutcomeClassified}
	return issue
}

func TestNotifier(t *testing.T) {
	t.Run("posts triaged issue to channel", func(t *testing.T) {
		svc := &mockSlackService{}
		n, err := slack.NewNotifier(svc, "C-TRIAGE", slack.WithBaseURL("https://city.example.com/"))
		gt.NoError(t, err).Required()

		issue := triagedIssue(t)
		gt.NoError(t, n.NotifyTriaged(context.Background(), issue))

		gt.Array(t, svc.posted).Length(1).Required()
		msg := svc.posted[0]
		gt.Value(t, msg.ChannelID).Equal("C-TRIAGE")
		gt.String(t, msg.Text).Contains("Streetlight out on Baker Street")
		gt.Array(t, msg.Blocks).Length(4)

		raw, err := json.Marshal(msg.Blocks)
		gt.NoError(t, err).Required()
		body := string(raw)
		gt.String(t, body).Contains("broken_streetlight")
		gt.String(t, body).Contains("utilities")
		gt.String(t, body).Contains("https://city.example.com/v1/issues/" + issue.ID.String())
	})

	t.Run("degraded issue shows dashes for absent fields", func(t *testing.T) {
		svc := &mockSlackService{}
		n, err := slack.NewNotifier(svc, "C-TRIAGE")
		gt.NoError(t, err).Required()

		issue := triagedIssue(t)
		issue.Classification = model.Classification{}
		issue.Triage = model.Triaged{Outcome: types.TriageOutcomeDegraded}
		gt.NoError(t, n.NotifyTriaged(context.Background(), issue))

		raw, err := json.Marshal(svc.posted[0].Blocks)
		gt.NoError(t, err).Required()
		gt.String(t, string(raw)).Contains("Needs manual triage")
		gt.String(t, string(raw)).Contains(`*Category:*\n-`)
	})

	t.Run("citizen text cannot mention the channel", func(t *testing.T) {
		svc := &mockSlackService{}
		n, err := slack.NewNotifier(svc, "C-TRIAGE")
		gt.NoError(t, err).Required()

		issue := triagedIssue(t)
		issue.Description = "<!channel> pothole & <https://evil.example|click>"
		gt.NoError(t, n.NotifyTriaged(context.Background(), issue))

		msg := svc.posted[0]
		gt.Bool(t, strings.Contains(msg.Text, "<!channel>")).False()
		gt.String(t, msg.Text).Contains("&lt;!channel&gt; pothole &amp; &lt;https://evil.example|click&gt;")

		section, ok := msg.Blocks[1].(*slackapi.SectionBlock)
		gt.Bool(t, ok).True()
		if !ok {
			t.FailNow()
		}
		gt.Value(t, section.Text.Type).Equal(slackapi.PlainTextType)
		gt.Value(t, section.Text.Text).Equal(issue.Description)
	})

	t.Run("post failure is returned", func(t *testing.T) {
		svc := &mockSlackService{postErr: errors.New("channel_not_found")}
		n, err := slack.NewNotifier(svc, "C-TRIAGE")
		gt.NoError(t, err).Required()

		err = n.NotifyTriaged(context.Background(), triagedIssue(t))
		gt.Value(t, err).NotNil()
	})

	t.Run("requires channel", func(t *testing.T) {
		_, err := slack.NewNotifier(&mockSlackService{}, "")
		gt.Value(t, err).NotNil()
	})
}

func TestTruncateToMaxBytes(t *testing.T) {
	gt.Value(t, slack.TruncateToMaxBytes("short", 10)).Equal("short")

	long := strings.Repeat("a", 20)
	gt.Value(t, slack.TruncateToMaxBytes(long, 10)).Equal("aaaaaaa...")

	// multi-byte runes are never split
	jp := strings.Repeat("道", 10) // 3 bytes each
	out := slack.TruncateToMaxBytes(jp, 10)
	gt.Value(t, out).Equal("道道...")
}

package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citypulse/pkg/domain/interfaces"
	"github.com/secmon-lab/citypulse/pkg/service/slack"
	"github.com/secmon-lab/citypulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for triage notifications
type Slack struct {
	botToken  string
	channelID string
	apiURL    string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for triage notifications)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("CITYPULSE_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID receiving triaged issues",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("CITYPULSE_SLACK_CHANNEL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel", x.channelID),
	)
}

// BotToken returns the token so it can be masked in logs
func (x *Slack) BotToken() string {
	return x.botToken
}

// IsConfigured reports whether notifications are enabled
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.channelID != ""
}

// Configure returns the triage notifier, or nil when Slack is not configured.
// baseURL is used for links back to the issue API.
func (x *Slack) Configure(ctx context.Context, baseURL string) (interfaces.Notifier, error) {
	if x.botToken == "" && x.channelID == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.New("slack-bot-token and slack-channel must be given together")
	}

	var opts []slack.Option
	if x.apiURL != "" {
		opts = append(opts, slack.WithAPIURL(x.apiURL))
	}
	svc, err := slack.New(x.botToken, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack service")
	}

	name, err := svc.GetChannelName(ctx, x.channelID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to look up slack channel", goerr.V("channel", x.channelID))
	}

	var notifierOpts []slack.NotifierOption
	if baseURL != "" {
		notifierOpts = append(notifierOpts, slack.WithBaseURL(baseURL))
	}
	notifier, err := slack.NewNotifier(svc, x.channelID, notifierOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize slack notifier")
	}

	logging.Default().Info("Slack triage notifications enabled", "channel", name)
	return notifier, nil
}

package infra

import (
	"fmt"

	"github.com/pyama86/quera/domain/model"
	"github.com/slack-go/slack"
)

type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// NotifyNewQuery posts a rich message for a newly submitted query so agents
// watching the channel see it without opening the dashboard.
func NotifyNewQuery(client SlackAPI, channelID string, query *model.Query) error {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", "📩 New customer query", false, false),
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*👤 Sender:* %s", query.Sender), false, false),
			nil, nil,
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*📡 Channel:* %s / *🏷 Category:* %s / *🚨 Priority:* %d",
				query.Channel, query.Category, query.Priority), false, false),
			nil, nil,
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf(">>> %s", query.Message), false, false),
			nil, nil,
		),
	}

	if _, _, err := client.PostMessage(channelID, slack.MsgOptionBlocks(blocks...)); err != nil {
		return fmt.Errorf("PostMessage failed: %w", err)
	}
	return nil
}
